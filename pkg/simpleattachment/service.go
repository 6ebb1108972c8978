package simpleattachment

import (
	"context"

	"github.com/google/uuid"
)

// Service is the attachment lifecycle orchestrator.
type Service interface {
	// GetAttachment returns an attachment with its access URL filled in.
	GetAttachment(ctx context.Context, id uuid.UUID) (*Attachment, error)

	// ListAttachments returns one page of attachments matching the filter.
	ListAttachments(ctx context.Context, req ListAttachmentsRequest) (*AttachmentPage, error)

	// CreateAttachment creates an attachment. LOCAL attachments come back
	// IN_PROGRESS with an UploadURL.
	CreateAttachment(ctx context.Context, req CreateAttachmentRequest) (*Attachment, error)

	// UpdateAttachment applies req on behalf of actor.
	UpdateAttachment(ctx context.Context, id uuid.UUID, req UpdateAttachmentRequest, actor Actor) (*Attachment, error)

	// DeleteAttachment removes an attachment and, best effort, its object.
	DeleteAttachment(ctx context.Context, id uuid.UUID, actor Actor) (*Attachment, error)

	// ConfirmObjectStored marks the LOCAL attachment encoded in objectKey as
	// COMPLETED. Repeated confirmations are no-ops.
	ConfirmObjectStored(ctx context.Context, objectKey string) (*Attachment, error)

	ReferenceService
}

// ReferenceService is the subset of Service the Reconciler works through.
type ReferenceService interface {
	ListReferencing(ctx context.Context, kind ElementKind, elementID string) ([]uuid.UUID, error)
	AddReference(ctx context.Context, id uuid.UUID, kind ElementKind, elementID string) (bool, error)
	RemoveReference(ctx context.Context, id uuid.UUID, kind ElementKind, elementID string) (bool, error)
}
