package simpleattachment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for attachment persistence.
//
// UpdateAttachment writes every field except the reference sets. Reference
// sets change only through AddReference and RemoveReference, which must be
// atomic per attachment so concurrent writers never lose each other's
// changes.
type Repository interface {
	CreateAttachment(ctx context.Context, attachment *Attachment) error
	GetAttachment(ctx context.Context, id uuid.UUID) (*Attachment, error)
	UpdateAttachment(ctx context.Context, attachment *Attachment) error
	DeleteAttachment(ctx context.Context, id uuid.UUID) error
	ListAttachments(ctx context.Context, filter AttachmentFilter, page Page) ([]*Attachment, int, error)

	// ListAttachmentIDsByReference returns every attachment whose reference
	// set for kind contains elementID.
	ListAttachmentIDsByReference(ctx context.Context, kind ElementKind, elementID string) ([]uuid.UUID, error)

	// AddReference adds elementID to the set for kind. It reports whether
	// the set changed.
	AddReference(ctx context.Context, id uuid.UUID, kind ElementKind, elementID string) (bool, error)

	// RemoveReference removes elementID from the set for kind. It reports
	// whether the set changed.
	RemoveReference(ctx context.Context, id uuid.UUID, kind ElementKind, elementID string) (bool, error)

	// CompleteUpload marks a LOCAL attachment COMPLETED only while it is
	// still IN_PROGRESS with the given extension, as one conditional write.
	// It reports whether the row changed.
	CompleteUpload(ctx context.Context, id uuid.UUID, extension string, updatedAt time.Time) (bool, error)
}

// StorageGateway defines the interface for the object store holding LOCAL
// attachment content. All keys live in a single bucket.
type StorageGateway interface {
	// IssueWriteURL returns a presigned URL allowing one upload to key
	IssueWriteURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// IssueReadURL returns a presigned URL allowing downloads of key
	IssueReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// DeleteObject removes key from the store
	DeleteObject(ctx context.Context, key string) error
}

// EventPublisher defines the interface for outbound attachment change events.
type EventPublisher interface {
	// Publish emits trigger for attachment, keyed by attachment.ID
	Publish(ctx context.Context, trigger Trigger, attachment *Attachment) error
}
