package simpleattachment

import "github.com/google/uuid"

// CreateAttachmentRequest contains parameters for creating an attachment
type CreateAttachmentRequest struct {
	OwnerID     uuid.UUID
	Type        AttachmentType
	Extension   string
	URL         string
	Title       string
	Description string
}

// UpdateAttachmentRequest contains the fields to change. Nil fields are left
// untouched.
type UpdateAttachmentRequest struct {
	Type        *AttachmentType
	Extension   *string
	URL         *string
	Title       *string
	Description *string
}

// ListAttachmentsRequest contains parameters for listing attachments
type ListAttachmentsRequest struct {
	Filter AttachmentFilter
	Page   Page
}
