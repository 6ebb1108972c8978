package simpleattachment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewAttachmentParams holds the inputs of NewAttachment.
type NewAttachmentParams struct {
	ID          uuid.UUID // zero means generate
	OwnerID     uuid.UUID
	Type        AttachmentType
	Extension   string
	URL         string
	Title       string
	Description string
	// Status overrides the type-derived default. Used when rebuilding an
	// attachment from storage.
	Status AttachmentStatus
}

// NewAttachment builds a new attachment, deriving its status from its type
// unless an explicit status is given.
func NewAttachment(p NewAttachmentParams) (*Attachment, error) {
	switch p.Type {
	case AttachmentTypeLocal:
		if p.Extension == "" {
			return nil, ErrMissingExtension
		}
		// LOCAL URLs are computed on read
		p.URL = ""
	case AttachmentTypeExternal:
		if p.URL == "" {
			return nil, ErrMissingURL
		}
		p.Extension = ""
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, p.Type)
	}

	status := p.Status
	if status == "" {
		status = AttachmentStatusCompleted
		if p.Type == AttachmentTypeLocal {
			status = AttachmentStatusInProgress
		}
	}

	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	now := time.Now().UTC()
	a := &Attachment{
		ID:          id,
		OwnerID:     p.OwnerID,
		Type:        p.Type,
		Status:      status,
		Extension:   p.Extension,
		URL:         p.URL,
		Title:       p.Title,
		Description: p.Description,
		VideoRefs:   []string{},
		ModuleRefs:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the type/status invariants. Any failure wraps
// ErrInvariantViolation.
func (a *Attachment) Validate() error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvariantViolation)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvariantViolation, a.Status)
	}
	switch a.Type {
	case AttachmentTypeExternal:
		if a.URL == "" {
			return fmt.Errorf("%w: EXTERNAL attachment %s has no url", ErrInvariantViolation, a.ID)
		}
		if a.Extension != "" {
			return fmt.Errorf("%w: EXTERNAL attachment %s has an extension", ErrInvariantViolation, a.ID)
		}
		if a.Status == AttachmentStatusInProgress {
			return fmt.Errorf("%w: EXTERNAL attachment %s is in progress", ErrInvariantViolation, a.ID)
		}
	case AttachmentTypeLocal:
		if a.Extension == "" {
			return fmt.Errorf("%w: LOCAL attachment %s has no extension", ErrInvariantViolation, a.ID)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvariantViolation, a.Type)
	}
	return nil
}

// ObjectKey returns the storage key of a LOCAL attachment.
func (a *Attachment) ObjectKey() string {
	return ObjectKey(a.ID, a.Extension)
}
