package simpleattachment

import (
	"time"

	"github.com/google/uuid"
)

// AttachmentType is where the attachment content lives.
type AttachmentType string

const (
	// AttachmentTypeLocal content is stored in the object store under ObjectKey.
	AttachmentTypeLocal AttachmentType = "LOCAL"
	// AttachmentTypeExternal content is hosted elsewhere, URL points at it.
	AttachmentTypeExternal AttachmentType = "EXTERNAL"
)

// IsValid reports whether t is a known attachment type.
func (t AttachmentType) IsValid() bool {
	return t == AttachmentTypeLocal || t == AttachmentTypeExternal
}

// AttachmentStatus is the upload state of an attachment.
type AttachmentStatus string

const (
	AttachmentStatusInProgress AttachmentStatus = "IN_PROGRESS"
	AttachmentStatusCompleted  AttachmentStatus = "COMPLETED"
)

// IsValid reports whether s is a known attachment status.
func (s AttachmentStatus) IsValid() bool {
	return s == AttachmentStatusInProgress || s == AttachmentStatusCompleted
}

// ElementKind identifies a family of owning elements.
type ElementKind string

const (
	ElementKindVideo  ElementKind = "videos"
	ElementKindModule ElementKind = "modules"
)

// ElementKinds lists every supported element kind.
var ElementKinds = []ElementKind{ElementKindVideo, ElementKindModule}

// IsValid reports whether k is a known element kind.
func (k ElementKind) IsValid() bool {
	return k == ElementKindVideo || k == ElementKindModule
}

// Trigger is the kind of change carried by an event.
type Trigger string

const (
	TriggerCreate Trigger = "CREATE"
	TriggerUpdate Trigger = "UPDATE"
	TriggerDelete Trigger = "DELETE"
)

// IsValid reports whether t is a known trigger.
func (t Trigger) IsValid() bool {
	return t == TriggerCreate || t == TriggerUpdate || t == TriggerDelete
}

// Attachment is the aggregate root.
//
// For LOCAL attachments URL is never persisted; the service fills it with a
// presigned read URL on every read. UploadURL is only set on the response of
// the operation that issued a write URL.
type Attachment struct {
	ID          uuid.UUID        `json:"id"`
	OwnerID     uuid.UUID        `json:"userId"`
	Type        AttachmentType   `json:"type"`
	Status      AttachmentStatus `json:"status"`
	Extension   string           `json:"extension,omitempty"`
	URL         string           `json:"url,omitempty"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	VideoRefs   []string         `json:"videos"`
	ModuleRefs  []string         `json:"modules"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`

	// Computed, not persisted
	UploadURL string `json:"uploadUrl,omitempty"`
}

// Refs returns the reference set for kind.
func (a *Attachment) Refs(kind ElementKind) []string {
	switch kind {
	case ElementKindVideo:
		return a.VideoRefs
	case ElementKindModule:
		return a.ModuleRefs
	default:
		return nil
	}
}

// HasRef reports whether elementID is in the reference set for kind.
func (a *Attachment) HasRef(kind ElementKind, elementID string) bool {
	for _, ref := range a.Refs(kind) {
		if ref == elementID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of a.
func (a *Attachment) Clone() *Attachment {
	c := *a
	c.VideoRefs = append([]string(nil), a.VideoRefs...)
	c.ModuleRefs = append([]string(nil), a.ModuleRefs...)
	return &c
}

// AttachmentFilter narrows a listing. Set fields are AND-combined.
type AttachmentFilter struct {
	OwnerID   *uuid.UUID
	VideoRef  *string
	ModuleRef *string
}

// Page selects a window of a listing. Page numbers start at 1.
type Page struct {
	Number int
	Size   int
}

// Pagination defaults and bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps p into valid bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of items before the page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

// AttachmentPage is one page of a listing plus the total match count.
type AttachmentPage struct {
	Items      []*Attachment `json:"items"`
	TotalCount int           `json:"totalCount"`
}

// Actor is the identity performing a command.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// CanModify reports whether the actor may update or delete a.
func (act Actor) CanModify(a *Attachment) bool {
	return act.IsAdmin || act.UserID == a.OwnerID
}
