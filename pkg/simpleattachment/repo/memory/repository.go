package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

// Repository implements simpleattachment.Repository using in-memory storage.
// A single mutex makes every operation, including reference changes, atomic.
type Repository struct {
	mu          sync.RWMutex
	attachments map[uuid.UUID]*simpleattachment.Attachment
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		attachments: make(map[uuid.UUID]*simpleattachment.Attachment),
	}
}

var _ simpleattachment.Repository = (*Repository)(nil)

func (r *Repository) CreateAttachment(ctx context.Context, attachment *simpleattachment.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := attachment.Clone()
	stored.UploadURL = ""
	if stored.VideoRefs == nil {
		stored.VideoRefs = []string{}
	}
	if stored.ModuleRefs == nil {
		stored.ModuleRefs = []string{}
	}
	r.attachments[attachment.ID] = stored
	return nil
}

func (r *Repository) GetAttachment(ctx context.Context, id uuid.UUID) (*simpleattachment.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attachment, exists := r.attachments[id]
	if !exists {
		return nil, simpleattachment.ErrAttachmentNotFound
	}
	// Return a copy to prevent external modifications
	return attachment.Clone(), nil
}

func (r *Repository) UpdateAttachment(ctx context.Context, attachment *simpleattachment.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.attachments[attachment.ID]
	if !exists {
		return simpleattachment.ErrAttachmentNotFound
	}

	stored := attachment.Clone()
	stored.UploadURL = ""
	// Reference sets only change through AddReference/RemoveReference.
	stored.VideoRefs = existing.VideoRefs
	stored.ModuleRefs = existing.ModuleRefs
	stored.OwnerID = existing.OwnerID
	stored.CreatedAt = existing.CreatedAt
	r.attachments[attachment.ID] = stored
	return nil
}

func (r *Repository) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.attachments[id]; !exists {
		return simpleattachment.ErrAttachmentNotFound
	}
	delete(r.attachments, id)
	return nil
}

func (r *Repository) ListAttachments(ctx context.Context, filter simpleattachment.AttachmentFilter, page simpleattachment.Page) ([]*simpleattachment.Attachment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*simpleattachment.Attachment
	for _, attachment := range r.attachments {
		if matchesFilter(attachment, filter) {
			matches = append(matches, attachment)
		}
	}

	// Sort by updated_at descending
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].ID.String() < matches[j].ID.String()
		}
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})

	total := len(matches)
	page = page.Normalize()
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Size
	if end > total {
		end = total
	}

	result := make([]*simpleattachment.Attachment, 0, end-start)
	for _, attachment := range matches[start:end] {
		result = append(result, attachment.Clone())
	}
	return result, total, nil
}

func (r *Repository) ListAttachmentIDsByReference(ctx context.Context, kind simpleattachment.ElementKind, elementID string) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for id, attachment := range r.attachments {
		if attachment.HasRef(kind, elementID) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *Repository) AddReference(ctx context.Context, id uuid.UUID, kind simpleattachment.ElementKind, elementID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attachment, exists := r.attachments[id]
	if !exists {
		return false, simpleattachment.ErrAttachmentNotFound
	}
	if attachment.HasRef(kind, elementID) {
		return false, nil
	}
	switch kind {
	case simpleattachment.ElementKindVideo:
		attachment.VideoRefs = append(attachment.VideoRefs, elementID)
	case simpleattachment.ElementKindModule:
		attachment.ModuleRefs = append(attachment.ModuleRefs, elementID)
	default:
		return false, simpleattachment.ErrInvalidElementKind
	}
	attachment.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *Repository) RemoveReference(ctx context.Context, id uuid.UUID, kind simpleattachment.ElementKind, elementID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attachment, exists := r.attachments[id]
	if !exists {
		return false, simpleattachment.ErrAttachmentNotFound
	}
	if !attachment.HasRef(kind, elementID) {
		return false, nil
	}
	switch kind {
	case simpleattachment.ElementKindVideo:
		attachment.VideoRefs = without(attachment.VideoRefs, elementID)
	case simpleattachment.ElementKindModule:
		attachment.ModuleRefs = without(attachment.ModuleRefs, elementID)
	default:
		return false, simpleattachment.ErrInvalidElementKind
	}
	attachment.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *Repository) CompleteUpload(ctx context.Context, id uuid.UUID, extension string, updatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attachment, exists := r.attachments[id]
	if !exists {
		return false, simpleattachment.ErrAttachmentNotFound
	}
	if attachment.Type != simpleattachment.AttachmentTypeLocal ||
		attachment.Status != simpleattachment.AttachmentStatusInProgress ||
		attachment.Extension != extension {
		return false, nil
	}
	attachment.Status = simpleattachment.AttachmentStatusCompleted
	attachment.UpdatedAt = updatedAt
	return true, nil
}

func matchesFilter(attachment *simpleattachment.Attachment, filter simpleattachment.AttachmentFilter) bool {
	if filter.OwnerID != nil && attachment.OwnerID != *filter.OwnerID {
		return false
	}
	if filter.VideoRef != nil && !attachment.HasRef(simpleattachment.ElementKindVideo, *filter.VideoRef) {
		return false
	}
	if filter.ModuleRef != nil && !attachment.HasRef(simpleattachment.ElementKindModule, *filter.ModuleRef) {
		return false
	}
	return true
}

func without(refs []string, elementID string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref != elementID {
			out = append(out, ref)
		}
	}
	return out
}
