package simpleattachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Default presigned URL validity.
const (
	DefaultReadURLTTL  = time.Hour
	DefaultWriteURLTTL = time.Hour
)

// service implements the Service interface
type service struct {
	repository  Repository
	storage     StorageGateway
	publisher   EventPublisher
	logger      *slog.Logger
	readURLTTL  time.Duration
	writeURLTTL time.Duration
	urlCache    *ReadURLCache
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithStorage sets the storage gateway for LOCAL attachments
func WithStorage(storage StorageGateway) Option {
	return func(s *service) {
		s.storage = storage
	}
}

// WithPublisher sets the outbound event publisher
func WithPublisher(publisher EventPublisher) Option {
	return func(s *service) {
		s.publisher = publisher
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithURLTTLs sets the validity of presigned read and write URLs
func WithURLTTLs(read, write time.Duration) Option {
	return func(s *service) {
		if read > 0 {
			s.readURLTTL = read
		}
		if write > 0 {
			s.writeURLTTL = write
		}
	}
}

// WithReadURLCache enables caching of presigned read URLs
func WithReadURLCache(cache *ReadURLCache) Option {
	return func(s *service) {
		s.urlCache = cache
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		readURLTTL:  DefaultReadURLTTL,
		writeURLTTL: DefaultWriteURLTTL,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.storage == nil {
		return nil, fmt.Errorf("storage gateway is required")
	}
	if s.publisher == nil {
		s.publisher = NewNoopPublisher()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Read operations

func (s *service) GetAttachment(ctx context.Context, id uuid.UUID) (*Attachment, error) {
	attachment, err := s.getAttachment(ctx, id, "get")
	if err != nil {
		return nil, err
	}
	return s.withAccessURL(ctx, attachment)
}

func (s *service) ListAttachments(ctx context.Context, req ListAttachmentsRequest) (*AttachmentPage, error) {
	page := req.Page.Normalize()
	items, total, err := s.repository.ListAttachments(ctx, req.Filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	result := &AttachmentPage{Items: make([]*Attachment, 0, len(items)), TotalCount: total}
	for _, item := range items {
		withURL, err := s.withAccessURL(ctx, item)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, withURL)
	}
	return result, nil
}

// Commands

func (s *service) CreateAttachment(ctx context.Context, req CreateAttachmentRequest) (*Attachment, error) {
	attachment, err := NewAttachment(NewAttachmentParams{
		OwnerID:     req.OwnerID,
		Type:        req.Type,
		Extension:   req.Extension,
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected attachment creation", "owner_id", req.OwnerID.String(), "error", err)
		return nil, err
	}

	var uploadURL string
	if attachment.Type == AttachmentTypeLocal {
		uploadURL, err = s.issueWriteURL(ctx, attachment)
		if err != nil {
			return nil, &AttachmentError{AttachmentID: attachment.ID, Op: "create", Err: err}
		}
	}

	if err := s.repository.CreateAttachment(ctx, attachment); err != nil {
		return nil, &AttachmentError{AttachmentID: attachment.ID, Op: "create", Err: err}
	}
	s.logger.InfoContext(ctx, "Attachment created",
		"attachment_id", attachment.ID.String(), "type", attachment.Type, "status", attachment.Status)

	s.publish(ctx, TriggerCreate, attachment)

	result, err := s.withAccessURL(ctx, attachment)
	if err != nil {
		return nil, err
	}
	result.UploadURL = uploadURL
	return result, nil
}

func (s *service) UpdateAttachment(ctx context.Context, id uuid.UUID, req UpdateAttachmentRequest, actor Actor) (*Attachment, error) {
	current, err := s.getAttachment(ctx, id, "update")
	if err != nil {
		return nil, err
	}
	if !actor.CanModify(current) {
		s.logger.WarnContext(ctx, "Unauthorized user tried to edit an attachment",
			"user_id", actor.UserID.String(), "attachment_id", id.String())
		return nil, &AttachmentError{AttachmentID: id, Op: "update", Err: ErrForbidden}
	}

	next, plan, err := applyUpdate(current, req)
	if err != nil {
		return nil, &AttachmentError{AttachmentID: id, Op: "update", Err: err}
	}
	next.UpdatedAt = time.Now().UTC()
	if err := next.Validate(); err != nil {
		s.logger.ErrorContext(ctx, "Update produced an invalid attachment", "attachment_id", id.String(), "error", err)
		return nil, &AttachmentError{AttachmentID: id, Op: "update", Err: err}
	}

	var uploadURL string
	if plan.issueWriteURL {
		s.logger.InfoContext(ctx, "Generating new upload URL for attachment", "attachment_id", id.String())
		uploadURL, err = s.issueWriteURL(ctx, next)
		if err != nil {
			return nil, &AttachmentError{AttachmentID: id, Op: "update", Err: err}
		}
	}

	if err := s.repository.UpdateAttachment(ctx, next); err != nil {
		return nil, &AttachmentError{AttachmentID: id, Op: "update", Err: err}
	}

	if plan.staleKey != "" {
		s.deleteObject(ctx, id, plan.staleKey)
	}

	s.publish(ctx, TriggerUpdate, next)

	result, err := s.withAccessURL(ctx, next)
	if err != nil {
		return nil, err
	}
	result.UploadURL = uploadURL
	return result, nil
}

func (s *service) DeleteAttachment(ctx context.Context, id uuid.UUID, actor Actor) (*Attachment, error) {
	attachment, err := s.getAttachment(ctx, id, "delete")
	if err != nil {
		return nil, err
	}
	if !actor.CanModify(attachment) {
		s.logger.WarnContext(ctx, "Unauthorized user tried to delete an attachment",
			"user_id", actor.UserID.String(), "attachment_id", id.String())
		return nil, &AttachmentError{AttachmentID: id, Op: "delete", Err: ErrForbidden}
	}

	if err := s.repository.DeleteAttachment(ctx, id); err != nil {
		return nil, &AttachmentError{AttachmentID: id, Op: "delete", Err: err}
	}
	s.logger.InfoContext(ctx, "Attachment deleted", "attachment_id", id.String())

	if attachment.Type == AttachmentTypeLocal {
		s.deleteObject(ctx, id, attachment.ObjectKey())
	}

	s.publish(ctx, TriggerDelete, attachment)
	return attachment, nil
}

func (s *service) ConfirmObjectStored(ctx context.Context, objectKey string) (*Attachment, error) {
	id, extension, err := ParseObjectKey(objectKey)
	if err != nil {
		s.logger.WarnContext(ctx, "Unable to parse stored object key", "object_key", objectKey, "error", err)
		return nil, err
	}

	attachment, err := s.getAttachment(ctx, id, "confirm")
	if err != nil {
		return nil, err
	}

	switch {
	case attachment.Type != AttachmentTypeLocal:
		s.logger.InfoContext(ctx, "Ignoring stored object for EXTERNAL attachment",
			"attachment_id", id.String(), "object_key", objectKey)
		return attachment, nil
	case attachment.Extension != extension:
		s.logger.InfoContext(ctx, "Ignoring stored object with stale extension",
			"attachment_id", id.String(), "object_key", objectKey, "extension", attachment.Extension)
		return attachment, nil
	case attachment.Status == AttachmentStatusCompleted:
		return attachment, nil
	}

	changed, err := s.repository.CompleteUpload(ctx, id, extension, time.Now().UTC())
	if err != nil {
		return nil, &AttachmentError{AttachmentID: id, Op: "confirm", Err: err}
	}

	// Reload either way: a concurrent update may have changed the row.
	current, err := s.getAttachment(ctx, id, "confirm")
	if err != nil {
		return nil, err
	}
	if !changed {
		s.logger.InfoContext(ctx, "Attachment changed before upload confirmation, ignoring",
			"attachment_id", id.String(), "object_key", objectKey)
		return current, nil
	}
	if err := current.Validate(); err != nil {
		return nil, &AttachmentError{AttachmentID: id, Op: "confirm", Err: err}
	}
	s.logger.InfoContext(ctx, "Attachment upload completed", "attachment_id", id.String())

	s.publish(ctx, TriggerUpdate, current)
	return current, nil
}

// Reference operations

func (s *service) ListReferencing(ctx context.Context, kind ElementKind, elementID string) ([]uuid.UUID, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidElementKind, kind)
	}
	ids, err := s.repository.ListAttachmentIDsByReference(ctx, kind, elementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments referenced by %s %s: %w", kind, elementID, err)
	}
	return ids, nil
}

func (s *service) AddReference(ctx context.Context, id uuid.UUID, kind ElementKind, elementID string) (bool, error) {
	return s.changeReference(ctx, id, kind, elementID, "add_reference", s.repository.AddReference)
}

func (s *service) RemoveReference(ctx context.Context, id uuid.UUID, kind ElementKind, elementID string) (bool, error) {
	return s.changeReference(ctx, id, kind, elementID, "remove_reference", s.repository.RemoveReference)
}

type referenceMutation func(ctx context.Context, id uuid.UUID, kind ElementKind, elementID string) (bool, error)

func (s *service) changeReference(ctx context.Context, id uuid.UUID, kind ElementKind, elementID, op string, mutate referenceMutation) (bool, error) {
	if !kind.IsValid() {
		return false, &AttachmentError{AttachmentID: id, Op: op, Err: fmt.Errorf("%w: %q", ErrInvalidElementKind, kind)}
	}
	changed, err := mutate(ctx, id, kind, elementID)
	if err != nil {
		return false, &AttachmentError{AttachmentID: id, Op: op, Err: err}
	}
	if !changed {
		return false, nil
	}

	attachment, err := s.repository.GetAttachment(ctx, id)
	if err != nil {
		// The reference change is already persisted.
		s.logger.WarnContext(ctx, "Unable to reload attachment after reference change",
			"attachment_id", id.String(), "error", err)
		return true, nil
	}
	s.publish(ctx, TriggerUpdate, attachment)
	return true, nil
}

// helpers

func (s *service) getAttachment(ctx context.Context, id uuid.UUID, op string) (*Attachment, error) {
	attachment, err := s.repository.GetAttachment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAttachmentNotFound) {
			s.logger.WarnContext(ctx, "Attachment not found", "attachment_id", id.String())
		}
		return nil, &AttachmentError{AttachmentID: id, Op: op, Err: err}
	}
	return attachment, nil
}

// withAccessURL returns a copy of attachment whose URL is usable by clients.
func (s *service) withAccessURL(ctx context.Context, attachment *Attachment) (*Attachment, error) {
	result := attachment.Clone()
	if result.Type != AttachmentTypeLocal {
		return result, nil
	}

	key := result.ObjectKey()
	if s.urlCache != nil {
		if url, ok := s.urlCache.Get(key); ok {
			result.URL = url
			return result, nil
		}
	}

	url, err := s.storage.IssueReadURL(ctx, key, s.readURLTTL)
	if err != nil {
		return nil, &AttachmentError{
			AttachmentID: result.ID,
			Op:           "read_url",
			Err:          &StorageError{Key: key, Op: "issue_read_url", Err: err},
		}
	}
	if s.urlCache != nil {
		s.urlCache.Set(key, url)
	}
	result.URL = url
	return result, nil
}

func (s *service) issueWriteURL(ctx context.Context, attachment *Attachment) (string, error) {
	key := attachment.ObjectKey()
	url, err := s.storage.IssueWriteURL(ctx, key, s.writeURLTTL)
	if err != nil {
		return "", &StorageError{Key: key, Op: "issue_write_url", Err: err}
	}
	return url, nil
}

// deleteObject removes key from storage. Failures are logged and swallowed.
func (s *service) deleteObject(ctx context.Context, id uuid.UUID, key string) {
	if s.urlCache != nil {
		s.urlCache.Remove(key)
	}
	s.logger.InfoContext(ctx, "Deleting storage object", "attachment_id", id.String(), "object_key", key)
	if err := s.storage.DeleteObject(ctx, key); err != nil {
		storageDeleteFailuresTotal.Inc()
		s.logger.WarnContext(ctx, "Unable to delete storage object, continuing",
			"attachment_id", id.String(), "object_key", key, "error", err)
	}
}

// publish emits an event. Publish failures are logged, never returned.
func (s *service) publish(ctx context.Context, trigger Trigger, attachment *Attachment) {
	s.logger.DebugContext(ctx, "Publishing attachment event", "trigger", trigger, "attachment_id", attachment.ID.String())
	if err := s.publisher.Publish(ctx, trigger, attachment.Clone()); err != nil {
		eventsPublishedTotal.WithLabelValues(string(trigger), "error").Inc()
		s.logger.ErrorContext(ctx, "Failed to publish attachment event",
			"trigger", trigger, "attachment_id", attachment.ID.String(), "error", err)
		return
	}
	eventsPublishedTotal.WithLabelValues(string(trigger), "ok").Inc()
}
