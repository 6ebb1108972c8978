package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

// CreateAttachmentRequest is the request body for creating an attachment
type CreateAttachmentRequest struct {
	Type        simpleattachment.AttachmentType `json:"type"`
	Extension   string                          `json:"extension,omitempty"`
	URL         string                          `json:"url,omitempty"`
	Title       string                          `json:"title,omitempty"`
	Description string                          `json:"description,omitempty"`
}

// UpdateAttachmentRequest is the request body for a partial update. Absent
// fields are left unchanged.
type UpdateAttachmentRequest struct {
	Type        *simpleattachment.AttachmentType `json:"type,omitempty"`
	Extension   *string                          `json:"extension,omitempty"`
	URL         *string                          `json:"url,omitempty"`
	Title       *string                          `json:"title,omitempty"`
	Description *string                          `json:"description,omitempty"`
}

// ListAttachmentsResponse is one page of attachments
type ListAttachmentsResponse struct {
	Items      []*simpleattachment.Attachment `json:"items"`
	TotalCount int                            `json:"totalCount"`
	Page       int                            `json:"page"`
	PageSize   int                            `json:"pageSize"`
}

// AttachmentHandler handles HTTP requests for attachments
type AttachmentHandler struct {
	service   simpleattachment.Service
	auth      *jwtauth.JWTAuth
	adminRole string
}

// NewAttachmentHandler creates a new attachment handler. Every route
// requires a bearer token signed for auth.
func NewAttachmentHandler(service simpleattachment.Service, auth *jwtauth.JWTAuth, adminRole string) *AttachmentHandler {
	return &AttachmentHandler{
		service:   service,
		auth:      auth,
		adminRole: adminRole,
	}
}

// Routes returns the routes for attachments
func (h *AttachmentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(h.auth))
	r.Use(jwtauth.Authenticator)

	r.Get("/", h.ListAttachments)
	r.Post("/", h.CreateAttachment)
	r.Get("/{id}", h.GetAttachment)
	r.Patch("/{id}", h.UpdateAttachment)
	r.Delete("/{id}", h.DeleteAttachment)

	return r
}

// ListAttachments returns a page of attachments
func (h *AttachmentHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := simpleattachment.ListAttachmentsRequest{}

	var err error
	if req.Page.Number, err = intParam(q.Get("page")); err != nil {
		writeBadRequest(w, r, "Invalid page")
		return
	}
	if req.Page.Size, err = intParam(q.Get("pageSize")); err != nil {
		writeBadRequest(w, r, "Invalid pageSize")
		return
	}
	if v := q.Get("userId"); v != "" {
		ownerID, err := uuid.Parse(v)
		if err != nil {
			writeBadRequest(w, r, "Invalid userId")
			return
		}
		req.Filter.OwnerID = &ownerID
	}
	if v := q.Get("videos"); v != "" {
		req.Filter.VideoRef = &v
	}
	if v := q.Get("modules"); v != "" {
		req.Filter.ModuleRef = &v
	}

	page, err := h.service.ListAttachments(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	normalized := req.Page.Normalize()
	render.JSON(w, r, ListAttachmentsResponse{
		Items:      page.Items,
		TotalCount: page.TotalCount,
		Page:       normalized.Number,
		PageSize:   normalized.Size,
	})
}

// GetAttachment retrieves an attachment by ID
func (h *AttachmentHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := attachmentID(w, r)
	if !ok {
		return
	}

	attachment, err := h.service.GetAttachment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, attachment)
}

// CreateAttachment creates an attachment owned by the caller
func (h *AttachmentHandler) CreateAttachment(w http.ResponseWriter, r *http.Request) {
	actor, err := ActorFromContext(r.Context(), h.adminRole)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CreateAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid request body")
		return
	}

	attachment, err := h.service.CreateAttachment(r.Context(), simpleattachment.CreateAttachmentRequest{
		OwnerID:     actor.UserID,
		Type:        req.Type,
		Extension:   req.Extension,
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Attachment created", "attachment_id", attachment.ID.String(), "user_id", actor.UserID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, attachment)
}

// UpdateAttachment applies a partial update
func (h *AttachmentHandler) UpdateAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := attachmentID(w, r)
	if !ok {
		return
	}
	actor, err := ActorFromContext(r.Context(), h.adminRole)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req UpdateAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid request body")
		return
	}

	attachment, err := h.service.UpdateAttachment(r.Context(), id, simpleattachment.UpdateAttachmentRequest{
		Type:        req.Type,
		Extension:   req.Extension,
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
	}, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, attachment)
}

// DeleteAttachment deletes an attachment and returns its last state
func (h *AttachmentHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := attachmentID(w, r)
	if !ok {
		return
	}
	actor, err := ActorFromContext(r.Context(), h.adminRole)
	if err != nil {
		writeError(w, r, err)
		return
	}

	attachment, err := h.service.DeleteAttachment(r.Context(), id, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Attachment deleted", "attachment_id", id.String(), "user_id", actor.UserID.String())
	render.JSON(w, r, attachment)
}

func attachmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Warn("Invalid attachment ID", "attachment_id", idStr, "error", err)
		writeBadRequest(w, r, "Invalid attachment ID")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
