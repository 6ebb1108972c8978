package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/repo/memory"
	memorystorage "github.com/tendant/simple-attachment/pkg/simpleattachment/storage/memory"
)

const testAdminRole = "ADMINISTRATOR"

type handlerTest struct {
	router  chi.Router
	auth    *jwtauth.JWTAuth
	service simpleattachment.Service
	storage *memorystorage.Backend
}

// setupHandlerTest mounts an AttachmentHandler backed by in-memory storage
func setupHandlerTest(t *testing.T) *handlerTest {
	t.Helper()
	storage := memorystorage.New("attachments")
	service, err := simpleattachment.New(
		simpleattachment.WithRepository(memory.New()),
		simpleattachment.WithStorage(storage),
	)
	require.NoError(t, err)

	auth := jwtauth.New("HS256", []byte("test-secret"), nil)
	router := chi.NewRouter()
	router.Mount("/attachments", NewAttachmentHandler(service, auth, testAdminRole).Routes())

	return &handlerTest{router: router, auth: auth, service: service, storage: storage}
}

func (ht *handlerTest) token(t *testing.T, userID uuid.UUID, roles ...string) string {
	t.Helper()
	claims := map[string]interface{}{"sub": userID.String()}
	if len(roles) > 0 {
		claims["roles"] = roles
	}
	_, token, err := ht.auth.Encode(claims)
	require.NoError(t, err)
	return token
}

func (ht *handlerTest) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ht.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestAttachmentHandler_RequiresToken(t *testing.T) {
	ht := setupHandlerTest(t)

	w := ht.do(t, http.MethodGet, "/attachments/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ht.do(t, http.MethodGet, "/attachments/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAttachmentHandler_CreateLocal(t *testing.T) {
	ht := setupHandlerTest(t)
	owner := uuid.New()

	w := ht.do(t, http.MethodPost, "/attachments/", ht.token(t, owner), CreateAttachmentRequest{
		Type: simpleattachment.AttachmentTypeLocal, Extension: "mp4", Title: "Lecture 1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[simpleattachment.Attachment](t, w)
	assert.Equal(t, owner, resp.OwnerID)
	assert.Equal(t, simpleattachment.AttachmentStatusInProgress, resp.Status)
	assert.NotEmpty(t, resp.UploadURL)
	assert.Equal(t, []string{}, resp.VideoRefs)
}

func TestAttachmentHandler_CreateValidation(t *testing.T) {
	ht := setupHandlerTest(t)
	token := ht.token(t, uuid.New())

	w := ht.do(t, http.MethodPost, "/attachments/", token, CreateAttachmentRequest{Type: simpleattachment.AttachmentTypeExternal})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, simpleattachment.ErrMissingURL.Error(), decode[ErrorResponse](t, w).Error)

	w = ht.do(t, http.MethodPost, "/attachments/", token, CreateAttachmentRequest{Type: "FTP"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttachmentHandler_GetAndList(t *testing.T) {
	ht := setupHandlerTest(t)
	owner := uuid.New()
	token := ht.token(t, owner)

	w := ht.do(t, http.MethodPost, "/attachments/", token, CreateAttachmentRequest{
		Type: simpleattachment.AttachmentTypeExternal, URL: "https://example.com/slides.pdf",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[simpleattachment.Attachment](t, w)

	_, err := ht.service.AddReference(context.Background(), created.ID, simpleattachment.ElementKindModule, "module-1")
	require.NoError(t, err)

	w = ht.do(t, http.MethodGet, "/attachments/"+created.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[simpleattachment.Attachment](t, w)
	assert.Equal(t, []string{"module-1"}, got.ModuleRefs)

	w = ht.do(t, http.MethodGet, "/attachments/?modules=module-1&userId="+owner.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[ListAttachmentsResponse](t, w)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, simpleattachment.DefaultPageSize, page.PageSize)

	w = ht.do(t, http.MethodGet, "/attachments/?pageSize=1000", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, simpleattachment.MaxPageSize, decode[ListAttachmentsResponse](t, w).PageSize)

	w = ht.do(t, http.MethodGet, "/attachments/?userId=nope", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ht.do(t, http.MethodGet, "/attachments/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ht.do(t, http.MethodGet, "/attachments/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttachmentHandler_UpdateAuthorization(t *testing.T) {
	ht := setupHandlerTest(t)
	owner := uuid.New()

	w := ht.do(t, http.MethodPost, "/attachments/", ht.token(t, owner), CreateAttachmentRequest{
		Type: simpleattachment.AttachmentTypeLocal, Extension: "mp4",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[simpleattachment.Attachment](t, w)
	path := "/attachments/" + created.ID.String()

	external := simpleattachment.AttachmentTypeExternal
	url := "https://y"
	update := UpdateAttachmentRequest{Type: &external, URL: &url}

	w = ht.do(t, http.MethodPatch, path, ht.token(t, uuid.New()), update)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ht.do(t, http.MethodPatch, path, ht.token(t, uuid.New(), testAdminRole), update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[simpleattachment.Attachment](t, w)
	assert.Equal(t, simpleattachment.AttachmentTypeExternal, updated.Type)
	assert.Equal(t, "https://y", updated.URL)
	assert.Empty(t, updated.Extension)
	assert.Equal(t, []string{created.ID.String() + ".mp4"}, ht.storage.Deletes())

	w = ht.do(t, http.MethodPatch, path, ht.token(t, owner), UpdateAttachmentRequest{Type: func() *simpleattachment.AttachmentType {
		local := simpleattachment.AttachmentTypeLocal
		return &local
	}()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, simpleattachment.ErrMissingExtension.Error(), decode[ErrorResponse](t, w).Error)
}

func TestAttachmentHandler_Delete(t *testing.T) {
	ht := setupHandlerTest(t)
	owner := uuid.New()

	w := ht.do(t, http.MethodPost, "/attachments/", ht.token(t, owner), CreateAttachmentRequest{
		Type: simpleattachment.AttachmentTypeLocal, Extension: "pdf",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[simpleattachment.Attachment](t, w)
	path := "/attachments/" + created.ID.String()

	w = ht.do(t, http.MethodDelete, path, ht.token(t, uuid.New()), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ht.do(t, http.MethodDelete, path, ht.token(t, owner), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[simpleattachment.Attachment](t, w).ID)

	w = ht.do(t, http.MethodDelete, path, ht.token(t, owner), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActorFromContext_KeycloakRoles(t *testing.T) {
	userID := uuid.New()
	claims := map[string]interface{}{
		"sub":          userID.String(),
		"realm_access": map[string]interface{}{"roles": []interface{}{"USER", testAdminRole}},
	}
	assert.True(t, hasRole(claims, testAdminRole))
	assert.False(t, hasRole(claims, "OTHER"))
	assert.False(t, hasRole(claims, ""))
}

func TestStatusFor(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, http.StatusNotFound, statusFor(&simpleattachment.AttachmentError{AttachmentID: id, Op: "get", Err: simpleattachment.ErrAttachmentNotFound}))
	assert.Equal(t, http.StatusForbidden, statusFor(&simpleattachment.AttachmentError{AttachmentID: id, Op: "update", Err: simpleattachment.ErrForbidden}))
	assert.Equal(t, http.StatusBadRequest, statusFor(simpleattachment.ErrMissingExtension))
	assert.Equal(t, http.StatusUnauthorized, statusFor(ErrUnauthenticated))
	assert.Equal(t, http.StatusInternalServerError, statusFor(simpleattachment.ErrInvariantViolation))
}
