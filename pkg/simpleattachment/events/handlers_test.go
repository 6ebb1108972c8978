package events_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/events"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/repo/memory"
	memorystorage "github.com/tendant/simple-attachment/pkg/simpleattachment/storage/memory"
)

func setupService(t *testing.T) simpleattachment.Service {
	t.Helper()
	svc, err := simpleattachment.New(
		simpleattachment.WithRepository(memory.New()),
		simpleattachment.WithStorage(memorystorage.New("attachments")),
	)
	require.NoError(t, err)
	return svc
}

func TestStorageNotificationHandler(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)
	handle := events.StorageNotificationHandler(svc, nil)

	a, err := svc.CreateAttachment(ctx, simpleattachment.CreateAttachmentRequest{
		OwnerID: uuid.New(), Type: simpleattachment.AttachmentTypeLocal, Extension: "mp4",
	})
	require.NoError(t, err)

	t.Run("ignores non-create events", func(t *testing.T) {
		err := handle(ctx, []byte(`{"EventName":"s3:ObjectAccessed:Get","Key":"attachments/`+a.ID.String()+`.mp4"}`))
		require.NoError(t, err)
		got, err := svc.GetAttachment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, simpleattachment.AttachmentStatusInProgress, got.Status)
	})

	t.Run("confirms uploads", func(t *testing.T) {
		msg := []byte(`{"EventName":"s3:ObjectCreated:Put","Key":"attachments/` + a.ID.String() + `.mp4"}`)
		require.NoError(t, handle(ctx, msg))
		require.NoError(t, handle(ctx, msg))

		got, err := svc.GetAttachment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, simpleattachment.AttachmentStatusCompleted, got.Status)
	})

	t.Run("unknown attachment is dropped", func(t *testing.T) {
		err := handle(ctx, []byte(`{"EventName":"s3:ObjectCreated:Put","Key":"attachments/`+uuid.NewString()+`.mp4"}`))
		assert.NoError(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		assert.ErrorIs(t, handle(ctx, []byte(`{`)), events.ErrMalformedMessage)
		assert.ErrorIs(t, handle(ctx, []byte(`{"EventName":"s3:ObjectCreated:Put","Key":"attachments/x"}`)), events.ErrMalformedMessage)
	})
}

func TestElementHandler(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)
	handle := events.ElementHandler(simpleattachment.NewReconciler(svc), simpleattachment.ElementKindVideo, nil)

	a, err := svc.CreateAttachment(ctx, simpleattachment.CreateAttachmentRequest{
		OwnerID: uuid.New(), Type: simpleattachment.AttachmentTypeExternal, URL: "https://x",
	})
	require.NoError(t, err)

	msg, err := json.Marshal(events.ElementMessage{
		Trigger: simpleattachment.TriggerCreate,
		Payload: events.ElementPayload{ID: "video-1", Attachments: []string{a.ID.String()}},
	})
	require.NoError(t, err)
	require.NoError(t, handle(ctx, msg))

	got, err := svc.GetAttachment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"video-1"}, got.VideoRefs)

	require.NoError(t, handle(ctx, []byte(`{"trigger":"DELETE","payload":{"id":"video-1"}}`)))
	got, err = svc.GetAttachment(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.VideoRefs)

	assert.ErrorIs(t, handle(ctx, []byte(`{"trigger":"MOVE","payload":{"id":"video-1"}}`)), events.ErrMalformedMessage)
	assert.ErrorIs(t, handle(ctx, []byte(`{"trigger":"CREATE","payload":{}}`)), events.ErrMalformedMessage)
}

func TestEncodeAttachmentMessage(t *testing.T) {
	a, err := simpleattachment.NewAttachment(simpleattachment.NewAttachmentParams{
		OwnerID: uuid.New(), Type: simpleattachment.AttachmentTypeLocal, Extension: "mp4",
	})
	require.NoError(t, err)
	a.URL = "https://presigned"
	a.UploadURL = "https://upload"

	key, value, err := events.EncodeAttachmentMessage(simpleattachment.TriggerCreate, a)
	require.NoError(t, err)
	assert.Equal(t, a.ID.String(), string(key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(value, &decoded))
	assert.Equal(t, "CREATE", decoded["trigger"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, a.ID.String(), payload["id"])
	assert.Equal(t, "mp4", payload["extension"])
	assert.NotContains(t, payload, "url")
	assert.NotContains(t, payload, "uploadUrl")
	assert.Equal(t, []any{}, payload["videos"])

	// The caller's attachment is left untouched
	assert.Equal(t, "https://presigned", a.URL)
}
