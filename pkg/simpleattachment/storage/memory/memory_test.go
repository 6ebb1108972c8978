package memory

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendPresign(t *testing.T) {
	b := New("attachments")
	ctx := context.Background()

	w, err := b.IssueWriteURL(ctx, "id.mp4", time.Hour)
	require.NoError(t, err)
	u, err := url.Parse(w)
	require.NoError(t, err)
	assert.Equal(t, "memory", u.Scheme)
	assert.Equal(t, "attachments", u.Host)
	assert.Equal(t, "/id.mp4", u.Path)
	assert.Equal(t, "PUT", u.Query().Get("method"))
	assert.Equal(t, []string{w}, b.WriteURLs())

	r, err := b.IssueReadURL(ctx, "id.mp4", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, r, "method=GET")
}

func TestBackendDelete(t *testing.T) {
	b := New("")
	ctx := context.Background()

	b.Store("id.mp4")
	assert.True(t, b.Exists("id.mp4"))
	require.NoError(t, b.DeleteObject(ctx, "id.mp4"))
	assert.False(t, b.Exists("id.mp4"))

	assert.ErrorIs(t, b.DeleteObject(ctx, "id.mp4"), ErrObjectNotFound)

	b.FailDeletes(errors.New("boom"))
	b.Store("other.png")
	assert.Error(t, b.DeleteObject(ctx, "other.png"))
	assert.True(t, b.Exists("other.png"))

	assert.Equal(t, []string{"id.mp4", "id.mp4", "other.png"}, b.Deletes())
}
