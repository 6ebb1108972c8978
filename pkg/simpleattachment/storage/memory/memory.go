package memory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

// ErrObjectNotFound is returned by DeleteObject for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// Backend is an in-memory implementation of the simpleattachment.StorageGateway
// interface. Presigned URLs are fake memory:// URLs carrying the key and the
// expiry; Store simulates a client upload through a write URL.
type Backend struct {
	mu        sync.RWMutex
	bucket    string
	objects   map[string]time.Time
	deletes   []string
	failWith  error
	writeURLs []string
}

// New creates a new in-memory storage gateway
func New(bucket string) *Backend {
	if bucket == "" {
		bucket = "attachments"
	}
	return &Backend{
		bucket:  bucket,
		objects: make(map[string]time.Time),
	}
}

var _ simpleattachment.StorageGateway = (*Backend)(nil)

// IssueWriteURL returns a fake presigned upload URL
func (b *Backend) IssueWriteURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.presign("PUT", key, ttl)
	b.writeURLs = append(b.writeURLs, u)
	return u, nil
}

// IssueReadURL returns a fake presigned download URL
func (b *Backend) IssueReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return b.presign("GET", key, ttl), nil
}

// DeleteObject removes key. Every call is recorded, including failed ones.
func (b *Backend) DeleteObject(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deletes = append(b.deletes, key)
	if b.failWith != nil {
		return b.failWith
	}
	if _, exists := b.objects[key]; !exists {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	delete(b.objects, key)
	return nil
}

// Store records key as uploaded.
func (b *Backend) Store(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = time.Now()
}

// Exists reports whether key is stored.
func (b *Backend) Exists(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[key]
	return ok
}

// FailDeletes makes every following DeleteObject call return err. A nil err
// restores normal behaviour.
func (b *Backend) FailDeletes(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWith = err
}

// Deletes returns the keys passed to DeleteObject so far.
func (b *Backend) Deletes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.deletes...)
}

// WriteURLs returns the write URLs issued so far.
func (b *Backend) WriteURLs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.writeURLs...)
}

func (b *Backend) presign(method, key string, ttl time.Duration) string {
	q := url.Values{}
	q.Set("method", method)
	q.Set("expires", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	u := url.URL{Scheme: "memory", Host: b.bucket, Path: "/" + key, RawQuery: q.Encode()}
	return u.String()
}
