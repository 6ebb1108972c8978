package simpleattachment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ObjectKey builds the storage key {id}.{extension}.
func ObjectKey(id uuid.UUID, extension string) string {
	return id.String() + "." + extension
}

// ParseObjectKey extracts the attachment id and extension from a storage key.
// A leading "bucket/" prefix, as sent in bucket notifications, is ignored.
func ParseObjectKey(key string) (uuid.UUID, string, error) {
	name := key
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	rawID, ext, ok := strings.Cut(name, ".")
	if !ok || rawID == "" || ext == "" {
		return uuid.Nil, "", fmt.Errorf("%w: %q", ErrUnparsableKey, key)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %q: %v", ErrUnparsableKey, key, err)
	}
	return id, ext, nil
}

// StorageEventKind is the action of a bucket notification.
type StorageEventKind string

const (
	StorageEventObjectCreated  StorageEventKind = "ObjectCreated"
	StorageEventObjectAccessed StorageEventKind = "ObjectAccessed"
	StorageEventObjectRemoved  StorageEventKind = "ObjectRemoved"
)

// ParseStorageEventName extracts the action from an S3 event name such as
// "s3:ObjectCreated:Put".
func ParseStorageEventName(name string) StorageEventKind {
	parts := strings.Split(name, ":")
	if len(parts) < 2 {
		return StorageEventKind(name)
	}
	return StorageEventKind(parts[1])
}
