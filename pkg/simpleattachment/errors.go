package simpleattachment

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrAttachmentNotFound indicates an attachment was not found
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrForbidden indicates the actor is neither the owner nor an admin
	ErrForbidden = errors.New("forbidden")

	// ErrMissingExtension indicates a LOCAL attachment without a file extension
	ErrMissingExtension = errors.New("the file extension of the attachment must be defined")

	// ErrMissingURL indicates an EXTERNAL attachment without a URL
	ErrMissingURL = errors.New("the URL of the attachment must be defined")

	// ErrUnparsableKey indicates a storage object key that does not encode {id}.{extension}
	ErrUnparsableKey = errors.New("unparsable object key")

	// ErrInvalidType indicates an unknown attachment type
	ErrInvalidType = errors.New("invalid attachment type")

	// ErrInvalidElementKind indicates an unknown element kind
	ErrInvalidElementKind = errors.New("invalid element kind")

	// ErrInvalidTrigger indicates an unknown event trigger
	ErrInvalidTrigger = errors.New("invalid trigger")

	// ErrInvariantViolation indicates an attachment state that breaks the
	// type/status/extension/url rules. It is a defect, not a client error.
	ErrInvariantViolation = errors.New("attachment invariant violation")
)

// IsValidationError reports whether err is caused by invalid client input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingExtension) ||
		errors.Is(err, ErrMissingURL) ||
		errors.Is(err, ErrUnparsableKey) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrInvalidElementKind) ||
		errors.Is(err, ErrInvalidTrigger)
}

// AttachmentError represents an error related to attachment operations
type AttachmentError struct {
	AttachmentID uuid.UUID
	Op           string
	Err          error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment operation %s failed for attachment %s: %v", e.Op, e.AttachmentID, e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage gateway operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
