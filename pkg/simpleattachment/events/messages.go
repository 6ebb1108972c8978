// Package events holds the wire formats of the inbound and outbound
// attachment events and the handlers that apply inbound events to the
// attachment service. Transports live in subpackages.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

// StorageNotification is a bucket notification. Key is "bucket/object".
type StorageNotification struct {
	EventName string `json:"EventName"`
	Key       string `json:"Key"`
}

// ElementPayload carries an element id and its complete attachment list.
type ElementPayload struct {
	ID          string   `json:"id"`
	Attachments []string `json:"attachments"`
}

// ElementMessage is a change to a video or module.
type ElementMessage struct {
	Trigger simpleattachment.Trigger `json:"trigger"`
	Payload ElementPayload           `json:"payload"`
}

// AttachmentMessage is the outbound attachment event.
type AttachmentMessage struct {
	Trigger simpleattachment.Trigger     `json:"trigger"`
	Payload *simpleattachment.Attachment `json:"payload"`
}

// NewAttachmentMessage builds the outbound message. Computed fields are
// stripped so consumers never receive presigned URLs.
func NewAttachmentMessage(trigger simpleattachment.Trigger, attachment *simpleattachment.Attachment) AttachmentMessage {
	payload := attachment.Clone()
	payload.UploadURL = ""
	if payload.Type == simpleattachment.AttachmentTypeLocal {
		payload.URL = ""
	}
	return AttachmentMessage{Trigger: trigger, Payload: payload}
}

// EncodeAttachmentMessage returns the message key and JSON value for an
// outbound event. The key is the attachment id so all events of one
// attachment land on the same partition.
func EncodeAttachmentMessage(trigger simpleattachment.Trigger, attachment *simpleattachment.Attachment) ([]byte, []byte, error) {
	value, err := json.Marshal(NewAttachmentMessage(trigger, attachment))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode attachment event: %w", err)
	}
	return []byte(attachment.ID.String()), value, nil
}
