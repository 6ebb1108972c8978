package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

// ErrMalformedMessage marks a message that can never be processed. Transports
// commit such messages instead of redelivering them.
var ErrMalformedMessage = errors.New("malformed message")

// Handler processes one raw message value.
type Handler func(ctx context.Context, value []byte) error

// StorageNotificationHandler confirms uploads reported by bucket
// notifications. Only ObjectCreated events are acted on.
func StorageNotificationHandler(svc simpleattachment.Service, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, value []byte) error {
		var n StorageNotification
		if err := json.Unmarshal(value, &n); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}

		kind := simpleattachment.ParseStorageEventName(n.EventName)
		if kind != simpleattachment.StorageEventObjectCreated {
			logger.DebugContext(ctx, "Ignoring storage notification", "event_name", n.EventName, "key", n.Key)
			return nil
		}

		_, err := svc.ConfirmObjectStored(ctx, n.Key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, simpleattachment.ErrUnparsableKey):
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		case errors.Is(err, simpleattachment.ErrAttachmentNotFound):
			// Upload finished after the attachment was deleted
			logger.WarnContext(ctx, "Stored object has no attachment", "key", n.Key)
			return nil
		default:
			return err
		}
	}
}

// ElementHandler reconciles reference sets of kind from element events.
func ElementHandler(reconciler *simpleattachment.Reconciler, kind simpleattachment.ElementKind, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, value []byte) error {
		var m ElementMessage
		if err := json.Unmarshal(value, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if !m.Trigger.IsValid() || m.Payload.ID == "" {
			return fmt.Errorf("%w: trigger %q element %q", ErrMalformedMessage, m.Trigger, m.Payload.ID)
		}

		result, err := reconciler.Reconcile(ctx, kind, m.Trigger, m.Payload.ID, m.Payload.Attachments)
		if err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			logger.WarnContext(ctx, "Element event partially applied",
				"element_kind", kind, "element_id", m.Payload.ID, "failed", result.Failed)
		}
		return nil
	}
}
