package simpleattachment

import (
	"context"
	"log/slog"
)

// NoopPublisher is a no-operation implementation of EventPublisher
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-operation publisher
func NewNoopPublisher() EventPublisher {
	return &NoopPublisher{}
}

// Publish does nothing and returns nil
func (n *NoopPublisher) Publish(ctx context.Context, trigger Trigger, attachment *Attachment) error {
	return nil
}

// LoggingPublisher logs events but takes no other action.
// Useful for development and debugging.
type LoggingPublisher struct {
	logger *slog.Logger
}

// NewLoggingPublisher creates a new logging publisher
func NewLoggingPublisher(logger *slog.Logger) EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// Publish logs the event
func (l *LoggingPublisher) Publish(ctx context.Context, trigger Trigger, attachment *Attachment) error {
	l.logger.InfoContext(ctx, "Attachment event",
		"trigger", trigger,
		"attachment_id", attachment.ID.String(),
		"type", attachment.Type,
		"status", attachment.Status)
	return nil
}
