// Package kafka carries attachment events over Kafka with
// github.com/segmentio/kafka-go.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements simpleattachment.EventPublisher on a Kafka topic.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a publisher writing to topic. Messages are keyed by
// attachment id and hashed to partitions, so per-attachment order holds.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic:  topic,
		logger: logger,
	}
}

var _ simpleattachment.EventPublisher = (*Publisher)(nil)

// Publish writes one attachment event.
func (p *Publisher) Publish(ctx context.Context, trigger simpleattachment.Trigger, attachment *simpleattachment.Attachment) error {
	key, value, err := events.EncodeAttachmentMessage(trigger, attachment)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}
	p.logger.DebugContext(ctx, "Attachment event published",
		"topic", p.topic, "trigger", trigger, "attachment_id", attachment.ID.String())
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
