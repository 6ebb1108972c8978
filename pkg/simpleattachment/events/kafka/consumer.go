package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tendant/simple-attachment/pkg/simpleattachment/events"
)

// Retry backoff bounds for failed messages.
const (
	minRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff = 30 * time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds one topic to a handler with at-least-once delivery. An
// offset is committed only once its message was handled or found malformed;
// other failures are retried with backoff, keeping partition order.
type Consumer struct {
	reader  messageReader
	topic   string
	handler events.Handler
	logger  *slog.Logger
}

// ConsumerConfig configures a Consumer
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
}

// NewConsumer creates a consumer group member for cfg.Topic.
func NewConsumer(cfg ConsumerConfig, handler events.Handler, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, cfg.Topic, handler, logger)
}

func newConsumer(reader messageReader, topic string, handler events.Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader:  reader,
		topic:   topic,
		handler: handler,
		logger:  logger.With("topic", topic),
	}
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Consumer started")
	defer c.logger.Info("Consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !c.handle(ctx, msg) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to commit offset", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
	}
}

// handle runs the handler until it succeeds or the message proves
// malformed. It returns false when ctx ended first.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	backoff := minRetryBackoff
	for {
		err := c.handler(ctx, msg.Value)
		if err == nil {
			return true
		}
		if errors.Is(err, events.ErrMalformedMessage) {
			c.logger.Warn("Dropping malformed message",
				"partition", msg.Partition, "offset", msg.Offset, "err", err)
			return true
		}

		c.logger.Error("Message handling failed, retrying",
			"partition", msg.Partition, "offset", msg.Offset, "backoff", backoff, "err", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
