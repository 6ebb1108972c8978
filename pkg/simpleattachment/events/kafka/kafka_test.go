package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
	"github.com/tendant/simple-attachment/pkg/simpleattachment/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "polyflix.attachment", logger: slog.Default()}

	a, err := simpleattachment.NewAttachment(simpleattachment.NewAttachmentParams{
		OwnerID: uuid.New(), Type: simpleattachment.AttachmentTypeExternal, URL: "https://x",
	})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), simpleattachment.TriggerUpdate, a))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, a.ID.String(), string(w.msgs[0].Key))

	var msg events.AttachmentMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &msg))
	assert.Equal(t, simpleattachment.TriggerUpdate, msg.Trigger)
	assert.Equal(t, a.ID, msg.Payload.ID)
	assert.Equal(t, "https://x", msg.Payload.URL)

	w.err = errors.New("leader not available")
	assert.Error(t, p.Publish(context.Background(), simpleattachment.TriggerUpdate, a))
}

func TestConsumerCommitsAfterHandling(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{
		{Offset: 1, Value: []byte("ok")},
		{Offset: 2, Value: []byte("malformed")},
		{Offset: 3, Value: []byte("flaky")},
	}}

	var mu sync.Mutex
	attempts := map[string]int{}
	handler := func(ctx context.Context, value []byte) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[string(value)]++
		switch string(value) {
		case "malformed":
			return events.ErrMalformedMessage
		case "flaky":
			if attempts["flaky"] < 2 {
				return errors.New("database unavailable")
			}
		}
		return nil
	}

	c := newConsumer(reader, "polyflix.video", handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(reader.commits()) == 3
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	mu.Lock()
	assert.Equal(t, 2, attempts["flaky"])
	mu.Unlock()
}

func TestConsumerDoesNotCommitOnShutdown(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{{Offset: 7, Value: []byte("x")}}}
	handler := func(ctx context.Context, value []byte) error {
		return errors.New("always failing")
	}

	c := newConsumer(reader, "polyflix.catalog.module", handler, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Run(ctx))
	assert.Empty(t, reader.commits())
}
