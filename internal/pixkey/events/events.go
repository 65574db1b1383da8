// Package events publishes Pix key domain events. Consumers dedupe on
// (key id, target state), which IdempotencyKey carries.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pixkey/internal/platform/kafka/producer"
)

// Event is named after the target state it announces.
type Event struct {
	Name           string    `json:"name"`
	KeyID          string    `json:"key_id"`
	KeyValueHash   string    `json:"key_value_hash"`
	State          string    `json:"state"`
	OccurredAt     time.Time `json:"occurred_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// Emitter publishes one event.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Publisher is the subset of the Kafka producer the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, msg producer.Message) error
}

// KafkaEmitter publishes events keyed by key id.
type KafkaEmitter struct {
	publisher Publisher
	topic     string
}

func NewKafkaEmitter(publisher Publisher, topic string) *KafkaEmitter {
	return &KafkaEmitter{publisher: publisher, topic: topic}
}

func (e *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return e.publisher.Publish(ctx, producer.Message{
		Topic: e.topic,
		Key:   []byte(event.KeyID),
		Value: body,
		Headers: map[string]string{
			"event-name":      event.Name,
			"idempotency-key": event.IdempotencyKey,
		},
	})
}

// LogEmitter writes events to the log. Used when no message bus is configured.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ctx context.Context, event Event) error {
	e.logger.InfoContext(ctx, "domain event",
		"event_name", event.Name,
		"key_id", event.KeyID,
		"key_value_hash", event.KeyValueHash,
		"idempotency_key", event.IdempotencyKey,
	)
	return nil
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Emit calls return err without recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events named name were recorded.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}
