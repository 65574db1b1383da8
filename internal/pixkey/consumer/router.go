// Package consumer turns Directory notifications from Kafka into claim
// commands.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"pixkey/internal/pixkey/metrics"
	"pixkey/internal/platform/kafka/consumer"
)

// NotificationType names a Directory notification.
type NotificationType string

const (
	NotificationOwnershipClaimReady NotificationType = "OWNERSHIP_CLAIM_READY"
)

// Notification is the payload the Directory publishes on the notices topic.
type Notification struct {
	ID       string           `json:"id"`
	Type     NotificationType `json:"type"`
	KeyType  string           `json:"key_type,omitempty"`
	KeyValue string           `json:"key_value"`
}

// NotificationHandler handles one decoded notification type.
type NotificationHandler interface {
	Handle(ctx context.Context, n Notification) error
}

// Router dispatches notices to type-specific handlers. Malformed payloads
// and unknown types are logged and committed so they do not block the
// partition.
type Router struct {
	handlers map[NotificationType]NotificationHandler
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Router)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func NewRouter(logger *slog.Logger, opts ...Option) *Router {
	r := &Router{
		handlers: make(map[NotificationType]NotificationHandler),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a handler for a notification type.
func (r *Router) Register(t NotificationType, handler NotificationHandler) {
	r.handlers[t] = handler
}

// Handle implements consumer.Handler.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	var n Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		r.logger.ErrorContext(ctx, "failed to unmarshal directory notification",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		r.metrics.ObserveNotification("unknown", "malformed")
		return nil
	}

	handler, ok := r.handlers[n.Type]
	if !ok {
		r.logger.WarnContext(ctx, "no handler for notification type, skipping message",
			"type", string(n.Type),
			"offset", msg.Offset,
		)
		r.metrics.ObserveNotification(string(n.Type), "skipped")
		return nil
	}

	if err := handler.Handle(ctx, n); err != nil {
		r.metrics.ObserveNotification(string(n.Type), "retry")
		return err
	}
	r.metrics.ObserveNotification(string(n.Type), "handled")
	return nil
}
