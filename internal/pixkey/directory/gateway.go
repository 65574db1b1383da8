// Package directory sends claim requests to the external key Directory.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pixkey/internal/pixkey/models"
	"pixkey/internal/platform/kafka/producer"
	id "pixkey/pkg/domain"
)

// Gateway is the outbound Directory client. Calls must be idempotent on the
// receiving side, keyed by the idempotency key carried in ctx.
type Gateway interface {
	StartClaim(ctx context.Context, keyID id.KeyID, claimType models.ClaimType) error
	ApproveClaim(ctx context.Context, keyID id.KeyID) error
	CancelClaim(ctx context.Context, keyID id.KeyID, reason models.ClaimReason) error
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey attaches the dedupe key that travels with the request.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKey returns the key set by WithIdempotencyKey.
func IdempotencyKey(ctx context.Context) string {
	k, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return k
}

// Operation names a Directory request.
type Operation string

const (
	OpStartClaim   Operation = "START_CLAIM"
	OpApproveClaim Operation = "APPROVE_CLAIM"
	OpCancelClaim  Operation = "CANCEL_CLAIM"
)

// Request is the JSON body published to the Directory requests topic.
type Request struct {
	Operation      Operation `json:"operation"`
	KeyID          string    `json:"key_id"`
	ClaimType      string    `json:"claim_type,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	IdempotencyKey string    `json:"idempotency_key"`
	RequestedAt    time.Time `json:"requested_at"`
}

// Publisher is the subset of the Kafka producer the gateway needs.
type Publisher interface {
	Publish(ctx context.Context, msg producer.Message) error
}

// KafkaGateway publishes requests keyed by key id, so all requests for a
// key land on one partition in order.
type KafkaGateway struct {
	publisher Publisher
	topic     string
	now       func() time.Time
}

func NewKafkaGateway(publisher Publisher, topic string) *KafkaGateway {
	return &KafkaGateway{publisher: publisher, topic: topic, now: time.Now}
}

func (g *KafkaGateway) StartClaim(ctx context.Context, keyID id.KeyID, claimType models.ClaimType) error {
	return g.send(ctx, Request{Operation: OpStartClaim, KeyID: keyID.String(), ClaimType: string(claimType)})
}

func (g *KafkaGateway) ApproveClaim(ctx context.Context, keyID id.KeyID) error {
	return g.send(ctx, Request{Operation: OpApproveClaim, KeyID: keyID.String()})
}

func (g *KafkaGateway) CancelClaim(ctx context.Context, keyID id.KeyID, reason models.ClaimReason) error {
	return g.send(ctx, Request{Operation: OpCancelClaim, KeyID: keyID.String(), Reason: string(reason)})
}

func (g *KafkaGateway) send(ctx context.Context, req Request) error {
	req.IdempotencyKey = IdempotencyKey(ctx)
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = req.KeyID + ":" + string(req.Operation)
	}
	req.RequestedAt = g.now().UTC()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal directory request: %w", err)
	}
	return g.publisher.Publish(ctx, producer.Message{
		Topic: g.topic,
		Key:   []byte(req.KeyID),
		Value: body,
		Headers: map[string]string{
			"idempotency-key": req.IdempotencyKey,
			"operation":       string(req.Operation),
		},
	})
}

// LogGateway only logs requests. Used when no message bus is configured.
type LogGateway struct {
	logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) StartClaim(ctx context.Context, keyID id.KeyID, claimType models.ClaimType) error {
	g.log(ctx, OpStartClaim, keyID, "claim_type", string(claimType))
	return nil
}

func (g *LogGateway) ApproveClaim(ctx context.Context, keyID id.KeyID) error {
	g.log(ctx, OpApproveClaim, keyID)
	return nil
}

func (g *LogGateway) CancelClaim(ctx context.Context, keyID id.KeyID, reason models.ClaimReason) error {
	g.log(ctx, OpCancelClaim, keyID, "reason", string(reason))
	return nil
}

func (g *LogGateway) log(ctx context.Context, op Operation, keyID id.KeyID, attrs ...any) {
	args := append([]any{"operation", op, "key_id", keyID.String(), "idempotency_key", IdempotencyKey(ctx)}, attrs...)
	g.logger.InfoContext(ctx, "directory request", args...)
}
