package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"pixkey/internal/pixkey/metrics"
	"pixkey/internal/pixkey/models"
	"pixkey/internal/pixkey/outbox"
	id "pixkey/pkg/domain"
	"pixkey/pkg/requestcontext"
)

// KeyRepository persists Key aggregates. The claim is loaded with the key.
type KeyRepository interface {
	FindByID(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	// ListActiveByValue returns keys with this value that are not CANCELED or DELETED.
	ListActiveByValue(ctx context.Context, keyValue string) ([]*models.Key, error)
	ListByOwner(ctx context.Context, owner id.UserID) ([]*models.Key, error)
	Create(ctx context.Context, key *models.Key) error
	Update(ctx context.Context, key *models.Key) error
}

// ClaimRepository persists claim sub-records.
type ClaimRepository interface {
	Open(ctx context.Context, claim *models.Claim) error
	Update(ctx context.Context, claim *models.Claim) error
	Close(ctx context.Context, claimID id.ClaimID, closedAt time.Time) error
}

// OutboxRepository appends side effects inside the transition's transaction.
type OutboxRepository interface {
	Append(ctx context.Context, entries ...*outbox.Entry) error
}

// Stores groups the repositories bound to one transaction.
type Stores struct {
	Keys   KeyRepository
	Claims ClaimRepository
	Outbox OutboxRepository
}

// KeyCache is the read-through snapshot cache for status queries. Get
// returns a nil key on a miss along with a generation; Set must skip the fill
// when Invalidate ran after that generation was read.
type KeyCache interface {
	Get(ctx context.Context, keyID id.KeyID) (*models.Key, int64, error)
	Set(ctx context.Context, key *models.Key, gen int64) error
	Invalidate(ctx context.Context, keyID id.KeyID) error
}

// EffectDispatcher delivers committed side effects.
type EffectDispatcher interface {
	Deliver(ctx context.Context, entries []*outbox.Entry) error
}

// EffectQueue accepts committed side effects for background delivery.
type EffectQueue interface {
	Enqueue(entries []*outbox.Entry) error
}

// Service runs the Pix key commands: it loads the key under the per-key
// lock, asks the engine for a decision, persists it with its outbox entries
// and delivers the side effects after commit.
type Service struct {
	reads      KeyRepository
	tx         KeyStoreTx
	dispatcher EffectDispatcher
	queue      EffectQueue
	cache      KeyCache
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func(ctx context.Context) time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(c KeyCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithQueue makes post-commit delivery asynchronous. Commands then return as
// soon as the transition commits.
func WithQueue(q EffectQueue) Option {
	return func(s *Service) {
		s.queue = q
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service. reads serves lock-free queries; tx runs every
// mutation.
func New(reads KeyRepository, tx KeyStoreTx, dispatcher EffectDispatcher, opts ...Option) *Service {
	s := &Service{
		reads:      reads,
		tx:         tx,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		tracer:     otel.Tracer("pixkey/service"),
		now:        requestcontext.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}
