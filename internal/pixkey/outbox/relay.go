package outbox

import (
	"context"
	"log/slog"
	"time"

	"pixkey/internal/pixkey/metrics"
	"pixkey/internal/platform/config"
)

// Relay redelivers entries the post-commit dispatch could not deliver. It
// waits a grace period so it does not race the request that wrote them.
// Entries are parked only when maxAttempts is positive; zero retries forever.
type Relay struct {
	store       Store
	dispatcher  *Dispatcher
	interval    time.Duration
	grace       time.Duration
	batchSize   int
	maxAttempts int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

type RelayOption func(*Relay)

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func WithRelayMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func WithRelayClock(now func() time.Time) RelayOption {
	return func(r *Relay) { r.now = now }
}

func NewRelay(store Store, dispatcher *Dispatcher, cfg config.OutboxConfig, opts ...RelayOption) *Relay {
	r := &Relay{
		store:       store,
		dispatcher:  dispatcher,
		interval:    cfg.PollInterval,
		grace:       cfg.GracePeriod,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		logger:      slog.Default(),
		now:         time.Now,
	}
	if r.interval <= 0 {
		r.interval = 5 * time.Second
	}
	if r.batchSize <= 0 {
		r.batchSize = 100
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single pass and returns how many entries it attempted.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	now := r.now()
	due, err := r.store.ListDue(ctx, now.Add(-r.grace), r.batchSize)
	if err != nil {
		return 0, err
	}
	r.metrics.SetOutboxBacklog(len(due))

	var deliver []*Entry
	for _, e := range due {
		if r.maxAttempts > 0 && e.Attempts >= r.maxAttempts {
			if err := r.store.MarkParked(ctx, e.ID, e.Attempts, e.LastError); err != nil {
				return 0, err
			}
			r.metrics.IncOutboxParked()
			r.logger.ErrorContext(ctx, "outbox entry parked",
				"entry_id", e.ID.String(),
				"key_id", e.KeyID.String(),
				"kind", string(e.Kind),
				"attempts", e.Attempts,
				"last_error", e.LastError,
			)
			continue
		}
		deliver = append(deliver, e)
	}
	if len(deliver) == 0 {
		return 0, nil
	}
	if err := r.dispatcher.Deliver(ctx, deliver); err != nil {
		r.logger.WarnContext(ctx, "outbox relay left entries pending", "count", len(deliver), "error", err)
	}
	return len(deliver), nil
}
