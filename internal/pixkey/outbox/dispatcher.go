package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ferrors"
	"github.com/felixgeelhaar/fortify/retry"

	"pixkey/internal/pixkey/directory"
	"pixkey/internal/pixkey/engine"
	"pixkey/internal/pixkey/events"
	"pixkey/internal/pixkey/metrics"
	"pixkey/internal/platform/config"
)

// ErrUnknownEffect is returned for entries whose kind has no delivery route.
var ErrUnknownEffect = errors.New("outbox: unknown effect kind")

// Dispatcher delivers entries to the Directory gateway or event emitter and
// records the outcome in the store. Entries that fail stay pending for the
// relay.
type Dispatcher struct {
	gateway     directory.Gateway
	emitter     events.Emitter
	store       Store
	retrier     retry.Retry[struct{}]
	breaker     circuitbreaker.CircuitBreaker[struct{}]
	callTimeout time.Duration
	cooldown    time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithBackoff sets the relay schedule used after a failed delivery.
func WithBackoff(base, max time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.baseBackoff = base
		d.maxBackoff = max
	}
}

// NewDispatcher builds a dispatcher whose retry and breaker settings come
// from cfg.
func NewDispatcher(gateway directory.Gateway, emitter events.Emitter, store Store, cfg config.DirectoryConfig, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		gateway:     gateway,
		emitter:     emitter,
		store:       store,
		callTimeout: cfg.CallTimeout,
		cooldown:    cfg.BreakerCooldown,
		baseBackoff: time.Second,
		maxBackoff:  5 * time.Minute,
		logger:      slog.Default(),
		now:         time.Now,
	}
	if cfg.RetryAttempts > 0 {
		d.retrier = retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.RetryAttempts,
			InitialDelay:  cfg.RetryInitialWait,
			MaxDelay:      cfg.RetryMaxWait,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}
	if cfg.BreakerThreshold > 0 {
		threshold := uint32(cfg.BreakerThreshold) // #nosec G115 -- bounded config value
		d.breaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    cfg.BreakerCooldown,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		})
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends every entry and returns the joined delivery failures. Store
// bookkeeping errors are logged, not returned; the relay will find the entry
// again. An entry refused by the open breaker was never sent, so it keeps its
// attempt count and is rescheduled after the breaker cooldown.
func (d *Dispatcher) Deliver(ctx context.Context, entries []*Entry) error {
	var errs []error
	for _, e := range entries {
		if e.Status != StatusPending {
			continue
		}
		err := d.execute(ctx, e)
		if err == nil {
			d.metrics.ObserveSideEffect(string(e.Kind), "delivered")
			if markErr := d.store.MarkDelivered(ctx, e.ID, d.now()); markErr != nil {
				d.logger.ErrorContext(ctx, "failed to mark outbox entry delivered",
					"entry_id", e.ID.String(), "error", markErr)
			}
			continue
		}

		if errors.Is(err, ferrors.ErrCircuitOpen) {
			d.metrics.ObserveSideEffect(string(e.Kind), "deferred")
			if markErr := d.store.MarkRetry(ctx, e.ID, e.Attempts, d.now().Add(d.cooldown), err.Error()); markErr != nil {
				d.logger.ErrorContext(ctx, "failed to defer outbox entry",
					"entry_id", e.ID.String(), "error", markErr)
			}
			errs = append(errs, fmt.Errorf("%s for key %s: %w", e.Kind, e.KeyID, err))
			continue
		}

		d.metrics.ObserveSideEffect(string(e.Kind), "failed")
		attempts := e.Attempts + 1
		next := d.now().Add(Backoff(attempts, d.baseBackoff, d.maxBackoff))
		if markErr := d.store.MarkRetry(ctx, e.ID, attempts, next, err.Error()); markErr != nil {
			d.logger.ErrorContext(ctx, "failed to schedule outbox retry",
				"entry_id", e.ID.String(), "error", markErr)
		}
		d.logger.WarnContext(ctx, "side effect delivery failed",
			"entry_id", e.ID.String(),
			"key_id", e.KeyID.String(),
			"kind", string(e.Kind),
			"attempts", attempts,
			"error", err,
		)
		errs = append(errs, fmt.Errorf("%s for key %s: %w", e.Kind, e.KeyID, err))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) execute(ctx context.Context, e *Entry) error {
	op := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.send(ctx, e)
	}
	withRetry := func(ctx context.Context) (struct{}, error) {
		if d.retrier != nil {
			return d.retrier.Do(ctx, op)
		}
		return op(ctx)
	}
	var err error
	if d.breaker != nil {
		_, err = d.breaker.Execute(ctx, withRetry)
	} else {
		_, err = withRetry(ctx)
	}
	return err
}

func (d *Dispatcher) send(ctx context.Context, e *Entry) error {
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}
	switch e.Kind {
	case engine.EffectDirectoryStartClaim:
		return d.gateway.StartClaim(directory.WithIdempotencyKey(ctx, e.IdempotencyKey), e.KeyID, e.ClaimType)
	case engine.EffectDirectoryApproveClaim:
		return d.gateway.ApproveClaim(directory.WithIdempotencyKey(ctx, e.IdempotencyKey), e.KeyID)
	case engine.EffectDirectoryCancelClaim:
		return d.gateway.CancelClaim(directory.WithIdempotencyKey(ctx, e.IdempotencyKey), e.KeyID, e.Reason)
	case engine.EffectEmitEvent:
		return d.emitter.Emit(ctx, events.Event{
			Name:           e.EventName,
			KeyID:          e.KeyID.String(),
			KeyValueHash:   e.KeyValueHash,
			State:          string(e.State),
			OccurredAt:     e.CreatedAt,
			IdempotencyKey: e.IdempotencyKey,
		})
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEffect, e.Kind)
	}
}

// Backoff is the relay delay before attempt n+1: base doubled per attempt,
// capped at max.
func Backoff(attempts int, base, max time.Duration) time.Duration {
	if attempts < 1 {
		return base
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}

// isRetryable keeps cancellation and unroutable entries out of the retry loop.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrUnknownEffect) {
		return false
	}
	return true
}
