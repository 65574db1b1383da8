package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/twmb/franz-go/pkg/kgo"
)

// attemptsPerRound bounds one retry round; rounds repeat until the handler
// succeeds or the context ends, so a failing record holds its partition.
const attemptsPerRound = 5

// Message is the decoded view of a consumed record handed to handlers.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. Returning nil commits the offset; returning
// an error redelivers the same message after a backoff, preserving order.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Consumer runs a poll loop over a consumer-group client created with
// kgo.DisableAutoCommit.
type Consumer struct {
	client      *kgo.Client
	handler     Handler
	logger      *slog.Logger
	baseBackoff time.Duration
	maxBackoff  time.Duration
	retrier     retry.Retry[struct{}]
}

type Option func(*Consumer)

func WithBackoff(base, max time.Duration) Option {
	return func(c *Consumer) {
		c.baseBackoff = base
		c.maxBackoff = max
	}
}

func New(client *kgo.Client, handler Handler, logger *slog.Logger, opts ...Option) *Consumer {
	c := &Consumer{
		client:      client,
		handler:     handler,
		logger:      logger,
		baseBackoff: 200 * time.Millisecond,
		maxBackoff:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retrier = retry.New[struct{}](retry.Config{
		MaxAttempts:   attemptsPerRound,
		InitialDelay:  c.baseBackoff,
		MaxDelay:      c.maxBackoff,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    2.0,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		OnRetry: func(attempt int, err error) {
			c.logger.Warn("message handling failed, retrying", "attempt", attempt, "error", err)
		},
	})
	return c
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		for _, fe := range fetches.Errors() {
			if errors.Is(fe.Err, context.Canceled) {
				return nil
			}
			c.logger.Warn("kafka fetch error", "topic", fe.Topic, "partition", fe.Partition, "error", fe.Err)
		}

		var processed []*kgo.Record
		var runErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if runErr != nil {
				return
			}
			if err := c.handleWithRetry(ctx, rec); err != nil {
				runErr = err
				return
			}
			processed = append(processed, rec)
		})

		if len(processed) > 0 {
			if err := c.client.CommitRecords(ctx, processed...); err != nil && ctx.Err() == nil {
				c.logger.Error("kafka commit failed", "error", err)
			}
		}
		if runErr != nil {
			// only cancellation ends a retry loop
			return nil
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, rec *kgo.Record) error {
	msg := toMessage(rec)
	handle := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.handler.Handle(ctx, msg)
	}
	for round := 1; ; round++ {
		_, err := c.retrier.Do(ctx, handle)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Error("message still failing, holding partition",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"round", round,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.maxBackoff):
		}
	}
}

func toMessage(rec *kgo.Record) *Message {
	headers := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Headers:   headers,
		Timestamp: rec.Timestamp,
	}
}
