package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	jwttoken "pixkey/internal/jwt_token"
	"pixkey/internal/pixkey/cache"
	pixconsumer "pixkey/internal/pixkey/consumer"
	"pixkey/internal/pixkey/directory"
	"pixkey/internal/pixkey/events"
	"pixkey/internal/pixkey/handler"
	pixmetrics "pixkey/internal/pixkey/metrics"
	"pixkey/internal/pixkey/outbox"
	"pixkey/internal/pixkey/service"
	"pixkey/internal/pixkey/store/memory"
	"pixkey/internal/pixkey/store/postgres"
	"pixkey/internal/platform/config"
	"pixkey/internal/platform/httpserver"
	"pixkey/internal/platform/kafka"
	"pixkey/internal/platform/kafka/consumer"
	"pixkey/internal/platform/kafka/producer"
	"pixkey/internal/platform/logger"
	"pixkey/internal/platform/metrics"
	"pixkey/internal/platform/middleware"
	redisclient "pixkey/internal/platform/redis"
)

// keyStore is what both storage backends provide.
type keyStore interface {
	service.KeyStoreTx
	outbox.Store
	Keys() service.KeyRepository
}

// main wires dependencies and runs the HTTP server, the outbox relay, the
// delivery queue and the Directory notification consumer until a signal
// arrives. Business logic lives in internal/pixkey.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("pixkey stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := pixmetrics.New()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var gateway directory.Gateway = directory.NewLogGateway(log)
	var emitter events.Emitter = events.NewLogEmitter(log)
	var notices *consumer.Consumer
	if cfg.Kafka.Enabled() {
		client, err := kafka.NewClient(cfg.Kafka)
		if err != nil {
			return err
		}
		defer client.Close()
		if cfg.Kafka.EnsureTopicsOnBoot {
			if err := kafka.EnsureTopics(ctx, client, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor,
				cfg.Kafka.DirectoryRequests, cfg.Kafka.KeyEvents, cfg.Kafka.DirectoryNotices); err != nil {
				return err
			}
		}
		pub := producer.New(client)
		gateway = directory.NewKafkaGateway(pub, cfg.Kafka.DirectoryRequests)
		emitter = events.NewKafkaEmitter(pub, cfg.Kafka.KeyEvents)
		log.Info("kafka sinks enabled", "brokers", cfg.Kafka.Brokers)
	} else {
		log.Warn("KAFKA_BROKERS not set; directory calls and events are only logged")
	}

	dispatcher := outbox.NewDispatcher(gateway, emitter, store, cfg.Directory,
		outbox.WithLogger(log),
		outbox.WithMetrics(m),
		outbox.WithBackoff(cfg.Outbox.BaseBackoff, cfg.Outbox.MaxBackoff),
	)
	relay := outbox.NewRelay(store, dispatcher, cfg.Outbox,
		outbox.WithRelayLogger(log),
		outbox.WithRelayMetrics(m),
	)

	opts := []service.Option{service.WithLogger(log), service.WithMetrics(m)}
	var queue *outbox.Queue
	if cfg.Outbox.EventBuffer > 0 {
		queue = outbox.NewQueue(dispatcher, cfg.Outbox.EventBuffer, log)
		opts = append(opts, service.WithQueue(queue))
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		opts = append(opts, service.WithCache(cache.New(rdb, cache.WithTTL(cfg.Redis.KeyTTL))))
		log.Info("redis key cache enabled")
	}

	svc := service.New(store.Keys(), store, dispatcher, opts...)

	if cfg.Kafka.Enabled() {
		client, err := kafka.NewClient(cfg.Kafka,
			kgo.ConsumerGroup(cfg.Kafka.ConsumerGroup),
			kgo.ConsumeTopics(cfg.Kafka.DirectoryNotices),
			kgo.DisableAutoCommit(),
		)
		if err != nil {
			return err
		}
		defer client.Close()
		router := pixconsumer.NewRouter(log, pixconsumer.WithMetrics(m))
		router.Register(pixconsumer.NotificationOwnershipClaimReady, pixconsumer.NewClaimReadyHandler(svc, log))
		notices = consumer.New(client, router, log)
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler.New(svc, log, metrics.New(), jwttoken.NewMiddlewareAdapter(jwtService)).Register(r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Addr, r), log)
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	if queue != nil {
		// Delivery outlives the signal so accepted work drains before exit.
		g.Go(func() error {
			return queue.Run(context.WithoutCancel(gctx))
		})
		g.Go(func() error {
			<-gctx.Done()
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return queue.Close(drainCtx)
		})
	}
	if notices != nil {
		g.Go(func() error {
			return notices.Run(gctx)
		})
	}

	log.Info("pixkey started", "addr", cfg.Addr, "environment", cfg.Environment)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStore picks Postgres when DATABASE_URL is set and the in-memory store
// otherwise.
func openStore(ctx context.Context, cfg config.Server, log *slog.Logger) (keyStore, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set; using in-memory store")
		return memory.New(memory.WithTxTimeout(cfg.Database.TxTimeout)), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := postgres.New(db, postgres.WithTxTimeout(cfg.Database.TxTimeout))
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}
