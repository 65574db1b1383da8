package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
	Auth        AuthConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Directory   DirectoryConfig
	Outbox      OutboxConfig
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
}

// DatabaseConfig configures Postgres. An empty URL selects the in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

// RedisConfig configures the key cache. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyTTL       time.Duration
}

// KafkaConfig configures the message bus. No brokers selects log-only sinks
// and disables the notification consumer.
type KafkaConfig struct {
	Brokers            []string
	ClientID           string
	ConsumerGroup      string
	DirectoryRequests  string
	KeyEvents          string
	DirectoryNotices   string
	Partitions         int32
	ReplicationFactor  int16
	EnsureTopicsOnBoot bool
}

// Enabled reports whether brokers were configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// DirectoryConfig bounds each outbound side-effect call.
type DirectoryConfig struct {
	CallTimeout      time.Duration
	RetryAttempts    int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// OutboxConfig drives the relay that redelivers side effects.
type OutboxConfig struct {
	PollInterval time.Duration
	GracePeriod  time.Duration
	BatchSize    int
	MaxAttempts  int // 0 never parks
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	EventBuffer  int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:        envString("PIXKEY_ADDR", ":8080"),
		Environment: envString("ENVIRONMENT", "development"),
		LogLevel:    envString("LOG_LEVEL", "info"),
		Auth: AuthConfig{
			JWTSigningKey: jwtSigningKey,
			Issuer:        envString("JWT_ISSUER", "pixkey"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:       envDuration("DATABASE_TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			KeyTTL:       envDuration("REDIS_KEY_TTL", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:            envList("KAFKA_BROKERS"),
			ClientID:           envString("KAFKA_CLIENT_ID", "pixkey"),
			ConsumerGroup:      envString("KAFKA_CONSUMER_GROUP", "pixkey-directory-notifications"),
			DirectoryRequests:  envString("KAFKA_TOPIC_DIRECTORY_REQUESTS", "pix.directory.requests"),
			KeyEvents:          envString("KAFKA_TOPIC_KEY_EVENTS", "pix.key.events"),
			DirectoryNotices:   envString("KAFKA_TOPIC_DIRECTORY_NOTIFICATIONS", "pix.directory.notifications"),
			Partitions:         int32(envInt("KAFKA_TOPIC_PARTITIONS", 6)),
			ReplicationFactor:  int16(envInt("KAFKA_TOPIC_REPLICATION_FACTOR", 1)),
			EnsureTopicsOnBoot: envBool("KAFKA_ENSURE_TOPICS", true),
		},
		Directory: DirectoryConfig{
			CallTimeout:      envDuration("DIRECTORY_CALL_TIMEOUT", 3*time.Second),
			RetryAttempts:    envInt("DIRECTORY_RETRY_ATTEMPTS", 3),
			RetryInitialWait: envDuration("DIRECTORY_RETRY_INITIAL_WAIT", 200*time.Millisecond),
			RetryMaxWait:     envDuration("DIRECTORY_RETRY_MAX_WAIT", 2*time.Second),
			BreakerThreshold: envInt("DIRECTORY_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  envDuration("DIRECTORY_BREAKER_COOLDOWN", 30*time.Second),
		},
		Outbox: OutboxConfig{
			PollInterval: envDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
			GracePeriod:  envDuration("OUTBOX_GRACE_PERIOD", 10*time.Second),
			BatchSize:    envInt("OUTBOX_BATCH_SIZE", 100),
			MaxAttempts:  envInt("OUTBOX_MAX_ATTEMPTS", 0),
			BaseBackoff:  envDuration("OUTBOX_BASE_BACKOFF", time.Second),
			MaxBackoff:   envDuration("OUTBOX_MAX_BACKOFF", 5*time.Minute),
			EventBuffer:  envInt("EVENT_BUFFER", 256),
		},
	}
}

// IsProduction reports whether the process runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
