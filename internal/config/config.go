package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string
	AuditQueue   string

	HoldTTL         time.Duration
	LockTimeout     time.Duration
	RequestTimeout  time.Duration
	SweepInterval   time.Duration
	JanitorInterval time.Duration
	IdempotencyTTL  time.Duration
	OutboxInterval  time.Duration
	OutboxBatch     int
	RateLimitUser   int
	RateLimitIP     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		CRDBDSN:      os.Getenv("CRDB_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AuditQueue:   getenv("AUDIT_QUEUE", "inventory.audit"),
	}

	var err error
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"HOLD_TTL", 5 * time.Minute, &cfg.HoldTTL},
		{"LOCK_TIMEOUT", 5 * time.Second, &cfg.LockTimeout},
		{"REQUEST_TIMEOUT", 30 * time.Second, &cfg.RequestTimeout},
		{"SWEEP_INTERVAL", time.Minute, &cfg.SweepInterval},
		{"JANITOR_INTERVAL", 5 * time.Minute, &cfg.JanitorInterval},
		{"IDEMPOTENCY_TTL", time.Hour, &cfg.IdempotencyTTL},
		{"OUTBOX_INTERVAL", 5 * time.Second, &cfg.OutboxInterval},
	}
	for _, d := range durations {
		if *d.dest, err = durationEnv(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"OUTBOX_BATCH", 50, &cfg.OutboxBatch},
		{"RATE_LIMIT_USER", 60, &cfg.RateLimitUser},
		{"RATE_LIMIT_IP", 600, &cfg.RateLimitIP},
	}
	for _, i := range ints {
		if *i.dest, err = intEnv(i.key, i.def); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if d <= 0 {
		return 0, errors.Newf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if n <= 0 {
		return 0, errors.Newf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
