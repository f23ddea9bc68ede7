package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/ticket-inventory/internal/adapters/crdb"
	redisadapter "github.com/robertarktes/ticket-inventory/internal/adapters/redis"
	"github.com/robertarktes/ticket-inventory/internal/config"
	httphandler "github.com/robertarktes/ticket-inventory/internal/http"
	"github.com/robertarktes/ticket-inventory/internal/idempotency"
	"github.com/robertarktes/ticket-inventory/internal/inventory"
	"github.com/robertarktes/ticket-inventory/internal/lockregistry"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"github.com/robertarktes/ticket-inventory/internal/rateLimit"
)

// availabilitySnapshotTTL bounds how stale a cached availability answer can be.
const availabilitySnapshotTTL = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "inventory-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	if err := repo.Migrate(context.Background()); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient, availabilitySnapshotTTL)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL, cfg.RequestTimeout+cfg.LockTimeout)
	rl := rateLimit.NewRateLimiter(redisCache)

	// The sweeper and janitor must share this registry with request handling.
	locks := lockregistry.New[uuid.UUID]()
	svc := inventory.NewService(repo, locks, logger,
		inventory.WithHoldTTL(cfg.HoldTTL),
		inventory.WithLockTimeout(cfg.LockTimeout),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inventory.NewSweeper(svc, logger).Run(ctx, cfg.SweepInterval)
	go inventory.NewJanitor(svc, logger).Run(ctx, cfg.JanitorInterval)

	handlers := httphandler.NewHandlers(svc, redisCache,
		repo.Ping,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	)
	r := httphandler.SetupRouter(handlers, logger, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		RateLimiter:    rl,
		RateLimitUser:  cfg.RateLimitUser,
		RateLimitIP:    cfg.RateLimitIP,
		Idempotency:    idemp,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.HTTPAddr).Info("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
