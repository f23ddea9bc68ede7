package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	mongoadapter "github.com/robertarktes/ticket-inventory/internal/adapters/mongo"
	"github.com/robertarktes/ticket-inventory/internal/adapters/rabbit"
	"github.com/robertarktes/ticket-inventory/internal/audit"
	"github.com/robertarktes/ticket-inventory/internal/config"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	consumer := audit.NewConsumer(mongoadapter.NewAuditLogger(mongoClient.Database("inventory"), logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("Shutdown audit consumer")
		cancel()
	}()

	// Reconnect with capped backoff until shutdown.
	backoff := newReconnectBackoff(time.Second, 30*time.Second)
	for ctx.Err() == nil {
		received, err := consume(ctx, cfg, consumer)
		if ctx.Err() != nil {
			return
		}
		if received {
			backoff.reset()
		}
		wait := backoff.next()
		logger.WithError(err).WithField("retry_in", wait.String()).Warn("audit consumer disconnected")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func consume(ctx context.Context, cfg *config.Config, consumer *audit.Consumer) (bool, error) {
	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	c, err := rabbit.NewConsumer(conn, cfg.AuditQueue, "#")
	if err != nil {
		return false, err
	}
	defer c.Close()

	deliveries, err := c.Consume(ctx)
	if err != nil {
		return false, err
	}
	counted := &countingDeliveries{}
	err = consumer.Run(ctx, counted.relay(ctx, deliveries))
	return counted.seen.Load(), err
}
