package main

import (
	"context"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// reconnectBackoff doubles the wait after each failed connection, up to the ceiling.
type reconnectBackoff struct {
	floor, ceiling time.Duration
	cur            time.Duration
}

func newReconnectBackoff(floor, ceiling time.Duration) *reconnectBackoff {
	return &reconnectBackoff{floor: floor, ceiling: ceiling, cur: floor}
}

func (b *reconnectBackoff) next() time.Duration {
	d := b.cur
	b.cur *= 2
	if b.cur > b.ceiling {
		b.cur = b.ceiling
	}
	return d
}

func (b *reconnectBackoff) reset() {
	b.cur = b.floor
}

// countingDeliveries records whether a connection delivered anything.
type countingDeliveries struct {
	seen atomic.Bool
}

func (c *countingDeliveries) relay(ctx context.Context, in <-chan amqp.Delivery) <-chan amqp.Delivery {
	out := make(chan amqp.Delivery)
	go func() {
		defer close(out)
		for d := range in {
			c.seen.Store(true)
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
