package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/ticket-inventory/internal/inventory"
)

// Cache keeps short-lived availability snapshots. A snapshot is advisory
// only; allocation decisions are always made against the store.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func availabilityKey(eventID uuid.UUID) string {
	return "avail:" + eventID.String()
}

// GetAvailability returns nil without error on a miss.
func (c *Cache) GetAvailability(ctx context.Context, eventID uuid.UUID) (*inventory.AvailabilityView, error) {
	val, err := c.client.Get(ctx, availabilityKey(eventID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var view inventory.AvailabilityView
	if err := json.Unmarshal(val, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Cache) SetAvailability(ctx context.Context, view inventory.AvailabilityView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availabilityKey(view.EventID), data, c.ttl).Err()
}

func (c *Cache) InvalidateAvailability(ctx context.Context, eventID uuid.UUID) error {
	return c.client.Del(ctx, availabilityKey(eventID)).Err()
}
