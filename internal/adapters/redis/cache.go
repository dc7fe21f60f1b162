package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"eventcheckout/internal/domain"
)

// Cache holds short-lived availability snapshots. It is a read
// optimization only; the row-locked reserve remains the source of truth.
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

func availabilityKey(eventID string) string {
	return "avail:" + eventID
}

// GetAvailability returns the cached snapshot, or ok=false on miss or
// any redis fault.
func (c *Cache) GetAvailability(ctx context.Context, eventID string) (domain.Availability, bool) {
	val, err := c.client.Get(ctx, availabilityKey(eventID)).Bytes()
	if err != nil {
		return domain.Availability{}, false
	}
	var a domain.Availability
	if err := json.Unmarshal(val, &a); err != nil {
		return domain.Availability{}, false
	}
	return a, true
}

func (c *Cache) SetAvailability(ctx context.Context, eventID string, a domain.Availability) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availabilityKey(eventID), data, c.ttl).Err()
}

// InvalidateAvailability drops the snapshot after a successful
// reservation so the next read reflects the new count sooner.
func (c *Cache) InvalidateAvailability(ctx context.Context, eventID string) error {
	return c.client.Del(ctx, availabilityKey(eventID)).Err()
}
