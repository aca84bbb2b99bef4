package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rsschool/api/internal/model"
)

// EventCache keeps serialized events in Redis under event:<id>.
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEventCache(client *redis.Client, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &EventCache{client: client, ttl: ttl}
}

func (c *EventCache) Get(ctx context.Context, id string) (model.Event, bool, error) {
	value, err := c.client.Get(ctx, eventKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Event{}, false, nil
	}
	if err != nil {
		return model.Event{}, false, err
	}
	var event model.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return model.Event{}, false, err
	}
	return event, true, nil
}

func (c *EventCache) Set(ctx context.Context, event model.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, eventKey(event.ID()), value, c.ttl).Err()
}

func (c *EventCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, eventKey(id)).Err()
}

func eventKey(id string) string {
	return fmt.Sprintf("event:%s", id)
}
