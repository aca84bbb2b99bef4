package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rsschool/api/internal/model"
)

func TestEventKey(t *testing.T) {
	if got := eventKey("abc"); got != "event:abc" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestEventCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	c := NewEventCache(client, time.Minute)
	id := uuid.NewString()
	event := model.SessionEvent(model.Session{Schedule: model.Schedule{
		ID:     id,
		Fields: model.Fields{"place": "room 101"},
	}})
	if err := c.Set(ctx, event); err != nil {
		t.Fatalf("set error: %v", err)
	}

	cached, ok, err := c.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("expected cached event, got ok=%v err=%v", ok, err)
	}
	if cached.Kind != model.KindSession || cached.Session.Fields["place"] != "room 101" {
		t.Fatalf("unexpected cached event %+v", cached)
	}

	if err := c.Delete(ctx, id); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, id); ok {
		t.Fatalf("expected cache miss after delete")
	}
}
