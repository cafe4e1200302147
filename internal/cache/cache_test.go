package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*SegmentCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSegmentCache(client, time.Hour), mr
}

func TestSegmentCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	wsID := uuid.New()
	criteria := []byte(`{"min_engagement":70}`)

	if _, err := c.Get(ctx, wsID, "engaged users"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss before set, got %v", err)
	}

	if err := c.Set(ctx, wsID, "engaged users", criteria); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, wsID, "engaged users")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(criteria) {
		t.Errorf("got %s, want %s", got, criteria)
	}
}

func TestSegmentCache_KeyNormalization(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	wsID := uuid.New()

	if err := c.Set(ctx, wsID, "Engaged Users", []byte(`{}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Case and surrounding whitespace should not change the key.
	if _, err := c.Get(ctx, wsID, "  engaged users "); err != nil {
		t.Errorf("normalized lookup missed: %v", err)
	}

	// A different workspace must not see the entry.
	if _, err := c.Get(ctx, uuid.New(), "Engaged Users"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss for other workspace, got %v", err)
	}
}

func TestSegmentCache_Expiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	wsID := uuid.New()

	if err := c.Set(ctx, wsID, "dormant", []byte(`{}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := c.Get(ctx, wsID, "dormant"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after TTL, got %v", err)
	}
}
