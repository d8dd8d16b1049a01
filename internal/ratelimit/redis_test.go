package ratelimit_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"alumnet/engagement-service/internal/ratelimit"
)

func TestNew_Disabled(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()

	if ratelimit.New(nil, 10, time.Minute) != nil {
		t.Error("nil client should disable the limiter")
	}
	if ratelimit.New(rdb, 0, time.Minute) != nil {
		t.Error("zero limit should disable the limiter")
	}
	var l *ratelimit.Limiter
	if !l.Allow(context.Background(), "k") {
		t.Error("nil limiter must allow")
	}
}

func TestAllow_FailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()

	l := ratelimit.New(rdb, 1, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow(context.Background(), "k") {
			t.Fatal("unreachable Redis must not block requests")
		}
	}
}

// TestAllow_Redis runs against the server named by TEST_REDIS_URL.
func TestAllow_Redis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	l := ratelimit.New(rdb, 2, time.Minute)
	key := "test:" + uuid.NewString()
	ctx := context.Background()
	got := []bool{l.Allow(ctx, key), l.Allow(ctx, key), l.Allow(ctx, key)}
	if !got[0] || !got[1] || got[2] {
		t.Errorf("Allow sequence = %v, want [true true false]", got)
	}
}
