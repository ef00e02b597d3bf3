package objstore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client.
// Unit tests use a local Redis when available; the integration build tag
// runs the same checks against a testcontainers Redis.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedis_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedis should panic with nil redis client")
		}
	}()
	NewRedis(nil, RedisOptions{})
}

func TestRedis_Contract(t *testing.T) {
	client := setupTestRedis(t)
	runStoreContract(t, NewRedis(client, RedisOptions{KeyPrefix: "test:"}))
}

func TestRedis_TTL(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedis(client, RedisOptions{KeyPrefix: "test:", TTL: time.Minute})
	ctx := context.Background()

	if err := store.Put(ctx, "batches/eco/x.json", []byte("x"), nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ttl, err := client.TTL(ctx, "test:batches/eco/x.json").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}
}

func TestRedis_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store := NewRedis(client, RedisOptions{})
	ok, err := store.Exists(context.Background(), "eco/a.json")
	if err == nil {
		t.Fatal("Exists should fail when Redis is unreachable")
	}
	if ok {
		t.Error("Exists should not report true on error")
	}
}
