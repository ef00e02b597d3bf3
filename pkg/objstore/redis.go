package objstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hash fields of a Redis object.
const (
	redisBodyField  = "body"
	redisMetaPrefix = "meta:"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	// KeyPrefix is prepended to every key (e.g. "epd:").
	KeyPrefix string

	// TTL expires objects after the given duration. 0 keeps them forever.
	TTL time.Duration
}

// Redis stores each object as a hash holding the body and its metadata.
type Redis struct {
	redis *redis.Client
	opts  RedisOptions
}

// NewRedis creates a new Redis-backed store.
func NewRedis(redisClient *redis.Client, opts RedisOptions) *Redis {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Redis{
		redis: redisClient,
		opts:  opts,
	}
}

func (r *Redis) key(key string) string {
	return r.opts.KeyPrefix + key
}

// Put implements Store. The previous object is replaced atomically.
func (r *Redis) Put(ctx context.Context, key string, body []byte, meta map[string]string) error {
	fields := make([]any, 0, 2+2*len(meta))
	fields = append(fields, redisBodyField, body)
	for k, v := range meta {
		fields = append(fields, redisMetaPrefix+k, v)
	}

	redisKey := r.key(key)
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey)
		pipe.HSet(ctx, redisKey, fields...)
		if r.opts.TTL > 0 {
			pipe.Expire(ctx, redisKey, r.opts.TTL)
		}
		return nil
	})
	observe("redis", "put", err)
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}

	WrittenBytes.WithLabelValues("redis").Add(float64(len(body)))
	return nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redis.HGet(ctx, r.key(key), redisBodyField).Bytes()
	if err != nil {
		if err == redis.Nil {
			observe("redis", "get", ErrNotFound)
			return nil, ErrNotFound
		}
		observe("redis", "get", err)
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	observe("redis", "get", nil)
	return data, nil
}

// Head implements Store.
func (r *Redis) Head(ctx context.Context, key string) (map[string]string, error) {
	fields, err := r.redis.HGetAll(ctx, r.key(key)).Result()
	if err != nil {
		observe("redis", "head", err)
		return nil, fmt.Errorf("redis head %s: %w", key, err)
	}
	if len(fields) == 0 {
		observe("redis", "head", ErrNotFound)
		return nil, ErrNotFound
	}

	meta := make(map[string]string, len(fields))
	for k, v := range fields {
		if name, ok := strings.CutPrefix(k, redisMetaPrefix); ok {
			meta[name] = v
		}
	}

	observe("redis", "head", nil)
	return meta, nil
}

// Exists implements Store.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(key)).Result()
	observe("redis", "exists", err)
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	err := r.redis.Del(ctx, r.key(key)).Err()
	observe("redis", "delete", err)
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
