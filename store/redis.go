package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed implementation of Store. Suitable for distributed
// deployments where many processes share one limit.
type Redis struct {
	client redis.UniversalClient
	owned  bool
}

// RedisConfig holds connection configuration for NewRedis.
// Populate from environment variables in your application code.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// NewRedis creates a Redis store with its own client and verifies
// connectivity before returning.
func NewRedis(config RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.URL,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, owned: true}, nil
}

// NewRedisFromClient wraps an existing go-redis client. The caller keeps
// ownership of the client; Close becomes a no-op.
func NewRedisFromClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// Expire maps whole-second TTLs onto EXPIRE and everything finer onto
// PEXPIRE, preserving millisecond precision.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl%time.Second != 0 {
		return r.client.PExpire(ctx, key, ttl).Err()
	}
	return r.client.Expire(ctx, key, ttl).Err()
}

// TTL reports the -1 (no expiration) and -2 (missing key) sentinels as -1s
// and -2s; go-redis returns them as raw -1 and -2 durations.
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl == -1 || ttl == -2 {
		return ttl * time.Second, nil
	}
	return ttl, nil
}

// Get returns 0 for missing keys, matching the counter semantics of the
// limiter (a window with no admissions has count zero).
func (r *Redis) Get(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) ScriptLoad(ctx context.Context, script string) (string, error) {
	return r.client.ScriptLoad(ctx, script).Result()
}

func (r *Redis) EvalSha(ctx context.Context, sha string, keys []string, args ...any) (any, error) {
	return r.client.EvalSha(ctx, sha, keys, args...).Result()
}

// Close releases the client when this store created it.
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
