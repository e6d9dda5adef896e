package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RemoteTier is the optional distributed tier behind the local tier.
// An absent key is reported as (nil, 0, nil); any error means the tier
// is unreachable and the cache degrades to local-only for that call.
type RemoteTier interface {
	// Get returns the value and its remaining TTL for key.
	Get(ctx context.Context, key string) ([]byte, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// RedisTier implements RemoteTier on a Redis server.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier connects a remote tier to the Redis server at addr.
func NewRedisTier(addr, password string, db int) *RedisTier {
	return &RedisTier{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}),
	}
}

// Get fetches the value and its remaining TTL in one round trip.
func (r *RedisTier) Get(ctx context.Context, key string) ([]byte, time.Duration, error) {
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	value, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		// Key without expiry or removed between the two commands.
		return nil, 0, nil
	}
	return value, ttl, nil
}

func (r *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisTier) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisTier) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisTier) Close() error {
	return r.client.Close()
}
