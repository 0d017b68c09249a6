package convo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisList adapts a Redis client to the ListStore contract. Session
// transcripts map onto native Redis lists, so LPUSH/LTRIM/EXPIRE give the
// bounded, sliding-expiry semantics directly.
type RedisList struct {
	client *redis.Client
}

// NewRedisList wraps an existing Redis client.
func NewRedisList(client *redis.Client) *RedisList {
	return &RedisList{client: client}
}

// DialRedis connects to a Redis server and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*RedisList, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &RedisList{client: client}, nil
}

func (r *RedisList) PushFront(ctx context.Context, key, value string) error {
	return r.client.LPush(ctx, key, value).Err()
}

func (r *RedisList) Trim(ctx context.Context, key string, start, stop int64) error {
	return r.client.LTrim(ctx, key, start, stop).Err()
}

func (r *RedisList) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

func (r *RedisList) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, key, start, stop).Result()
}

func (r *RedisList) Index(ctx context.Context, key string, index int64) (string, error) {
	return r.client.LIndex(ctx, key, index).Result()
}

// TTL passes through Redis' sentinel values: -1 for no expiry, -2 for a
// missing key.
func (r *RedisList) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}

func (r *RedisList) Len(ctx context.Context, key string) (int64, error) {
	return r.client.LLen(ctx, key).Result()
}

func (r *RedisList) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Keys enumerates matching keys with SCAN rather than KEYS so housekeeping
// never blocks the server.
func (r *RedisList) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *RedisList) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *RedisList) Close() error {
	return r.client.Close()
}
