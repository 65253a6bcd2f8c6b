package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/llmgw/core/providers"
	"github.com/redis/go-redis/v9"
)

// Redis is a distributed response cache backed by a Redis server, an
// alternative to Memory selected by Cache.Backend: redis in config. Each
// entry's Redis TTL mirrors the semantic cache contract's own TTL (§4.9):
// long for temperature==0, never inserted otherwise.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis builds a Redis-backed cache over an existing client.
func NewRedis(client *redis.Client, ttl time.Duration, keyPrefix string) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: keyPrefix}
}

func (r *Redis) fullKey(key string) string { return r.prefix + key }

// Get implements Cache.
func (r *Redis) Get(key string) (*providers.Response, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var resp providers.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// Set implements Cache.
func (r *Redis) Set(key string, resp *providers.Response) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	r.client.Set(ctx, r.fullKey(key), data, r.ttl)
}

// Delete implements Cache.
func (r *Redis) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.client.Del(ctx, r.fullKey(key))
}

// Len implements Cache by counting keys under the configured prefix. Only
// intended for diagnostics — it scans the keyspace and is not cheap on a
// large Redis instance.
func (r *Redis) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

// Clear implements Cache by deleting every key under the configured prefix.
func (r *Redis) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		r.client.Del(ctx, keys...)
	}
}
