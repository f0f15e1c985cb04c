package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	valueLeased = "processing"
	valueDone   = "done"
)

type RedisGuard struct {
	client *redis.Client
	prefix string
}

func NewRedisGuard(client *redis.Client, prefix string) *RedisGuard {
	if prefix == "" {
		prefix = "saga:dedup"
	}
	return &RedisGuard{client: client, prefix: prefix}
}

func (g *RedisGuard) key(k string) string {
	return g.prefix + ":" + k
}

func (g *RedisGuard) Begin(ctx context.Context, k string, lease time.Duration) (State, error) {
	ok, err := g.client.SetNX(ctx, g.key(k), valueLeased, lease).Result()
	if err != nil {
		return 0, err
	}
	if ok {
		return Acquired, nil
	}
	val, err := g.client.Get(ctx, g.key(k)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return g.Begin(ctx, k, lease)
	}
	if err != nil {
		return 0, err
	}
	if val == valueDone {
		return Done, nil
	}
	return InFlight, nil
}

func (g *RedisGuard) Complete(ctx context.Context, k string, ttl time.Duration) error {
	return g.client.Set(ctx, g.key(k), valueDone, ttl).Err()
}

func (g *RedisGuard) Release(ctx context.Context, k string) error {
	return g.client.Del(ctx, g.key(k)).Err()
}
