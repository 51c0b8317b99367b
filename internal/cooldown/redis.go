// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package cooldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cooldown:"

var (
	ErrFailedToParseRedisURL = errors.New("failed to parse redis connection url")
	ErrRedisNotReady         = errors.New("redis did not answer ping")
)

// Redis is a Limiter shared by all instances behind a load balancer.
type Redis struct {
	client *redis.Client
}

var _ Limiter = (*Redis)(nil)

// Connect parses url, pings the server and returns a Redis limiter.
func Connect(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrRedisNotReady, err)
	}

	return &Redis{client: client}, nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Acquire implements Limiter with SET NX PX.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	remaining, err := r.client.PTTL(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis pttl: %w", err)
	}
	if remaining < 0 {
		remaining = ttl
	}
	return false, remaining, nil
}

// Release implements Limiter.
func (r *Redis) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

// Close implements Limiter.
func (r *Redis) Close() error {
	return r.client.Close()
}
