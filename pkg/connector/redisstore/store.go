// Copyright 2024-2026 Aiku AI

// Package redisstore implements connector.Store on top of go-redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aiku/irc-redis-bridge/pkg/connector"
)

// Store is a single Redis connection pool used by one bridge loop.
type Store struct {
	client *redis.Client
}

var _ connector.Store = (*Store)(nil)

// ParseAddress turns a redis:// or rediss:// URL, or a bare host:port, into
// client options.
func ParseAddress(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("empty redis address")
	}
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url %q: %w", addr, err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: addr}, nil
}

// New creates a Store for addr. No connection is made until the first
// command; call Ping to check reachability.
func New(addr string) (*Store, error) {
	opts, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	return &Store{client: redis.NewClient(opts)}, nil
}

// NewFactory returns a connector.StoreFactory that opens a new Store for
// addr on every call.
func NewFactory(addr string) connector.StoreFactory {
	return func(_ context.Context) (connector.Store, error) {
		return New(addr)
	}
}

// BlockingPop runs BLPOP on queue. A timeout is reported as a nil reply.
func (s *Store) BlockingPop(ctx context.Context, queue string, timeout time.Duration) ([]string, error) {
	reply, err := s.client.BLPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return s.client.IncrBy(ctx, key, delta).Result()
}

func (s *Store) Push(ctx context.Context, key, value string) error {
	return s.client.RPush(ctx, key, value).Err()
}

func (s *Store) Trim(ctx context.Context, key string, start, stop int64) error {
	return s.client.LTrim(ctx, key, start, stop).Err()
}

func (s *Store) Publish(ctx context.Context, channel string, value any) error {
	return s.client.Publish(ctx, channel, value).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
