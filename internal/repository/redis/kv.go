package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/surveillance-api/internal/repository"
	"github.com/jwalitptl/surveillance-api/pkg/circuitbreaker"
)

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

type kvStore struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger zerolog.Logger
}

// NewKeyValueStore connects to Redis and verifies the connection with a PING.
func NewKeyValueStore(config Config, logger zerolog.Logger) (repository.KeyValueStore, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.RetryBackoff > 0 {
		opts.MinRetryBackoff = config.RetryBackoff
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.MinIdleConns > 0 {
		opts.MinIdleConns = config.MinIdleConns
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewKeyValueStoreFromClient(client, logger), nil
}

// NewKeyValueStoreFromClient wraps an existing client.
func NewKeyValueStoreFromClient(client *redis.Client, logger zerolog.Logger) repository.KeyValueStore {
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "redis-kv",
		MaxFailures: 5,
		Timeout:     5 * time.Second,
	})

	return &kvStore{
		client: client,
		cb:     cb,
		logger: logger.With().Str("backend", "redis").Logger(),
	}
}

func (s *kvStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := s.execute(func() error {
		v, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, found, nil
}

func (s *kvStore) Set(ctx context.Context, key string, value []byte) error {
	err := s.execute(func() error {
		return s.client.Set(ctx, key, value, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

func (s *kvStore) Delete(ctx context.Context, key string) error {
	err := s.execute(func() error {
		return s.client.Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

func (s *kvStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *kvStore) Close() error {
	return s.client.Close()
}

func (s *kvStore) execute(fn func() error) error {
	err := s.cb.Execute(fn)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		s.logger.Warn().Str("breaker", s.cb.Name()).Msg("rejecting call, circuit open")
		return repository.ErrBackendUnavailable
	}
	return err
}
