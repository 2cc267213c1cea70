// Package memory provides a process-local KeyValueStore. It is the default
// backend for development and the backend used by tests.
package memory

import (
	"context"
	"sync"

	"github.com/jwalitptl/surveillance-api/internal/repository"
)

type kvStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewKeyValueStore() repository.KeyValueStore {
	return &kvStore{data: make(map[string][]byte)}
}

func (s *kvStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *kvStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
	return nil
}

func (s *kvStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *kvStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *kvStore) Close() error {
	return nil
}
