package repository

import (
	"context"
	"errors"
)

// ErrBackendUnavailable is returned by backends that refuse calls while
// their circuit is open.
var ErrBackendUnavailable = errors.New("storage backend unavailable")

// All repository interfaces in one file
type (
	// KeyValueStore is the durable store behind saved filters. Values are
	// opaque bytes; a missing key reports found == false with a nil error.
	KeyValueStore interface {
		Get(ctx context.Context, key string) (value []byte, found bool, err error)
		Set(ctx context.Context, key string, value []byte) error
		Delete(ctx context.Context, key string) error
		Ping(ctx context.Context) error
		Close() error
	}
)
