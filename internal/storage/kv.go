package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// KV is the flat key-value substrate collections are persisted in. Values are
// opaque serialized blobs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetNX writes value only if key is absent and reports whether it wrote.
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Change describes a write observed on a key.
type Change struct {
	Key    string
	Value  []byte
	Origin string
}

// Watcher is implemented by stores that deliver change notifications for
// writes made by other contexts. Writes made through the watching context
// itself are never reported back to it.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan Change, error)
}
