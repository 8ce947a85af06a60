package collections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/harentsoaR/bloodbank-api/internal/storage"
)

// ErrNoMatch is returned by FindOne, UpdateOne and DeleteOne when no record
// satisfies the predicate.
var ErrNoMatch = errors.New("no matching record")

// Collection is a named, flat list of records persisted as one JSON array
// under a single key. Every mutation reads the whole array, changes it in
// memory and writes it back. Mutations are serialized within the process;
// writers in other processes are last-write-wins on the whole array.
type Collection[T any] struct {
	kv  storage.KV
	key string
	mu  sync.Mutex
}

func newCollection[T any](kv storage.KV, key string) *Collection[T] {
	return &Collection[T]{kv: kv, key: key}
}

// Key is the storage key the collection lives under.
func (c *Collection[T]) Key() string { return c.key }

// List returns every record; a missing key reads as an empty collection.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.key, err)
	}
	records := []T{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.key, err)
	}
	return records, nil
}

// ReplaceAll overwrites the collection with records.
func (c *Collection[T]) ReplaceAll(ctx context.Context, records []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(ctx, records)
}

// Find returns the records matching pred, in stored order.
func (c *Collection[T]) Find(ctx context.Context, pred func(T) bool) ([]T, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []T{}
	for _, r := range all {
		if pred == nil || pred(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Collection[T]) FindOne(ctx context.Context, pred func(T) bool) (T, error) {
	var zero T
	all, err := c.List(ctx)
	if err != nil {
		return zero, err
	}
	for _, r := range all {
		if pred(r) {
			return r, nil
		}
	}
	return zero, ErrNoMatch
}

// Insert appends rec.
func (c *Collection[T]) Insert(ctx context.Context, rec T) error {
	return c.Mutate(ctx, func(all []T) ([]T, error) {
		return append(all, rec), nil
	})
}

// Prepend puts rec first and keeps at most limit records, dropping the
// oldest from the tail.
func (c *Collection[T]) Prepend(ctx context.Context, rec T, limit int) error {
	return c.Mutate(ctx, func(all []T) ([]T, error) {
		all = append([]T{rec}, all...)
		if limit > 0 && len(all) > limit {
			all = all[:limit]
		}
		return all, nil
	})
}

// UpdateOne applies fn to the first record matching pred and returns the
// updated record.
func (c *Collection[T]) UpdateOne(ctx context.Context, pred func(T) bool, fn func(*T) error) (T, error) {
	var updated T
	err := c.Mutate(ctx, func(all []T) ([]T, error) {
		for i := range all {
			if !pred(all[i]) {
				continue
			}
			if err := fn(&all[i]); err != nil {
				return nil, err
			}
			updated = all[i]
			return all, nil
		}
		return nil, ErrNoMatch
	})
	return updated, err
}

// DeleteOne removes the first record matching pred.
func (c *Collection[T]) DeleteOne(ctx context.Context, pred func(T) bool) error {
	return c.Mutate(ctx, func(all []T) ([]T, error) {
		for i := range all {
			if pred(all[i]) {
				return append(all[:i], all[i+1:]...), nil
			}
		}
		return nil, ErrNoMatch
	})
}

// Mutate runs one read-modify-write cycle. If fn returns an error nothing is
// written.
func (c *Collection[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.List(ctx)
	if err != nil {
		return err
	}
	next, err := fn(all)
	if err != nil {
		return err
	}
	return c.write(ctx, next)
}

// seed writes records only if the key is absent.
func (c *Collection[T]) seed(ctx context.Context, records []T) (bool, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", c.key, err)
	}
	wrote, err := c.kv.SetNX(ctx, c.key, raw)
	if err != nil {
		return false, fmt.Errorf("seed %s: %w", c.key, err)
	}
	return wrote, nil
}

func (c *Collection[T]) exists(ctx context.Context) (bool, error) {
	_, err := c.kv.Get(ctx, c.key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Collection[T]) write(ctx context.Context, records []T) error {
	if records == nil {
		records = []T{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		return fmt.Errorf("write %s: %w", c.key, err)
	}
	return nil
}
