package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// casMaxAttempts bounds the optimistic update retry loop. Conflicts are
// short-lived (writebacks racing on the same organization), so the bound
// exists only to turn a livelock into a visible error.
const casMaxAttempts = 32

// Blob is a typed view over one stored JSON document.
type Blob[T any] struct {
	store Store
	path  string
}

// NewBlob creates a typed blob handle for path.
func NewBlob[T any](s Store, path string) *Blob[T] {
	return &Blob[T]{store: s, path: path}
}

// Path returns the blob's storage path.
func (b *Blob[T]) Path() string {
	return b.path
}

// Read returns the decoded blob value. ok is false when the blob has never
// been written.
func (b *Blob[T]) Read(ctx context.Context) (value T, ok bool, err error) {
	data, _, err := b.store.Read(ctx, b.path)
	if errors.Is(err, ErrNotExist) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("read %s: %w", b.path, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("decode %s: %w", b.path, err)
	}
	return value, true, nil
}

// ReadOr returns the decoded blob value, or def when the blob does not exist.
func (b *Blob[T]) ReadOr(ctx context.Context, def T) (T, error) {
	value, ok, err := b.Read(ctx)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// OptimisticUpdate applies mutate in a read-modify-write loop, retrying on
// version conflicts. When the blob does not exist, mutate receives def and
// the write creates it. The mutator must be deterministic and must not close
// over mutable state: it can run several times per call.
func (b *Blob[T]) OptimisticUpdate(ctx context.Context, mutate func(current T) T, def T) (T, error) {
	var zero T
	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		current := def
		version := int64(0)
		data, v, err := b.store.Read(ctx, b.path)
		switch {
		case errors.Is(err, ErrNotExist):
			// create on write
		case err != nil:
			return zero, fmt.Errorf("read %s: %w", b.path, err)
		default:
			version = v
			if err := json.Unmarshal(data, &current); err != nil {
				return zero, fmt.Errorf("decode %s: %w", b.path, err)
			}
		}

		next := mutate(current)
		encoded, err := json.Marshal(next)
		if err != nil {
			return zero, fmt.Errorf("encode %s: %w", b.path, err)
		}

		_, err = b.store.CompareAndSwap(ctx, b.path, version, encoded)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return zero, fmt.Errorf("write %s: %w", b.path, err)
		}
		return next, nil
	}
	return zero, fmt.Errorf("update %s: gave up after %d conflicts", b.path, casMaxAttempts)
}
