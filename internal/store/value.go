package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/deskkit/internal/apperror"
	"github.com/sakif/deskkit/internal/repository"
)

// Value is a single optional record stored under one key, such as the
// active session or the remembered login email.
type Value[T any] struct {
	mu     sync.RWMutex
	kv     repository.KV
	key    string
	val    *T
	logger *slog.Logger
}

// OpenValue loads the record stored under key. A missing or unreadable
// record leaves the value empty.
func OpenValue[T any](ctx context.Context, kv repository.KV, key string, logger *slog.Logger) (*Value[T], error) {
	v := &Value[T]{kv: kv, key: key, logger: logger}

	raw, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return v, nil
		}
		return nil, fmt.Errorf("store: loading %s: %w", key, err)
	}

	var stored *T
	if err := json.Unmarshal(raw, &stored); err != nil {
		logger.Warn("stored value is unreadable, ignoring it",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return v, nil
	}
	v.val = stored

	return v, nil
}

// Load returns the current record, if any.
func (v *Value[T]) Load() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.val == nil {
		var zero T
		return zero, false
	}
	return *v.val, true
}

// Save replaces the record.
func (v *Value[T]) Save(ctx context.Context, val T) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", v.key, err)
	}
	if err := v.kv.Put(ctx, v.key, data); err != nil {
		return fmt.Errorf("store: writing %s: %w", v.key, err)
	}

	v.val = &val
	return nil
}

// Clear removes the record. Clearing an empty value is not an error.
func (v *Value[T]) Clear(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.kv.Delete(ctx, v.key); err != nil {
		return fmt.Errorf("store: deleting %s: %w", v.key, err)
	}

	v.val = nil
	return nil
}
