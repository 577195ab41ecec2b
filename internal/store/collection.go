// Package store holds the in-memory entity collections that back the task
// list and the account directory.
//
// HOW A COLLECTION STAYS IN SYNC:
// The in-memory slice is the authoritative copy for the life of the process.
// Durable storage is a passive mirror: it is read once in Open and then
// rewritten in full after every mutation. A mutation is applied to a copy,
// the copy is written, and only a successful write commits it in memory, so a
// failed write leaves the collection exactly as it was.
//
//	Open ──▶ kv.Get(key) ──▶ items
//	Add/Update/Remove ──▶ copy ──▶ kv.Put(key, json(copy)) ──▶ items = copy
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sakif/deskkit/internal/apperror"
	"github.com/sakif/deskkit/internal/repository"
)

// Schema describes how one entity type is stored.
type Schema[T any] struct {
	Key  string        // storage key, e.g. repository.KeyTasks
	Name string        // resource name used in not-found errors
	ID   func(T) int64 // extracts the entity id
	Seed func() []T    // initial records when nothing is stored; nil means empty
}

// Option configures a Collection.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now as the source of new ids.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Collection is an ordered set of entities mirrored to one storage key.
// It is safe for concurrent use; each operation runs to completion under a
// single lock.
type Collection[T any] struct {
	mu     sync.RWMutex
	kv     repository.KV
	schema Schema[T]
	items  []T
	now    func() time.Time
	logger *slog.Logger
}

// Open loads the collection stored under schema.Key.
//
// A missing key, a JSON null or a document that fails to parse all count as
// "no data": the collection starts from schema.Seed, and a non-empty seed is
// written back. Only storage failures are returned as errors.
func Open[T any](ctx context.Context, kv repository.KV, schema Schema[T], logger *slog.Logger, opts ...Option) (*Collection[T], error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collection[T]{
		kv:     kv,
		schema: schema,
		now:    o.now,
		logger: logger,
	}

	items, ok, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		c.items = items
		return c, nil
	}

	if schema.Seed != nil {
		seed := schema.Seed()
		if len(seed) > 0 {
			if err := c.persist(ctx, seed); err != nil {
				return nil, err
			}
			logger.Info("collection seeded",
				slog.String("key", schema.Key),
				slog.Int("count", len(seed)),
			)
		}
		c.items = seed
	}

	return c, nil
}

// load reads and decodes the stored document. ok is false when there is no
// usable data.
func (c *Collection[T]) load(ctx context.Context) (items []T, ok bool, err error) {
	raw, err := c.kv.Get(ctx, c.schema.Key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: loading %s: %w", c.schema.Key, err)
	}

	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Warn("stored collection is unreadable, starting fresh",
			slog.String("key", c.schema.Key),
			slog.String("error", err.Error()),
		)
		return nil, false, nil
	}

	// "null" decodes to a nil slice.
	if items == nil {
		return nil, false, nil
	}

	return items, true, nil
}

// persist writes the whole of items under the collection's key.
func (c *Collection[T]) persist(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", c.schema.Key, err)
	}

	if err := c.kv.Put(ctx, c.schema.Key, data); err != nil {
		return fmt.Errorf("store: writing %s: %w", c.schema.Key, err)
	}

	return nil
}

// ===== READS =====

// All returns a copy of every entity in insertion order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of entities.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Find returns the entity with the given id.
func (c *Collection[T]) Find(id int64) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// First returns the first entity matching pred.
func (c *Collection[T]) First(pred func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := slices.IndexFunc(c.items, pred); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Filter returns the entities matching pred, in order.
func (c *Collection[T]) Filter(pred func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []T
	for _, item := range c.items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// ===== MUTATIONS =====

// Add assigns a new id, asks build for the entity and appends it.
//
// build sees a snapshot of the current entities so it can enforce rules that
// span the collection (unique emails); an error from build aborts the add
// without touching storage.
func (c *Collection[T]) Add(ctx context.Context, build func(existing []T, id int64) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T

	item, err := build(slices.Clone(c.items), c.nextID())
	if err != nil {
		return zero, err
	}

	next := append(slices.Clone(c.items), item)
	if err := c.persist(ctx, next); err != nil {
		return zero, err
	}
	c.items = next

	return item, nil
}

// Update applies mutate to the entity with the given id.
//
// Returns apperror.ErrNotFound if no entity has that id. If mutate returns an
// error the entity is left unchanged and the error is returned as is.
// mutate must not change the id.
func (c *Collection[T]) Update(ctx context.Context, id int64, mutate func(*T) error) (T, error) {
	return c.UpdateWithPeers(ctx, id, func(item *T, _ []T) error { return mutate(item) })
}

// UpdateWithPeers is Update for rules that compare the entity against the
// rest of the collection. peers holds every other entity.
func (c *Collection[T]) UpdateWithPeers(ctx context.Context, id int64, mutate func(item *T, peers []T) error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T

	i := c.indexOf(id)
	if i < 0 {
		return zero, apperror.NotFound(c.schema.Name, id)
	}

	peers := slices.Delete(slices.Clone(c.items), i, i+1)

	item := c.items[i]
	if err := mutate(&item, peers); err != nil {
		return zero, err
	}

	next := slices.Clone(c.items)
	next[i] = item
	if err := c.persist(ctx, next); err != nil {
		return zero, err
	}
	c.items = next

	return item, nil
}

// Remove deletes the entity with the given id. Removing an absent id is not
// an error; the collection is still written back.
func (c *Collection[T]) Remove(ctx context.Context, id int64) error {
	_, err := c.RemoveWhere(ctx, func(item T) bool { return c.schema.ID(item) == id })
	return err
}

// RemoveWhere deletes every entity matching pred and persists once.
// Returns how many were removed.
func (c *Collection[T]) RemoveWhere(ctx context.Context, pred func(T) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(c.items), pred)
	removed := len(c.items) - len(next)

	if err := c.persist(ctx, next); err != nil {
		return 0, err
	}
	c.items = next

	return removed, nil
}

// nextID returns the current time in milliseconds, bumped past the largest
// id in use so ids stay unique and increasing even within one millisecond or
// after the clock steps back. Callers hold c.mu.
func (c *Collection[T]) nextID() int64 {
	id := c.now().UnixMilli()
	for _, item := range c.items {
		if existing := c.schema.ID(item); existing >= id {
			id = existing + 1
		}
	}
	return id
}

// indexOf returns the position of id, or -1. Callers hold c.mu.
func (c *Collection[T]) indexOf(id int64) int {
	return slices.IndexFunc(c.items, func(item T) bool { return c.schema.ID(item) == id })
}
