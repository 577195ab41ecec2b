// Package repository declares the durable storage the stores mirror into.
//
// Storage is one flat namespace of keys, each holding a JSON document. The
// stores always write whole documents; nothing is patched in place.
package repository

import "context"

// Well-known keys.
const (
	KeyTasks         = "tasks"
	KeyUsers         = "users"
	KeyCurrentUser   = "currentUser"
	KeyRememberEmail = "rememberEmail"
)

// KV is a durable key-value store.
//
// Get returns an error wrapping apperror.ErrNotFound when the key is absent.
// Delete of an absent key is not an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
