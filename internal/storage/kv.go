// Package storage provides the key-value backends the offline queue persists
// into. Every backend writes a value in one atomic statement, so a reader
// never observes a half-written list.
package storage

import "context"

// KV is a minimal persistent key-value store.
// Get returns domain.ErrNotFound when the key has never been written.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
