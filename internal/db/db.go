// Package db defines the key-value storage port backing the embedding cache.
package db

import "context"

// Store is the key-value contract implemented by backends.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close()
}
