// Package sharedcache persists serialized snippet buffers across process
// runs. Entries are keyed by class name and written once; a second store
// under the same key fails so concurrent writers cannot clobber each other.
//
// Cache failures are never fatal to verification. Callers log and fall back
// to recording snippets locally.
package sharedcache

import (
	"context"
	"errors"
)

// Cache is the shared snippet cache.
type Cache interface {
	// Store persists data under key. Storing an existing key returns an
	// error wrapping ErrKeyExists.
	Store(ctx context.Context, key string, data []byte) error

	// Find returns the data stored under key. The second return value is
	// false when the key is absent; absence is not an error.
	Find(ctx context.Context, key string) ([]byte, bool, error)

	// Close releases backend resources.
	Close() error
}

// ErrKeyExists is returned by Store when the key is already present.
var ErrKeyExists = errors.New("cache key already exists")
