// Package kv defines the minimal key-value capability the content store is
// built on, together with the engines that provide it.
//
// All engines guarantee atomicity per single key: a Put or Delete observes and
// replaces the previous value in one step, so concurrent writers to the same
// key never leave a torn value behind.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by engines used after Close.
var ErrClosed = errors.New("kv: store closed")

// ErrConflict is returned when an optimistic write keeps losing to
// concurrent writers of the same key.
var ErrConflict = errors.New("kv: too many concurrent writers")

// Check inspects the value a Put is about to replace (nil when absent). A
// non-nil error aborts the Put without writing and is returned as is.
type Check func(prev []byte) error

// Store is a durable byte-oriented key-value namespace.
//
// A nil value with a nil error means the key is absent. Engines always return
// a non-nil slice for keys that exist, even when the stored value is empty.
type Store interface {
	// Put writes value under key and returns the value it replaced. check,
	// when non-nil, sees the replaced value first and can veto the write.
	// Engines shared between processes (Redis, Mongo) run a checked Put
	// optimistically: it is retried a bounded number of times while other
	// writers change the key, then fails with ErrConflict. No other error is
	// retried.
	Put(ctx context.Context, key, value []byte, check Check) ([]byte, error)
	// Get returns the value stored under key.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Delete removes key and returns the value it held.
	Delete(ctx context.Context, key []byte) ([]byte, error)
	// Exists reports whether key is present without reading its value.
	Exists(ctx context.Context, key []byte) (bool, error)
	// Close releases files, connections and locks held by the engine.
	Close() error
}

// present normalizes a value read from an engine so that an existing key
// never comes back as nil.
func present(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}
