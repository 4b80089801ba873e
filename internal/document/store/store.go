// Package store is the content-addressed document store. A document's key is
// the SHA-256 of its text; the record is kept in a single logical table
// ("documents") of a key-value engine.
//
// The store adds no locking of its own. Every engine is atomic per key, so a
// *Store can be shared by any number of goroutines.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coursepilot/go-services/internal/document"
	"github.com/coursepilot/go-services/internal/kv"
)

// Table is the logical table documents live in.
const Table = "documents"

var (
	// ErrStorage marks I/O or engine failures.
	ErrStorage = errors.New("storage fault")
	// ErrCodec marks values that could not be encoded or decoded.
	ErrCodec = errors.New("codec fault")
)

// Store maps document IDs to records.
type Store struct {
	kv     kv.Store
	engine string
}

// New builds a Store over an already opened engine.
func New(engine kv.Store) *Store {
	return &Store{kv: engine, engine: "custom"}
}

// Engine names the backing engine.
func (s *Store) Engine() string {
	return s.engine
}

// Shared reports whether other processes can write to the same documents
// table. Process-local caches must not be kept over a shared store.
func (s *Store) Shared() bool {
	switch s.engine {
	case EngineRedis, EngineMongo:
		return true
	}
	return false
}

// Insert stores content under its digest and returns the ID together with
// the record it replaced, which is nil when the ID was new. created is kept
// in UTC at millisecond precision. On the redis and mongo engines a write
// that keeps racing other writers of the same ID fails with ErrStorage
// wrapping kv.ErrConflict.
func (s *Store) Insert(ctx context.Context, content string, created time.Time) (document.ID, *document.Record, error) {
	id := document.IDFor(content)
	rec := document.Record{Content: content, Created: created.UTC().Truncate(time.Millisecond)}
	prev, err := insertAndTransform(ctx, s.kv, idCodec, recordCodec, id, rec)
	if err != nil {
		return id, nil, fmt.Errorf("insert %s: %w", id, err)
	}
	return id, prev, nil
}

// Get returns the record for id, or nil when there is none. A stored value
// that does not decode, or whose content does not hash to id, is an ErrCodec
// error and never a nil record.
func (s *Store) Get(ctx context.Context, id document.ID) (*document.Record, error) {
	rec, err := getAndTransform(ctx, s.kv, idCodec, recordCodec, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	if rec != nil && rec.ID() != id {
		return nil, fmt.Errorf("get %s: %w: content digest mismatch", id, ErrCodec)
	}
	return rec, nil
}

// Remove deletes id and returns the record it held, or nil when absent.
func (s *Store) Remove(ctx context.Context, id document.ID) (*document.Record, error) {
	rec, err := removeAndTransform(ctx, s.kv, idCodec, recordCodec, id)
	if err != nil {
		return nil, fmt.Errorf("remove %s: %w", id, err)
	}
	return rec, nil
}

// Contains reports whether id is stored. The value is not decoded.
func (s *Store) Contains(ctx context.Context, id document.ID) (bool, error) {
	ok, err := containsKey(ctx, s.kv, idCodec, id)
	if err != nil {
		return false, fmt.Errorf("contains %s: %w", id, err)
	}
	return ok, nil
}

// Close releases the engine. The Store must not be used afterwards.
func (s *Store) Close() error {
	if err := s.kv.Close(); err != nil {
		return storageFault(err)
	}
	return nil
}
