// Package service puts timestamps, a read cache, metrics and logging around
// the content store. Handlers and the CLI talk to documents through it.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coursepilot/go-services/internal/document"
	"github.com/coursepilot/go-services/internal/document/store"
	"github.com/coursepilot/go-services/pkg/logger"
	"github.com/coursepilot/go-services/pkg/metrics"
)

var (
	ErrNotFound = errors.New("not found")
)

// DefaultCacheSize is the number of records kept in memory when no size is given.
const DefaultCacheSize = 256

// Service is safe for concurrent use.
type Service struct {
	store *store.Store
	now   func() time.Time

	cache *lru.Cache[document.ID, document.Record]
	// gen is bumped on every write so a read that raced with a write does
	// not put a stale record back into the cache.
	mu  sync.Mutex
	gen uint64

	cacheSize int
}

type Option func(*Service)

// WithCacheSize sets the LRU capacity. Zero or less disables the cache. The
// cache is always off over a shared store, since writes from other processes
// would never evict it.
func WithCacheSize(n int) Option {
	return func(s *Service) { s.cacheSize = n }
}

// WithClock replaces time.Now for the created timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st *store.Store, opts ...Option) (*Service, error) {
	s := &Service{store: st, now: time.Now, cacheSize: DefaultCacheSize}
	for _, o := range opts {
		o(s)
	}
	if st.Shared() && s.cacheSize > 0 {
		logger.Debugf("document cache disabled: %s store is shared", st.Engine())
		s.cacheSize = 0
	}
	if s.cacheSize > 0 {
		c, err := lru.New[document.ID, document.Record](s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("document cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// Create stores content stamped with the current time and returns its ID.
// Storing the same text again refreshes the timestamp and keeps the ID.
func (s *Service) Create(ctx context.Context, content string) (document.ID, error) {
	start := time.Now()
	id, prev, err := s.store.Insert(ctx, content, s.now())
	s.invalidate(id)
	observe("insert", start, err, false)
	if err != nil {
		logger.Errorf("document insert %s failed: %v", id, err)
		return id, err
	}
	if prev != nil {
		logger.Debugf("document %s re-uploaded, first stored %s", id, prev.Created.Format(time.RFC3339))
	} else {
		logger.Infof("document %s stored (%d bytes)", id, len(content))
	}
	return id, nil
}

// Get returns the record for id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id document.ID) (*document.Record, error) {
	if s.cache != nil {
		if rec, ok := s.cache.Get(id); ok {
			metrics.CacheHits.Inc()
			return &rec, nil
		}
		metrics.CacheMisses.Inc()
	}

	gen := s.generation()
	start := time.Now()
	rec, err := s.store.Get(ctx, id)
	observe("get", start, err, rec == nil)
	if err != nil {
		logger.Errorf("document get %s failed: %v", id, err)
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	s.fill(gen, id, *rec)
	return rec, nil
}

// Exists reports whether id is stored without decoding it.
func (s *Service) Exists(ctx context.Context, id document.ID) (bool, error) {
	if s.cache != nil && s.cache.Contains(id) {
		return true, nil
	}
	start := time.Now()
	ok, err := s.store.Contains(ctx, id)
	observe("contains", start, err, !ok)
	if err != nil {
		logger.Errorf("document contains %s failed: %v", id, err)
		return false, err
	}
	return ok, nil
}

// Delete removes id, returning ErrNotFound when it was not stored.
func (s *Service) Delete(ctx context.Context, id document.ID) error {
	start := time.Now()
	prev, err := s.store.Remove(ctx, id)
	s.invalidate(id)
	observe("remove", start, err, prev == nil)
	if err != nil {
		logger.Errorf("document remove %s failed: %v", id, err)
		return err
	}
	if prev == nil {
		return ErrNotFound
	}
	logger.Infof("document %s removed", id)
	return nil
}

// Ping checks the store answers a lookup. Used by the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.store.Contains(ctx, document.ID{})
	return err
}

func (s *Service) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Service) fill(gen uint64, id document.ID, rec document.Record) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cache.Add(id, rec)
	}
}

func (s *Service) invalidate(id document.ID) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Remove(id)
}

func observe(op string, start time.Time, err error, absent bool) {
	metrics.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.StoreOperations.WithLabelValues(op, resultLabel(err, absent)).Inc()
}

func resultLabel(err error, absent bool) string {
	switch {
	case errors.Is(err, store.ErrCodec):
		return "codec_fault"
	case err != nil:
		return "storage_fault"
	case absent:
		return "absent"
	}
	return "ok"
}
