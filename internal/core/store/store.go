package store

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndviet/market-gate/internal/core/domain"
)

// Store holds the last-known-good snapshot per item. It is the only
// mutable shared state in the engine; Apply is the only mutation path.
//
// Versions are per-item monotonic counters owned by the store. A writer
// captures the version its work was initiated against and passes it as
// base; Apply refuses the write when a strictly newer version has been
// installed in the meantime (last-writer-wins).
type Store struct {
	mu        sync.Mutex
	items     map[string]*entry
	listeners []func(domain.Snapshot)
	log       *zap.Logger
}

type entry struct {
	snap    domain.Snapshot
	has     bool
	version uint64
}

func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		items: make(map[string]*entry),
		log:   log,
	}
}

// Track registers an item identifier without installing a snapshot.
// Tracking is idempotent; items are also tracked implicitly by Apply.
func (s *Store) Track(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		s.items[itemID] = &entry{}
	}
}

// Get returns the stored snapshot, or false when the item has never been
// synced.
func (s *Store) Get(itemID string) (domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[itemID]
	if !ok || !e.has {
		return domain.Snapshot{}, false
	}
	return e.snap, true
}

// Version returns the item's current version, 0 for unknown items.
func (s *Store) Version(itemID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[itemID]; ok {
		return e.version
	}
	return 0
}

// Apply installs a new snapshot if nothing newer than base has been
// installed since the caller read its state. On success the snapshot is
// stamped with the next version and listeners are notified; on a lost
// race the current snapshot is returned with false.
func (s *Store) Apply(itemID string, base uint64, price decimal.Decimal, inventory int64) (domain.Snapshot, bool) {
	s.mu.Lock()
	e, ok := s.items[itemID]
	if !ok {
		e = &entry{}
		s.items[itemID] = e
	}
	if e.version > base {
		cur := e.snap
		s.mu.Unlock()
		s.log.Debug("stale write discarded",
			zap.String("item", itemID),
			zap.Uint64("base", base),
			zap.Uint64("current", cur.Version))
		return cur, false
	}
	e.version++
	e.snap = domain.Snapshot{
		ItemID:    itemID,
		Price:     price,
		Inventory: inventory,
		Version:   e.version,
		SyncedAt:  time.Now(),
	}
	e.has = true
	snap := e.snap
	listeners := make([]func(domain.Snapshot), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap, true
}

// Subscribe registers a change listener invoked after every installed
// snapshot. Listeners run on the writer's goroutine and must be fast.
func (s *Store) Subscribe(fn func(domain.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Tracked returns every known item identifier.
func (s *Store) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	return ids
}
