package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ndviet/market-gate/internal/core/domain"
	"github.com/ndviet/market-gate/internal/core/store"
	"github.com/ndviet/market-gate/internal/port"
)

// SyncEngine keeps the store in step with the ledger. Reads go through
// EnsureFresh; invalidation signals from the router mark items stale so
// the next access refetches. Concurrent refreshes of the same item share
// a single ledger read.
type SyncEngine struct {
	store  *store.Store
	ledger port.LedgerClient

	sf    singleflight.Group
	mu    sync.Mutex
	stale map[string]bool

	log *zap.Logger
}

func NewSyncEngine(st *store.Store, ledger port.LedgerClient, log *zap.Logger) *SyncEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncEngine{
		store:  st,
		ledger: ledger,
		stale:  make(map[string]bool),
		log:    log,
	}
}

// Invalidate marks an item stale; the next EnsureFresh refetches it.
func (e *SyncEngine) Invalidate(itemID string) {
	e.mu.Lock()
	e.stale[itemID] = true
	e.mu.Unlock()
}

// InvalidateAll marks every given item stale. Used after a feed
// reconnection, when events may have been missed.
func (e *SyncEngine) InvalidateAll(itemIDs []string) {
	e.mu.Lock()
	for _, id := range itemIDs {
		e.stale[id] = true
	}
	e.mu.Unlock()
}

// EnsureFresh returns the stored snapshot when present and not
// invalidated, fetching from the ledger otherwise.
func (e *SyncEngine) EnsureFresh(ctx context.Context, itemID string) (domain.Snapshot, error) {
	if snap, ok := e.store.Get(itemID); ok && !e.isStale(itemID) {
		return snap, nil
	}
	return e.Refresh(ctx, itemID)
}

// Refresh fetches price and inventory from the ledger and installs the
// result. Only one fetch per item runs at a time; concurrent callers
// share its result. A result that lost the last-writer-wins race against
// a newer install is discarded and the newer snapshot returned instead.
func (e *SyncEngine) Refresh(ctx context.Context, itemID string) (domain.Snapshot, error) {
	v, err, _ := e.sf.Do(itemID, func() (interface{}, error) {
		base := e.store.Version(itemID)
		e.clearStale(itemID)

		price, inventory, err := e.ledger.ReadItem(ctx, itemID)
		if err != nil {
			// keep the item stale so the next access retries
			e.Invalidate(itemID)
			return nil, fmt.Errorf("ledger read %s: %w", itemID, err)
		}

		snap, installed := e.store.Apply(itemID, base, price, inventory)
		if !installed {
			e.log.Debug("refresh lost last-writer-wins race",
				zap.String("item", itemID),
				zap.Uint64("base", base))
		}
		return snap, nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return v.(domain.Snapshot), nil
}

func (e *SyncEngine) isStale(itemID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stale[itemID]
}

func (e *SyncEngine) clearStale(itemID string) {
	e.mu.Lock()
	delete(e.stale, itemID)
	e.mu.Unlock()
}
