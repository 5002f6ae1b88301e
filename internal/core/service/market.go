package service

import (
	"context"
	"fmt"

	"github.com/ndviet/market-gate/internal/core/domain"
	"github.com/ndviet/market-gate/internal/core/store"
	"github.com/ndviet/market-gate/internal/port"
)

// Market is the consumer surface: instant snapshot reads, read-through
// refresh, gated buys, and change notifications for re-render.
type Market struct {
	store   *store.Store
	engine  *SyncEngine
	gate    *PurchaseGate
	journal port.PurchaseJournal
}

func NewMarket(st *store.Store, engine *SyncEngine, gate *PurchaseGate, journal port.PurchaseJournal) *Market {
	return &Market{store: st, engine: engine, gate: gate, journal: journal}
}

// GetSnapshot returns the last-known snapshot without blocking.
func (m *Market) GetSnapshot(itemID string) (domain.Snapshot, error) {
	snap, ok := m.store.Get(itemID)
	if !ok {
		return domain.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// EnsureFresh returns a snapshot that reflects every invalidation seen
// so far, fetching from the ledger when needed. Unknown items are
// tracked from here on.
func (m *Market) EnsureFresh(ctx context.Context, itemID string) (domain.Snapshot, error) {
	m.store.Track(itemID)
	return m.engine.EnsureFresh(ctx, itemID)
}

// Buy purchases quantity units of an item. See PurchaseGate.Buy.
func (m *Market) Buy(ctx context.Context, itemID string, quantity int64, requestID string) (domain.Confirmation, error) {
	return m.gate.Buy(ctx, itemID, quantity, requestID)
}

// SubscribeChanges registers fn to run after every snapshot replacement.
func (m *Market) SubscribeChanges(fn func(domain.Snapshot)) {
	m.store.Subscribe(fn)
}

// Purchases lists the most recent journal entries for an item.
func (m *Market) Purchases(ctx context.Context, itemID string, limit int) ([]domain.Purchase, error) {
	ps, err := m.journal.ListByItem(ctx, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("list purchases %s: %w", itemID, err)
	}
	return ps, nil
}
