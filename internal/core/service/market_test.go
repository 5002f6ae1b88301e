package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ndviet/market-gate/internal/core/domain"
	"github.com/ndviet/market-gate/internal/core/store"
)

type memJournal struct {
	mu      sync.Mutex
	records []domain.Purchase
}

func (j *memJournal) Record(ctx context.Context, p domain.Purchase) error {
	j.mu.Lock()
	j.records = append(j.records, p)
	j.mu.Unlock()
	return nil
}

func (j *memJournal) ListByItem(ctx context.Context, itemID string, limit int) ([]domain.Purchase, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.Purchase
	for _, p := range j.records {
		if p.ItemID == itemID {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestMarket(ledger *fakeLedger) (*Market, *store.Store) {
	st := store.New(nil)
	engine := NewSyncEngine(st, ledger, nil)
	gate := NewPurchaseGate(st, engine, ledger, newMemIdem(), 100, nil)
	return NewMarket(st, engine, gate, &memJournal{}), st
}

func TestMarket_GetSnapshotUnknown(t *testing.T) {
	m, _ := newTestMarket(newFakeLedger(decimal.NewFromInt(1), 1))

	if _, err := m.GetSnapshot("item-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarket_EnsureFreshTracksItem(t *testing.T) {
	m, st := newTestMarket(newFakeLedger(decimal.NewFromFloat(2.5), 10))

	snap, err := m.EnsureFresh(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Inventory != 10 {
		t.Errorf("expected inventory 10, got %d", snap.Inventory)
	}

	tracked := st.Tracked()
	if len(tracked) != 1 || tracked[0] != "item-1" {
		t.Errorf("expected item-1 tracked, got %v", tracked)
	}

	// GetSnapshot now serves instantly
	if _, err := m.GetSnapshot("item-1"); err != nil {
		t.Errorf("expected stored snapshot, got %v", err)
	}
}

func TestMarket_ChangeNotifications(t *testing.T) {
	m, _ := newTestMarket(newFakeLedger(decimal.NewFromInt(4), 2))

	var mu sync.Mutex
	var count int
	m.SubscribeChanges(func(domain.Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	if _, err := m.EnsureFresh(context.Background(), "item-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 change notification, got %d", count)
	}
}
