package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ndviet/market-gate/internal/core/domain"
)

// fakeLedger is a mutex-guarded in-memory ledger. Gates, when set, block
// the corresponding call until the channel is closed.
type fakeLedger struct {
	mu        sync.Mutex
	price     decimal.Decimal
	inventory int64

	readCount  int
	readGate   chan struct{}
	readErr    error
	submitGate chan struct{}
	submitErr  error
}

func newFakeLedger(price decimal.Decimal, inventory int64) *fakeLedger {
	return &fakeLedger{price: price, inventory: inventory}
}

func (f *fakeLedger) ReadItem(ctx context.Context, itemID string) (decimal.Decimal, int64, error) {
	f.mu.Lock()
	f.readCount++
	gate := f.readGate
	err := f.readErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return decimal.Decimal{}, 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.inventory, nil
}

func (f *fakeLedger) SubmitBuy(ctx context.Context, itemID string, quantity int64, requestID string) (domain.Confirmation, error) {
	f.mu.Lock()
	gate := f.submitGate
	err := f.submitErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.Confirmation{}, err
	}

	f.mu.Lock()
	f.inventory -= quantity
	if f.inventory < 0 {
		f.inventory = 0
	}
	f.mu.Unlock()

	return domain.Confirmation{
		RequestID: requestID,
		ItemID:    itemID,
		Quantity:  quantity,
		TxRef:     "tx-" + requestID,
	}, nil
}

func (f *fakeLedger) reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCount
}

func (f *fakeLedger) setState(price decimal.Decimal, inventory int64) {
	f.mu.Lock()
	f.price = price
	f.inventory = inventory
	f.mu.Unlock()
}

func (f *fakeLedger) setReadErr(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

func (f *fakeLedger) setSubmitErr(err error) {
	f.mu.Lock()
	f.submitErr = err
	f.mu.Unlock()
}

// memIdem is an in-memory idempotency store.
type memIdem struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func newMemIdem() *memIdem {
	return &memIdem{claimed: make(map[string]bool)}
}

func (m *memIdem) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

// fakeInvalidator records engine calls for router tests.
type fakeInvalidator struct {
	mu            sync.Mutex
	invalidated   []string
	invalidateAll [][]string
	refreshed     []string
}

func (f *fakeInvalidator) Invalidate(itemID string) {
	f.mu.Lock()
	f.invalidated = append(f.invalidated, itemID)
	f.mu.Unlock()
}

func (f *fakeInvalidator) InvalidateAll(itemIDs []string) {
	f.mu.Lock()
	f.invalidateAll = append(f.invalidateAll, itemIDs)
	f.mu.Unlock()
}

func (f *fakeInvalidator) Refresh(ctx context.Context, itemID string) (domain.Snapshot, error) {
	f.mu.Lock()
	f.refreshed = append(f.refreshed, itemID)
	f.mu.Unlock()
	return domain.Snapshot{ItemID: itemID}, nil
}

func (f *fakeInvalidator) snapshotCalls() (invalidated []string, invalidateAll [][]string, refreshed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...),
		append([][]string(nil), f.invalidateAll...),
		append([]string(nil), f.refreshed...)
}

// fakeFeed hands each new subscription channel to the test through subs.
type fakeFeed struct {
	subs chan chan []domain.LedgerEvent
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(chan chan []domain.LedgerEvent, 4)}
}

func (f *fakeFeed) Subscribe(ctx context.Context, kinds []domain.EventKind) (<-chan []domain.LedgerEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan []domain.LedgerEvent)
	f.subs <- ch
	return ch, nil
}
