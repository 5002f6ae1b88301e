package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ndviet/market-gate/internal/core/domain"
	"github.com/ndviet/market-gate/internal/core/store"
	"github.com/ndviet/market-gate/internal/port"
)

// refresher is the slice of SyncEngine the gate needs.
type refresher interface {
	Invalidate(itemID string)
	Refresh(ctx context.Context, itemID string) (domain.Snapshot, error)
}

type pendingPurchase struct {
	itemID    string
	quantity  int64
	requestID string
}

// PurchaseGate serializes buys per item: at most one purchase is in
// flight for any item, and a second caller is rejected immediately
// rather than queued. While a buy is pending the store carries an
// optimistic inventory decrement; the ledger's answer always wins,
// either through a forced refresh on confirmation or a rollback on
// rejection and timeout.
type PurchaseGate struct {
	store  *store.Store
	engine refresher
	ledger port.LedgerClient
	idem   port.IdempotencyStore

	mu      sync.Mutex
	pending map[string]pendingPurchase

	records chan domain.Purchase
	log     *zap.Logger
}

func NewPurchaseGate(st *store.Store, engine *SyncEngine, ledger port.LedgerClient, idem port.IdempotencyStore, queueSize int, log *zap.Logger) *PurchaseGate {
	if log == nil {
		log = zap.NewNop()
	}
	return &PurchaseGate{
		store:   st,
		engine:  engine,
		ledger:  ledger,
		idem:    idem,
		pending: make(map[string]pendingPurchase),
		records: make(chan domain.Purchase, queueSize),
		log:     log,
	}
}

// Buy submits a purchase of quantity units. An empty requestID gets a
// generated one; a reused requestID is rejected without touching the
// snapshot.
func (g *PurchaseGate) Buy(ctx context.Context, itemID string, quantity int64, requestID string) (domain.Confirmation, error) {
	if quantity <= 0 {
		return domain.Confirmation{}, ErrInvalidQuantity
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	g.mu.Lock()
	if _, busy := g.pending[itemID]; busy {
		g.mu.Unlock()
		return domain.Confirmation{}, ErrAlreadyPending
	}
	g.pending[itemID] = pendingPurchase{itemID: itemID, quantity: quantity, requestID: requestID}
	g.mu.Unlock()
	defer g.clearPending(itemID)

	// claimed only after the pending guard, so a rejected caller keeps
	// its request id for the retry
	ok, err := g.idem.Claim(ctx, "buy:"+requestID)
	if err != nil {
		return domain.Confirmation{}, fmt.Errorf("idempotency claim: %w", err)
	}
	if !ok {
		return domain.Confirmation{}, ErrDuplicateRequest
	}

	started := time.Now()

	// Optimistic decrement so reads reflect the purchase immediately.
	// The pre-buy snapshot is kept for rollback.
	prebuy, had := g.store.Get(itemID)
	optimisticInstalled := false
	var optimistic domain.Snapshot
	if had {
		inv := prebuy.Inventory - quantity
		if inv < 0 {
			inv = 0
		}
		optimistic, optimisticInstalled = g.store.Apply(itemID, prebuy.Version, prebuy.Price, inv)
	}

	conf, err := g.ledger.SubmitBuy(ctx, itemID, quantity, requestID)
	if err != nil {
		if optimisticInstalled {
			g.rollback(itemID, prebuy, optimistic)
		}
		return domain.Confirmation{}, g.fail(itemID, quantity, requestID, started, err)
	}

	g.confirm(ctx, conf, started)
	return conf, nil
}

// RecordQueue exposes journal records for a write-behind worker.
func (g *PurchaseGate) RecordQueue() <-chan domain.Purchase {
	return g.records
}

// Close closes the record queue. No Buy may be in flight.
func (g *PurchaseGate) Close() {
	close(g.records)
}

// confirm reconciles a ledger confirmation: authoritative numbers
// replace the optimistic guess via a forced refresh. A confirmation
// already seen for this requestID is a no-op.
func (g *PurchaseGate) confirm(ctx context.Context, conf domain.Confirmation, started time.Time) {
	ok, err := g.idem.Claim(ctx, "confirm:"+conf.RequestID)
	if err != nil {
		g.log.Warn("confirmation claim failed", zap.String("request", conf.RequestID), zap.Error(err))
	} else if !ok {
		g.log.Debug("duplicate confirmation ignored", zap.String("request", conf.RequestID))
		return
	}

	if _, err := g.engine.Refresh(ctx, conf.ItemID); err != nil {
		// leave the item stale; the next read reconciles
		g.engine.Invalidate(conf.ItemID)
		g.log.Warn("post-purchase refresh failed", zap.String("item", conf.ItemID), zap.Error(err))
	}

	g.enqueue(domain.Purchase{
		RequestID: conf.RequestID,
		ItemID:    conf.ItemID,
		Quantity:  conf.Quantity,
		Status:    domain.PurchaseStatusConfirmed,
		TxRef:     conf.TxRef,
		CreatedAt: started,
		UpdatedAt: time.Now(),
	})
}

// rollback republishes the pre-buy price and inventory at a new, higher
// version. If something newer than the optimistic snapshot has landed in
// the meantime, the rollback loses last-writer-wins and is dropped: the
// newer data is already authoritative.
func (g *PurchaseGate) rollback(itemID string, prebuy, optimistic domain.Snapshot) {
	if _, ok := g.store.Apply(itemID, optimistic.Version, prebuy.Price, prebuy.Inventory); !ok {
		g.log.Debug("rollback superseded by newer snapshot", zap.String("item", itemID))
	}
}

func (g *PurchaseGate) fail(itemID string, quantity int64, requestID string, started time.Time, cause error) error {
	status := domain.PurchaseStatusRejected
	err := cause

	var ne net.Error
	switch {
	case errors.Is(cause, context.DeadlineExceeded) || (errors.As(cause, &ne) && ne.Timeout()):
		// the ledger operation may still land; a later refresh reconciles
		status = domain.PurchaseStatusTimedOut
		err = fmt.Errorf("%w: %v", ErrTimeout, cause)
	case errors.Is(cause, domain.ErrLedgerRejected):
		status = domain.PurchaseStatusRejected
	default:
		// transport failure, not retried here to avoid double submission
		return fmt.Errorf("submit buy %s: %w", itemID, cause)
	}

	g.enqueue(domain.Purchase{
		RequestID: requestID,
		ItemID:    itemID,
		Quantity:  quantity,
		Status:    status,
		CreatedAt: started,
		UpdatedAt: time.Now(),
	})
	return err
}

func (g *PurchaseGate) enqueue(p domain.Purchase) {
	select {
	case g.records <- p:
	default:
		g.log.Warn("record queue full, journal entry dropped", zap.String("request", p.RequestID))
	}
}

func (g *PurchaseGate) clearPending(itemID string) {
	g.mu.Lock()
	delete(g.pending, itemID)
	g.mu.Unlock()
}
