package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ndviet/market-gate/internal/core/domain"
	"github.com/ndviet/market-gate/internal/core/store"
	"github.com/ndviet/market-gate/internal/port"
)

const (
	resubscribeBaseDelay = time.Second
	resubscribeMaxDelay  = 30 * time.Second
	routerRefreshTimeout = 10 * time.Second
)

// invalidator is the slice of SyncEngine the router needs.
type invalidator interface {
	Invalidate(itemID string)
	InvalidateAll(itemIDs []string)
	Refresh(ctx context.Context, itemID string) (domain.Snapshot, error)
}

// EventRouter consumes the ledger event feed, filters events to tracked
// items, de-duplicates within a batch, and drives targeted refreshes.
// When the subscription drops it resubscribes with capped backoff and
// invalidates every tracked item, assuming events were missed.
type EventRouter struct {
	feed   port.LedgerFeed
	engine invalidator
	store  *store.Store
	log    *zap.Logger
}

func NewEventRouter(feed port.LedgerFeed, engine *SyncEngine, st *store.Store, log *zap.Logger) *EventRouter {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventRouter{feed: feed, engine: engine, store: st, log: log}
}

// Run blocks until ctx is cancelled, maintaining the subscription.
func (r *EventRouter) Run(ctx context.Context) error {
	delay := resubscribeBaseDelay
	connectedBefore := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		events, err := r.feed.Subscribe(ctx, domain.AllEventKinds)
		if err != nil {
			r.log.Warn("ledger feed subscribe failed",
				zap.Error(err),
				zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			if delay *= 2; delay > resubscribeMaxDelay {
				delay = resubscribeMaxDelay
			}
			continue
		}
		delay = resubscribeBaseDelay

		if connectedBefore {
			r.recoverAfterDrop(ctx)
		}
		connectedBefore = true

		for batch := range events {
			r.handleBatch(ctx, batch)
		}
		r.log.Warn("ledger feed dropped, resubscribing")
	}
}

// recoverAfterDrop refreshes every tracked item exactly once. Events
// delivered while disconnected are unrecoverable, so correctness wins
// over the cost of a full sweep.
func (r *EventRouter) recoverAfterDrop(ctx context.Context) {
	tracked := r.store.Tracked()
	r.engine.InvalidateAll(tracked)
	for _, id := range tracked {
		r.refresh(ctx, id)
	}
}

// handleBatch emits at most one invalidation per (item, refresh class)
// pair and refreshes each affected item once, in arrival order.
func (r *EventRouter) handleBatch(ctx context.Context, batch []domain.LedgerEvent) {
	type sigKey struct {
		item  string
		class domain.RefreshClass
	}

	tracked := make(map[string]bool)
	for _, id := range r.store.Tracked() {
		tracked[id] = true
	}

	seen := make(map[sigKey]bool)
	var order []string
	refreshed := make(map[string]bool)

	for _, ev := range batch {
		if !tracked[ev.ItemID] {
			continue
		}
		k := sigKey{ev.ItemID, ev.Kind.Class()}
		if seen[k] {
			continue
		}
		seen[k] = true
		r.engine.Invalidate(ev.ItemID)
		if !refreshed[ev.ItemID] {
			refreshed[ev.ItemID] = true
			order = append(order, ev.ItemID)
		}
	}

	for _, id := range order {
		r.refresh(ctx, id)
	}
}

func (r *EventRouter) refresh(ctx context.Context, itemID string) {
	rctx, cancel := context.WithTimeout(ctx, routerRefreshTimeout)
	defer cancel()
	if _, err := r.engine.Refresh(rctx, itemID); err != nil {
		// item stays invalidated; the next consumer read retries
		r.log.Warn("event-driven refresh failed",
			zap.String("item", itemID),
			zap.Error(err))
	}
}
