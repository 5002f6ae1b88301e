package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is an immutable copy of an item's last-known ledger state.
// Version is a per-item monotonic counter owned by the store; consumers
// always see a consistent price/inventory pair because replacement is a
// single assignment of a new Snapshot value.
type Snapshot struct {
	ItemID    string
	Price     decimal.Decimal
	Inventory int64
	Version   uint64
	SyncedAt  time.Time
}
