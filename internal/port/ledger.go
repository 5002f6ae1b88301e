package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ndviet/market-gate/internal/core/domain"
)

// LedgerClient is the read/submit side of the external ledger.
type LedgerClient interface {
	// ReadItem fetches the authoritative price and inventory for an item
	ReadItem(ctx context.Context, itemID string) (decimal.Decimal, int64, error)

	// SubmitBuy submits a buy of quantity units; the returned error is
	// ErrLedgerRejected-compatible when the ledger refuses the operation
	SubmitBuy(ctx context.Context, itemID string, quantity int64, requestID string) (domain.Confirmation, error)
}

// LedgerFeed is the ledger's event stream. The returned channel delivers
// event batches in arrival order and is closed when the connection drops;
// resubscribing is the caller's responsibility.
type LedgerFeed interface {
	Subscribe(ctx context.Context, kinds []domain.EventKind) (<-chan []domain.LedgerEvent, error)
}
