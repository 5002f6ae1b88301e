package port

import (
	"context"

	"github.com/ndviet/market-gate/internal/core/domain"
)

type PurchaseJournal interface {
	// Record persists the outcome of one buy attempt
	Record(ctx context.Context, p domain.Purchase) error

	// ListByItem returns the most recent purchases for an item
	ListByItem(ctx context.Context, itemID string, limit int) ([]domain.Purchase, error)
}
