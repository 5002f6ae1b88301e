package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndviet/market-gate/internal/core/domain"
)

// MySQLAdapter persists the purchase journal.
//
// Schema:
//
//	CREATE TABLE purchases (
//	    request_id VARCHAR(64)  PRIMARY KEY,
//	    item_id    VARCHAR(128) NOT NULL,
//	    quantity   BIGINT       NOT NULL,
//	    status     VARCHAR(16)  NOT NULL,
//	    tx_ref     VARCHAR(128) NOT NULL DEFAULT '',
//	    created_at DATETIME(3)  NOT NULL,
//	    updated_at DATETIME(3)  NOT NULL,
//	    INDEX idx_purchases_item (item_id, created_at)
//	);
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// Record upserts one buy attempt's outcome. Re-recording the same
// request id only moves the status forward in time.
func (m *MySQLAdapter) Record(ctx context.Context, p domain.Purchase) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO purchases (request_id, item_id, quantity, status, tx_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), tx_ref = VALUES(tx_ref), updated_at = VALUES(updated_at)`,
		p.RequestID, p.ItemID, p.Quantity, p.Status, p.TxRef, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListByItem(ctx context.Context, itemID string, limit int) ([]domain.Purchase, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT request_id, item_id, quantity, status, tx_ref, created_at, updated_at
		FROM purchases WHERE item_id = ?
		ORDER BY created_at DESC LIMIT ?`, itemID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	var out []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.RequestID, &p.ItemID, &p.Quantity, &p.Status, &p.TxRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
