package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/ndviet/market-gate/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/marketgate?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func testPurchase(itemID string) domain.Purchase {
	now := time.Now().Truncate(time.Millisecond)
	return domain.Purchase{
		RequestID: "test-" + uuid.NewString(),
		ItemID:    itemID,
		Quantity:  2,
		Status:    domain.PurchaseStatusConfirmed,
		TxRef:     "0xabc",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRecord_Insert(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	itemID := "test-item-" + uuid.NewString()
	defer db.ExecContext(ctx, `DELETE FROM purchases WHERE item_id = ?`, itemID)

	p := testPurchase(itemID)
	if err := adapter.Record(ctx, p); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	got, err := adapter.ListByItem(ctx, itemID, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 purchase, got %d", len(got))
	}
	if got[0].RequestID != p.RequestID || got[0].Quantity != 2 {
		t.Errorf("unexpected record: %+v", got[0])
	}
}

func TestRecord_UpsertMovesStatusForward(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	itemID := "test-item-" + uuid.NewString()
	defer db.ExecContext(ctx, `DELETE FROM purchases WHERE item_id = ?`, itemID)

	p := testPurchase(itemID)
	p.Status = domain.PurchaseStatusPending
	if err := adapter.Record(ctx, p); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	p.Status = domain.PurchaseStatusConfirmed
	p.UpdatedAt = p.UpdatedAt.Add(time.Second)
	if err := adapter.Record(ctx, p); err != nil {
		t.Fatalf("re-record failed: %v", err)
	}

	got, err := adapter.ListByItem(ctx, itemID, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected single row after upsert, got %d", len(got))
	}
	if got[0].Status != domain.PurchaseStatusConfirmed {
		t.Errorf("expected confirmed, got %s", got[0].Status)
	}
}

func TestListByItem_LimitAndOrder(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	itemID := "test-item-" + uuid.NewString()
	defer db.ExecContext(ctx, `DELETE FROM purchases WHERE item_id = ?`, itemID)

	base := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		p := testPurchase(itemID)
		p.CreatedAt = base.Add(time.Duration(i) * time.Second)
		p.UpdatedAt = p.CreatedAt
		if err := adapter.Record(ctx, p); err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
	}

	got, err := adapter.ListByItem(ctx, itemID, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 purchases, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Error("expected newest-first ordering")
		}
	}
}
