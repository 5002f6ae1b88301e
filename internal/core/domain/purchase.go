package domain

import "time"

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusConfirmed PurchaseStatus = "confirmed"
	PurchaseStatusRejected  PurchaseStatus = "rejected"
	PurchaseStatusTimedOut  PurchaseStatus = "timed_out"
)

// Purchase is the journal record of one buy attempt.
type Purchase struct {
	RequestID string
	ItemID    string
	Quantity  int64
	Status    PurchaseStatus
	TxRef     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Confirmation is the ledger's acknowledgement of a settled buy.
type Confirmation struct {
	RequestID string
	ItemID    string
	Quantity  int64
	TxRef     string
}
