package domain

import "errors"

// ErrLedgerRejected marks an operation the ledger explicitly refused,
// e.g. insufficient inventory. Adapters wrap it so the core can tell a
// rejection apart from a transport failure.
var ErrLedgerRejected = errors.New("ledger rejected")
