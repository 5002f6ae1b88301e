package service

import "errors"

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrAlreadyPending   = errors.New("purchase already pending")
	ErrTimeout          = errors.New("ledger timeout")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrNotFound         = errors.New("item not found")
)
