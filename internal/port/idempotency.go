package port

import "context"

type IdempotencyStore interface {
	// Claim sets a key exactly once, returns false if already claimed
	Claim(ctx context.Context, key string) (bool, error)
}
