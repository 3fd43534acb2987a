package db

import (
	"context"
	"time"
)

type KV interface {
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}

type RestrictionLog interface {
	AddRestriction(ctx context.Context, restriction *UserRestriction) error
	RemoveRestriction(ctx context.Context, chatID int64, userID int64) error
	GetActiveRestriction(ctx context.Context, chatID, userID int64) (*UserRestriction, error)
	ListActiveRestrictions(ctx context.Context, chatID int64) ([]*UserRestriction, error)
	RemoveExpiredRestrictions(ctx context.Context) (int64, error)
}

// ViolationStore keeps TTL scoped violation counters together with the
// username to id index.
type ViolationStore interface {
	// IncrementViolation bumps the counter and refreshes the TTL of the
	// counter and its index entries in one atomic step. A zero ttl keeps
	// the records until they are deleted.
	IncrementViolation(ctx context.Context, userID int64, username string, ttl time.Duration) (int64, error)
	GetViolation(ctx context.Context, userID int64) (*Violation, error)
	ResolveUsername(ctx context.Context, username string) (int64, error)
	DeleteViolation(ctx context.Context, userID int64) (bool, error)
	DeleteAllViolations(ctx context.Context) ([]int64, error)
}
