package db

import "time"

type UserRestriction struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	ChatID       int64     `db:"chat_id"`
	RestrictedAt time.Time `db:"restricted_at"`
	ExpiresAt    time.Time `db:"expires_at"`
	Reason       string    `db:"reason"`
}

// Violation is a snapshot of a ledger record.
type Violation struct {
	UserID   int64
	Username string
	Count    int64
}
