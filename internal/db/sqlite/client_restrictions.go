package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/enrule/langbot/internal/db"
)

var nowFunc = time.Now

func (c *sqliteClient) AddRestriction(ctx context.Context, restriction *db.UserRestriction) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO user_restrictions (user_id, chat_id, restricted_at, expires_at, reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		restricted_at = excluded.restricted_at,
		expires_at = excluded.expires_at,
		reason = excluded.reason
	`
	_, err := c.db.ExecContext(ctx, query,
		restriction.UserID,
		restriction.ChatID,
		restriction.RestrictedAt.UTC(),
		restriction.ExpiresAt.UTC(),
		restriction.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to add restriction: %w", err)
	}
	return nil
}

func (c *sqliteClient) RemoveRestriction(ctx context.Context, chatID int64, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM user_restrictions WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove restriction: %w", err)
	}
	return nil
}

// GetActiveRestriction returns nil when the user has no unexpired restriction.
func (c *sqliteClient) GetActiveRestriction(ctx context.Context, chatID, userID int64) (*db.UserRestriction, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var restriction db.UserRestriction
	err := c.db.GetContext(ctx, &restriction, `
		SELECT id, user_id, chat_id, restricted_at, expires_at, reason FROM user_restrictions
		WHERE chat_id = ? AND user_id = ? AND expires_at > ?
		ORDER BY restricted_at DESC LIMIT 1
	`, chatID, userID, nowFunc().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restriction: %w", err)
	}
	return &restriction, nil
}

func (c *sqliteClient) ListActiveRestrictions(ctx context.Context, chatID int64) ([]*db.UserRestriction, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var restrictions []*db.UserRestriction
	err := c.db.SelectContext(ctx, &restrictions, `
		SELECT id, user_id, chat_id, restricted_at, expires_at, reason FROM user_restrictions
		WHERE chat_id = ? AND expires_at > ?
		ORDER BY expires_at
	`, chatID, nowFunc().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list restrictions: %w", err)
	}
	return restrictions, nil
}

func (c *sqliteClient) RemoveExpiredRestrictions(ctx context.Context) (int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM user_restrictions WHERE expires_at <= ?`, nowFunc().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to remove expired restrictions: %w", err)
	}
	return res.RowsAffected()
}
