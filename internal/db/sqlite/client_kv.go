package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetKV returns the stored setting, or an empty string when the key is unset.
func (c *sqliteClient) GetKV(ctx context.Context, key string) (string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var value string
	err := c.db.GetContext(ctx, &value, `SELECT value FROM kv_store WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (c *sqliteClient) SetKV(ctx context.Context, key string, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	if _, err := c.db.ExecContext(ctx, query, key, value, nowFunc().UTC()); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
