package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/enrule/langbot/internal/errors"
	"github.com/enrule/langbot/internal/i18n"
)

func (m *Moderator) pardonCommand(ctx context.Context, cmd command) error {
	if cmd.args == "" {
		return m.pardonAll(ctx, cmd)
	}

	handle := strings.Fields(cmd.args)[0]
	userID, found, err := m.ledger.Pardon(ctx, handle)
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return m.respond(ctx, cmd, i18n.Get("Usage: /pardon @username, or /pardon to forgive everyone", cmd.lang))
	}
	if err != nil {
		return err
	}
	if !found {
		return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Unable to find any violations for %s", cmd.lang), handle))
	}

	m.getLogEntry(ctx).WithField("user_id", userID).Info("user pardoned")
	m.release(ctx, cmd.chat.ID, userID)
	return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Pardoned user %s", cmd.lang), handle))
}

func (m *Moderator) pardonAll(ctx context.Context, cmd command) error {
	ids, err := m.ledger.PardonAll(ctx)
	if err != nil {
		return err
	}
	// Muted users whose counters already expired are released too.
	active, err := m.restrictions.ListActiveRestrictions(ctx, cmd.chat.ID)
	if err != nil {
		m.getLogEntry(ctx).WithField("error", err.Error()).Warn("failed to list active restrictions")
	}
	for _, r := range active {
		if !slices.Contains(ids, r.UserID) {
			ids = append(ids, r.UserID)
		}
	}
	m.getLogEntry(ctx).WithField("count", len(ids)).Info("all users pardoned")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.UnrestrictConcurrency)
	for _, userID := range ids {
		g.Go(func() error {
			m.release(gctx, cmd.chat.ID, userID)
			return nil
		})
	}
	_ = g.Wait()

	return m.respond(ctx, cmd, i18n.Get("All violations were pardoned", cmd.lang))
}

// release lifts the restriction of a pardoned user. Failures are logged only:
// the user may have left the chat or never been muted.
func (m *Moderator) release(ctx context.Context, chatID, userID int64) {
	entry := m.getLogEntry(ctx).WithField("user_id", userID)
	if err := m.transport.Unrestrict(ctx, chatID, userID); err != nil {
		entry.WithField("error", err.Error()).Warn("failed to unrestrict user")
	}
	if err := m.restrictions.RemoveRestriction(ctx, chatID, userID); err != nil {
		entry.WithField("error", err.Error()).Warn("failed to remove restriction record")
	}
}
