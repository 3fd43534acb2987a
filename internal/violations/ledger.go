package violations

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/enrule/langbot/internal/db"
	apperrors "github.com/enrule/langbot/internal/errors"
)

// Registration is the outcome of a registered violation.
type Registration struct {
	Count         int64
	MaxViolations int64
}

func (r Registration) WarningsLeft() int64 {
	return r.MaxViolations - r.Count
}

type Ledger struct {
	store db.ViolationStore
	kv    db.KV
}

func NewLedger(store db.ViolationStore, kv db.KV) *Ledger {
	return &Ledger{store: store, kv: kv}
}

func (l *Ledger) getLogEntry() *log.Entry {
	return log.WithField("object", "ViolationLedger")
}

// Register counts one more violation for the user. The counter and the
// username index share the warnings expiry as TTL.
func (l *Ledger) Register(ctx context.Context, userID int64, username string) (Registration, error) {
	expiry, err := l.WarningsExpiry(ctx)
	if err != nil {
		return Registration{}, err
	}
	count, err := l.store.IncrementViolation(ctx, userID, username, expiry)
	if err != nil {
		return Registration{}, fmt.Errorf("register violation: %w", err)
	}
	maxViolations, err := l.MaxViolations(ctx)
	if err != nil {
		return Registration{}, err
	}
	l.getLogEntry().WithFields(log.Fields{
		"method":  "Register",
		"user_id": userID,
		"count":   count,
		"max":     maxViolations,
	}).Debug("violation registered")
	return Registration{Count: count, MaxViolations: maxViolations}, nil
}

// Count returns the live counter value, zero when absent.
func (l *Ledger) Count(ctx context.Context, userID int64) (int64, error) {
	v, err := l.store.GetViolation(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get violation: %w", err)
	}
	if v == nil {
		return 0, nil
	}
	return v.Count, nil
}

// Pardon accepts either "@username" or a numeric user id. It returns the
// resolved id and whether any record existed.
func (l *Ledger) Pardon(ctx context.Context, handle string) (int64, bool, error) {
	handle = strings.TrimSpace(handle)
	if strings.HasPrefix(handle, "@") {
		userID, err := l.store.ResolveUsername(ctx, handle)
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, fmt.Errorf("resolve %s: %w", handle, err)
		}
		existed, err := l.PardonUser(ctx, userID)
		return userID, existed, err
	}

	userID, err := strconv.ParseInt(handle, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(apperrors.ErrInvalidInput, "bad user handle %q", handle)
	}
	existed, err := l.PardonUser(ctx, userID)
	return userID, existed, err
}

func (l *Ledger) PardonUser(ctx context.Context, userID int64) (bool, error) {
	existed, err := l.store.DeleteViolation(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("pardon %d: %w", userID, err)
	}
	return existed, nil
}

// PardonAll drops every counter and returns the affected user ids.
func (l *Ledger) PardonAll(ctx context.Context) ([]int64, error) {
	ids, err := l.store.DeleteAllViolations(ctx)
	if err != nil {
		return nil, fmt.Errorf("pardon all: %w", err)
	}
	l.getLogEntry().WithField("users", len(ids)).Info("all violations pardoned")
	return ids, nil
}
