package violations

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/enrule/langbot/internal/errors"
)

const (
	kvKeyMuteEnabled  = "violations:mute_enabled"
	kvKeyMax          = "violations:max"
	kvKeyMuteDuration = "violations:mute_duration"
	kvKeyExpiry       = "violations:expiry"

	DefaultMaxViolations  = 3
	DefaultMuteDuration   = 15 * time.Minute
	DefaultWarningsExpiry = 3 * time.Hour
)

type Settings struct {
	MuteEnabled    bool
	MaxViolations  int64
	MuteDuration   time.Duration
	WarningsExpiry time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MuteEnabled:    true,
		MaxViolations:  DefaultMaxViolations,
		MuteDuration:   DefaultMuteDuration,
		WarningsExpiry: DefaultWarningsExpiry,
	}
}

func (l *Ledger) Settings(ctx context.Context) (Settings, error) {
	var (
		s   Settings
		err error
	)
	if s.MuteEnabled, err = l.MuteEnabled(ctx); err != nil {
		return s, err
	}
	if s.MaxViolations, err = l.MaxViolations(ctx); err != nil {
		return s, err
	}
	if s.MuteDuration, err = l.MuteDuration(ctx); err != nil {
		return s, err
	}
	if s.WarningsExpiry, err = l.WarningsExpiry(ctx); err != nil {
		return s, err
	}
	return s, nil
}

func (l *Ledger) MuteEnabled(ctx context.Context) (bool, error) {
	value, err := l.kv.GetKV(ctx, kvKeyMuteEnabled)
	if err != nil {
		return false, fmt.Errorf("get mute flag: %w", err)
	}
	if value == "" {
		return true, nil
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		l.getLogEntry().WithField("value", value).Warn("malformed mute flag, using default")
		return true, nil
	}
	return enabled, nil
}

func (l *Ledger) SetMuteEnabled(ctx context.Context, enabled bool) error {
	if err := l.kv.SetKV(ctx, kvKeyMuteEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("set mute flag: %w", err)
	}
	return nil
}

// ToggleMute flips the mute flag and returns the new value.
func (l *Ledger) ToggleMute(ctx context.Context) (bool, error) {
	enabled, err := l.MuteEnabled(ctx)
	if err != nil {
		return false, err
	}
	return !enabled, l.SetMuteEnabled(ctx, !enabled)
}

func (l *Ledger) MaxViolations(ctx context.Context) (int64, error) {
	return l.getInt(ctx, kvKeyMax, DefaultMaxViolations, 0)
}

func (l *Ledger) SetMaxViolations(ctx context.Context, n int64) error {
	if n < 0 {
		return errors.Wrap(apperrors.ErrInvalidInput, "maximum number of warnings must be a non-negative integer")
	}
	return l.setInt(ctx, kvKeyMax, n)
}

func (l *Ledger) MuteDuration(ctx context.Context) (time.Duration, error) {
	ms, err := l.getInt(ctx, kvKeyMuteDuration, DefaultMuteDuration.Milliseconds(), 1)
	return time.Duration(ms) * time.Millisecond, err
}

func (l *Ledger) SetMuteDuration(ctx context.Context, d time.Duration) error {
	ms := d.Round(time.Millisecond).Milliseconds()
	if ms <= 0 {
		return errors.Wrap(apperrors.ErrInvalidInput, "mute duration must be positive")
	}
	return l.setInt(ctx, kvKeyMuteDuration, ms)
}

func (l *Ledger) WarningsExpiry(ctx context.Context) (time.Duration, error) {
	ms, err := l.getInt(ctx, kvKeyExpiry, DefaultWarningsExpiry.Milliseconds(), 0)
	return time.Duration(ms) * time.Millisecond, err
}

func (l *Ledger) SetWarningsExpiry(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return errors.Wrap(apperrors.ErrInvalidInput, "warnings expiry must not be negative")
	}
	return l.setInt(ctx, kvKeyExpiry, d.Round(time.Millisecond).Milliseconds())
}

func (l *Ledger) getInt(ctx context.Context, key string, fallback int64, min int64) (int64, error) {
	value, err := l.kv.GetKV(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < min {
		l.getLogEntry().WithField("key", key).WithField("value", value).Warn("malformed setting, using default")
		return fallback, nil
	}
	return n, nil
}

func (l *Ledger) setInt(ctx context.Context, key string, n int64) error {
	if err := l.kv.SetKV(ctx, key, strconv.FormatInt(n, 10)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
