package cooldown

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	apperrors "github.com/enrule/langbot/internal/errors"
	"github.com/enrule/langbot/internal/utils/duration"
)

const (
	MaxDuration     = 3 * time.Hour
	DefaultDuration = 2 * time.Minute

	kvKeyDuration = "cooldown:duration"
)

type settingsStore interface {
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}

// Gate is a single shared throttle. The active window lives in memory, the
// duration is persisted.
type Gate struct {
	store settingsStore
	now   func() time.Time

	mu          sync.Mutex
	activeUntil time.Time
	duration    time.Duration
}

func NewGate(store settingsStore) *Gate {
	return &Gate{
		store:    store,
		now:      time.Now,
		duration: DefaultDuration,
	}
}

func (g *Gate) getLogEntry() *log.Entry {
	return log.WithField("object", "CooldownGate")
}

// Start loads the persisted duration.
func (g *Gate) Start(ctx context.Context) error {
	value, err := g.store.GetKV(ctx, kvKeyDuration)
	if err != nil {
		return fmt.Errorf("load cooldown duration: %w", err)
	}
	if value == "" {
		return nil
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ms < 0 || time.Duration(ms)*time.Millisecond > MaxDuration {
		g.getLogEntry().WithField("value", value).Warn("ignoring malformed cooldown duration")
		return nil
	}
	g.mu.Lock()
	g.duration = time.Duration(ms) * time.Millisecond
	g.mu.Unlock()
	return nil
}

func (g *Gate) Stop(_ context.Context) error {
	return nil
}

func (g *Gate) isCoolingDown(now time.Time) bool {
	return !g.activeUntil.IsZero() && g.activeUntil.After(now)
}

func (g *Gate) IsCoolingDown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isCoolingDown(g.now())
}

// EndTime returns the end of the current or last window.
func (g *Gate) EndTime() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeUntil, !g.activeUntil.IsZero()
}

// Activate opens a new window of the configured duration. A zero duration
// leaves the gate open.
func (g *Gate) Activate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activate(g.now())
}

func (g *Gate) activate(now time.Time) {
	if g.duration == 0 {
		return
	}
	g.activeUntil = now.Add(g.duration)
}

// TryActivate activates the gate unless it is already cooling down and
// reports whether the caller may act.
func (g *Gate) TryActivate() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if g.isCoolingDown(now) {
		return false
	}
	g.activate(now)
	return true
}

func (g *Gate) Duration() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.duration
}

// SetDuration validates and persists d. A running window is shifted by the
// difference between the old and the new duration.
func (g *Gate) SetDuration(ctx context.Context, d time.Duration) error {
	d = d.Round(time.Millisecond)
	if d < 0 || d > MaxDuration {
		return errors.Wrapf(apperrors.ErrInvalidInput, "cooldown must be in range between 0 and %s", duration.String(MaxDuration))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.SetKV(ctx, kvKeyDuration, strconv.FormatInt(d.Milliseconds(), 10)); err != nil {
		return fmt.Errorf("persist cooldown duration: %w", err)
	}
	if g.isCoolingDown(g.now()) {
		g.activeUntil = g.activeUntil.Add(d - g.duration)
	}
	g.duration = d
	return nil
}

// Reset clears the active window and restores the default duration.
func (g *Gate) Reset(ctx context.Context) (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.SetKV(ctx, kvKeyDuration, strconv.FormatInt(DefaultDuration.Milliseconds(), 10)); err != nil {
		return 0, fmt.Errorf("persist cooldown duration: %w", err)
	}
	g.activeUntil = time.Time{}
	g.duration = DefaultDuration
	return DefaultDuration, nil
}
