package violations

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type restrictionPurger interface {
	RemoveExpiredRestrictions(ctx context.Context) (int64, error)
}

// Sweeper periodically drops expired rows from the restriction log.
// Failures are logged and never leave the sweeper.
type Sweeper struct {
	store    restrictionPurger
	interval time.Duration

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

func NewSweeper(store restrictionPurger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, interval: interval}
}

func (s *Sweeper) getLogEntry() *log.Entry {
	return log.WithField("object", "RestrictionSweeper")
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCancel = cancel

	s.workersWg.Add(1)
	go func() {
		defer s.workersWg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.sweep(runCtx)
			}
		}
	}()

	s.started = true
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.RemoveExpiredRestrictions(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.getLogEntry().WithField("error", err.Error()).Error("failed to remove expired restrictions")
		}
		return
	}
	if n > 0 {
		s.getLogEntry().WithField("removed", n).Debug("expired restrictions removed")
	}
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	if !s.started {
		s.runMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.runCancel
	s.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
