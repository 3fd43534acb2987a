package violations

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type purgerStub struct {
	calls atomic.Int32
	err   error
}

func (p *purgerStub) RemoveExpiredRestrictions(_ context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestSweeperRunsAndStops(t *testing.T) {
	t.Parallel()

	store := &purgerStub{err: errors.New("db down")}
	s := NewSweeper(store, 5*time.Millisecond)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for store.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if store.calls.Load() < 3 {
		t.Fatalf("expected the sweeper to keep running after errors, got %d calls", store.calls.Load())
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
