package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersIncrementCounters(t *testing.T) {
	before := testutil.ToFloat64(actionsTotal.WithLabelValues("warn"))
	RecordAction("warn")
	if got := testutil.ToFloat64(actionsTotal.WithLabelValues("warn")); got != before+1 {
		t.Fatalf("actions counter = %v, want %v", got, before+1)
	}

	RecordDecision("bilingual", "match")
	if got := testutil.ToFloat64(decisionsTotal.WithLabelValues("bilingual", "match")); got < 1 {
		t.Fatalf("decision counter not incremented")
	}

	done := StartMessageProcessing()
	done("length")
	if n := testutil.CollectAndCount(messageProcessingDuration); n < 1 {
		t.Fatalf("histogram has no series")
	}
}

func TestServerStartStopWithoutListener(t *testing.T) {
	s := NewServer("")
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, span := Tracer().Start(ctx, "test")
	span.End()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
