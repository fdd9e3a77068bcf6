package bridge

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	values map[string]float64
}

func newRecordingSink() *recordingSink { return &recordingSink{values: map[string]float64{}} }

func (s *recordingSink) Put(ctx context.Context, name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

func (s *recordingSink) get(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok
}

func TestMetricsReporterReportsTotalsAndDeltas(t *testing.T) {
	counters := &Counters{}
	counters.ToWS.Add(3)
	counters.FromWS.Add(1)

	sink := newRecordingSink()
	run := NewRunFlag()
	run.Start()

	reporter := NewMetricsReporter(counters, sink, 1, NewLogger("[test] "), run)
	go reporter.Run(context.Background())

	time.Sleep(1200 * time.Millisecond)
	run.Stop()

	if v, ok := sink.get("to_ws_total"); !ok || v != 3 {
		t.Errorf("to_ws_total = %v (ok=%v), want 3", v, ok)
	}
	if v, ok := sink.get("from_ws_total"); !ok || v != 1 {
		t.Errorf("from_ws_total = %v (ok=%v), want 1", v, ok)
	}
	if _, ok := sink.get("mq_connection_attempts_recent"); !ok {
		t.Error("expected mq_connection_attempts_recent to be reported")
	}
}

func TestNullMetricSinkDiscardsSamples(t *testing.T) {
	var sink NullMetricSink
	if err := sink.Put(context.Background(), "x", 1); err != nil {
		t.Fatalf("NullMetricSink.Put returned error: %v", err)
	}
}
