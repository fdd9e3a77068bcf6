package bridge

import (
	"context"
	"testing"
	"time"
)

// fakeWSHandler is a minimal stand-in for wsio.Handler/wsio.Stub used to
// exercise Supervisor without a real WebSocket or broker connection.
type fakeWSHandler struct {
	ready  bool
	closed bool
	runErr error
	run    *RunFlag
}

func (f *fakeWSHandler) Forward(body []byte, ttl int) bool { return true }
func (f *fakeWSHandler) Ready() bool                        { return f.ready }
func (f *fakeWSHandler) Close()                             { f.closed = true }
func (f *fakeWSHandler) Run(ctx context.Context) error {
	f.ready = true
	for f.run.Running() {
		if !f.run.Sleep(10 * time.Millisecond) {
			break
		}
	}
	return f.runErr
}

func TestSupervisorShutdownStopsRunFlagAndClosesHandlers(t *testing.T) {
	run := NewRunFlag()
	counters := &Counters{}
	logger := NewLogger("[test] ")

	broker := NewBrokerHandler(BrokerSettings{MaxRetries: 1}, counters, logger, run)
	ws := &fakeWSHandler{run: run}
	broker.ToWS = ws

	sup := &Supervisor{
		Settings: DefaultSettings(), Logger: logger, Run: run, Counters: counters,
		Broker: broker, WS: ws, Metrics: nil,
		workerErrs: make(chan error, 3),
	}

	run.Start()
	sup.wg.Add(1)
	go func() {
		defer sup.wg.Done()
		ws.Run(context.Background())
	}()

	// let the fake handler mark itself ready
	deadline := time.Now().Add(time.Second)
	for !ws.Ready() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	sup.Shutdown()

	if run.Running() {
		t.Error("expected RunFlag stopped after Shutdown")
	}
	if !ws.closed {
		t.Error("expected WS handler Close() to be called")
	}
}
