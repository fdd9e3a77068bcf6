package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// readinessPollInterval and readinessPollMax reproduce the 60x1s startup
// poll mq2wsbridge.py's main() runs before declaring the bridge up.
const (
	readinessPollInterval = time.Second
	readinessPollMax      = 60

	watchInterval = 3 * time.Second
	joinTimeout   = 10 * time.Second
)

// WSHandler is satisfied by both wsio.Handler and wsio.Stub, letting the
// supervisor drive either without importing the wsio package (which itself
// imports bridge for Forwarder/Counters/Logger/RunFlag).
type WSHandler interface {
	Forwarder
	Run(ctx context.Context) error
	Ready() bool
	Close()
}

// Supervisor owns the bridge's lifecycle: it starts the broker handler, the
// WebSocket handler (real or stub), and the metrics reporter as goroutines,
// waits for them to report ready, watches them while running, and tears
// them down in order on shutdown.
type Supervisor struct {
	Settings Settings
	Logger   *Logger
	Run      *RunFlag
	Counters *Counters

	Broker  *BrokerHandler
	WS      WSHandler
	Metrics *MetricsReporter

	wg         sync.WaitGroup
	workerErrs chan error
}

// NewSupervisor wires a Supervisor from already-constructed handlers. The
// caller is responsible for cross-wiring Broker.ToWS and the WS handler's
// FromWS forwarder before calling Start.
func NewSupervisor(settings Settings, logger *Logger, run *RunFlag, counters *Counters, broker *BrokerHandler, ws WSHandler, metrics *MetricsReporter) *Supervisor {
	return &Supervisor{
		Settings: settings, Logger: logger, Run: run, Counters: counters,
		Broker: broker, WS: ws, Metrics: metrics,
		workerErrs: make(chan error, 3),
	}
}

// Start launches every worker goroutine and blocks until each reports
// readiness or the poll budget is exhausted.
func (s *Supervisor) Start(ctx context.Context) error {
	s.Run.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Broker.Run(ctx); err != nil {
			s.workerErrs <- fmt.Errorf("broker handler: %w", err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.WS.Run(ctx); err != nil {
			s.workerErrs <- fmt.Errorf("websocket handler: %w", err)
		}
	}()

	if s.Metrics != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Metrics.Run(ctx)
		}()
	}

	for i := 0; i < readinessPollMax; i++ {
		if s.Broker.Ready() && s.WS.Ready() {
			s.Logger.Verbose("bridge ready after %d poll(s)", i+1)
			return nil
		}
		select {
		case err := <-s.workerErrs:
			return err
		case <-time.After(readinessPollInterval):
		}
	}
	return fmt.Errorf("%w: bridge did not become ready within %ds", ErrSetup, readinessPollMax)
}

// Watch blocks until the shared RunFlag is stopped, a worker reports a
// fatal error, or ctx is canceled, checking worker health every
// watchInterval.
func (s *Supervisor) Watch(ctx context.Context) error {
	for s.Run.Running() {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.workerErrs:
			return err
		case <-time.After(watchInterval):
		}
	}
	return nil
}

// Shutdown stops the shared RunFlag (waking every worker's blocking sleep),
// closes both transport handlers, and waits up to joinTimeout for all
// worker goroutines to exit.
func (s *Supervisor) Shutdown() {
	s.Run.Stop()
	s.Broker.Close()
	s.WS.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.Logger.Verbose("all workers joined cleanly")
	case <-time.After(joinTimeout):
		s.Logger.Warn("shutdown timed out after %s waiting for workers to join", joinTimeout)
	}
}
