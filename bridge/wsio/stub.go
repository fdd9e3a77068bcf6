package wsio

import (
	"context"
	"sync/atomic"
	"time"

	"mq2wsbridge/bridge"
)

// stubSendDelay mirrors wshandler.py's STUB_SEND_DELAY: the pause before a
// stubbed send loops a message back to the broker side, simulating network
// latency without a live endpoint.
const stubSendDelay = 100 * time.Millisecond

// Stub is the in-process loopback WebSocket handler used for end-to-end
// testing: every message handed to Forward is echoed back through FromWS
// after stubSendDelay, preserving the order messages were sent in.
type Stub struct {
	counters  *bridge.Counters
	logger    *bridge.Logger
	run       *bridge.RunFlag
	ttlFromWS int

	// FromWS receives each message this stub "sends", after the simulated
	// network delay.
	FromWS bridge.Forwarder

	ready atomic.Bool
}

// Ready reports true as soon as Run has started.
func (s *Stub) Ready() bool { return s.ready.Load() }

// NewStub builds a loopback Handler. FromWS must be set before Run is
// called. ttlFromWS is the message expiration, in milliseconds, used for
// every message this stub loops back through FromWS (ttl_from_ws).
func NewStub(counters *bridge.Counters, logger *bridge.Logger, run *bridge.RunFlag, ttlFromWS int) *Stub {
	return &Stub{counters: counters, logger: logger, run: run, ttlFromWS: ttlFromWS}
}

// Run marks the stub connected and idles, matching run_ws_server_stub's
// one-second-tick loop, until the shared RunFlag is stopped.
func (s *Stub) Run(ctx context.Context) error {
	s.logger.Verbose("stub websocket handler running")
	s.ready.Store(true)
	for s.run.Sleep(time.Second) {
	}
	return nil
}

// Connected reports true once Run has started, until the shared RunFlag is
// stopped, matching the stub's immediate connected=true assignment.
func (s *Stub) Connected() bool { return s.ready.Load() && s.run.Running() }

// Forward simulates sending body to the WebSocket endpoint: after
// stubSendDelay it loops the same bytes back through FromWS, preserving
// send order since the delay runs synchronously within this call.
// ttlMillis is the expiration of the inbound broker-to-WS delivery and has
// no bearing on the return trip; the loopback uses the configured
// ttlFromWS, matching send_message's unconditional self.ttl_from_ws.
func (s *Stub) Forward(body []byte, ttlMillis int) bool {
	if !s.run.Running() {
		return false
	}
	if !s.run.Sleep(stubSendDelay) {
		return false
	}
	s.counters.ToWS.Add(1)
	if s.FromWS != nil {
		s.FromWS.Forward(body, s.ttlFromWS)
	}
	return true
}

// Close is a no-op; the stub holds no external resources.
func (s *Stub) Close() {}
