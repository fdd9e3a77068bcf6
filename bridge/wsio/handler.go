package wsio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mq2wsbridge/bridge"
)

// Handler is the real WebSocket transport: it dials a signed URL, reads
// inbound frames and forwards them to the broker side via FromWS, and
// accepts outbound frames through Forward (so it can serve as the broker
// handler's ToWS forwarder). Reconnection follows run_ws_server's
// attempt-budget-within-a-time-window policy: once MaxConnectAttempts
// attempts occur inside AttemptWindowSecs, the handler gives up entirely.
type Handler struct {
	settings  bridge.WebSocketSettings
	ttlFromWS int
	signer    *URLSigner
	counters  *bridge.Counters
	logger    *bridge.Logger
	run       *bridge.RunFlag
	dialer    *websocket.Dialer

	// FromWS receives every message read off the WebSocket connection.
	FromWS bridge.Forwarder

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	ready     atomic.Bool
}

// Ready reports whether the handler has connected at least once.
func (h *Handler) Ready() bool { return h.ready.Load() }

// NewHandler builds a Handler. FromWS must be set before Run is called.
// ttlFromWS is the message expiration, in milliseconds, published for every
// inbound WebSocket message forwarded onto the broker side (ttl_from_ws).
func NewHandler(settings bridge.WebSocketSettings, ttlFromWS int, counters *bridge.Counters, logger *bridge.Logger, run *bridge.RunFlag) *Handler {
	return &Handler{
		settings:  settings,
		ttlFromWS: ttlFromWS,
		signer:    NewURLSigner(settings.KeyID, settings.SecretKey, settings.Region),
		counters:  counters,
		logger:    logger,
		run:       run,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (h *Handler) setConnected(v bool) {
	h.mu.Lock()
	h.connected = v
	h.mu.Unlock()
}

// Connected reports whether the handler currently holds a live connection.
func (h *Handler) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected
}

// Run dials, reads, and reconnects until the shared RunFlag is stopped or
// the connect-attempt budget for the current window is exhausted.
// MaxConnectAttempts == 0 permits no attempts at all and fails immediately.
func (h *Handler) Run(ctx context.Context) error {
	if h.settings.MaxConnectAttempts == 0 {
		return fmt.Errorf("%w: max_connect_attempts is 0, no connection attempts permitted",
			bridge.ErrSetup)
	}

	attempts := 0
	windowStart := time.Now()

	for h.run.Running() {
		if time.Since(windowStart) > time.Duration(h.settings.AttemptWindowSecs)*time.Second {
			attempts = 0
			windowStart = time.Now()
		}
		if attempts >= h.settings.MaxConnectAttempts {
			return fmt.Errorf("%w: exceeded %d connect attempts within %ds window",
				bridge.ErrTransport, h.settings.MaxConnectAttempts, h.settings.AttemptWindowSecs)
		}
		attempts++
		h.counters.WSConnectAttempts.Add(1)

		if err := h.connectOnce(ctx); err != nil {
			h.logger.Warn("websocket connect attempt %d failed: %v", attempts, err)
			if !h.run.Sleep(time.Second) {
				return nil
			}
			continue
		}

		h.readLoop()
		h.setConnected(false)
	}
	return nil
}

func (h *Handler) connectOnce(ctx context.Context) error {
	signed, err := h.signer.SignedURL(h.settings.URL, "GET")
	if err != nil {
		return fmt.Errorf("%w: %v", bridge.ErrSetup, err)
	}

	conn, _, err := h.dialer.DialContext(ctx, signed, nil)
	if err != nil {
		return fmt.Errorf("dialing websocket: %w", err)
	}

	h.mu.Lock()
	h.conn = conn
	h.connected = true
	h.mu.Unlock()
	h.ready.Store(true)

	h.logger.Verbose("websocket connected")
	return nil
}

func (h *Handler) readLoop() {
	h.mu.RLock()
	conn := h.conn
	h.mu.RUnlock()
	if conn == nil {
		return
	}

	for h.run.Running() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Warn("websocket read error: %v", err)
			return
		}
		if h.FromWS != nil {
			h.FromWS.Forward(data, h.ttlFromWS)
		}
	}
}

// Forward writes body to the live WebSocket connection. It implements
// bridge.Forwarder so a Handler can serve as BrokerHandler.ToWS. ttlMillis
// is accepted for interface symmetry but has no meaning on the WS side.
func (h *Handler) Forward(body []byte, ttlMillis int) bool {
	if !h.run.Running() {
		return false
	}
	h.mu.RLock()
	conn, connected := h.conn, h.connected
	h.mu.RUnlock()
	if !connected || conn == nil {
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		h.logger.Error("writing websocket message: %v", err)
		return false
	}
	h.counters.ToWS.Add(1)
	return true
}

// Close closes the underlying connection, if any.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		_ = h.conn.Close()
		h.conn = nil
	}
	h.connected = false
}
