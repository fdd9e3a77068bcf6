package bridge

// Forwarder hands a message from one transport to the other. BrokerHandler
// and the WebSocket handlers (wsio.Handler, wsio.Stub) each hold a Forwarder
// for their counterpart instead
// of a direct reference to it, breaking the cyclic dependency a
// straight-line port of the original's mq_to_ws_method/on_message_handler
// cross-wiring would otherwise require.
type Forwarder interface {
	// Forward delivers body to the other transport. ttlMillis is only
	// meaningful for MQ-bound forwarding (message expiration); WS-bound
	// forwarding ignores it. It reports whether delivery succeeded.
	Forward(body []byte, ttlMillis int) bool
}

// ForwarderFunc adapts a plain function to the Forwarder interface.
type ForwarderFunc func(body []byte, ttlMillis int) bool

func (f ForwarderFunc) Forward(body []byte, ttlMillis int) bool { return f(body, ttlMillis) }
