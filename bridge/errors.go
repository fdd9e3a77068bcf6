package bridge

import "errors"

// Sentinel errors that handlers wrap into the errors they return, marking a
// setup error vs a transport error. The supervisor passes a worker's error on
// unchanged, and cmd/mq2wsbridge exits with status 1 for any of them.
var (
	// ErrSetup indicates a configuration or environment problem that will
	// not resolve itself on retry (bad URL, missing credential, malformed
	// config file).
	ErrSetup = errors.New("mq2wsbridge: setup error")

	// ErrTransport indicates a failure talking to the broker or the
	// WebSocket endpoint that the handler's own retries did not overcome:
	// the connect attempts ran out, or the broker closed the delivery
	// channel. The handler's Run has stopped when it returns this error.
	ErrTransport = errors.New("mq2wsbridge: transport error")

	// ErrShuttingDown is returned by handler operations invoked after Stop
	// has already been requested.
	ErrShuttingDown = errors.New("mq2wsbridge: shutting down")
)
