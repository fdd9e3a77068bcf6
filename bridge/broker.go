package bridge

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BrokerHandler owns the AMQP 0-9-1 connection: it consumes the
// queue-to-WS queue and forwards each delivery to the WebSocket side via
// ToWS, and it publishes WebSocket-originated messages onto the
// queue-from-WS queue through SendMessageFromWS.
type BrokerHandler struct {
	settings BrokerSettings
	counters *Counters
	logger   *Logger
	run      *RunFlag

	// ToWS is called for every delivery consumed from QueueToWS.
	ToWS Forwarder

	conn  *amqp.Connection
	ch    *amqp.Channel
	ready atomic.Bool
}

// Ready reports whether the handler has finished connecting, declaring its
// queues, and starting its consumer — used by the supervisor's startup
// readiness poll.
func (b *BrokerHandler) Ready() bool { return b.ready.Load() }

// NewBrokerHandler builds a BrokerHandler. ToWS must be set before Run is
// called.
func NewBrokerHandler(settings BrokerSettings, counters *Counters, logger *Logger, run *RunFlag) *BrokerHandler {
	return &BrokerHandler{settings: settings, counters: counters, logger: logger, run: run}
}

// createConnection dials the broker with a backoff capped at 30 seconds,
// matching create_connection's min(attempts*2, 30) policy. It gives up
// after MaxRetries attempts.
func (b *BrokerHandler) createConnection(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= b.settings.MaxRetries; attempt++ {
		if !b.run.Running() {
			return ErrShuttingDown
		}
		b.counters.BrokerConnectAttempts.Add(1)

		conn, err := amqp.DialConfig(b.settings.URL, amqp.Config{Heartbeat: 30 * time.Second})
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr != nil {
				conn.Close()
				lastErr = chErr
			} else {
				b.conn, b.ch = conn, ch
				return nil
			}
		} else {
			lastErr = err
		}

		backoff := brokerBackoffSecs(attempt)
		b.logger.Warn("broker connection attempt %d/%d failed: %v (retrying in %ds)", attempt, b.settings.MaxRetries, lastErr, backoff)
		if !b.run.Sleep(time.Duration(backoff) * time.Second) {
			return ErrShuttingDown
		}
	}
	return fmt.Errorf("%w: exhausted %d connection attempts: %v", ErrTransport, b.settings.MaxRetries, lastErr)
}

// brokerBackoffSecs implements create_connection's min(attempts*2, 30)
// reconnect delay policy.
func brokerBackoffSecs(attempt int) int {
	backoff := attempt * 2
	if backoff > 30 {
		backoff = 30
	}
	return backoff
}

func (b *BrokerHandler) declareQueue(name string) error {
	_, err := b.ch.QueueDeclare(name, true, false, false, false, nil)
	return err
}

// Run establishes the broker connection, declares both queues, and consumes
// QueueToWS until the shared RunFlag is stopped or ctx is canceled. If the
// broker closes the delivery channel, Run returns an ErrTransport error; it
// does not reconnect after that.
func (b *BrokerHandler) Run(ctx context.Context) error {
	if err := b.createConnection(ctx); err != nil {
		return err
	}
	defer b.Close()

	if err := b.declareQueue(b.settings.QueueToWS); err != nil {
		return fmt.Errorf("%w: declaring queue %s: %v", ErrSetup, b.settings.QueueToWS, err)
	}
	if err := b.declareQueue(b.settings.QueueFromWS); err != nil {
		return fmt.Errorf("%w: declaring queue %s: %v", ErrSetup, b.settings.QueueFromWS, err)
	}

	deliveries, err := b.ch.Consume(b.settings.QueueToWS, b.settings.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: consuming from %s: %v", ErrSetup, b.settings.QueueToWS, err)
	}
	b.ready.Store(true)

	for b.run.Running() {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: delivery channel closed", ErrTransport)
			}
			b.handleDelivery(d)
		}
	}
	return nil
}

// handleDelivery implements __call__'s consumer callback contract: reject
// and requeue if the bridge is shutting down, otherwise forward to the
// WebSocket side and ack on success or reject-requeue on failure.
func (b *BrokerHandler) handleDelivery(d amqp.Delivery) {
	if !b.run.Running() {
		_ = d.Reject(true)
		return
	}

	ttl := 0
	if d.Expiration != "" {
		if v, err := strconv.Atoi(d.Expiration); err == nil {
			ttl = v
		}
	}

	if b.ToWS == nil || !b.ToWS.Forward(d.Body, ttl) {
		_ = d.Reject(true)
		return
	}
	if err := d.Ack(false); err != nil {
		b.logger.Error("acking message: %v", err)
	}
}

// SendMessageFromWS publishes a WebSocket-originated message onto
// QueueFromWS, declaring the queue idempotently and setting the same
// content-type/expiration properties send_message uses. It retries on
// transient publish failures with a 1-second pause, bounded by MaxRetries.
func (b *BrokerHandler) SendMessageFromWS(body []byte, ttlMillis int) bool {
	if b.ch == nil {
		return false
	}
	for attempt := 1; attempt <= b.settings.MaxRetries; attempt++ {
		err := b.declareQueue(b.settings.QueueFromWS)
		if err == nil {
			err = b.ch.PublishWithContext(context.Background(), "", b.settings.QueueFromWS, false, false, amqp.Publishing{
				ContentType: "text/plain",
				Expiration:  strconv.Itoa(ttlMillis),
				Body:        body,
			})
		}
		if err == nil {
			b.counters.FromWS.Add(1)
			return true
		}
		b.logger.Warn("publish attempt %d/%d failed: %v", attempt, b.settings.MaxRetries, err)
		if !b.run.Sleep(time.Second) {
			return false
		}
	}
	return false
}

// Close cancels the consumer, then closes the channel and connection, in
// that order, matching mqhandler.py's close().
func (b *BrokerHandler) Close() {
	if b.ch != nil {
		_ = b.ch.Cancel(b.settings.ConsumerTag, false)
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}
