package bridge

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestBrokerBackoffSecsCapsAtThirty(t *testing.T) {
	cases := map[int]int{1: 2, 5: 10, 14: 28, 15: 30, 100: 30}
	for attempt, want := range cases {
		if got := brokerBackoffSecs(attempt); got != want {
			t.Errorf("brokerBackoffSecs(%d) = %d, want %d", attempt, got, want)
		}
	}
}

// fakeAcknowledger records which of Ack/Nack/Reject was called so
// handleDelivery's contract can be asserted without a real broker
// connection.
type fakeAcknowledger struct {
	acked    bool
	rejected bool
	requeue  bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error { f.acked = true; return nil }
func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error { return nil }
func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejected, f.requeue = true, requeue
	return nil
}

func newTestBroker() (*BrokerHandler, *RunFlag) {
	run := NewRunFlag()
	run.Start()
	return NewBrokerHandler(BrokerSettings{MaxRetries: 1}, &Counters{}, NewLogger("[test] "), run), run
}

func TestHandleDeliveryRejectsRequeueWhenNotRunning(t *testing.T) {
	b, run := newTestBroker()
	run.Stop()
	ack := &fakeAcknowledger{}
	b.handleDelivery(amqp.Delivery{Acknowledger: ack, Body: []byte("x")})

	if !ack.rejected || !ack.requeue {
		t.Fatalf("expected reject-requeue when not running, got acked=%v rejected=%v requeue=%v", ack.acked, ack.rejected, ack.requeue)
	}
}

func TestHandleDeliveryAcksOnSuccessfulForward(t *testing.T) {
	b, _ := newTestBroker()
	b.ToWS = ForwarderFunc(func(body []byte, ttl int) bool { return true })
	ack := &fakeAcknowledger{}
	b.handleDelivery(amqp.Delivery{Acknowledger: ack, Body: []byte("x")})

	if !ack.acked {
		t.Fatalf("expected ack on successful forward, got acked=%v rejected=%v", ack.acked, ack.rejected)
	}
	if b.counters != nil && b.counters.ToWS.Load() != 0 {
		// ToWS is counted by the WS-side Forward implementation, not here.
		t.Fatalf("handleDelivery must not itself increment ToWS, got %d", b.counters.ToWS.Load())
	}
}

func TestHandleDeliveryRejectsRequeueOnFailedForward(t *testing.T) {
	b, _ := newTestBroker()
	b.ToWS = ForwarderFunc(func(body []byte, ttl int) bool { return false })
	ack := &fakeAcknowledger{}
	b.handleDelivery(amqp.Delivery{Acknowledger: ack, Body: []byte("x")})

	if !ack.rejected || !ack.requeue {
		t.Fatalf("expected reject-requeue on failed forward, got acked=%v rejected=%v requeue=%v", ack.acked, ack.rejected, ack.requeue)
	}
}

func TestHandleDeliveryParsesExpirationAsTTL(t *testing.T) {
	b, _ := newTestBroker()
	var gotTTL int
	b.ToWS = ForwarderFunc(func(body []byte, ttl int) bool { gotTTL = ttl; return true })
	ack := &fakeAcknowledger{}
	b.handleDelivery(amqp.Delivery{Acknowledger: ack, Body: []byte("x"), Expiration: "300000"})

	if gotTTL != 300000 {
		t.Fatalf("expected ttl 300000, got %d", gotTTL)
	}
}
