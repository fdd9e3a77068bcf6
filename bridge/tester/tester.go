// Package tester implements bridgetester, a probe client that publishes
// timestamped messages onto the bridge's inbound queue and measures how
// long each takes to round-trip back out the other side.
package tester

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// probeTTLMillis mirrors bridgetester.py's hardcoded self.mq_ttl = 300*1000.
const probeTTLMillis = 300 * 1000

// MsgRecord tracks one probe message's round trip.
type MsgRecord struct {
	ID         string
	SentAt     time.Time
	RecvAt     time.Time
	Reconciled bool
}

// Elapsed returns the round-trip time, or zero if not yet reconciled.
func (m *MsgRecord) Elapsed() time.Duration {
	if !m.Reconciled {
		return 0
	}
	return m.RecvAt.Sub(m.SentAt)
}

// Tester publishes probe messages onto QueueToWS and consumes replies from
// QueueFromWS, tracking which have reconciled.
type Tester struct {
	QueueToWS   string
	QueueFromWS string
	ConsumerTag string

	// Exclusive mode acks every message it sees, even ones it didn't send
	// (claiming the queue for this run). Focused mode instead rejects and
	// requeues messages it didn't send without logging noise about them.
	Exclusive bool
	Focused   bool

	conn *amqp.Connection
	ch   *amqp.Channel
	pid  int

	mu                 sync.Mutex
	records            []*MsgRecord
	byID               map[string]*MsgRecord
	lowestUnreconciled int
	seq                int
}

// New builds a Tester. Call Connect before Send/Consume.
func New(queueToWS, queueFromWS, consumerTag string) *Tester {
	return &Tester{
		QueueToWS:   queueToWS,
		QueueFromWS: queueFromWS,
		ConsumerTag: consumerTag,
		byID:        make(map[string]*MsgRecord),
		pid:         os.Getpid(),
	}
}

// Connect dials the broker and declares both queues idempotently.
func (t *Tester) Connect(url string) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}
	for _, q := range []string{t.QueueToWS, t.QueueFromWS} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("declaring queue %s: %w", q, err)
		}
	}
	t.conn, t.ch = conn, ch
	return nil
}

// Close tears down the broker connection.
func (t *Tester) Close() {
	if t.ch != nil {
		t.ch.Close()
	}
	if t.conn != nil {
		t.conn.Close()
	}
}

// SendProbe publishes a single probe message, formatted as
// bridgetester.py's `Test msg #<n> (<pid>.<MMSS>)`, and records its send
// time. The formatted body itself is the probe's identity: handleReply
// reconciles replies by matching this exact string, the same way
// find_msg compares message bodies.
func (t *Tester) SendProbe() (string, error) {
	t.mu.Lock()
	t.seq++
	n := t.seq
	t.mu.Unlock()

	now := time.Now()
	id := fmt.Sprintf("Test msg #%d (%d.%s)", n, t.pid, now.Format("0405"))

	err := t.ch.PublishWithContext(context.Background(), "", t.QueueToWS, false, false, amqp.Publishing{
		ContentType: "text/plain",
		Expiration:  fmt.Sprintf("%d", probeTTLMillis),
		Body:        []byte(id),
	})
	if err != nil {
		return "", fmt.Errorf("publishing probe: %w", err)
	}

	rec := &MsgRecord{ID: id, SentAt: now}
	t.mu.Lock()
	t.records = append(t.records, rec)
	t.byID[id] = rec
	t.mu.Unlock()
	return id, nil
}

// Consume starts consuming QueueFromWS and reconciles each reply against
// its MsgRecord until ctx is canceled.
func (t *Tester) Consume(ctx context.Context) error {
	deliveries, err := t.ch.Consume(t.QueueFromWS, t.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", t.QueueFromWS, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			t.handleReply(d)
		}
	}
}

// handleReply implements __call__'s reconciliation contract: a reply
// matching a sent probe is acked and marked reconciled; an unmatched
// message is acked in exclusive mode (claiming the queue) or rejected with
// requeue otherwise, whether or not Focused is set.
func (t *Tester) handleReply(d amqp.Delivery) {
	id := string(d.Body)

	t.mu.Lock()
	rec, known := t.byID[id]
	if known {
		rec.RecvAt = time.Now()
		rec.Reconciled = true
	}
	t.mu.Unlock()

	if known {
		_ = d.Ack(false)
		return
	}
	if t.Exclusive {
		_ = d.Ack(false)
		return
	}
	_ = d.Reject(true)
}

// ReconciledCount returns how many probes have round-tripped, advancing a
// cached low-water mark so repeated polls don't rescan the already
// reconciled prefix, following reconciled_msgs_count's lowest_unreconciled
// optimization.
func (t *Tester) ReconciledCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := t.lowestUnreconciled
	prefix := true
	for i := t.lowestUnreconciled; i < len(t.records); i++ {
		if !t.records[i].Reconciled {
			prefix = false
			continue
		}
		count++
		if prefix {
			t.lowestUnreconciled = i + 1
		}
	}
	return count
}

// Records returns a snapshot of every probe sent so far.
func (t *Tester) Records() []*MsgRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*MsgRecord, len(t.records))
	copy(out, t.records)
	return out
}

// UnreconciledIDs returns the IDs of every probe that has not yet
// round-tripped, for bridgetester's unreconciled report file.
func (t *Tester) UnreconciledIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for _, r := range t.records {
		if !r.Reconciled {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
