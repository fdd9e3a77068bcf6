package wsio

import (
	"context"
	"sync"
	"testing"
	"time"

	"mq2wsbridge/bridge"
)

func TestStubLoopsMessagesBackInOrder(t *testing.T) {
	counters := &bridge.Counters{}
	run := bridge.NewRunFlag()
	run.Start()
	stub := NewStub(counters, bridge.NewLogger("[test] "), run, 300000)

	var mu sync.Mutex
	var received []string
	stub.FromWS = bridge.ForwarderFunc(func(body []byte, ttl int) bool {
		mu.Lock()
		received = append(received, string(body))
		mu.Unlock()
		return true
	})

	go stub.Run(context.Background())

	for _, msg := range []string{"one", "two", "three"} {
		if !stub.Forward([]byte(msg), 0) {
			t.Fatalf("Forward(%q) returned false", msg)
		}
	}
	run.Stop()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"one", "two", "three"}
	if len(received) != len(want) {
		t.Fatalf("received %v, want %v", received, want)
	}
	for i := range want {
		if received[i] != want[i] {
			t.Fatalf("received[%d] = %q, want %q", i, received[i], want[i])
		}
	}
}

func TestStubForwardFailsAfterStop(t *testing.T) {
	run := bridge.NewRunFlag()
	run.Start()
	stub := NewStub(&bridge.Counters{}, bridge.NewLogger("[test] "), run, 300000)
	run.Stop()

	if stub.Forward([]byte("x"), 0) {
		t.Fatal("expected Forward to fail once RunFlag is stopped")
	}
}

func TestStubConnectedAfterRunStarts(t *testing.T) {
	run := bridge.NewRunFlag()
	run.Start()
	stub := NewStub(&bridge.Counters{}, bridge.NewLogger("[test] "), run, 300000)

	go stub.Run(context.Background())
	deadline := time.Now().Add(time.Second)
	for !stub.Connected() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !stub.Connected() {
		t.Fatal("expected stub to report connected once Run starts")
	}
	run.Stop()
}
