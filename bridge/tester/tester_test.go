package tester

import "testing"

func TestReconciledCountAdvancesLowWaterMark(t *testing.T) {
	tst := New("to", "from", "tester")
	a := &MsgRecord{ID: "a"}
	b := &MsgRecord{ID: "b"}
	c := &MsgRecord{ID: "c"}
	tst.records = []*MsgRecord{a, b, c}
	tst.byID = map[string]*MsgRecord{"a": a, "b": b, "c": c}

	if got := tst.ReconciledCount(); got != 0 {
		t.Fatalf("ReconciledCount() = %d, want 0", got)
	}

	a.Reconciled = true
	b.Reconciled = true
	if got := tst.ReconciledCount(); got != 2 {
		t.Fatalf("ReconciledCount() = %d, want 2", got)
	}
	if tst.lowestUnreconciled != 2 {
		t.Fatalf("lowestUnreconciled = %d, want 2", tst.lowestUnreconciled)
	}

	c.Reconciled = true
	if got := tst.ReconciledCount(); got != 3 {
		t.Fatalf("ReconciledCount() = %d, want 3", got)
	}
}

func TestUnreconciledIDsReturnsOnlyPending(t *testing.T) {
	tst := New("to", "from", "tester")
	a := &MsgRecord{ID: "a", Reconciled: true}
	b := &MsgRecord{ID: "b"}
	tst.records = []*MsgRecord{a, b}

	ids := tst.UnreconciledIDs()
	if len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("UnreconciledIDs() = %v, want [b]", ids)
	}
}

func TestHandleReplyReconcilesKnownMessage(t *testing.T) {
	tst := New("to", "from", "tester")
	rec := &MsgRecord{ID: "known"}
	tst.records = []*MsgRecord{rec}
	tst.byID = map[string]*MsgRecord{"known": rec}

	tst.handleReply(fakeDelivery("known"))

	if !rec.Reconciled {
		t.Fatal("expected known message to be reconciled")
	}
}
