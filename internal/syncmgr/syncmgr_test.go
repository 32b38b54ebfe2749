package syncmgr

import (
	"testing"

	"github.com/shiv248/kolabcore/internal/document"
	"github.com/shiv248/kolabcore/internal/rope"
	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/transaction"
)

func sampleTx() transaction.Transaction {
	r := rope.New("hello")
	return transaction.Insert(r, selection.Point(5), "!", transaction.Collapse)
}

func TestOwnerChangedSetsOwnerConfirmRequiredForLocalNewOwner(t *testing.T) {
	m := New()
	uri := "file:///test.go"
	docID := document.NewID()

	m.PrepareOpen(uri, "hello", docID)
	m.HandleOpened(uri, RoleFollower, Epoch(1), Seq(0), nil)

	m.HandleOwnerChanged(uri, Epoch(2), SessionID(1), SessionID(1))

	if !m.IsEditBlocked(uri) {
		t.Fatalf("expected document blocked pending owner confirmation")
	}
	if req := m.PrepareDelta(uri, sampleTx()); req != nil {
		t.Fatalf("expected PrepareDelta to refuse while confirmation is pending")
	}
	needs := m.DrainOwnerConfirmRequests()
	if len(needs) != 1 || needs[0].URI != uri {
		t.Fatalf("DrainOwnerConfirmRequests = %+v, want one entry for %s", needs, uri)
	}
}

func TestConfirmClearsRequiredAndAllowsDelta(t *testing.T) {
	m := New()
	uri := "file:///test.go"
	docID := document.NewID()

	m.PrepareOpen(uri, "hello", docID)
	m.HandleOpened(uri, RoleFollower, Epoch(1), Seq(0), nil)

	m.HandleOwnerChanged(uri, Epoch(2), SessionID(1), SessionID(1))
	m.DrainOwnerConfirmRequests()

	m.HandleOwnerConfirmResult(uri, ConfirmConfirmed, Epoch(2), Seq(0), SessionID(1), SessionID(1))

	if m.IsEditBlocked(uri) {
		t.Fatalf("expected document unblocked after confirmation")
	}
	if req := m.PrepareDelta(uri, sampleTx()); req == nil {
		t.Fatalf("expected PrepareDelta to succeed after confirmation")
	}
}

func TestFollowerDeferEditRequestsOwnership(t *testing.T) {
	m := New()
	uri := "file:///test.go"
	docID := document.NewID()

	m.PrepareOpen(uri, "hello", docID)
	m.HandleOpened(uri, RoleFollower, Epoch(1), Seq(0), nil)

	outcome, req := m.DeferEdit(uri, PendingEdit{Tx: sampleTx(), Undo: document.UndoRecord, Origin: document.Typing})
	if outcome != NeedTakeOwnership {
		t.Fatalf("DeferEdit outcome = %v, want NeedTakeOwnership", outcome)
	}
	if req == nil || req.Kind != RequestTakeOwnership {
		t.Fatalf("expected a TakeOwnership request, got %+v", req)
	}

	outcome2, req2 := m.DeferEdit(uri, PendingEdit{Tx: sampleTx(), Undo: document.UndoRecord, Origin: document.Typing})
	if outcome2 != AlreadyAcquiring || req2 != nil {
		t.Fatalf("second DeferEdit = (%v, %+v), want (AlreadyAcquiring, nil)", outcome2, req2)
	}

	m.HandleOwnerChanged(uri, Epoch(2), SessionID(1), SessionID(1))
	m.HandleOwnerConfirmResult(uri, ConfirmConfirmed, Epoch(2), Seq(0), SessionID(1), SessionID(1))

	replay := m.DrainReplayEdits()
	if len(replay) != 2 {
		t.Fatalf("DrainReplayEdits returned %d edits, want 2", len(replay))
	}
	if replay[0].DocID != docID {
		t.Fatalf("replay edit doc id = %v, want %v", replay[0].DocID, docID)
	}
}

func TestRemoteDeltaSequenceGapForcesResync(t *testing.T) {
	m := New()
	uri := "file:///test.go"
	docID := document.NewID()

	m.PrepareOpen(uri, "hello", docID)
	m.HandleOpened(uri, RoleFollower, Epoch(1), Seq(0), nil)

	if _, ok := m.HandleRemoteDelta(uri, Epoch(1), Seq(3)); ok {
		t.Fatalf("expected a sequence gap to be rejected")
	}
	if !m.NeedsResync(uri) {
		t.Fatalf("expected NeedsResync after a sequence gap")
	}

	reqs := m.DrainResyncRequests()
	if len(reqs) != 1 || reqs[0].Kind != RequestResync {
		t.Fatalf("DrainResyncRequests = %+v, want one Resync request", reqs)
	}
	// Draining again before the resync completes must not re-request.
	if reqs2 := m.DrainResyncRequests(); len(reqs2) != 0 {
		t.Fatalf("expected no duplicate resync requests, got %+v", reqs2)
	}
}
