package editor

import (
	"context"
	"testing"

	"github.com/shiv248/kolabcore/internal/document"
	"github.com/shiv248/kolabcore/internal/editop"
	"github.com/shiv248/kolabcore/internal/rope"
	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/syncmgr"
	"github.com/shiv248/kolabcore/internal/syntax"
	"github.com/shiv248/kolabcore/internal/transaction"
)

type fakeEngine struct{}

func (fakeEngine) Parse(ctx context.Context, text string, opts syntax.OptsKey) (syntax.Tree, error) {
	return syntax.Tree{}, nil
}

func newTestEditor() *Editor {
	sm := syntax.New(syntax.Config{MaxConcurrency: 2}, fakeEngine{})
	return New(sm, syncmgr.New())
}

func content(ed *Editor, id document.ID) rope.Rope {
	dv, _ := ed.view(id)
	return dv.doc.Content()
}

func TestSubmitTransactionUnsyncedDocument(t *testing.T) {
	ed := newTestEditor()
	id, req := ed.OpenDocument("hello", "", "", "")
	if req != nil {
		t.Fatalf("expected no sync request for an unsynced document")
	}

	got, _ := ed.Slice(id, 0, 5)
	if got != "hello" {
		t.Fatalf("Slice = %q", got)
	}

	tx := transaction.Insert(content(ed, id), selection.Point(5), " world", transaction.Collapse)
	if !ed.SubmitTransaction(id, tx, *tx.Selection, document.UndoRecord, document.Typing) {
		t.Fatalf("SubmitTransaction failed")
	}
	got, _ = ed.Slice(id, 0, 11)
	if got != "hello world" {
		t.Fatalf("content after submit = %q", got)
	}
	if !ed.Undo(id) {
		t.Fatalf("Undo failed")
	}
	got, _ = ed.Slice(id, 0, 5)
	if got != "hello" {
		t.Fatalf("content after undo = %q", got)
	}
}

func TestSubmitTransactionDeferredForFollower(t *testing.T) {
	ed := newTestEditor()
	id, openReq := ed.OpenDocument("hello", "", "", "file:///x.go")
	if openReq == nil || openReq.Kind != syncmgr.RequestOpen {
		t.Fatalf("expected an Open request for a synced document")
	}

	ed.sync.HandleOpened("file:///x.go", syncmgr.RoleFollower, syncmgr.Epoch(1), syncmgr.Seq(0), nil)

	tx := transaction.Insert(content(ed, id), selection.Point(5), "!", transaction.Collapse)
	if ed.SubmitTransaction(id, tx, *tx.Selection, document.UndoRecord, document.Typing) {
		t.Fatalf("expected SubmitTransaction to defer for a follower document")
	}
	got, _ := ed.Slice(id, 0, 5)
	if got != "hello" {
		t.Fatalf("follower document should be unmodified until ownership is granted, got %q", got)
	}

	outbox := ed.DrainOutbox()
	found := false
	for _, r := range outbox {
		if r.Kind == syncmgr.RequestTakeOwnership {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a TakeOwnership request in the outbox, got %+v", outbox)
	}
}

func TestModeTransitionOutOfInsertStartsNewGroup(t *testing.T) {
	ed := newTestEditor()
	id, _ := ed.OpenDocument("", "", "", "")

	ed.SetMode(id, editop.Insert)
	before, _ := ed.GetMode(id)
	if before != editop.Insert {
		t.Fatalf("GetMode = %v, want Insert", before)
	}
	dv, _ := ed.view(id)
	groupBefore := dv.doc.CurrentGroupID()

	ed.SetMode(id, editop.Normal)
	after, _ := ed.GetMode(id)
	if after != editop.Normal {
		t.Fatalf("GetMode after transition = %v, want Normal", after)
	}
	if dv.doc.CurrentGroupID() == groupBefore {
		t.Fatalf("leaving Insert mode kept history group %d, want a new group", groupBefore)
	}
}
