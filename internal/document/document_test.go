package document

import (
	"testing"

	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/transaction"
)

func TestApplyTransactionBumpsVersionAndDirty(t *testing.T) {
	d := New("hello", "", "")
	r := d.Content()
	tx := transaction.Insert(r, selection.Point(5), " world", transaction.Collapse)
	ok := d.ApplyTransaction(tx, *tx.Selection, UndoRecord, Typing)
	if !ok {
		t.Fatalf("ApplyTransaction failed")
	}
	if d.Version() != 1 {
		t.Fatalf("Version = %d, want 1", d.Version())
	}
	if !d.IsSyntaxDirty() {
		t.Fatalf("expected syntax dirty after edit")
	}
	if d.Content().String() != "hello world" {
		t.Fatalf("Content = %q", d.Content().String())
	}
}

func TestReadOnlyRejectsMutation(t *testing.T) {
	d := New("hello", "", "")
	d.SetReadOnly(true)
	r := d.Content()
	tx := transaction.Insert(r, selection.Point(0), "X", transaction.Collapse)
	if d.ApplyTransaction(tx, *tx.Selection, UndoRecord, Typing) {
		t.Fatalf("expected ApplyTransaction to fail on read-only document")
	}
	if d.Content().String() != "hello" {
		t.Fatalf("read-only document was mutated: %q", d.Content().String())
	}
}

func TestUndoRedoRestoresSelection(t *testing.T) {
	d := New("hello", "", "")
	r := d.Content()
	orig := d.Selection()
	tx := transaction.Insert(r, selection.Point(5), " world", transaction.Collapse)
	d.ApplyTransaction(tx, *tx.Selection, UndoRecord, Typing)

	if !d.CanUndo() {
		t.Fatalf("expected undo available")
	}
	d.Undo()
	if d.Content().String() != "hello" {
		t.Fatalf("after undo Content = %q", d.Content().String())
	}
	if d.Selection().Primary() != orig.Primary() {
		t.Fatalf("undo did not restore original selection")
	}

	d.Redo()
	if d.Content().String() != "hello world" {
		t.Fatalf("after redo Content = %q", d.Content().String())
	}
}

func TestRemoteEditBypassesUndoStack(t *testing.T) {
	d := New("hello", "", "")
	r := d.Content()
	tx := transaction.Insert(r, selection.Point(5), "!", transaction.Collapse)
	d.ApplyTransaction(tx, *tx.Selection, UndoRecord, Remote)
	if d.CanUndo() {
		t.Fatalf("remote edit should not populate the user undo stack")
	}
	if d.Content().String() != "hello!" {
		t.Fatalf("Content = %q", d.Content().String())
	}
}
