package history

import (
	"testing"

	"github.com/shiv248/kolabcore/internal/rope"
	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/transaction"
)

func makeEntry(r rope.Rope, text string, policy Policy, group uint64) Entry {
	sel := selection.Point(r.LenChars())
	tx := transaction.Insert(r, sel, text, transaction.Collapse)
	applied := tx.Apply(r)
	inv := tx.Invert(r)
	return Entry{
		Tx:              tx,
		Inverse:         inv,
		SelectionBefore: sel,
		SelectionAfter:  *tx.Selection,
		View:            ViewSnapshot{PrimaryCursor: applied.LenChars()},
		GroupID:         group,
		Policy:          policy,
	}
}

func TestRecordAlwaysPushesAndClearsRedo(t *testing.T) {
	h := New()
	r := rope.New("")
	h.Push(makeEntry(r, "a", Record, 1))
	h.redo = append(h.redo, Entry{})
	h.Push(makeEntry(r, "b", Record, 1))
	if h.UndoCount() != 2 {
		t.Fatalf("UndoCount = %d, want 2", h.UndoCount())
	}
	if h.CanRedo() {
		t.Fatalf("redo stack should be cleared by Record")
	}
}

func TestMergeCoalescesSameGroup(t *testing.T) {
	h := New()
	r := rope.New("")
	h.Push(makeEntry(r, "a", Merge, 7))
	after := r.Insert(0, "a")
	h.Push(makeEntry(after, "b", Merge, 7))
	if h.UndoCount() != 1 {
		t.Fatalf("UndoCount = %d, want 1 (merged)", h.UndoCount())
	}
	e := h.Undo()
	applied := e.Tx.Apply(r)
	if applied.String() != "ab" {
		t.Fatalf("merged tx applied = %q, want ab", applied.String())
	}
}

func TestBoundaryStopsMerge(t *testing.T) {
	h := New()
	r := rope.New("")
	h.Push(makeEntry(r, "a", Boundary, 7))
	h.Push(makeEntry(r.Insert(0, "a"), "b", Merge, 7))
	if h.UndoCount() != 2 {
		t.Fatalf("UndoCount = %d, want 2 (boundary blocks merge)", h.UndoCount())
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	h := New()
	r := rope.New("hello")
	e := makeEntry(r, " world", Record, 1)
	h.Push(e)
	applied := e.Tx.Apply(r)

	undone := h.Undo()
	back := undone.Inverse.Apply(applied)
	if back.String() != "hello" {
		t.Fatalf("undo = %q, want hello", back.String())
	}
	if !h.CanRedo() {
		t.Fatalf("expected redo available")
	}
	redone := h.Redo()
	forward := redone.Tx.Apply(back)
	if forward.String() != "hello world" {
		t.Fatalf("redo = %q, want %q", forward.String(), "hello world")
	}
}
