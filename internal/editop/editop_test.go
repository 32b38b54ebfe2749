package editop

import (
	"testing"

	"github.com/shiv248/kolabcore/internal/document"
	"github.com/shiv248/kolabcore/internal/selection"
)

func TestMultiCursorInsertThenUndo(t *testing.T) {
	doc := document.New("one\ntwo\nthree\n", "", "")
	doc.SetSelection(selection.FromRanges([]selection.Range{{0, 0}, {4, 4}, {8, 8}}, 0))
	ex := NewExecutor(doc)

	op := EditOp{Transform: TextTransform{Kind: TransformInsert, Text: "X"}}
	if !ex.Execute(op) {
		t.Fatalf("Execute returned false")
	}

	if got := doc.Content().String(); got != "Xone\nXtwo\nXthree\n" {
		t.Fatalf("content = %q", got)
	}
	want := []int{1, 6, 11}
	for i, rg := range doc.Selection().Ranges() {
		if rg.Head != want[i] {
			t.Fatalf("range %d head = %d, want %d", i, rg.Head, want[i])
		}
	}
	if !doc.CanUndo() {
		t.Fatalf("expected one undo entry")
	}
	doc.Undo()
	if got := doc.Content().String(); got != "one\ntwo\nthree\n" {
		t.Fatalf("after undo content = %q", got)
	}
}

func TestReplaceProducesOneUndo(t *testing.T) {
	doc := document.New("hello world", "", "")
	doc.SetSelection(selection.Single(6, 11))
	ex := NewExecutor(doc)

	op := EditOp{Transform: TextTransform{Kind: TransformReplace, Text: "WORLD"}}
	ex.Execute(op)

	if got := doc.Content().String(); got != "hello WORLD" {
		t.Fatalf("content = %q", got)
	}
	if doc.CanRedo() {
		t.Fatalf("unexpected redo entries before any undo")
	}
	n := 0
	for doc.CanUndo() {
		doc.Undo()
		n++
	}
	if n != 1 {
		t.Fatalf("undo count = %d, want 1", n)
	}
	if got := doc.Content().String(); got != "hello world" {
		t.Fatalf("after undo content = %q", got)
	}
}

func TestInsertSessionMergesIntoOneEntry(t *testing.T) {
	doc := document.New("", "", "")
	ex := NewExecutor(doc)
	ex.Execute(EditOp{Transform: TextTransform{Kind: TransformInsert, Text: "a"}})
	ex.Execute(EditOp{Transform: TextTransform{Kind: TransformInsert, Text: "b"}})
	ex.Execute(EditOp{Transform: TextTransform{Kind: TransformInsert, Text: "c"}})

	n := 0
	for doc.CanUndo() {
		doc.Undo()
		n++
	}
	if n != 1 {
		t.Fatalf("undo count = %d, want 1 (merged insert session)", n)
	}
}

func TestWordSelectionOps(t *testing.T) {
	doc := document.New("foo bar baz", "", "")
	doc.SetSelection(selection.Point(7))
	ex := NewExecutor(doc)
	ex.applySelectionOp(SelectionOp{Kind: SelWordBefore})
	got := doc.Selection().Primary()
	if got.Min() != 4 || got.Max() != 7 {
		t.Fatalf("SelWordBefore range = %v", got)
	}
}
