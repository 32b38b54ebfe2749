package transaction

import (
	"testing"

	"github.com/shiv248/kolabcore/internal/rope"
	"github.com/shiv248/kolabcore/internal/selection"
)

func TestInsertMultiCursor(t *testing.T) {
	r := rope.New("one\ntwo\nthree\n")
	sel := selection.FromRanges([]selection.Range{{0, 0}, {4, 4}, {8, 8}}, 0)
	tx := Insert(r, sel, "X", Collapse)
	out := tx.Apply(r)
	if out.String() != "Xone\nXtwo\nXthree\n" {
		t.Fatalf("Apply = %q", out.String())
	}
	newSel := tx.MapSelection(sel)
	want := []int{1, 6, 11}
	for i, rg := range newSel.Ranges() {
		if rg.Head != want[i] {
			t.Fatalf("range %d head = %d, want %d", i, rg.Head, want[i])
		}
	}
}

func TestInvertRoundTrip(t *testing.T) {
	r := rope.New("hello world")
	sel := selection.Single(6, 11)
	del := Delete(r, sel)
	deleted := del.Apply(r)
	ins := Insert(deleted, selection.Point(6), "WORLD", Collapse)
	applied := ins.Apply(deleted)
	if applied.String() != "hello WORLD" {
		t.Fatalf("Apply = %q", applied.String())
	}

	invIns := ins.Invert(deleted)
	back := invIns.Apply(applied)
	if back.String() != deleted.String() {
		t.Fatalf("invert insert = %q, want %q", back.String(), deleted.String())
	}
	invDel := del.Invert(r)
	restored := invDel.Apply(back)
	if restored.String() != r.String() {
		t.Fatalf("invert delete = %q, want %q", restored.String(), r.String())
	}
}

func TestDeleteCollapsesToLeftEdge(t *testing.T) {
	r := rope.New("hello world")
	sel := selection.Single(0, 5)
	tx := Delete(r, sel)
	mapped := tx.MapSelection(sel)
	if mapped.Primary().Head != 0 {
		t.Fatalf("collapsed head = %d, want 0", mapped.Primary().Head)
	}
}
