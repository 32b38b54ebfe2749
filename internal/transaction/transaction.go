// Package transaction implements the atomic unit of mutation: a change
// set paired with an optional post-apply selection.
package transaction

import (
	"github.com/shiv248/kolabcore/internal/change"
	"github.com/shiv248/kolabcore/internal/rope"
	"github.com/shiv248/kolabcore/internal/selection"
)

// Transaction is a ChangeSet plus the selection to adopt once it has been
// applied. Selection is nil when the caller wants the selection mapped
// through the ChangeSet instead of replaced outright.
type Transaction struct {
	Changes   change.ChangeSet
	Selection *selection.Selection
}

// Apply applies Changes to r. Pure: r is unchanged and the new rope is
// returned.
func (tx Transaction) Apply(r rope.Rope) rope.Rope {
	return tx.Changes.Apply(r)
}

// MapSelection propagates sel across Changes, honoring Transaction.Selection
// if explicitly set.
func (tx Transaction) MapSelection(sel selection.Selection) selection.Selection {
	if tx.Selection != nil {
		return *tx.Selection
	}
	return sel.Map(tx.Changes)
}

// Invert yields the Transaction that undoes tx, given the rope tx was
// built against (its pre-apply state).
func (tx Transaction) Invert(before rope.Rope) Transaction {
	return Transaction{Changes: tx.Changes.Invert(before)}
}

// Compose merges tx and other (applied to tx's output) into a single
// Transaction over tx's input domain. The resulting Selection is other's,
// since it is the later, more specific intent.
func Compose(tx, other Transaction) (Transaction, error) {
	composed, err := tx.Changes.Compose(other.Changes)
	if err != nil {
		return Transaction{}, err
	}
	sel := other.Selection
	return Transaction{Changes: composed, Selection: sel}, nil
}

// ExtendMode controls how Insert adjusts each selection range.
type ExtendMode int

const (
	// Collapse moves each range's head to a point immediately after the
	// inserted text (the default "typing" behavior).
	Collapse ExtendMode = iota
	// Extend grows the range to cover the inserted text instead.
	Extend
)

// Delete builds a Transaction removing every range of sel from r, one
// change entry per range, collapsing each range to its left edge.
func Delete(r rope.Rope, sel selection.Selection) Transaction {
	entries := make([]change.Entry, 0, sel.Len())
	for _, rg := range sel.Ranges() {
		entries = append(entries, change.Entry{Start: rg.Min(), End: rg.Max(), Replacement: nil})
	}
	cs := change.MustNew(r.LenChars(), entries)
	return Transaction{Changes: cs}
}

// Insert builds a Transaction inserting text at every range's head. In
// Collapse mode the new selection sits immediately after the inserted
// text at each range; in Extend mode each range grows to cover it.
func Insert(r rope.Rope, sel selection.Selection, text string, mode ExtendMode) Transaction {
	entries := make([]change.Entry, 0, sel.Len())
	for _, rg := range sel.Ranges() {
		t := text
		entries = append(entries, change.Entry{Start: rg.Head, End: rg.Head, Replacement: &t})
	}
	cs := change.MustNew(r.LenChars(), entries)

	newRanges := make([]selection.Range, sel.Len())
	for i, rg := range sel.Ranges() {
		anchor := cs.MapIndex(rg.Anchor, change.AssocBefore)
		head := cs.MapIndex(rg.Head, change.AssocAfter)
		switch mode {
		case Extend:
			newRanges[i] = selection.Range{Anchor: anchor, Head: head}
		default:
			newRanges[i] = selection.Range{Anchor: head, Head: head}
		}
	}
	sel2 := selection.FromRanges(newRanges, sel.PrimaryIndex())
	return Transaction{Changes: cs, Selection: &sel2}
}

// Change builds a Transaction from a pre-built, already-ordered entry
// list (the generic constructor for callers that assembled entries
// themselves, e.g. the edit-op executor's Replace transform).
func Change(r rope.Rope, entries []change.Entry) Transaction {
	return Transaction{Changes: change.MustNew(r.LenChars(), entries)}
}
