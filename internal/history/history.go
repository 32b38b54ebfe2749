// Package history implements the append-only, grouped undo/redo journal:
// Record/Boundary/Merge coalescing policies, view snapshots, and redo
// invalidation, modeled on keystorm's Command-based undo/redo (grouped via
// BeginUndoGroup/EndUndoGroup) but data-driven rather than Command-object
// based, per the edit-op executor's "compile once, commit once" contract.
package history

import (
	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/transaction"
)

// Policy selects how a HistoryEntry interacts with the group on top of
// the undo stack.
type Policy int

const (
	// None never touches the stacks (used for Undo/Redo transforms
	// themselves, which must not create new history entries).
	None Policy = iota
	// Record always pushes a new entry and closes any open merge group.
	Record
	// Boundary pushes a new entry marked so the next Merge cannot
	// coalesce across it.
	Boundary
	// Merge coalesces into the top entry if that entry is itself a Merge
	// entry with the same GroupID; otherwise it opens a new group.
	Merge
)

// ViewSnapshot captures what the user was looking at, restored alongside
// the text on undo/redo.
type ViewSnapshot struct {
	PrimaryCursor int
	TopLine       int
}

// Entry is one undo-stack record.
type Entry struct {
	Tx              transaction.Transaction
	Inverse         transaction.Transaction
	SelectionBefore selection.Selection
	SelectionAfter  selection.Selection
	View            ViewSnapshot
	GroupID         uint64
	Boundary        bool
	Policy          Policy
}

// History is the per-document undo/redo journal.
type History struct {
	undo []Entry
	redo []Entry
}

// New returns an empty History.
func New() *History { return &History{} }

// Push records a new entry per its Policy. Record and Boundary always
// clear the redo stack; Merge only does when it opens a fresh group
// (rather than coalescing).
func (h *History) Push(e Entry) {
	switch e.Policy {
	case None:
		return
	case Record:
		h.undo = append(h.undo, e)
		h.redo = h.redo[:0]
	case Boundary:
		e.Boundary = true
		h.undo = append(h.undo, e)
		h.redo = h.redo[:0]
	case Merge:
		if n := len(h.undo); n > 0 {
			top := h.undo[n-1]
			if !top.Boundary && top.Policy == Merge && top.GroupID == e.GroupID {
				merged, err := transaction.Compose(top.Tx, e.Tx)
				if err == nil {
					h.undo[n-1] = Entry{
						Tx:              merged,
						Inverse:         composeInverse(e.Inverse, top.Inverse),
						SelectionBefore: top.SelectionBefore,
						SelectionAfter:  e.SelectionAfter,
						View:            top.View,
						GroupID:         e.GroupID,
						Boundary:        false,
						Policy:          Merge,
					}
					return
				}
			}
		}
		h.undo = append(h.undo, e)
		h.redo = h.redo[:0]
	}
}

// composeInverse composes two inverse transactions in undo order: the
// later edit's inverse must run before the earlier edit's inverse.
func composeInverse(later, earlier transaction.Transaction) transaction.Transaction {
	composed, err := transaction.Compose(later, earlier)
	if err != nil {
		return earlier
	}
	return composed
}

// CanUndo reports whether the undo stack has an entry.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether the redo stack has an entry.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Undo pops the top undo entry, pushes it to redo, and returns it. Panics
// if CanUndo is false; callers must check first.
func (h *History) Undo() Entry {
	n := len(h.undo)
	e := h.undo[n-1]
	h.undo = h.undo[:n-1]
	h.redo = append(h.redo, e)
	return e
}

// Redo pops the top redo entry, pushes it back to undo, and returns it.
func (h *History) Redo() Entry {
	n := len(h.redo)
	e := h.redo[n-1]
	h.redo = h.redo[:n-1]
	h.undo = append(h.undo, e)
	return e
}

// UndoCount and RedoCount expose stack depth for status surfaces.
func (h *History) UndoCount() int { return len(h.undo) }
func (h *History) RedoCount() int { return len(h.redo) }

// Clear drops all history.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}

// RemoteEntry is a remote-origin transaction recorded for resync
// alignment only; it is never surfaced through Undo/Redo (spec §9 Open
// Question, resolved toward the recommended default of a separate
// journal).
type RemoteEntry struct {
	Tx  transaction.Transaction
	Seq uint64
}

// RemoteJournal retains remote transactions for resync bookkeeping,
// bounded to the most recent entries to avoid unbounded growth on a
// long-lived session.
type RemoteJournal struct {
	entries []RemoteEntry
	cap     int
}

// NewRemoteJournal returns a journal retaining at most capacity entries.
func NewRemoteJournal(capacity int) *RemoteJournal {
	return &RemoteJournal{cap: capacity}
}

// Record appends a remote transaction, evicting the oldest entry if the
// journal is at capacity.
func (j *RemoteJournal) Record(e RemoteEntry) {
	j.entries = append(j.entries, e)
	if j.cap > 0 && len(j.entries) > j.cap {
		j.entries = j.entries[len(j.entries)-j.cap:]
	}
}

// Entries returns the retained remote entries, oldest first.
func (j *RemoteJournal) Entries() []RemoteEntry { return j.entries }
