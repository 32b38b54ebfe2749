// Package document implements the Document entity: a rope plus identity,
// version, syntax-dirty flag, and undo/redo history, exposing typed edit
// paths. Mutex-guarded facade shaped after kolabpad's Kolabpad and
// keystorm's Engine: concurrent reads are lock-free via the rope handle's
// snapshot, writes serialize through a single mutex.
package document

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/shiv248/kolabcore/internal/history"
	"github.com/shiv248/kolabcore/internal/rope"
	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/transaction"
)

// ID uniquely identifies a Document across process restarts.
type ID uuid.UUID

// NewID allocates a fresh document identifier.
func NewID() ID { return ID(uuid.New()) }

func (id ID) String() string { return uuid.UUID(id).String() }

// EditSource tags where a transaction came from, driving debounce and
// retention decisions downstream in the syntax manager.
type EditSource int

const (
	Typing EditSource = iota
	History
	Remote
	Internal
)

// UndoPolicy mirrors history.Policy at the Document API boundary so
// callers of ApplyTransaction don't need to import the history package's
// internal Entry shape.
type UndoPolicy = history.Policy

const (
	UndoNone     = history.None
	UndoRecord   = history.Record
	UndoBoundary = history.Boundary
	UndoMerge    = history.Merge
)

// Document is the rope-backed entity described in spec §3/§4.D.
type Document struct {
	id ID

	mu              sync.Mutex
	ropeHandle      *rope.Handle
	version         atomic.Uint64
	syntaxDirty     atomic.Bool
	sel             selection.Selection
	hist            *history.History
	remoteJournal   *history.RemoteJournal
	lastEditSource  atomic.Int32
	readOnly        atomic.Bool
	path            string
	languageHint    string
	groupCounter    uint64
	currentGroupID  uint64
	viewTopLine     int
}

// New creates a Document over the given initial content.
func New(initial string, path, languageHint string) *Document {
	d := &Document{
		id:            NewID(),
		ropeHandle:    rope.NewHandle(rope.New(initial)),
		sel:           selection.Point(0),
		hist:          history.New(),
		remoteJournal: history.NewRemoteJournal(256),
		path:          path,
		languageHint:  languageHint,
	}
	d.lastEditSource.Store(int32(Internal))
	return d
}

func (d *Document) ID() ID      { return d.id }
func (d *Document) Version() uint64 { return d.version.Load() }
func (d *Document) Content() rope.Rope { return d.ropeHandle.Snapshot() }
func (d *Document) IsSyntaxDirty() bool { return d.syntaxDirty.Load() }
func (d *Document) Path() string         { return d.path }
func (d *Document) LanguageHint() string { return d.languageHint }
func (d *Document) LastEditSource() EditSource { return EditSource(d.lastEditSource.Load()) }
func (d *Document) IsReadOnly() bool { return d.readOnly.Load() }
func (d *Document) SetReadOnly(ro bool) { d.readOnly.Store(ro) }

// ClearSyntaxDirty is called by the syntax manager once it has caught up.
func (d *Document) ClearSyntaxDirty() { d.syntaxDirty.Store(false) }

// Selection returns the current selection.
func (d *Document) Selection() selection.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sel
}

// SetSelection replaces the current selection without creating history.
func (d *Document) SetSelection(sel selection.Selection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sel = sel
}

// NewGroupID allocates a fresh history group id, used by the edit-op
// executor to start a new merge session (e.g. on entering Insert mode).
func (d *Document) NewGroupID() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groupCounter++
	d.currentGroupID = d.groupCounter
	return d.currentGroupID
}

// CurrentGroupID returns the active merge group id.
func (d *Document) CurrentGroupID() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentGroupID
}

// ApplyTransaction applies tx to the document. Returns false without any
// mutation if the document is read-only. On success it bumps version,
// marks syntax dirty, records history per policy (unless origin is
// Remote, in which case it is recorded to the remote journal instead),
// and remembers origin as the last edit source.
func (d *Document) ApplyTransaction(tx transaction.Transaction, newSelection selection.Selection, policy UndoPolicy, origin EditSource) bool {
	if d.readOnly.Load() {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.ropeHandle.Snapshot()
	selBefore := d.sel
	after := d.ropeHandle.Apply(func(r rope.Rope) rope.Rope { return tx.Apply(r) })

	d.version.Add(1)
	d.syntaxDirty.Store(true)
	d.lastEditSource.Store(int32(origin))
	d.sel = newSelection

	if origin == Remote {
		d.remoteJournal.Record(history.RemoteEntry{Tx: tx, Seq: d.version.Load()})
		return true
	}

	if policy != history.None {
		inv := tx.Invert(before)
		d.hist.Push(history.Entry{
			Tx:              tx,
			Inverse:         inv,
			SelectionBefore: selBefore,
			SelectionAfter:  newSelection,
			View:            history.ViewSnapshot{PrimaryCursor: newSelection.Primary().Head, TopLine: d.viewTopLine},
			GroupID:         d.currentGroupID,
			Policy:          policy,
		})
	}
	_ = after
	return true
}

// ApplyTransactionNoHistory applies tx like ApplyTransaction but never
// pushes a history.Entry itself, regardless of policy. It exists for
// multi-step edit-op transforms (e.g. Replace's delete-then-insert) that
// must commit exactly one history entry for the whole transform via a
// single RecordHistory call rather than one push per sub-transaction.
func (d *Document) ApplyTransactionNoHistory(tx transaction.Transaction, newSelection selection.Selection, origin EditSource) bool {
	if d.readOnly.Load() {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ropeHandle.Apply(func(r rope.Rope) rope.Rope { return tx.Apply(r) })
	d.version.Add(1)
	d.syntaxDirty.Store(true)
	d.lastEditSource.Store(int32(origin))
	d.sel = newSelection

	if origin == Remote {
		d.remoteJournal.Record(history.RemoteEntry{Tx: tx, Seq: d.version.Load()})
	}
	return true
}

// RecordHistory pushes a single history.Entry for tx, the net effect of one
// or more prior ApplyTransactionNoHistory calls, computing its inverse from
// before — the rope snapshot taken before the first of those sub-
// transactions ran. Callers drive undo recording this way when a single
// edit-op transform internally performs more than one Transaction, so the
// transform still produces exactly one undo step.
func (d *Document) RecordHistory(tx transaction.Transaction, before rope.Rope, selBefore, selAfter selection.Selection, policy UndoPolicy) {
	if policy == history.None {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	inv := tx.Invert(before)
	d.hist.Push(history.Entry{
		Tx:              tx,
		Inverse:         inv,
		SelectionBefore: selBefore,
		SelectionAfter:  selAfter,
		View:            history.ViewSnapshot{PrimaryCursor: selAfter.Primary().Head, TopLine: d.viewTopLine},
		GroupID:         d.currentGroupID,
		Policy:          policy,
	})
}

// SetViewTopLine records the top visible line for the next history entry's
// view snapshot.
func (d *Document) SetViewTopLine(line int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewTopLine = line
}

// CanUndo / CanRedo expose stack depth to collaborators.
func (d *Document) CanUndo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hist.CanUndo()
}

func (d *Document) CanRedo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hist.CanRedo()
}

// Undo pops the top undo entry, applies its inverse with origin=History,
// and restores the recorded selection_before. Returns false if nothing to
// undo.
func (d *Document) Undo() (history.ViewSnapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hist.CanUndo() {
		return history.ViewSnapshot{}, false
	}
	e := d.hist.Undo()
	d.ropeHandle.Apply(func(r rope.Rope) rope.Rope { return e.Inverse.Apply(r) })
	d.version.Add(1)
	d.syntaxDirty.Store(true)
	d.lastEditSource.Store(int32(History))
	d.sel = e.SelectionBefore
	d.viewTopLine = e.View.TopLine
	return e.View, true
}

// Redo pops the top redo entry, re-applies its forward transaction with
// origin=History, and restores the recorded selection_after.
func (d *Document) Redo() (history.ViewSnapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hist.CanRedo() {
		return history.ViewSnapshot{}, false
	}
	e := d.hist.Redo()
	d.ropeHandle.Apply(func(r rope.Rope) rope.Rope { return e.Tx.Apply(r) })
	d.version.Add(1)
	d.syntaxDirty.Store(true)
	d.lastEditSource.Store(int32(History))
	d.sel = e.SelectionAfter
	d.viewTopLine = e.View.TopLine
	return e.View, true
}
