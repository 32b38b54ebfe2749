// Package editor implements the editor coordinator of spec §4.I: the
// surface that owns the document set, the current view/selection/mode
// per document, and routes every edit through the sync gate (H), the
// document (D), and the syntax manager (G). Grounded on kolabpad's
// Kolabpad facade generalized to a multi-document id-map, and on
// keystorm's Engine capability-method grouping for the narrow-interface
// split in capability.go.
package editor

import (
	"sync"

	"github.com/shiv248/kolabcore/internal/document"
	"github.com/shiv248/kolabcore/internal/editop"
	"github.com/shiv248/kolabcore/internal/protocol"
	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/syncmgr"
	"github.com/shiv248/kolabcore/internal/syntax"
	"github.com/shiv248/kolabcore/internal/transaction"
)

var (
	_ Text         = (*Editor)(nil)
	_ Cursor       = (*Editor)(nil)
	_ SelectionCap = (*Editor)(nil)
	_ SelectionOps = (*Editor)(nil)
	_ ModeCap      = (*Editor)(nil)
	_ Edit         = (*Editor)(nil)
	_ Undo         = (*Editor)(nil)
	_ Messaging    = (*Editor)(nil)
	_ Jump         = (*Editor)(nil)
)

type docView struct {
	doc       *document.Document
	executor  *editop.Executor
	mode      editop.Mode
	uri       string
	jumpStack []int
}

// Editor is the coordinator described in spec §4.I.
type Editor struct {
	mu      sync.Mutex
	docs    map[document.ID]*docView
	syntax  *syntax.Manager
	sync    *syncmgr.Manager
	outbox  []syncmgr.PendingRequest
	notices []Notice
}

// Notice is a single Messaging emission, queued for the host UI to drain.
type Notice struct {
	Severity Severity
	Message  string
}

// New constructs an Editor wired to the given syntax and sync managers.
func New(syntaxMgr *syntax.Manager, syncMgr *syncmgr.Manager) *Editor {
	return &Editor{
		docs:   make(map[document.ID]*docView),
		syntax: syntaxMgr,
		sync:   syncMgr,
	}
}

// OpenDocument registers a new document with the coordinator. If uri is
// non-empty, it is also registered with the sync manager via PrepareOpen,
// and the returned request must be sent to the broker transport by the
// caller.
func (ed *Editor) OpenDocument(initial, path, languageHint, uri string) (document.ID, *syncmgr.PendingRequest) {
	doc := document.New(initial, path, languageHint)
	dv := &docView{doc: doc, executor: editop.NewExecutor(doc), mode: editop.Normal}

	ed.mu.Lock()
	ed.docs[doc.ID()] = dv
	ed.mu.Unlock()

	if uri == "" {
		return doc.ID(), nil
	}
	dv.uri = uri
	req := ed.sync.PrepareOpen(uri, initial, doc.ID())
	return doc.ID(), &req
}

// CloseDocument removes a document from the coordinator and, if synced,
// returns the Close request to send.
func (ed *Editor) CloseDocument(docID document.ID) *syncmgr.PendingRequest {
	ed.mu.Lock()
	dv, ok := ed.docs[docID]
	if ok {
		delete(ed.docs, docID)
	}
	ed.mu.Unlock()
	if !ok || dv.uri == "" {
		return nil
	}
	return ed.sync.PrepareClose(dv.uri)
}

func (ed *Editor) view(docID document.ID) (*docView, bool) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	dv, ok := ed.docs[docID]
	return dv, ok
}

// --- Text ---

func (ed *Editor) Slice(docID document.ID, startChar, endChar int) (string, bool) {
	dv, ok := ed.view(docID)
	if !ok {
		return "", false
	}
	return dv.doc.Content().Slice(startChar, endChar).String(), true
}

func (ed *Editor) Len(docID document.ID) (int, bool) {
	dv, ok := ed.view(docID)
	if !ok {
		return 0, false
	}
	return dv.doc.Content().LenChars(), true
}

func (ed *Editor) LineToChar(docID document.ID, line int) (int, bool) {
	dv, ok := ed.view(docID)
	if !ok {
		return 0, false
	}
	return dv.doc.Content().LineToChar(line), true
}

func (ed *Editor) CharToLine(docID document.ID, char int) (int, bool) {
	dv, ok := ed.view(docID)
	if !ok {
		return 0, false
	}
	return dv.doc.Content().CharToLine(char), true
}

// --- Cursor ---

func (ed *Editor) CursorPos(docID document.ID) (int, bool) {
	dv, ok := ed.view(docID)
	if !ok {
		return 0, false
	}
	return dv.doc.Selection().Primary().Head, true
}

func (ed *Editor) SetCursorPos(docID document.ID, char int) bool {
	dv, ok := ed.view(docID)
	if !ok {
		return false
	}
	dv.doc.SetSelection(selection.Point(char))
	return true
}

// --- SelectionCap / SelectionOps ---

func (ed *Editor) GetSelection(docID document.ID) (selection.Selection, bool) {
	dv, ok := ed.view(docID)
	if !ok {
		return selection.Selection{}, false
	}
	return dv.doc.Selection(), true
}

func (ed *Editor) SetSelection(docID document.ID, sel selection.Selection) bool {
	dv, ok := ed.view(docID)
	if !ok {
		return false
	}
	dv.doc.SetSelection(sel)
	return true
}

func (ed *Editor) MergeOverlapping(docID document.ID) bool {
	return ed.mutateSelection(docID, func(s selection.Selection) selection.Selection { return s.MergeOverlapping() })
}

func (ed *Editor) RotateForward(docID document.ID) bool {
	return ed.mutateSelection(docID, func(s selection.Selection) selection.Selection { return s.RotateForward() })
}

func (ed *Editor) RotateBackward(docID document.ID) bool {
	return ed.mutateSelection(docID, func(s selection.Selection) selection.Selection { return s.RotateBackward() })
}

func (ed *Editor) SplitOnLines(docID document.ID) bool {
	dv, ok := ed.view(docID)
	if !ok {
		return false
	}
	dv.doc.SetSelection(dv.doc.Selection().SplitOnLines(dv.doc.Content()))
	return true
}

func (ed *Editor) KeepPrimary(docID document.ID) bool {
	return ed.mutateSelection(docID, func(s selection.Selection) selection.Selection { return s.KeepPrimary() })
}

func (ed *Editor) DropPrimary(docID document.ID) bool {
	return ed.mutateSelection(docID, func(s selection.Selection) selection.Selection { return s.DropPrimary() })
}

func (ed *Editor) mutateSelection(docID document.ID, f func(selection.Selection) selection.Selection) bool {
	dv, ok := ed.view(docID)
	if !ok {
		return false
	}
	dv.doc.SetSelection(f(dv.doc.Selection()))
	return true
}

// --- ModeCap ---

func (ed *Editor) GetMode(docID document.ID) (Mode, bool) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	dv, ok := ed.docs[docID]
	if !ok {
		return editop.Normal, false
	}
	return dv.mode, true
}

// SetMode transitions the document's mode. Leaving Insert mode resets
// the history merge-group id so the next insert session starts fresh,
// per the Insert-session coalescing rule of spec §4.E/§8.
func (ed *Editor) SetMode(docID document.ID, m Mode) bool {
	ed.mu.Lock()
	dv, ok := ed.docs[docID]
	if !ok {
		ed.mu.Unlock()
		return false
	}
	leavingInsert := dv.mode == editop.Insert && m != editop.Insert
	dv.mode = m
	dv.executor.SetMode(m)
	ed.mu.Unlock()

	if leavingInsert {
		dv.doc.NewGroupID()
	}
	return true
}

// --- Edit ---

// SubmitOp compiles and executes op against the document through its
// executor. It does not consult the sync gate and prepares no broker
// request, so an op that changes text on a synced document is applied
// locally without an ownership check; the executor's read-only gate is
// the only guard. When the op changed the document's version, the syntax
// manager is told via NoteEdit (not the incremental path).
func (ed *Editor) SubmitOp(docID document.ID, op editop.EditOp) bool {
	dv, ok := ed.view(docID)
	if !ok {
		return false
	}
	before := dv.doc.Version()
	ok2 := dv.executor.Execute(op)
	if ok2 && dv.doc.Version() != before {
		ed.syntax.NoteEdit(docID, dv.doc.LastEditSource())
	}
	return ok2
}

// SubmitTransaction runs the coordinator's five-step edit path from
// spec §4.I: defer through the sync gate, apply, note the edit for the
// syntax manager, hand any prepared request to the outbox, then drain
// and replay anything the state transition unblocked.
func (ed *Editor) SubmitTransaction(docID document.ID, tx transaction.Transaction, newSelection selection.Selection, undo document.UndoPolicy, origin document.EditSource) bool {
	dv, ok := ed.view(docID)
	if !ok {
		return false
	}

	if dv.uri != "" {
		outcome, req := ed.sync.DeferEdit(dv.uri, syncmgr.PendingEdit{
			Tx: tx, Selection: &newSelection, Undo: undo, Origin: origin,
		})
		if req != nil {
			ed.mu.Lock()
			ed.outbox = append(ed.outbox, *req)
			ed.mu.Unlock()
		}
		if outcome != syncmgr.Allowed && outcome != syncmgr.NotTracked {
			return false
		}
	}

	before := dv.doc.Content()
	if !dv.doc.ApplyTransaction(tx, newSelection, undo, origin) {
		return false
	}
	after := dv.doc.Content()
	ed.syntax.NoteEditIncremental(docID, dv.doc.Version(), before, after, tx.Changes, origin)

	if dv.uri != "" {
		if req := ed.sync.PrepareDelta(dv.uri, tx); req != nil {
			ed.mu.Lock()
			ed.outbox = append(ed.outbox, *req)
			ed.mu.Unlock()
		}
	}

	ed.replayUnblocked()
	return true
}

func (ed *Editor) replayUnblocked() {
	for _, r := range ed.sync.DrainReplayEdits() {
		dv, ok := ed.view(r.DocID)
		if !ok {
			continue
		}
		sel := dv.doc.Selection()
		if r.Selection != nil {
			sel = *r.Selection
		}
		dv.doc.ApplyTransaction(r.Tx, sel, r.Undo, r.Origin)
	}
}

// --- Undo ---

func (ed *Editor) Undo(docID document.ID) bool {
	dv, ok := ed.view(docID)
	if !ok {
		return false
	}
	_, ok2 := dv.doc.Undo()
	if ok2 {
		ed.syntax.NoteEdit(docID, document.History)
	}
	return ok2
}

func (ed *Editor) Redo(docID document.ID) bool {
	dv, ok := ed.view(docID)
	if !ok {
		return false
	}
	_, ok2 := dv.doc.Redo()
	if ok2 {
		ed.syntax.NoteEdit(docID, document.History)
	}
	return ok2
}

// --- Messaging ---

// Notify queues a categorized notification for the host UI to drain via
// DrainNotices. Per spec §7, only document-level unrecoverable errors
// reach here; syntax/sync errors are swallowed and logged by G/H.
func (ed *Editor) Notify(severity Severity, message string) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.notices = append(ed.notices, Notice{Severity: severity, Message: message})
}

// DrainNotices returns and clears all queued notifications.
func (ed *Editor) DrainNotices() []Notice {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	n := ed.notices
	ed.notices = nil
	return n
}

// --- Jump ---

func (ed *Editor) PushJump(docID document.ID, char int) bool {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	dv, ok := ed.docs[docID]
	if !ok {
		return false
	}
	dv.jumpStack = append(dv.jumpStack, char)
	return true
}

func (ed *Editor) PopJump(docID document.ID) (int, bool) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	dv, ok := ed.docs[docID]
	if !ok || len(dv.jumpStack) == 0 {
		return 0, false
	}
	n := len(dv.jumpStack) - 1
	top := dv.jumpStack[n]
	dv.jumpStack = dv.jumpStack[:n]
	return top, true
}

// --- Outbox / Tick ---

// DrainOutbox returns and clears broker requests prepared by the sync
// gate, for the broker transport to actually send.
func (ed *Editor) DrainOutbox() []syncmgr.PendingRequest {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	out := ed.outbox
	ed.outbox = nil
	return out
}

// Tick drains any finished background syntax parses and any owner
// confirmation requests / resync requests the sync manager has queued,
// independent of a particular document being rendered. The editor loop
// calls this on its idle path (spec §5 "parallelism ... completion is
// delivered as a message to the editor loop").
func (ed *Editor) Tick() {
	ed.syntax.DrainFinishedInflight()

	for _, need := range ed.sync.DrainOwnerConfirmRequests() {
		ed.mu.Lock()
		dv, ok := ed.docs[need.DocID]
		var fp uint64
		if ok {
			fp = protocol.Fingerprint(dv.doc.Content().String())
		}
		ed.outbox = append(ed.outbox, syncmgr.PendingRequest{
			Kind:        syncmgr.RequestOwnerConfirm,
			URI:         need.URI,
			Epoch:       need.Epoch,
			Fingerprint: fp,
		})
		ed.mu.Unlock()
	}
	for _, req := range ed.sync.DrainResyncRequests() {
		ed.mu.Lock()
		ed.outbox = append(ed.outbox, req)
		ed.mu.Unlock()
	}
	ed.replayUnblocked()
}
