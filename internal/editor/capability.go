package editor

import (
	"github.com/shiv248/kolabcore/internal/document"
	"github.com/shiv248/kolabcore/internal/editop"
	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/transaction"
)

// Mode mirrors editop.Mode at the capability boundary, the way
// document.UndoPolicy mirrors history.Policy, so callers of ModeCap
// don't need to import internal/editop directly.
type Mode = editop.Mode

// Severity categorizes a Messaging notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
	SeveritySuccess
	SeverityDebug
)

// Text is read-only rope access: slice, length, line mapping. Any
// collaborator (plugin, macro, LSP bridge) that only needs to read
// content holds this narrow capability rather than the whole Editor.
type Text interface {
	Slice(docID document.ID, startChar, endChar int) (string, bool)
	Len(docID document.ID) (int, bool)
	LineToChar(docID document.ID, line int) (int, bool)
	CharToLine(docID document.ID, char int) (int, bool)
}

// Cursor reads and sets the primary cursor char index.
type Cursor interface {
	CursorPos(docID document.ID) (int, bool)
	SetCursorPos(docID document.ID, char int) bool
}

// SelectionCap reads and sets the whole selection.
type SelectionCap interface {
	GetSelection(docID document.ID) (selection.Selection, bool)
	SetSelection(docID document.ID, sel selection.Selection) bool
}

// SelectionOps adds the multi-range selection operations.
type SelectionOps interface {
	MergeOverlapping(docID document.ID) bool
	RotateForward(docID document.ID) bool
	RotateBackward(docID document.ID) bool
	SplitOnLines(docID document.ID) bool
	KeepPrimary(docID document.ID) bool
	DropPrimary(docID document.ID) bool
}

// ModeCap queries and sets the editor mode for a document view.
type ModeCap interface {
	GetMode(docID document.ID) (Mode, bool)
	SetMode(docID document.ID, m Mode) bool
}

// Edit submits an EditOp or a raw Transaction.
type Edit interface {
	SubmitOp(docID document.ID, op editop.EditOp) bool
	SubmitTransaction(docID document.ID, tx transaction.Transaction, newSelection selection.Selection, undo document.UndoPolicy, origin document.EditSource) bool
}

// Undo invokes undo/redo at the group level.
type Undo interface {
	Undo(docID document.ID) bool
	Redo(docID document.ID) bool
}

// Messaging emits a categorized notification to the user.
type Messaging interface {
	Notify(severity Severity, message string)
}

// Jump pushes and pops positions on a per-document jump list.
type Jump interface {
	PushJump(docID document.ID, char int) bool
	PopJump(docID document.ID) (int, bool)
}
