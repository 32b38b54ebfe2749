// Package editop implements the data-driven edit-op executor: every
// keybinding, macro step, plugin command, and LSP edit ends up compiling
// an EditOp into an EditPlan and running it through Execute, which owns
// the "compile once, commit once" undo policy. Ported method-for-method
// from the original editor's edit_op_executor.rs compile/execute split.
package editop

import (
	"strings"

	"github.com/shiv248/kolabcore/internal/document"
	"github.com/shiv248/kolabcore/internal/rope"
	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/transaction"
)

// Mode is the editor's modal state, queried and set through the Mode
// capability (spec §6).
type Mode int

const (
	Normal Mode = iota
	Insert
	Select
	Goto
	View
	Command
	PendingInput
)

// Direction is a horizontal motion direction for Extend selection ops.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// PreEffectKind is the closed set of pre-effects (spec §4.E).
type PreEffectKind int

const (
	Yank PreEffectKind = iota
	SaveUndo
	ExtendForwardIfEmpty
)

// PreEffect is a single pre-effect invocation.
type PreEffect struct {
	Kind PreEffectKind
}

// SelectionOpKind is the closed set of selection operations (spec §4.E).
type SelectionOpKind int

const (
	SelNone SelectionOpKind = iota
	SelExtend
	SelToLineStart
	SelToLineEnd
	SelExpandToFullLines
	SelCharBefore
	SelWordBefore
	SelWordAfter
	SelToNextLineStart
	SelPositionAfterCursor
)

// SelectionOp mutates the selection before the text transform runs.
// Direction/Count are only meaningful for SelExtend.
type SelectionOp struct {
	Kind      SelectionOpKind
	Direction Direction
	Count     int
}

// TransformKind is the closed set of text transforms (spec §4.E).
type TransformKind int

const (
	TransformNone TransformKind = iota
	TransformDelete
	TransformReplace
	TransformInsert
	TransformInsertNewlineWithIndent
	TransformMapChars
	TransformReplaceEachChar
	TransformUndo
	TransformRedo
	TransformDeindent
)

// CharMapKind selects the per-rune transform for TransformMapChars.
type CharMapKind int

const (
	MapUpper CharMapKind = iota
	MapLower
	MapSwapCase
)

func (k CharMapKind) apply(r rune) rune {
	switch k {
	case MapUpper:
		return toUpper(r)
	case MapLower:
		return toLower(r)
	case MapSwapCase:
		if isUpper(r) {
			return toLower(r)
		}
		return toUpper(r)
	default:
		return r
	}
}

// TextTransform is the single mutating step of an EditOp. Text/MapKind/
// Char/MaxSpaces are only meaningful for the transform kinds that use
// them.
type TextTransform struct {
	Kind      TransformKind
	Text      string
	MapKind   CharMapKind
	Char      rune
	MaxSpaces int
}

// PostEffectKind is the closed set of post-effects (spec §4.E).
type PostEffectKind int

const (
	PostSetMode PostEffectKind = iota
	PostMoveCursor
)

// CursorAdjust is the closed set of post-transform cursor adjustments.
type CursorAdjust int

const (
	CursorStay CursorAdjust = iota
	CursorUp
)

// PostEffect runs after the transform; it must never itself create a
// history entry.
type PostEffect struct {
	Kind    PostEffectKind
	Mode    Mode
	Adjust  CursorAdjust
	Count   int
}

// EditOp is the data value every mutation compiles from.
type EditOp struct {
	Pre       []PreEffect
	Selection SelectionOp
	Transform TextTransform
	Post      []PostEffect
}

// EditPlan is the compiled form of an EditOp with resolved policies.
type EditPlan struct {
	Op           EditOp
	ModifiesText bool
	UndoPolicy   document.UndoPolicy
	EagerReparse bool
}

// Compile resolves modifies_text, undo_policy, and syntax_policy exactly
// per spec §4.E step 1.
func (op EditOp) Compile() EditPlan {
	modifies := op.Transform.Kind != TransformNone &&
		op.Transform.Kind != TransformUndo &&
		op.Transform.Kind != TransformRedo

	var policy document.UndoPolicy
	eager := false
	switch op.Transform.Kind {
	case TransformInsert, TransformInsertNewlineWithIndent:
		policy = document.UndoMerge
	case TransformUndo, TransformRedo:
		policy = document.UndoNone
		eager = true
	case TransformNone:
		policy = document.UndoNone
	default:
		policy = document.UndoRecord
	}
	return EditPlan{Op: op, ModifiesText: modifies, UndoPolicy: policy, EagerReparse: eager}
}

// Executor runs compiled plans against one document, holding the yank
// register and modal state that are orthogonal to the document itself.
type Executor struct {
	Doc       *document.Document
	mode      Mode
	register  string
	pendingTx *transaction.Transaction
}

// NewExecutor wraps doc for edit-op execution.
func NewExecutor(doc *document.Document) *Executor {
	return &Executor{Doc: doc}
}

func (ex *Executor) Mode() Mode     { return ex.mode }
func (ex *Executor) SetMode(m Mode) { ex.mode = m }

// Execute runs op's compiled plan through the seven-step algorithm of
// spec §4.E. Returns false if the plan was aborted by the read-only gate.
func (ex *Executor) Execute(op EditOp) bool {
	plan := op.Compile()
	return ex.ExecutePlan(plan)
}

// ExecutePlan runs an already-compiled plan. Undo recording happens once
// here, not inside each transform: the plan's net transaction (possibly the
// composition of several sub-transactions, e.g. Replace's delete-then-
// insert) is captured and committed as a single history.Entry, mirroring
// the original executor's "save undo state once at the top, apply every
// sub-step undo-free, commit once" structure.
func (ex *Executor) ExecutePlan(plan EditPlan) bool {
	if plan.ModifiesText && ex.Doc.IsReadOnly() {
		return false
	}

	if plan.UndoPolicy == document.UndoMerge && ex.Doc.CurrentGroupID() == 0 {
		ex.Doc.NewGroupID()
	}

	recordHistory := plan.ModifiesText && plan.UndoPolicy != document.UndoNone
	var before rope.Rope
	var selBefore selection.Selection
	if recordHistory {
		before = ex.Doc.Content()
		selBefore = ex.Doc.Selection()
	}

	for _, pre := range plan.Op.Pre {
		ex.applyPre(pre)
	}

	ex.applySelectionOp(plan.Op.Selection)

	ex.pendingTx = nil
	ex.applyTransform(plan.Op.Transform)

	if recordHistory && ex.pendingTx != nil {
		ex.Doc.RecordHistory(*ex.pendingTx, before, selBefore, ex.Doc.Selection(), plan.UndoPolicy)
	}
	ex.pendingTx = nil

	originalCursor := ex.Doc.Selection().Primary().Head
	for _, post := range plan.Op.Post {
		ex.applyPost(post, originalCursor)
	}
	return true
}

func (ex *Executor) applyPre(pre PreEffect) {
	switch pre.Kind {
	case Yank:
		r := ex.Doc.Content()
		sel := ex.Doc.Selection()
		var sb strings.Builder
		for _, rg := range sel.Ranges() {
			sb.WriteString(r.Slice(rg.Min(), rg.Max()).String())
		}
		ex.register = sb.String()
	case SaveUndo:
		// No-op at this phase: the before-snapshot is captured once at the
		// top of ExecutePlan and committed after the transform runs.
	case ExtendForwardIfEmpty:
		sel := ex.Doc.Selection()
		if sel.Primary().IsEmpty() {
			r := ex.Doc.Content()
			ranges := make([]selection.Range, sel.Len())
			for i, rg := range sel.Ranges() {
				head := rg.Head
				if head < r.LenChars() {
					head++
				}
				ranges[i] = selection.Range{Anchor: rg.Anchor, Head: head}
			}
			ex.Doc.SetSelection(selection.FromRanges(ranges, sel.PrimaryIndex()))
		}
	}
}

// Register returns the last yanked text.
func (ex *Executor) Register() string { return ex.register }

func (ex *Executor) applySelectionOp(op SelectionOp) {
	r := ex.Doc.Content()
	sel := ex.Doc.Selection()

	switch op.Kind {
	case SelNone:
		return

	case SelExtend:
		ranges := make([]selection.Range, sel.Len())
		for i, rg := range sel.Ranges() {
			delta := op.Count
			if op.Direction == Backward {
				delta = -delta
			}
			head := clamp(rg.Head+delta, 0, r.LenChars())
			ranges[i] = selection.Range{Anchor: rg.Anchor, Head: head}
		}
		ex.Doc.SetSelection(selection.FromRanges(ranges, sel.PrimaryIndex()))

	case SelToLineStart:
		ranges := make([]selection.Range, sel.Len())
		for i, rg := range sel.Ranges() {
			line := r.CharToLine(rg.Head)
			start := r.LineToChar(line)
			ranges[i] = selection.Range{Anchor: start, Head: start}
		}
		ex.Doc.SetSelection(selection.FromRanges(ranges, sel.PrimaryIndex()))

	case SelToLineEnd:
		ranges := make([]selection.Range, sel.Len())
		for i, rg := range sel.Ranges() {
			line := r.CharToLine(rg.Head)
			var end int
			if line+1 < r.LenLines() {
				end = r.LineToChar(line+1) - 1
			} else {
				end = r.LenChars()
			}
			ranges[i] = selection.Range{Anchor: end, Head: end}
		}
		ex.Doc.SetSelection(selection.FromRanges(ranges, sel.PrimaryIndex()))

	case SelExpandToFullLines:
		ranges := make([]selection.Range, sel.Len())
		for i, rg := range sel.Ranges() {
			startLine := r.CharToLine(rg.Min())
			endLine := r.CharToLine(rg.Max())
			start := r.LineToChar(startLine)
			var end int
			if endLine+1 < r.LenLines() {
				end = r.LineToChar(endLine + 1)
			} else {
				end = r.LenChars()
			}
			ranges[i] = selection.Range{Anchor: start, Head: end}
		}
		ex.Doc.SetSelection(selection.FromRanges(ranges, sel.PrimaryIndex()))

	case SelCharBefore:
		var ranges []selection.Range
		primaryIdx := 0
		for idx, rg := range sel.Ranges() {
			if rg.Head == 0 {
				continue
			}
			if idx == sel.PrimaryIndex() {
				primaryIdx = len(ranges)
			}
			ranges = append(ranges, selection.Range{Anchor: rg.Head - 1, Head: rg.Head})
		}
		if len(ranges) > 0 {
			ex.Doc.SetSelection(selection.FromRanges(ranges, primaryIdx))
		}

	case SelWordBefore:
		var ranges []selection.Range
		primaryIdx := 0
		for idx, rg := range sel.Ranges() {
			if rg.Head == 0 {
				continue
			}
			if idx == sel.PrimaryIndex() {
				primaryIdx = len(ranges)
			}
			start := r.WordBoundary(rg.Head-1, true)
			ranges = append(ranges, selection.Range{Anchor: start, Head: rg.Head})
		}
		if len(ranges) > 0 {
			ex.Doc.SetSelection(selection.FromRanges(ranges, primaryIdx))
		}

	case SelWordAfter:
		var ranges []selection.Range
		primaryIdx := 0
		length := r.LenChars()
		for idx, rg := range sel.Ranges() {
			if rg.Head >= length {
				continue
			}
			if idx == sel.PrimaryIndex() {
				primaryIdx = len(ranges)
			}
			end := r.WordBoundary(rg.Head+1, false)
			ranges = append(ranges, selection.Range{Anchor: rg.Head, Head: end})
		}
		if len(ranges) > 0 {
			ex.Doc.SetSelection(selection.FromRanges(ranges, primaryIdx))
		}

	case SelToNextLineStart:
		primary := sel.Primary()
		line := r.CharToLine(primary.Head)
		if line+1 < r.LenLines() {
			eol := r.LineToChar(line+1) - 1
			ex.Doc.SetSelection(selection.Single(eol, eol+1))
		}

	case SelPositionAfterCursor:
		ranges := make([]selection.Range, sel.Len())
		length := r.LenChars()
		for i, rg := range sel.Ranges() {
			pos := clamp(rg.Head+1, 0, length)
			ranges[i] = selection.Range{Anchor: pos, Head: pos}
		}
		ex.Doc.SetSelection(selection.FromRanges(ranges, sel.PrimaryIndex()))
	}
}

func (ex *Executor) applyTransform(t TextTransform) {
	switch t.Kind {
	case TransformNone:
		return

	case TransformDelete:
		if ex.Doc.Selection().Primary().IsEmpty() {
			return
		}
		ex.deleteSelection()

	case TransformReplace:
		if !ex.Doc.Selection().Primary().IsEmpty() {
			ex.deleteSelection()
		}
		ex.insertAtSelection(t.Text)

	case TransformInsert:
		ex.insertAtSelection(t.Text)

	case TransformInsertNewlineWithIndent:
		r := ex.Doc.Content()
		cursor := ex.Doc.Selection().Primary().Head
		line := r.CharToLine(cursor)
		indent := leadingWhitespace(r.Line(line))
		ex.insertAtSelection("\n" + indent)

	case TransformMapChars:
		ex.mapCharsTransform(t.MapKind)

	case TransformReplaceEachChar:
		ex.replaceEachCharTransform(t.Char)

	case TransformUndo:
		ex.Doc.Undo()

	case TransformRedo:
		ex.Doc.Redo()

	case TransformDeindent:
		ex.deindentTransform(t.MaxSpaces)
	}
}

// applyNoHistory runs tx against the document without recording any
// history itself, folding it into ex.pendingTx so ExecutePlan can commit
// the whole transform's net effect as a single entry.
func (ex *Executor) applyNoHistory(tx transaction.Transaction, newSel selection.Selection) {
	ex.Doc.ApplyTransactionNoHistory(tx, newSel, document.Typing)
	if ex.pendingTx == nil {
		t := tx
		ex.pendingTx = &t
		return
	}
	if composed, err := transaction.Compose(*ex.pendingTx, tx); err == nil {
		ex.pendingTx = &composed
	}
}

func (ex *Executor) deleteSelection() {
	r := ex.Doc.Content()
	sel := ex.Doc.Selection()
	tx := transaction.Delete(r, sel)
	newSel := tx.MapSelection(sel)
	ex.applyNoHistory(tx, newSel)
}

func (ex *Executor) insertAtSelection(text string) {
	r := ex.Doc.Content()
	sel := ex.Doc.Selection()
	tx := transaction.Insert(r, sel, text, transaction.Collapse)
	newSel := tx.MapSelection(sel)
	ex.applyNoHistory(tx, newSel)
}

func (ex *Executor) mapCharsTransform(kind CharMapKind) {
	r := ex.Doc.Content()
	primary := ex.Doc.Selection().Primary()
	from, to := primary.Min(), primary.Max()
	if from >= to {
		return
	}
	var sb strings.Builder
	for _, ch := range r.Slice(from, to).String() {
		sb.WriteRune(kind.apply(ch))
	}
	ex.deleteSelection()
	ex.insertAtSelection(sb.String())
}

func (ex *Executor) replaceEachCharTransform(ch rune) {
	primary := ex.Doc.Selection().Primary()
	from, to := primary.Min(), primary.Max()
	if from >= to {
		ex.Doc.SetSelection(selection.Single(from, from+1))
		from, to = from, from+1
	}
	replacement := strings.Repeat(string(ch), to-from)
	ex.deleteSelection()
	ex.insertAtSelection(replacement)
}

func (ex *Executor) deindentTransform(maxSpaces int) {
	r := ex.Doc.Content()
	cursor := ex.Doc.Selection().Primary().Head
	line := r.CharToLine(cursor)
	lineStart := r.LineToChar(line)
	lineText := r.Line(line)
	spaces := 0
	for _, c := range lineText {
		if spaces >= maxSpaces || c != ' ' {
			break
		}
		spaces++
	}
	if spaces == 0 {
		return
	}
	ex.Doc.SetSelection(selection.Single(lineStart, lineStart+spaces))
	ex.deleteSelection()
}

func (ex *Executor) applyPost(post PostEffect, originalCursor int) {
	switch post.Kind {
	case PostSetMode:
		ex.mode = post.Mode
	case PostMoveCursor:
		switch post.Adjust {
		case CursorStay:
			length := ex.Doc.Content().LenChars()
			pos := clamp(originalCursor, 0, max(length-1, 0))
			ex.Doc.SetSelection(selection.Point(pos))
		case CursorUp:
			r := ex.Doc.Content()
			sel := ex.Doc.Selection()
			ranges := make([]selection.Range, sel.Len())
			for i, rg := range sel.Ranges() {
				line := r.CharToLine(rg.Head)
				col := rg.Head - r.LineToChar(line)
				newLine := max(line-post.Count, 0)
				newHead := clamp(r.LineToChar(newLine)+col, 0, r.LenChars())
				ranges[i] = selection.Range{Anchor: newHead, Head: newHead}
			}
			ex.Doc.SetSelection(selection.FromRanges(ranges, sel.PrimaryIndex()))
		}
	}
}

func leadingWhitespace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[:i]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
