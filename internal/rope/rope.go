package rope

import (
	"sync"
	"sync/atomic"

	"github.com/clipperhouse/uax29/v2/words"
)

// Rope is a persistent sequence of Unicode scalars addressable by char
// index, line index, and byte index. The zero value is not valid; use New.
//
// Char/line/byte mappings always agree with the UTF-8 encoding of the
// content: LenBytes, LenChars and LenLines are derived from the same
// underlying leaves, never recomputed independently.
type Rope struct {
	root node
}

// New builds a Rope from a string.
func New(s string) Rope {
	return Rope{root: newLeaf(s)}
}

// Empty is the zero-length Rope.
func Empty() Rope { return New("") }

func (r Rope) LenChars() int { return r.root.charLen() }
func (r Rope) LenBytes() int { return r.root.byteLen() }
func (r Rope) LenLines() int { return r.root.nlCount() + 1 }

// String materializes the full content. Callers on a hot path should
// prefer Slice for partial reads.
func (r Rope) String() string { return materialize(r.root) }

// Char returns the rune at char index i.
func (r Rope) Char(i int) rune {
	if i < 0 || i >= r.LenChars() {
		panic("rope: char index out of range")
	}
	return charAt(r.root, i)
}

// Slice returns the sub-rope covering char range [start, end). Cheap:
// shares structure with r wherever the boundary falls inside an existing
// subtree.
func (r Rope) Slice(start, end int) Rope {
	if start < 0 || end > r.LenChars() || start > end {
		panic("rope: slice out of range")
	}
	return Rope{root: sliceNode(r.root, start, end)}
}

// CharToLine returns the 0-indexed line containing char index i.
func (r Rope) CharToLine(i int) int {
	if i < 0 || i > r.LenChars() {
		panic("rope: char index out of range")
	}
	return newlinesBefore(r.root, i)
}

// LineToChar returns the char index of the start of the given 0-indexed
// line. A line past the end of the document clamps to LenChars.
func (r Rope) LineToChar(line int) int {
	if line <= 0 {
		return 0
	}
	return afterNthNewline(r.root, line)
}

// LineToByte returns the byte offset of the start of the given line.
func (r Rope) LineToByte(line int) int {
	return byteOffsetOfChar(r.root, r.LineToChar(line))
}

// Line returns the text of the given 0-indexed line, including its
// trailing newline if the document has one for that line.
func (r Rope) Line(line int) string {
	start := r.LineToChar(line)
	var end int
	if line+1 < r.LenLines() {
		end = r.LineToChar(line + 1)
	} else {
		end = r.LenChars()
	}
	return r.Slice(start, end).String()
}

// Insert returns a new Rope with text inserted at char index at.
func (r Rope) Insert(at int, text string) Rope {
	if at < 0 || at > r.LenChars() {
		panic("rope: insert out of range")
	}
	return Rope{root: insertNode(r.root, at, text)}
}

// Delete returns a new Rope with the char range [start, end) removed.
func (r Rope) Delete(start, end int) Rope {
	if start < 0 || end > r.LenChars() || start > end {
		panic("rope: delete out of range")
	}
	return Rope{root: deleteNode(r.root, start, end)}
}

// Clone is O(1): the underlying tree is immutable, so copying the struct
// is already a cheap structural share.
func (r Rope) Clone() Rope { return r }

// WordBoundary reports the char index of the nearest Unicode Annex #29
// word boundary at or before (before=true) / at or after (before=false)
// char index i. Used by multi-cursor word-motion selection ops.
func (r Rope) WordBoundary(i int, before bool) int {
	text := r.String()
	seg := words.FromString(text)
	boundaries := []int{0}
	byteAcc := 0
	for seg.Next() {
		byteAcc += len(seg.Value())
		boundaries = append(boundaries, byteAcc)
	}
	target := byteOffsetOfChar(r.root, i)
	best := 0
	for _, b := range boundaries {
		if before {
			if b <= target {
				best = b
			} else {
				break
			}
		} else {
			if b >= target {
				best = b
				break
			}
			best = b
		}
	}
	return charIndexOfByte(text, best)
}

func charIndexOfByte(s string, byteIdx int) int {
	n := 0
	for i := range s {
		if i >= byteIdx {
			return n
		}
		n++
	}
	return n
}

// Handle is a thread-safe, lock-free-read wrapper around a Rope, following
// the snapshot/apply pattern: readers take an O(1) wait-free snapshot,
// writers serialize through a mutex for the read-modify-write cycle.
type Handle struct {
	value atomic.Value
	mu    sync.Mutex
}

// NewHandle wraps the given Rope for concurrent access.
func NewHandle(initial Rope) *Handle {
	h := &Handle{}
	h.value.Store(initial)
	return h
}

// Snapshot returns the current Rope. Safe to call from any goroutine
// without synchronization; the returned value never changes underneath
// the caller even if the handle is updated afterward.
func (h *Handle) Snapshot() Rope {
	return h.value.Load().(Rope)
}

// Apply serializes fn against other writers and installs its result.
func (h *Handle) Apply(fn func(Rope) Rope) Rope {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := fn(h.value.Load().(Rope))
	h.value.Store(next)
	return next
}
