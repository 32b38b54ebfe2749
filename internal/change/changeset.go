// Package change implements ChangeSet, the minimal ordered edit script
// applied to a rope.Rope: an ordered, non-overlapping sequence of
// (start, end, replacement?) entries in strictly increasing character
// order.
package change

import (
	"errors"
	"unicode/utf8"

	"github.com/shiv248/kolabcore/internal/rope"
)

// ErrInvalidRange is returned when an entry falls outside the bounds of
// the source rope, or start > end.
var ErrInvalidRange = errors.New("change: invalid range")

// ErrOverlap is returned by Build when entries are not in strictly
// increasing, non-overlapping order. This is always a caller bug.
var ErrOverlap = errors.New("change: overlapping or out-of-order entries")

// Entry is a single (start_char, end_char, replacement?) edit. A nil
// Replacement is a pure delete; Start == End with a non-nil Replacement is
// a pure insert at that point; otherwise it is a replace of [Start, End).
type Entry struct {
	Start       int
	End         int
	Replacement *string
}

func (e Entry) isDelete() bool  { return e.Replacement == nil }
func (e Entry) replLen() int {
	if e.Replacement == nil {
		return 0
	}
	return utf8.RuneCountInString(*e.Replacement)
}

// ChangeSet is an immutable, validated edit script over a document of
// LenBefore characters.
type ChangeSet struct {
	entries   []Entry
	lenBefore int
}

// New validates and wraps entries (already sorted and non-overlapping) as
// a ChangeSet over a document of lenBefore characters.
func New(lenBefore int, entries []Entry) (ChangeSet, error) {
	cursor := 0
	for _, e := range entries {
		if e.Start < 0 || e.End < e.Start || e.End > lenBefore {
			return ChangeSet{}, ErrInvalidRange
		}
		if e.Start < cursor {
			return ChangeSet{}, ErrOverlap
		}
		cursor = e.End
	}
	return ChangeSet{entries: fuse(entries), lenBefore: lenBefore}, nil
}

// MustNew panics on invalid input; reserved for call sites constructing
// entries programmatically where overlap would be a programmer error.
func MustNew(lenBefore int, entries []Entry) ChangeSet {
	cs, err := New(lenBefore, entries)
	if err != nil {
		panic(err)
	}
	return cs
}

// Empty returns a no-op ChangeSet over a document of lenBefore characters.
func Empty(lenBefore int) ChangeSet {
	return ChangeSet{lenBefore: lenBefore}
}

// Entries returns the ordered entry list. Callers must not mutate it.
func (cs ChangeSet) Entries() []Entry { return cs.entries }

// LenBefore is the char length of the document this ChangeSet applies to.
func (cs ChangeSet) LenBefore() int { return cs.lenBefore }

// LenAfter is the char length of the document that results from Apply.
func (cs ChangeSet) LenAfter() int {
	n := cs.lenBefore
	for _, e := range cs.entries {
		n += e.replLen() - (e.End - e.Start)
	}
	return n
}

// IsEmpty reports whether this ChangeSet changes nothing.
func (cs ChangeSet) IsEmpty() bool { return len(cs.entries) == 0 }

// Apply produces the rope that results from applying every entry to r.
// r must have exactly LenBefore() characters.
func (cs ChangeSet) Apply(r rope.Rope) rope.Rope {
	if r.LenChars() != cs.lenBefore {
		panic("change: rope length does not match ChangeSet.LenBefore")
	}
	out := rope.Empty()
	cursor := 0
	for _, e := range cs.entries {
		if e.Start > cursor {
			out = out.Insert(out.LenChars(), r.Slice(cursor, e.Start).String())
		}
		if e.Replacement != nil && *e.Replacement != "" {
			out = out.Insert(out.LenChars(), *e.Replacement)
		}
		cursor = e.End
	}
	if cursor < cs.lenBefore {
		out = out.Insert(out.LenChars(), r.Slice(cursor, cs.lenBefore).String())
	}
	return out
}

// Assoc controls which side of an insertion point an index maps to.
type Assoc int

const (
	// AssocBefore keeps a mapped index before text inserted exactly at it.
	AssocBefore Assoc = iota
	// AssocAfter moves a mapped index past text inserted exactly at it.
	AssocAfter
)

// MapIndex maps a char index in the pre-apply document to its
// corresponding index in the post-apply document.
func (cs ChangeSet) MapIndex(i int, assoc Assoc) int {
	delta := 0
	for _, e := range cs.entries {
		if i < e.Start {
			break
		}
		if i > e.End {
			delta += e.replLen() - (e.End - e.Start)
			continue
		}
		// i falls within [Start, End]: collapse to the edit's boundary.
		if assoc == AssocAfter {
			return e.Start + delta + e.replLen()
		}
		return e.Start + delta
	}
	return i + delta
}

// Invert builds the ChangeSet that undoes cs, given the rope cs applied
// to (i.e. the rope in its pre-apply state).
func (cs ChangeSet) Invert(before rope.Rope) ChangeSet {
	entries := make([]Entry, 0, len(cs.entries))
	delta := 0
	for _, e := range cs.entries {
		newStart := e.Start + delta
		var repl *string
		if e.End > e.Start {
			s := before.Slice(e.Start, e.End).String()
			repl = &s
		}
		newEnd := newStart + e.replLen()
		entries = append(entries, Entry{Start: newStart, End: newEnd, Replacement: repl})
		delta += e.replLen() - (e.End - e.Start)
	}
	return ChangeSet{entries: fuse(entries), lenBefore: cs.LenAfter()}
}

// fuse merges adjacent entries that touch (prev.End == next.Start) into a
// single entry: two contiguous deletes combine their range; a delete
// immediately followed by a zero-length insert at the same point becomes
// a single replace entry; two zero-length inserts at the same point
// concatenate their replacement text.
func fuse(entries []Entry) []Entry {
	if len(entries) == 0 {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	cur := entries[0]
	for _, next := range entries[1:] {
		if next.Start == cur.End {
			merged, ok := tryMerge(cur, next)
			if ok {
				cur = merged
				continue
			}
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return out
}

func tryMerge(a, b Entry) (Entry, bool) {
	aZero := a.Start == a.End
	bZero := b.Start == b.End
	switch {
	case !aZero && !bZero && a.isDelete() && b.isDelete():
		return Entry{Start: a.Start, End: b.End, Replacement: nil}, true
	case !aZero && a.isDelete() && bZero && !b.isDelete():
		return Entry{Start: a.Start, End: a.End, Replacement: b.Replacement}, true
	case aZero && !a.isDelete() && bZero && !b.isDelete():
		s := *a.Replacement + *b.Replacement
		return Entry{Start: a.Start, End: a.Start, Replacement: &s}, true
	default:
		return Entry{}, false
	}
}
