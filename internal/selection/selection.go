// Package selection implements the ordered multi-range selection model:
// a sequence of half-open [anchor, head) char ranges plus a designated
// primary index.
package selection

import (
	"sort"

	"github.com/shiv248/kolabcore/internal/change"
	"github.com/shiv248/kolabcore/internal/rope"
)

// Range is a half-open [Anchor, Head) pair of char indices with a stable
// direction: Anchor is where the selection started, Head is where the
// cursor currently sits.
type Range struct {
	Anchor int
	Head   int
}

// Min is the lower bound of the range.
func (r Range) Min() int {
	if r.Anchor < r.Head {
		return r.Anchor
	}
	return r.Head
}

// Max is the upper bound of the range.
func (r Range) Max() int {
	if r.Anchor > r.Head {
		return r.Anchor
	}
	return r.Head
}

// IsEmpty reports a zero-width range (a plain cursor).
func (r Range) IsEmpty() bool { return r.Anchor == r.Head }

// Selection is a non-empty, ordered sequence of Ranges with one marked as
// primary.
type Selection struct {
	ranges  []Range
	primary int
}

// Single builds a one-range selection from anchor to head.
func Single(anchor, head int) Selection {
	return Selection{ranges: []Range{{Anchor: anchor, Head: head}}, primary: 0}
}

// Point builds a one-range zero-width selection (a cursor) at p.
func Point(p int) Selection { return Single(p, p) }

// FromRanges builds a selection from an explicit range list and primary
// index. Panics if ranges is empty or primary is out of bounds.
func FromRanges(ranges []Range, primary int) Selection {
	if len(ranges) == 0 {
		panic("selection: empty range list")
	}
	if primary < 0 || primary >= len(ranges) {
		panic("selection: primary index out of bounds")
	}
	cp := make([]Range, len(ranges))
	copy(cp, ranges)
	return Selection{ranges: cp, primary: primary}
}

// Ranges returns the ordered range list. Callers must not mutate it.
func (s Selection) Ranges() []Range { return s.ranges }

// Len is the number of ranges.
func (s Selection) Len() int { return len(s.ranges) }

// Primary returns the designated primary range.
func (s Selection) Primary() Range { return s.ranges[s.primary] }

// PrimaryIndex returns the index of the primary range.
func (s Selection) PrimaryIndex() int { return s.primary }

// Map propagates every range's anchor and head through cs, using
// AssocAfter for heads (so typed text at the cursor moves the cursor
// forward) and AssocBefore for anchors (so an anchor stays behind newly
// inserted text at the same point).
func (s Selection) Map(cs change.ChangeSet) Selection {
	out := make([]Range, len(s.ranges))
	for i, r := range s.ranges {
		out[i] = Range{
			Anchor: cs.MapIndex(r.Anchor, change.AssocBefore),
			Head:   cs.MapIndex(r.Head, change.AssocAfter),
		}
	}
	return Selection{ranges: out, primary: s.primary}
}

// MergeOverlapping sorts ranges by Min and fuses any that overlap or
// touch, remapping primary to whichever surviving range contained the old
// primary's head. Idempotent and order-stable on already non-overlapping
// input.
func (s Selection) MergeOverlapping() Selection {
	type indexed struct {
		r   Range
		idx int
	}
	items := make([]indexed, len(s.ranges))
	for i, r := range s.ranges {
		items[i] = indexed{r: r, idx: i}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].r.Min() < items[j].r.Min() })

	oldPrimaryHead := s.ranges[s.primary].Head
	var merged []Range
	var newPrimary int
	primarySet := false

	for _, it := range items {
		if len(merged) > 0 {
			last := merged[len(merged)-1]
			if it.r.Min() <= last.Max() {
				lo := last.Min()
				hi := last.Max()
				if it.r.Max() > hi {
					hi = it.r.Max()
				}
				fused := Range{Anchor: lo, Head: hi}
				if last.Head < last.Anchor || it.r.Head < it.r.Anchor {
					fused = Range{Anchor: hi, Head: lo}
				}
				merged[len(merged)-1] = fused
				if oldPrimaryHead >= lo && oldPrimaryHead <= hi {
					newPrimary = len(merged) - 1
					primarySet = true
				}
				continue
			}
		}
		merged = append(merged, it.r)
		if it.r.Min() <= oldPrimaryHead && oldPrimaryHead <= it.r.Max() {
			newPrimary = len(merged) - 1
			primarySet = true
		}
	}
	if !primarySet {
		newPrimary = len(merged) - 1
	}
	return Selection{ranges: merged, primary: newPrimary}
}

// SplitOnLines explodes each range into per-line sub-ranges covering the
// line spans it touches, in order. The union of the resulting ranges
// equals the original range.
func (s Selection) SplitOnLines(r rope.Rope) Selection {
	var out []Range
	primaryRange := s.ranges[s.primary]
	newPrimary := 0
	for _, rg := range s.ranges {
		lo, hi := rg.Min(), rg.Max()
		startLine := r.CharToLine(lo)
		endLine := r.CharToLine(hi)
		if hi > lo && r.LineToChar(endLine) == hi && endLine > startLine {
			endLine--
		}
		for line := startLine; line <= endLine; line++ {
			lineStart := r.LineToChar(line)
			var lineEnd int
			if line+1 < r.LenLines() {
				lineEnd = r.LineToChar(line + 1)
			} else {
				lineEnd = r.LenChars()
			}
			segLo := max(lo, lineStart)
			segHi := min(hi, lineEnd)
			if segHi < segLo {
				continue
			}
			var piece Range
			if rg.Anchor <= rg.Head {
				piece = Range{Anchor: segLo, Head: segHi}
			} else {
				piece = Range{Anchor: segHi, Head: segLo}
			}
			out = append(out, piece)
			if rg == primaryRange {
				newPrimary = len(out) - 1
			}
		}
	}
	if len(out) == 0 {
		out = s.ranges
	}
	return Selection{ranges: out, primary: newPrimary}
}

// RotateForward advances the primary index by one, wrapping around.
func (s Selection) RotateForward() Selection {
	return Selection{ranges: s.ranges, primary: (s.primary + 1) % len(s.ranges)}
}

// RotateBackward retreats the primary index by one, wrapping around.
func (s Selection) RotateBackward() Selection {
	return Selection{ranges: s.ranges, primary: (s.primary - 1 + len(s.ranges)) % len(s.ranges)}
}

// KeepPrimary collapses the selection to just the primary range.
func (s Selection) KeepPrimary() Selection {
	return Selection{ranges: []Range{s.ranges[s.primary]}, primary: 0}
}

// DropPrimary removes the primary range, provided more than one range
// exists; the new primary is the range that followed it, wrapping if the
// primary was last. Returns the selection unchanged if it has only one
// range (dropping it would leave an empty selection).
func (s Selection) DropPrimary() Selection {
	if len(s.ranges) == 1 {
		return s
	}
	out := make([]Range, 0, len(s.ranges)-1)
	out = append(out, s.ranges[:s.primary]...)
	out = append(out, s.ranges[s.primary+1:]...)
	newPrimary := s.primary
	if newPrimary >= len(out) {
		newPrimary = 0
	}
	return Selection{ranges: out, primary: newPrimary}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
