package change

import "unicode/utf8"

// Compose builds the ChangeSet equivalent to applying cs then other,
// re-expressed in cs's pre-apply coordinate system: Compose(other).Apply(r)
// == other.Apply(cs.Apply(r)).
//
// The merge is performed over a canonical Retain/Delete/Insert op stream
// (an internal-only representation; the public entry form stays the
// (start,end,replacement) triple the rest of this package uses), the same
// two-pointer walk a classic operational-transform compose uses.
func (cs ChangeSet) Compose(other ChangeSet) (ChangeSet, error) {
	if cs.LenAfter() != other.LenBefore() {
		return ChangeSet{}, ErrInvalidRange
	}
	merged := composeOps(toOps(cs), toOps(other))
	return ChangeSet{entries: fromOps(merged, cs.lenBefore), lenBefore: cs.lenBefore}, nil
}

type opKind int

const (
	opRetain opKind = iota
	opDelete
	opInsert
)

type op struct {
	kind opKind
	len  int    // for retain/delete, in chars
	text string // for insert
}

func toOps(cs ChangeSet) []op {
	var ops []op
	cursor := 0
	for _, e := range cs.entries {
		if e.Start > cursor {
			ops = append(ops, op{kind: opRetain, len: e.Start - cursor})
		}
		if e.End > e.Start {
			ops = append(ops, op{kind: opDelete, len: e.End - e.Start})
		}
		if e.Replacement != nil && *e.Replacement != "" {
			ops = append(ops, op{kind: opInsert, text: *e.Replacement})
		}
		cursor = e.End
	}
	if cursor < cs.lenBefore {
		ops = append(ops, op{kind: opRetain, len: cs.lenBefore - cursor})
	}
	return ops
}

func fromOps(ops []op, lenBefore int) []Entry {
	var entries []Entry
	cursor := 0
	for _, o := range ops {
		switch o.kind {
		case opRetain:
			cursor += o.len
		case opDelete:
			entries = append(entries, Entry{Start: cursor, End: cursor + o.len, Replacement: nil})
			cursor += o.len
		case opInsert:
			text := o.text
			entries = append(entries, Entry{Start: cursor, End: cursor, Replacement: &text})
		}
	}
	return fuse(entries)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func takeRunes(s string, n int) string {
	i := 0
	for idx := range s {
		if i == n {
			return s[:idx]
		}
		i++
	}
	return s
}

func dropRunes(s string, n int) string {
	i := 0
	for idx := range s {
		if i == n {
			return s[idx:]
		}
		i++
	}
	return ""
}

// composeOps merges op stream a (applied first) with op stream b (applied
// to a's output), yielding an op stream over a's input domain.
func composeOps(a, b []op) []op {
	var out []op
	ai, bi := 0, 0
	var curA, curB *op

	nextA := func() *op {
		if ai < len(a) {
			o := a[ai]
			ai++
			return &o
		}
		return nil
	}
	nextB := func() *op {
		if bi < len(b) {
			o := b[bi]
			bi++
			return &o
		}
		return nil
	}
	curA, curB = nextA(), nextB()

	for curA != nil || curB != nil {
		if curB != nil && curB.kind == opInsert {
			out = append(out, *curB)
			curB = nextB()
			continue
		}
		if curA != nil && curA.kind == opDelete {
			out = append(out, *curA)
			curA = nextA()
			continue
		}
		if curA == nil {
			break
		}
		if curB == nil {
			out = append(out, *curA)
			curA = nextA()
			continue
		}
		switch curA.kind {
		case opRetain:
			switch curB.kind {
			case opRetain:
				n := min(curA.len, curB.len)
				out = append(out, op{kind: opRetain, len: n})
				curA.len -= n
				curB.len -= n
			case opDelete:
				n := min(curA.len, curB.len)
				out = append(out, op{kind: opDelete, len: n})
				curA.len -= n
				curB.len -= n
			}
		case opInsert:
			insLen := utf8.RuneCountInString(curA.text)
			switch curB.kind {
			case opRetain:
				n := min(insLen, curB.len)
				out = append(out, op{kind: opInsert, text: takeRunes(curA.text, n)})
				curA.text = dropRunes(curA.text, n)
				curB.len -= n
			case opDelete:
				n := min(insLen, curB.len)
				curA.text = dropRunes(curA.text, n)
				curB.len -= n
			}
		}
		if curA != nil {
			if (curA.kind == opRetain || curA.kind == opDelete) && curA.len == 0 {
				curA = nextA()
			} else if curA.kind == opInsert && curA.text == "" {
				curA = nextA()
			}
		}
		if curB != nil {
			if (curB.kind == opRetain || curB.kind == opDelete) && curB.len == 0 {
				curB = nextB()
			}
		}
	}
	return out
}
