package rope

import "testing"

func TestLenAndSlice(t *testing.T) {
	r := New("one\ntwo\nthree\n")
	if got := r.LenChars(); got != 14 {
		t.Fatalf("LenChars = %d, want 14", got)
	}
	if got := r.LenLines(); got != 4 {
		t.Fatalf("LenLines = %d, want 4", got)
	}
	if got := r.Slice(4, 7).String(); got != "two" {
		t.Fatalf("Slice(4,7) = %q, want two", got)
	}
}

func TestLineIndexing(t *testing.T) {
	r := New("one\ntwo\nthree\n")
	if got := r.LineToChar(0); got != 0 {
		t.Fatalf("LineToChar(0) = %d, want 0", got)
	}
	if got := r.LineToChar(1); got != 4 {
		t.Fatalf("LineToChar(1) = %d, want 4", got)
	}
	if got := r.LineToChar(2); got != 8 {
		t.Fatalf("LineToChar(2) = %d, want 8", got)
	}
	if got := r.CharToLine(5); got != 1 {
		t.Fatalf("CharToLine(5) = %d, want 1", got)
	}
	if got := r.Line(1); got != "two\n" {
		t.Fatalf("Line(1) = %q, want %q", got, "two\n")
	}
}

func TestInsertDeleteStructuralSharing(t *testing.T) {
	r := New("hello world")
	r2 := r.Insert(5, ", there")
	if r.String() != "hello world" {
		t.Fatalf("original rope mutated: %q", r.String())
	}
	if r2.String() != "hello, there world" {
		t.Fatalf("Insert result = %q", r2.String())
	}
	r3 := r2.Delete(5, 12)
	if r3.String() != "hello world" {
		t.Fatalf("Delete result = %q", r3.String())
	}
}

func TestCharAndByteMapping(t *testing.T) {
	r := New("héllo")
	if r.Char(1) != 'é' {
		t.Fatalf("Char(1) = %q, want é", r.Char(1))
	}
	if r.LenChars() != 5 {
		t.Fatalf("LenChars = %d, want 5", r.LenChars())
	}
	if r.LenBytes() != len("héllo") {
		t.Fatalf("LenBytes = %d, want %d", r.LenBytes(), len("héllo"))
	}
}

func TestWordBoundary(t *testing.T) {
	r := New("foo bar baz")
	if got := r.WordBoundary(5, true); got != 4 {
		t.Fatalf("WordBoundary(5,before) = %d, want 4", got)
	}
	if got := r.WordBoundary(5, false); got != 7 {
		t.Fatalf("WordBoundary(5,after) = %d, want 7", got)
	}
}

func TestHandleApplyIsolatesReaders(t *testing.T) {
	h := NewHandle(New("abc"))
	snap := h.Snapshot()
	h.Apply(func(r Rope) Rope { return r.Insert(3, "def") })
	if snap.String() != "abc" {
		t.Fatalf("snapshot mutated: %q", snap.String())
	}
	if h.Snapshot().String() != "abcdef" {
		t.Fatalf("handle not updated: %q", h.Snapshot().String())
	}
}
