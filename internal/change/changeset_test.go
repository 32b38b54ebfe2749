package change

import (
	"testing"

	"github.com/shiv248/kolabcore/internal/rope"
)

func TestApplyLenAfter(t *testing.T) {
	r := rope.New("hello world")
	cs := NewBuilder(11).Retain(6).Delete(5).Insert("WORLD").MustBuild()
	got := cs.Apply(r)
	if got.String() != "hello WORLD" {
		t.Fatalf("Apply = %q", got.String())
	}
	if cs.LenAfter() != got.LenChars() {
		t.Fatalf("LenAfter = %d, want %d", cs.LenAfter(), got.LenChars())
	}
}

func TestComposeMatchesSequentialApply(t *testing.T) {
	r := rope.New("one two three")
	cs1 := NewBuilder(13).Insert("(").Retain(13).MustBuild()
	cs2 := NewBuilder(cs1.LenAfter()).Retain(1).Retain(3).Insert("!").MustBuild()

	composed, err := cs1.Compose(cs2)
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	want := cs2.Apply(cs1.Apply(r))
	got := composed.Apply(r)
	if got.String() != want.String() {
		t.Fatalf("Compose mismatch: got %q want %q", got.String(), want.String())
	}
}

func TestInvertRoundTrips(t *testing.T) {
	r := rope.New("hello world")
	cs := NewBuilder(11).Retain(6).Delete(5).Insert("WORLD").MustBuild()
	applied := cs.Apply(r)
	inv := cs.Invert(r)
	back := inv.Apply(applied)
	if back.String() != r.String() {
		t.Fatalf("Invert round trip = %q, want %q", back.String(), r.String())
	}
}

func TestMapIndexOutsideChangedRegionPreservesEmpty(t *testing.T) {
	cs := NewBuilder(10).Retain(2).Delete(1).Insert("xx").Retain(7).MustBuild()
	if got := cs.MapIndex(0, AssocBefore); got != 0 {
		t.Fatalf("MapIndex(0) = %d, want 0", got)
	}
	if got := cs.MapIndex(5, AssocBefore); got != 6 {
		t.Fatalf("MapIndex(5) = %d, want 6", got)
	}
}

func TestOverlapRejected(t *testing.T) {
	_, err := New(10, []Entry{{Start: 2, End: 5}, {Start: 4, End: 6}})
	if err != ErrOverlap {
		t.Fatalf("err = %v, want ErrOverlap", err)
	}
}
