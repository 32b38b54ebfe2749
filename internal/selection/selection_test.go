package selection

import (
	"testing"

	"github.com/shiv248/kolabcore/internal/change"
	"github.com/shiv248/kolabcore/internal/rope"
)

func TestMergeOverlappingIdempotentAndOrdered(t *testing.T) {
	s := FromRanges([]Range{{0, 3}, {5, 8}, {10, 12}}, 1)
	merged := s.MergeOverlapping()
	if merged.Len() != 3 {
		t.Fatalf("Len = %d, want 3", merged.Len())
	}
	again := merged.MergeOverlapping()
	if again.Len() != 3 {
		t.Fatalf("second merge Len = %d, want 3", again.Len())
	}
	for i, r := range merged.Ranges() {
		if r != again.Ranges()[i] {
			t.Fatalf("merge not idempotent at %d: %v vs %v", i, r, again.Ranges()[i])
		}
	}
}

func TestMergeOverlappingFusesAndRemapsPrimary(t *testing.T) {
	s := FromRanges([]Range{{0, 5}, {3, 8}}, 1)
	merged := s.MergeOverlapping()
	if merged.Len() != 1 {
		t.Fatalf("Len = %d, want 1", merged.Len())
	}
	if merged.Primary().Min() != 0 || merged.Primary().Max() != 8 {
		t.Fatalf("merged primary = %v", merged.Primary())
	}
}

func TestSplitOnLinesUnionEqualsOriginal(t *testing.T) {
	r := rope.New("one\ntwo\nthree\n")
	s := Single(1, 10)
	split := s.SplitOnLines(r)
	if split.Ranges()[0].Min() != 1 {
		t.Fatalf("first piece min = %d, want 1", split.Ranges()[0].Min())
	}
	last := split.Ranges()[len(split.Ranges())-1]
	if last.Max() != 10 {
		t.Fatalf("last piece max = %d, want 10", last.Max())
	}
	for i := 1; i < split.Len(); i++ {
		if split.Ranges()[i-1].Max() != split.Ranges()[i].Min() {
			t.Fatalf("gap between pieces %d and %d", i-1, i)
		}
	}
}

func TestMapPreservesEmptyOutsideChangedRegion(t *testing.T) {
	cs := change.NewBuilder(10).Retain(5).Insert("xx").Retain(5).MustBuild()
	s := Point(8)
	mapped := s.Map(cs)
	if !mapped.Primary().IsEmpty() {
		t.Fatalf("mapped range not empty: %v", mapped.Primary())
	}
}

func TestRotateWraps(t *testing.T) {
	s := FromRanges([]Range{{0, 1}, {2, 3}, {4, 5}}, 2)
	if s.RotateForward().PrimaryIndex() != 0 {
		t.Fatalf("RotateForward from last should wrap to 0")
	}
	if s.RotateBackward().PrimaryIndex() != 1 {
		t.Fatalf("RotateBackward from 2 should go to 1")
	}
}

func TestDropPrimaryKeepsAtLeastOneRange(t *testing.T) {
	s := Point(3)
	if s.DropPrimary().Len() != 1 {
		t.Fatalf("DropPrimary on single-range selection should be a no-op")
	}
}
