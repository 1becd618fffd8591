package radix

import "testing"

func keysFor(knots []uint64) func(i int) uint64 {
	return func(i int) uint64 { return knots[i] }
}

func TestRebuildFindNarrowsToKnotWindow(t *testing.T) {
	knots := []uint64{0, 4, 8, 12, 16}
	table := New(2) // 4 slots
	table.Rebuild(0, 16, keysFor(knots), len(knots))

	cases := []struct {
		key        uint64
		wantLo, wantHi int
	}{
		{0, 0, 2},
		{8, 0, 4},
		{16, 2, 4},
	}
	for _, c := range cases {
		lo, hi := table.Find(c.key, len(knots))
		if lo != c.wantLo || hi != c.wantHi {
			t.Fatalf("Find(%d) = (%d,%d), want (%d,%d)", c.key, lo, hi, c.wantLo, c.wantHi)
		}
		if lo > hi {
			t.Fatalf("Find(%d) returned lo > hi: (%d,%d)", c.key, lo, hi)
		}
	}
}

func TestFindClampsToKnotCount(t *testing.T) {
	knots := []uint64{0, 4, 8, 12, 16}
	table := New(2)
	table.Rebuild(0, 16, keysFor(knots), len(knots))

	lo, hi := table.Find(1000, len(knots))
	if hi != len(knots)-1 {
		t.Fatalf("Find(1000) hi = %d, want clamped to %d", hi, len(knots)-1)
	}
	if lo > hi {
		t.Fatalf("Find(1000) lo > hi: (%d,%d)", lo, hi)
	}
}

func TestFindOnEmptyTableReturnsZero(t *testing.T) {
	table := New(2)
	lo, hi := table.Find(42, 0)
	if lo != 0 || hi != 0 {
		t.Fatalf("Find on empty knot set = (%d,%d), want (0,0)", lo, hi)
	}
}

func TestMaybeGrowOnlyRebuildsWhenShiftInsufficient(t *testing.T) {
	table := New(2)

	small := []uint64{0, 1, 2, 3}
	if grew := table.MaybeGrow(0, 3, keysFor(small), len(small)); grew {
		t.Fatalf("MaybeGrow with small span unexpectedly rebuilt")
	}

	big := []uint64{0, 4, 8, 12, 16}
	if grew := table.MaybeGrow(0, 16, keysFor(big), len(big)); !grew {
		t.Fatalf("MaybeGrow with larger span should have rebuilt")
	}

	lo, hi := table.Find(8, len(big))
	if lo > hi {
		t.Fatalf("after growth, Find(8) returned lo > hi: (%d,%d)", lo, hi)
	}
}

func TestGapSlotsTakeNearestFollowingKnot(t *testing.T) {
	// Only two knots, far apart, so the radix buckets between them must
	// take the following knot's index rather than report a bare sentinel.
	knots := []uint64{0, 100}
	table := New(3) // 8 slots
	table.Rebuild(0, 100, keysFor(knots), len(knots))

	lo, hi := table.Find(50, len(knots))
	if lo > hi {
		t.Fatalf("Find(50) with sparse knots returned lo > hi: (%d,%d)", lo, hi)
	}
	if hi != len(knots)-1 {
		t.Fatalf("Find(50) hi = %d, want %d (the knot following the gap)", hi, len(knots)-1)
	}
}
