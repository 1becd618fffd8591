package spline

import "testing"

func TestFindWithinPerfectlyLinearCorridor(t *testing.T) {
	s := New(8, 0)
	for i := uint64(0); i <= 5; i++ {
		s.Add(i, uint32(i))
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 (no corridor break for linear data)", s.Count())
	}

	cases := []struct{ key, want uint64 }{
		{0, 0}, {3, 3}, {5, 5},
	}
	for _, c := range cases {
		p, lo, hi := s.Find(c.key)
		if uint64(p) != c.want || uint64(lo) != c.want || uint64(hi) != c.want {
			t.Fatalf("Find(%d) = (%d,%d,%d), want all %d", c.key, p, lo, hi, c.want)
		}
	}

	// Past the last knot, Find clamps to the trailing (uncommitted) knot's page.
	p, lo, hi := s.Find(6)
	if p != 5 || lo != 5 || hi != 5 {
		t.Fatalf("Find(6) = (%d,%d,%d), want (5,5,5)", p, lo, hi)
	}
}

func TestAddCommitsKnotOnCorridorBreak(t *testing.T) {
	s := New(8, 0)
	s.Add(0, 0)
	s.Add(1, 5)
	s.Add(2, 6) // breaks the (0,0)-(1,5) corridor: commits {1,5}, new origin {1,5}

	if s.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 after one corridor break", s.Count())
	}

	cases := []struct {
		key            uint64
		wantP, wantLo, wantHi uint32
	}{
		{0, 0, 0, 0},
		{1, 5, 5, 5},
		{2, 6, 6, 6},
	}
	for _, c := range cases {
		p, lo, hi := s.Find(c.key)
		if p != c.wantP || lo != c.wantLo || hi != c.wantHi {
			t.Fatalf("Find(%d) = (%d,%d,%d), want (%d,%d,%d)", c.key, p, lo, hi, c.wantP, c.wantLo, c.wantHi)
		}
	}
}

func TestCleanErodesOldKnotsKeepingAtLeastTwo(t *testing.T) {
	s := New(8, 0)
	s.Add(0, 0)
	s.Add(1, 5)
	s.Add(2, 6) // commits {1,5}; origin={1,5}
	s.Add(3, 8) // commits {2,6}; origin={2,6}; count now 3: {0,0},{1,5},{2,6}

	if s.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", s.Count())
	}

	removed := s.Clean(1)
	if removed != 1 {
		t.Fatalf("Clean(1) removed %d knots, want 1", removed)
	}
	if s.Count() != 2 {
		t.Fatalf("Count() after Clean = %d, want 2", s.Count())
	}
	if s.KeyAt(0) != 1 {
		t.Fatalf("KeyAt(0) after Clean = %d, want 1", s.KeyAt(0))
	}
}

func TestEraseLeftRefusesToDropBelowTwoKnots(t *testing.T) {
	s := New(8, 0)
	s.Add(0, 0)
	s.Add(1, 5)
	s.Add(2, 6) // count=2: {0,0},{1,5}

	if s.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", s.Count())
	}
	if removed := s.EraseLeft(5); removed != 0 {
		t.Fatalf("EraseLeft(5) removed %d, want 0 (must keep at least 2 knots)", removed)
	}
	if s.Count() != 2 {
		t.Fatalf("Count() after refused erase = %d, want 2", s.Count())
	}
}

func TestEraseLeftNonPositiveIsNoop(t *testing.T) {
	s := New(8, 0)
	s.Add(0, 0)
	s.Add(1, 1)
	if removed := s.EraseLeft(0); removed != 0 {
		t.Fatalf("EraseLeft(0) = %d, want 0", removed)
	}
	if removed := s.EraseLeft(-3); removed != 0 {
		t.Fatalf("EraseLeft(-3) = %d, want 0", removed)
	}
}

func TestFindWithHintMatchesFind(t *testing.T) {
	s := New(8, 0)
	s.Add(0, 0)
	s.Add(1, 5)
	s.Add(2, 6)
	s.Add(3, 8)

	for key := uint64(0); key <= 3; key++ {
		wantP, wantLo, wantHi := s.Find(key)
		p, lo, hi := s.FindWithHint(key, 0, s.EffCount()-1)
		if p != wantP || lo != wantLo || hi != wantHi {
			t.Fatalf("FindWithHint(%d) = (%d,%d,%d), want (%d,%d,%d) matching Find", key, p, lo, hi, wantP, wantLo, wantHi)
		}
	}
}
