// Package spline implements the learned index from spec.md §4.4: a
// piecewise-linear, monotone key -> page approximator built with Neumann
// and Michel's GreedySplineCorridor streaming algorithm, stored in a ring
// arena so the circular log's eviction frontier can trim it in O(1).
//
// There is no spline analog in FlashLog; this package is grounded on
// ryogrid-bltree-go-for-embedding's node/key ordering conventions for the
// strictly-ascending key discipline, and on original_source/'s spline.c
// for the corridor algorithm and edge-case behavior at the range ends,
// re-expressed idiomatically (an arena slice + cursor, not a hand-rolled
// growable C array).
package spline

import "math"

// Knot is a (key, page) breakpoint on the piecewise-linear approximation.
type Knot struct {
	Key  uint64
	Page uint32
}

// frac is an exact rational slope bound, kept as an integer numerator over
// a positive integer denominator so corridor containment is tested by
// cross-multiplication instead of floating point division; only the final
// prediction in Find uses float64, per spec.md §4.4.
type frac struct {
	num, den int64
}

func (a frac) lt(b frac) bool { return a.num*b.den < b.num*a.den }
func (a frac) gt(b frac) bool { return a.num*b.den > b.num*a.den }

func maxFrac(a, b frac) frac {
	if a.lt(b) {
		return b
	}
	return a
}

func minFrac(a, b frac) frac {
	if b.lt(a) {
		return b
	}
	return a
}

// Spline is the engine's learned index for one data ring.
type Spline struct {
	maxError int64
	cap      int

	ring  []Knot
	start int
	count int

	firstEver    Knot
	haveAnyEver  bool
	haveOrigin   bool
	origin       Knot
	haveLast     bool
	last         Knot
	slopeLo      frac
	slopeHi      frac
}

// New allocates a spline with room for capacity knots and the given
// absolute error bound on predicted pages.
func New(capacity int, maxError uint32) *Spline {
	if capacity < 2 {
		capacity = 2
	}
	return &Spline{
		maxError: int64(maxError),
		cap:      capacity,
		ring:     make([]Knot, capacity),
	}
}

func (s *Spline) at(i int) Knot {
	return s.ring[(s.start+i)%s.cap]
}

// Count is the number of permanently committed knots currently retained
// (excluding the uncommitted trailing temporary knot, if any).
func (s *Spline) Count() int { return s.count }

func (s *Spline) candidateBounds(origin Knot, key uint64, page uint32) (frac, frac) {
	dx := int64(key) - int64(origin.Key)
	dy := int64(page) - int64(origin.Page)
	return frac{dy - s.maxError, dx}, frac{dy + s.maxError, dx}
}

func (s *Spline) append(k Knot) {
	if s.count == s.cap {
		// Safety fallback: the configured knot budget was exceeded before
		// the circular log's eviction caught up via Clean. Drop the
		// oldest knot rather than refuse the insert.
		s.start = (s.start + 1) % s.cap
		s.count--
	}
	s.ring[(s.start+s.count)%s.cap] = k
	s.count++
	if !s.haveAnyEver {
		s.firstEver = k
		s.haveAnyEver = true
	}
}

// Add appends one (key, page) observation to the corridor, committing a
// new permanent knot whenever the point falls outside the current
// error-bounded corridor (spec.md §4.4).
func (s *Spline) Add(key uint64, page uint32) {
	if !s.haveOrigin {
		s.origin = Knot{key, page}
		s.append(s.origin)
		s.haveOrigin = true
		return
	}
	if key == s.origin.Key {
		return
	}
	if !s.haveLast {
		s.last = Knot{key, page}
		s.slopeLo, s.slopeHi = s.candidateBounds(s.origin, key, page)
		s.haveLast = true
		return
	}

	candLo, candHi := s.candidateBounds(s.origin, key, page)
	newLo := maxFrac(s.slopeLo, candLo)
	newHi := minFrac(s.slopeHi, candHi)

	if newLo.gt(newHi) {
		s.append(s.last)
		s.origin = s.last
		s.slopeLo, s.slopeHi = s.candidateBounds(s.origin, key, page)
	} else {
		s.slopeLo, s.slopeHi = newLo, newHi
	}
	s.last = Knot{key, page}
}

// effCount returns the length of the knot sequence Find searches: the
// committed ring plus the uncommitted trailing knot, when one is pending
// and distinct from the last committed knot. This is the "temporary
// trailing knot" of spec.md §4.4: it lets queries for data written since
// the last corridor break still resolve, without it ever occupying a
// permanent ring slot.
func (s *Spline) effCount() int {
	n := s.count
	hasTemp := s.haveLast && (n == 0 || s.last.Key != s.at(n-1).Key)
	if hasTemp {
		return n + 1
	}
	return n
}

func (s *Spline) effAt(i int) Knot {
	if i < s.count {
		return s.at(i)
	}
	return s.last
}

// Find returns the predicted page for key and the [lo, hi] page range it
// may fall within, per spec.md §4.4's three cases (below first knot,
// above last knot, bracketed).
func (s *Spline) Find(key uint64) (predicted, lo, hi uint32) {
	n := s.effCount()
	if n == 0 {
		return 0, 0, 0
	}
	first := s.at(0)
	last := s.effAt(n - 1)

	if key < first.Key {
		mid := (int64(s.firstEver.Page) + int64(first.Page)) / 2
		return clampKnot(mid, s.maxError, last.Page)
	}
	if key > last.Key {
		return last.Page, last.Page, last.Page
	}
	if n == 2 {
		a, b := s.at(0), s.effAt(1)
		return interpolate(a, b, key, s.maxError, last.Page)
	}

	i := s.search(key, n)
	a := s.effAt(i - 1)
	b := s.effAt(i)
	return interpolate(a, b, key, s.maxError, last.Page)
}

// EffCount is the exported form of effCount, for callers (internal/radix
// rebuild triggers) that need the current searchable knot count.
func (s *Spline) EffCount() int { return s.effCount() }

// KeyAt returns the key of the i-th effective knot (0-indexed), including
// the uncommitted trailing knot when present.
func (s *Spline) KeyAt(i int) uint64 { return s.effAt(i).Key }

// FindWithHint behaves like Find but confines its binary search to knot
// indices [lo, hi], as narrowed by an external radix-table probe
// (internal/radix), per spec.md §4.5.
func (s *Spline) FindWithHint(key uint64, lo, hi int) (predicted, loPage, hiPage uint32) {
	n := s.effCount()
	if n == 0 {
		return 0, 0, 0
	}
	first := s.at(0)
	last := s.effAt(n - 1)

	if key < first.Key {
		mid := (int64(s.firstEver.Page) + int64(first.Page)) / 2
		return clampKnot(mid, s.maxError, last.Page)
	}
	if key > last.Key {
		return last.Page, last.Page, last.Page
	}

	if hi > n-1 {
		hi = n - 1
	}
	if hi < 1 {
		hi = 1
	}
	if lo < 1 {
		lo = 1
	}
	if lo > hi {
		lo = hi
	}
	i := lo
	for i < hi {
		mid := (i + hi) / 2
		if s.effAt(mid).Key < key {
			i = mid + 1
		} else {
			hi = mid
		}
	}
	a := s.effAt(i - 1)
	b := s.effAt(i)
	return interpolate(a, b, key, s.maxError, last.Page)
}

// search returns the smallest index i in [1, n) such that
// effAt(i).Key >= key, i.e. the upper bracket of the segment containing
// key.
func (s *Spline) search(key uint64, n int) int {
	lo, hi := 1, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		if s.effAt(mid).Key < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func interpolate(a, b Knot, key uint64, maxError int64, lastPage uint32) (predicted, lo, hi uint32) {
	if b.Key == a.Key {
		return clampKnot(int64(a.Page), maxError, lastPage)
	}
	t := float64(key-a.Key) / float64(b.Key-a.Key)
	p := float64(a.Page) + t*float64(int64(b.Page)-int64(a.Page))
	return clampKnot(int64(math.Round(p)), maxError, lastPage)
}

func clampKnot(predicted, maxError int64, lastPage uint32) (uint32, uint32, uint32) {
	lo := predicted - maxError
	hi := predicted + maxError
	if lo < 0 {
		lo = 0
	}
	if hi > int64(lastPage) {
		hi = int64(lastPage)
	}
	if predicted < 0 {
		predicted = 0
	}
	if predicted > int64(lastPage) {
		predicted = int64(lastPage)
	}
	return uint32(predicted), uint32(lo), uint32(hi)
}

// EraseLeft drops the n oldest committed knots without moving memory,
// refusing to leave fewer than two knots retained.
func (s *Spline) EraseLeft(n int) int {
	if n <= 0 {
		return 0
	}
	maxRemovable := s.count - 2
	if maxRemovable < 0 {
		maxRemovable = 0
	}
	if n > maxRemovable {
		n = maxRemovable
	}
	s.start = (s.start + n) % s.cap
	s.count -= n
	return n
}

// Clean drops knots with key strictly less than minKey, per spec.md
// §4.4's erosion rule: counts the qualifying knots, backs off by one if
// removing them all would leave exactly one, and defers the "leave at
// least two" guarantee to EraseLeft.
func (s *Spline) Clean(minKey uint64) int {
	c := 0
	for c < s.count && s.at(c).Key < minKey {
		c++
	}
	if c == s.count-1 {
		c--
	}
	return s.EraseLeft(c)
}
