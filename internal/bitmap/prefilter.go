package bitmap

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bloom/v3"
)

// Prefilter is a one-sided, never-cleared existence filter over every key
// ever accepted by Put. It is the same "skip a likely-miss before doing
// real work" role FlashLog's sst package gives bloom.BloomFilter over SST
// blocks (sst/writer.go), applied here to skip the spline probe and page
// reads entirely on a key that was never inserted.
//
// Correctness: MaybeContains never returns false for a key that was
// inserted (no false negatives). It may return true for a key that was
// never inserted (false positives, which only cost an extra, still-correct
// lookup). It is never consulted to confirm a hit, only to skip a miss, and
// it is intentionally never shrunk on eviction — see SPEC_FULL.md §3.4.
type Prefilter struct {
	filter *bloom.BloomFilter
}

// NewPrefilter sizes the filter for an expected number of distinct keys at
// a target false-positive rate.
func NewPrefilter(expectedKeys uint, falsePositiveRate float64) *Prefilter {
	return &Prefilter{filter: bloom.NewWithEstimates(expectedKeys, falsePositiveRate)}
}

func keyBytes(key uint64, keySize uint8) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, key)
	return buf[:keySize]
}

// Add records key as present.
func (p *Prefilter) Add(key uint64, keySize uint8) {
	if p == nil {
		return
	}
	p.filter.Add(keyBytes(key, keySize))
}

// MaybeContains reports whether key might have been inserted. false is a
// definitive answer; true is not.
func (p *Prefilter) MaybeContains(key uint64, keySize uint8) bool {
	if p == nil {
		return true
	}
	return p.filter.Test(keyBytes(key, keySize))
}
