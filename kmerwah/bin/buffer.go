// Copyright © 2023-2026 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package bin

import (
	"github.com/twotwotwo/sorts"

	"github.com/kmerwah/kmerwah/kmerwah/kmer"
)

// Buffer is a fixed-capacity arena of packed W-word k-mers for one bin.
// It never grows past Capacity; the caller (the orchestrator) must check
// Full before every Add and trigger a spill of all bins when any one
// bin fills.
type Buffer struct {
	W        int
	Capacity int
	Count    int
	Keys     []uint64 // flat, Capacity*W words
}

// NewBuffer allocates an arena for capacity keys of w words each.
func NewBuffer(w, capacity int) *Buffer {
	return &Buffer{
		W:        w,
		Capacity: capacity,
		Keys:     make([]uint64, capacity*w),
	}
}

// Full reports whether the arena has no room for another key.
func (b *Buffer) Full() bool {
	return b.Count >= b.Capacity
}

// Add copies key into the arena at the current cursor and advances it.
// The caller must have already checked Full.
func (b *Buffer) Add(key kmer.Key) {
	off := b.Count * b.W
	copy(b.Keys[off:off+b.W], key)
	b.Count++
}

// Reset zeroes the cursor so the arena can be reused for the next batch.
func (b *Buffer) Reset() {
	b.Count = 0
}

// KeyAt returns the i-th stored key as a view into the arena.
func (b *Buffer) KeyAt(i int) kmer.Key {
	return kmer.Key(b.Keys[i*b.W : (i+1)*b.W])
}

// keySorter adapts a flat W-word key arena to sort.Interface so it can be
// handed to sorts.Quicksort, which runs a parallel sort for large slices
// and falls back to a plain sort for small ones.
type keySorter struct {
	buf []uint64
	w   int
}

func (s keySorter) Len() int { return len(s.buf) / s.w }

func (s keySorter) Less(i, j int) bool {
	return kmer.Compare(s.buf[i*s.w:(i+1)*s.w], s.buf[j*s.w:(j+1)*s.w]) < 0
}

func (s keySorter) Swap(i, j int) {
	a := s.buf[i*s.w : (i+1)*s.w]
	c := s.buf[j*s.w : (j+1)*s.w]
	for k := 0; k < s.w; k++ {
		a[k], c[k] = c[k], a[k]
	}
}

// SortUnique sorts the arena's active keys in place and folds equal
// consecutive keys, returning the strictly-increasing distinct key array
// (flat, W words each) and the parallel multiplicity vector.
func (b *Buffer) SortUnique() (distinct []uint64, tally []uint32) {
	if b.Count == 0 {
		return nil, nil
	}
	active := b.Keys[:b.Count*b.W]
	sorts.Quicksort(keySorter{buf: active, w: b.W})

	distinct = make([]uint64, 0, len(active))
	tally = make([]uint32, 0, b.Count)

	cur := active[0:b.W]
	count := uint32(1)
	for i := 1; i < b.Count; i++ {
		k := active[i*b.W : (i+1)*b.W]
		if kmer.Equal(cur, k) {
			count++
			continue
		}
		distinct = append(distinct, cur...)
		tally = append(tally, count)
		cur = k
		count = 1
	}
	distinct = append(distinct, cur...)
	tally = append(tally, count)
	return distinct, tally
}

// AddKey stores key into bufs according to mode, routing by content hash.
// It reports whether the store was skipped because the destination bin
// (or, for BOTH, either destination bin) is full; the caller must then
// spill all bins and retry.
func AddKey(bufs []*Buffer, key kmer.Key, k int, mode Mode) (skipped bool) {
	switch mode {
	case RAW:
		return addOne(bufs, key)
	case CANONICAL:
		return addOne(bufs, kmer.Canonical(key, k))
	case BOTH:
		rc := kmer.ReverseComplement(key, k)
		skippedFwd := bufs[Route(key)].Full()
		skippedRC := bufs[Route(rc)].Full()
		if skippedFwd || skippedRC {
			return true
		}
		bufs[Route(key)].Add(key)
		bufs[Route(rc)].Add(rc)
		return false
	default:
		return addOne(bufs, key)
	}
}

func addOne(bufs []*Buffer, key kmer.Key) bool {
	b := bufs[Route(key)]
	if b.Full() {
		return true
	}
	b.Add(key)
	return false
}
