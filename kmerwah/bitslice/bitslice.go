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

// Package bitslice encodes a sorted array of fixed-width packed keys as
// one compressed bitmap per bit position (a "bit slice"), exploiting the
// fact that sorted keys differ in few bits from one to the next.
package bitslice

import "github.com/kmerwah/kmerwah/kmerwah/wah"

// NumSlices returns 64*W, the slice count for a W-word key.
func NumSlices(w int) int {
	return 64 * w
}

// Encoder streams sorted W-word keys one at a time and produces NumSlices
// compressed bitmaps. Keys must be added in strictly increasing order.
type Encoder struct {
	w         int
	slices    []*wah.BitVec
	cur       []bool // current bit value of each slice's open run
	lastFlip  []int  // key index at which each slice's open run started
	n         int
	prev      []uint64
}

// NewEncoder returns an Encoder for W-word keys.
func NewEncoder(w int) *Encoder {
	ns := NumSlices(w)
	s := make([]*wah.BitVec, ns)
	for i := range s {
		s[i] = wah.NewStreaming()
	}
	return &Encoder{
		w:        w,
		slices:   s,
		cur:      make([]bool, ns),
		lastFlip: make([]int, ns),
		prev:     make([]uint64, w),
	}
}

// Add feeds the next sorted key (w words) into the encoder.
func (e *Encoder) Add(key []uint64) {
	if e.n == 0 {
		for wi := 0; wi < e.w; wi++ {
			word := key[wi]
			for p := 0; p < 64; p++ {
				if (word>>uint(63-p))&1 != 0 {
					e.cur[wi*64+p] = true
				}
			}
		}
		copy(e.prev, key)
		e.n = 1
		return
	}

	for wi := 0; wi < e.w; wi++ {
		xor := key[wi] ^ e.prev[wi]
		if xor == 0 {
			continue
		}
		for p := 0; p < 64; p++ {
			if (xor>>uint(63-p))&1 == 0 {
				continue
			}
			b := wi*64 + p
			value := byte(0)
			if e.cur[b] {
				value = 1
			}
			run := uint32(e.n - e.lastFlip[b])
			e.slices[b].AppendFill(value, run)
			e.cur[b] = !e.cur[b]
			e.lastFlip[b] = e.n
		}
	}
	copy(e.prev, key)
	e.n++
}

// Finalize flushes the trailing run of every slice and returns the
// completed bitmaps.
func (e *Encoder) Finalize() []*wah.BitVec {
	n := uint32(e.n)
	for b, bv := range e.slices {
		run := n - uint32(e.lastFlip[b])
		if run > 0 {
			value := byte(0)
			if e.cur[b] {
				value = 1
			}
			bv.AppendFill(value, run)
		}
		bv.Finalize()
	}
	return e.slices
}

// EncodeAll is a convenience wrapper around Encoder for a complete,
// already-sorted flat key array of n keys, w words each.
func EncodeAll(w int, keys []uint64, n int) []*wah.BitVec {
	enc := NewEncoder(w)
	for i := 0; i < n; i++ {
		enc.Add(keys[i*w : (i+1)*w])
	}
	return enc.Finalize()
}

// Reconstruct rebuilds the sorted flat key array (n keys, w words each)
// from its bit slices, by testing slice[b].Contains(i) for every key
// index i and bit b.
func Reconstruct(w int, slices []*wah.BitVec, n int) []uint64 {
	out := make([]uint64, n*w)
	for i := 0; i < n; i++ {
		for wi := 0; wi < w; wi++ {
			var word uint64
			for p := 0; p < 64; p++ {
				if slices[wi*64+p].Contains(uint32(i)) {
					word |= uint64(1) << uint(63-p)
				}
			}
			out[i*w+wi] = word
		}
	}
	return out
}
