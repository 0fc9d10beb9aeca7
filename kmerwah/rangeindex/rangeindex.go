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

// Package rangeindex builds and queries a range-encoded bitmap index over
// a frequency vector: for sorted distinct values V, bitmap C[j] marks the
// positions whose value is <= V[j].
package rangeindex

import (
	"sort"

	"github.com/kmerwah/kmerwah/kmerwah/wah"
)

// smallValueCutoff is the small-value bucketing threshold: values below
// it are deduplicated with a fixed-size bitmap instead of a map.
const smallValueCutoff = 256

// Index is the (V, C) pair produced by Build.
type Index struct {
	V []uint32
	C []*wah.BitVec
}

// Build computes the range index of tally per spec: sorted distinct
// values V, and for each j a bitmap C[j] over [0, len(tally)) marking
// positions whose tally is <= V[j]. C[len(V)-1] is always all-ones.
func Build(tally []uint32) Index {
	n := len(tally)
	if n == 0 {
		return Index{}
	}

	v := distinctSortedValues(tally)
	rankOf := make(map[uint32]int, len(v))
	for j, val := range v {
		rankOf[val] = j
	}

	rank := make([]int, n)
	for i, val := range tally {
		rank[i] = rankOf[val]
	}

	c := make([]*wah.BitVec, len(v))
	for j := range v {
		var positions []uint32
		for i, r := range rank {
			if r <= j {
				positions = append(positions, uint32(i))
			}
		}
		c[j] = wah.NewFromSorted(uint32(n), positions)
	}
	return Index{V: v, C: c}
}

// distinctSortedValues returns the ascending distinct values of tally,
// using a 256-bit presence bitmap for values below smallValueCutoff (the
// common case: most k-mer multiplicities are small) and a sort-unique
// pass for the rest, then merging the two ascending runs by
// concatenation (every large value exceeds every small one).
func distinctSortedValues(tally []uint32) []uint32 {
	var smallSeen [smallValueCutoff]bool
	largeSeen := make(map[uint32]struct{})
	for _, val := range tally {
		if val < smallValueCutoff {
			smallSeen[val] = true
		} else {
			largeSeen[val] = struct{}{}
		}
	}

	out := make([]uint32, 0, len(largeSeen)+smallValueCutoff)
	for val := uint32(0); val < smallValueCutoff; val++ {
		if smallSeen[val] {
			out = append(out, val)
		}
	}

	large := make([]uint32, 0, len(largeSeen))
	for val := range largeSeen {
		large = append(large, val)
	}
	sort.Slice(large, func(i, j int) bool { return large[i] < large[j] })
	return append(out, large...)
}

// Value reconstructs tally[p] from the index: the smallest V[j] whose
// C[j] contains p.
func (ix Index) Value(p uint32) uint32 {
	for j, c := range ix.C {
		if c.Contains(p) {
			return ix.V[j]
		}
	}
	return 0
}

// CountExactly returns n_f, the number of positions whose value is
// exactly V[j]: cnt(C[j]) - cnt(C[j-1]).
func (ix Index) CountExactly(j int) uint32 {
	if j == 0 {
		return ix.C[0].Count()
	}
	return ix.C[j].Count() - ix.C[j-1].Count()
}
