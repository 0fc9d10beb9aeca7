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

package bitslice

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmerwah/kmerwah/kmerwah/kmer"
)

func sortedDistinctKeys(rng *rand.Rand, k, n int) []uint64 {
	w := kmer.NumWords(k)
	seen := map[string]bool{}
	var keys []kmer.Key
	for len(keys) < n {
		seq := make([]byte, k)
		bases := []byte("ACGT")
		for i := range seq {
			seq[i] = bases[rng.Intn(4)]
		}
		key := kmer.PackInitial(seq, k)
		s := string(seq)
		if seen[s] {
			continue
		}
		seen[s] = true
		keys = append(keys, key)
	}
	// sort lexicographically
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && kmer.Compare(keys[j-1], keys[j]) > 0; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	flat := make([]uint64, n*w)
	for i, key := range keys {
		copy(flat[i*w:(i+1)*w], key)
	}
	return flat
}

func TestBitSliceRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, tc := range []struct{ k, n int }{
		{4, 1}, {4, 5}, {8, 20}, {33, 15}, {65, 10},
	} {
		w := kmer.NumWords(tc.k)
		flat := sortedDistinctKeys(rng, tc.k, tc.n)
		slices := EncodeAll(w, flat, tc.n)
		require.Len(t, slices, NumSlices(w))

		got := Reconstruct(w, slices, tc.n)
		require.Equal(t, flat, got, "k=%d n=%d", tc.k, tc.n)
	}
}

func TestBitSliceEmpty(t *testing.T) {
	w := kmer.NumWords(8)
	slices := EncodeAll(w, nil, 0)
	require.Len(t, slices, NumSlices(w))
	for _, s := range slices {
		require.Equal(t, uint32(0), s.Len())
	}
}

func TestBitSliceSingleKey(t *testing.T) {
	k := 4
	w := kmer.NumWords(k)
	key := kmer.PackInitial([]byte("ACGT"), k)
	slices := EncodeAll(w, []uint64(key), 1)
	got := Reconstruct(w, slices, 1)
	require.Equal(t, []uint64(key), got)
}
