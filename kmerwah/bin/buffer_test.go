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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmerwah/kmerwah/kmerwah/kmer"
)

func TestBufferSortUniqueCollapsesDuplicates(t *testing.T) {
	k := 3
	w := kmer.NumWords(k)
	buf := NewBuffer(w, 16)

	seqs := []string{"ACG", "CGT", "GTA", "TAC", "ACG"}
	for _, s := range seqs {
		buf.Add(kmer.PackInitial([]byte(s), k))
	}

	distinct, tally := buf.SortUnique()
	require.Len(t, tally, 4)

	got := map[string]uint32{}
	for i := range tally {
		key := kmer.Key(distinct[i*w : (i+1)*w])
		got[kmer.ToString(key, k)] = tally[i]
	}
	require.Equal(t, map[string]uint32{"ACG": 2, "CGT": 1, "GTA": 1, "TAC": 1}, got)

	for i := 1; i < len(tally); i++ {
		a := kmer.Key(distinct[(i-1)*w : i*w])
		b := kmer.Key(distinct[i*w : (i+1)*w])
		require.Equal(t, -1, kmer.Compare(a, b))
	}
}

func TestBufferFullPreventsOverflow(t *testing.T) {
	w := kmer.NumWords(4)
	buf := NewBuffer(w, 2)
	require.False(t, buf.Full())
	buf.Add(kmer.PackInitial([]byte("AAAA"), 4))
	require.False(t, buf.Full())
	buf.Add(kmer.PackInitial([]byte("CCCC"), 4))
	require.True(t, buf.Full())
}

func TestRouteIsDeterministic(t *testing.T) {
	key := kmer.PackInitial([]byte("ACGTACGT"), 8)
	a := Route(key)
	b := Route(kmer.Clone(key))
	require.Equal(t, a, b)
	require.GreaterOrEqual(t, a, 0)
	require.Less(t, a, NumBins)
}

func TestAddKeyBothModeStoresForwardAndRC(t *testing.T) {
	k := 4
	w := kmer.NumWords(k)
	bufs := make([]*Buffer, NumBins)
	for i := range bufs {
		bufs[i] = NewBuffer(w, 8)
	}
	key := kmer.PackInitial([]byte("ACGT"), k) // palindromic under rc
	skipped := AddKey(bufs, key, k, BOTH)
	require.False(t, skipped)

	total := 0
	for _, b := range bufs {
		total += b.Count
	}
	require.Equal(t, 2, total)
}
