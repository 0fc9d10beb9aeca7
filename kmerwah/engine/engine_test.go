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

package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmerwah/kmerwah/kmerwah/bin"
)

func freqMap(hist []Freq) map[uint32]uint32 {
	m := make(map[uint32]uint32, len(hist))
	for _, f := range hist {
		m[f.F] = f.N
	}
	return m
}

// S1: k=3 RAW over "ACGTACG" yields windows ACG, CGT, GTA, TAC, ACG ->
// ACG:2, CGT:1, GTA:1, TAC:1, so histogram is (1,3), (2,1).
func TestEngineRawHistogram(t *testing.T) {
	dir := t.TempDir()
	e, err := New(3, 2, dir, bin.RAW)
	require.NoError(t, err)
	require.NoError(t, e.Allocate(1<<20))
	require.NoError(t, e.AddSequence([]byte("ACGTACG")))
	require.NoError(t, e.Save())
	require.NoError(t, e.Load())

	hist, err := e.Histogram()
	require.NoError(t, err)
	got := freqMap(hist)
	require.Equal(t, map[uint32]uint32{1: 3, 2: 1}, got)

	f, err := e.Find("TAC")
	require.NoError(t, err)
	require.Equal(t, uint32(1), f)

	f, err = e.Find("ACG")
	require.NoError(t, err)
	require.Equal(t, uint32(2), f)

	f, err = e.Find("AAA")
	require.NoError(t, err)
	require.Equal(t, uint32(0), f)
}

// S2: k=3 CANONICAL over "ACGT" folds ACG and its reverse complement CGT
// (rc(ACG)=CGT, canonical min is ACG) into one entry counted twice.
func TestEngineCanonicalHistogram(t *testing.T) {
	dir := t.TempDir()
	e, err := New(3, 1, dir, bin.CANONICAL)
	require.NoError(t, err)
	require.NoError(t, e.Allocate(1<<20))
	require.NoError(t, e.AddSequence([]byte("ACGT")))
	require.NoError(t, e.Save())
	require.NoError(t, e.Load())

	hist, err := e.Histogram()
	require.NoError(t, err)
	got := freqMap(hist)
	require.Equal(t, map[uint32]uint32{2: 1}, got)
}

// S3: k=4 CANONICAL over "AAAAAA" has 3 overlapping windows, all AAAA,
// whose canonical form is AAAA itself (rc(AAAA)=TTTT > AAAA).
func TestEngineCanonicalHomopolymer(t *testing.T) {
	dir := t.TempDir()
	e, err := New(4, 1, dir, bin.CANONICAL)
	require.NoError(t, err)
	require.NoError(t, e.Allocate(1<<20))
	require.NoError(t, e.AddSequence([]byte("AAAAAA")))
	require.NoError(t, e.Save())
	require.NoError(t, e.Load())

	hist, err := e.Histogram()
	require.NoError(t, err)
	got := freqMap(hist)
	require.Equal(t, map[uint32]uint32{3: 1}, got)

	f, err := e.Find("AAAA")
	require.NoError(t, err)
	require.Equal(t, uint32(3), f)
}

// S4: a sequence shorter than k contributes no k-mers at all.
func TestEngineShortSequenceIsEmpty(t *testing.T) {
	dir := t.TempDir()
	e, err := New(5, 1, dir, bin.RAW)
	require.NoError(t, err)
	require.NoError(t, e.Allocate(1<<20))
	require.NoError(t, e.AddSequence([]byte("ACG")))
	require.NoError(t, e.Save())
	require.NoError(t, e.Load())

	hist, err := e.Histogram()
	require.NoError(t, err)
	require.Empty(t, hist)

	f, err := e.Find("AAAAA")
	require.NoError(t, err)
	require.Equal(t, uint32(0), f)
}

// S5: forcing a tiny per-bin capacity produces multiple spilled batches,
// so Save must exercise the merge path; the resulting histogram and
// point queries must agree with what a single large in-memory run would
// have produced, and the closure properties (sum f*n_f = total
// occurrences, sum n_f = distinct count) must hold.
func TestEngineForcedSpillMatchesDirectEquivalent(t *testing.T) {
	k := 4
	rng := rand.New(rand.NewSource(7))
	bases := []byte("ACGT")
	seq := make([]byte, 2000)
	for i := range seq {
		seq[i] = bases[rng.Intn(4)]
	}

	want := map[string]uint32{}
	for i := 0; i+k <= len(seq); i++ {
		want[string(seq[i:i+k])]++
	}

	dir := t.TempDir()
	e, err := New(k, 4, dir, bin.RAW)
	require.NoError(t, err)
	// A capacity of 2 keys per bin forces frequent spills.
	require.NoError(t, e.Allocate(int64(bin.NumBins) * int64(e.W*8) * 2))
	require.NoError(t, e.AddSequence(seq))
	require.NoError(t, e.Save())
	require.True(t, e.batchNo > 1, "expected the tiny allocation to force multiple spills")
	require.NoError(t, e.Load())

	hist, err := e.Histogram()
	require.NoError(t, err)

	var totalOccurrences, totalDistinct uint64
	wantHist := map[uint32]uint32{}
	for _, n := range want {
		wantHist[n]++
	}
	for _, f := range hist {
		totalOccurrences += uint64(f.F) * uint64(f.N)
		totalDistinct += uint64(f.N)
	}
	require.Equal(t, wantHist, freqMap(hist))
	require.Equal(t, uint64(len(seq)-k+1), totalOccurrences)
	require.Equal(t, uint64(len(want)), totalDistinct)

	for kmerStr, count := range want {
		f, err := e.Find(kmerStr)
		require.NoError(t, err)
		require.Equalf(t, count, f, "kmer %s", kmerStr)
	}
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := New(0, 1, dir, bin.RAW)
	require.ErrorIs(t, err, ErrConfigInvalid)

	_, err = New(3, 1, dir, bin.Mode(99))
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestEngineStateErrors(t *testing.T) {
	dir := t.TempDir()
	e, err := New(3, 1, dir, bin.RAW)
	require.NoError(t, err)

	_, err = e.Histogram()
	require.ErrorIs(t, err, ErrStateError)

	require.NoError(t, e.Allocate(1 << 20))
	require.NoError(t, e.AddSequence([]byte("ACGTAC")))
	require.NoError(t, e.Save())
	require.Error(t, e.Save()) // arenas released by the first Save; second Save fails

	require.NoError(t, e.Load())
	_, err = e.Find("AC")
	require.ErrorIs(t, err, ErrConfigInvalid) // wrong length, not k=3
}
