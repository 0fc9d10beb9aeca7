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

package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmerwah/kmerwah/kmerwah/batch"
	"github.com/kmerwah/kmerwah/kmerwah/bitslice"
	"github.com/kmerwah/kmerwah/kmerwah/kmer"
	"github.com/kmerwah/kmerwah/kmerwah/rangeindex"
)

// writeBatch is a test helper standing in for the engine's serialize
// step: it sorts+dedups a set of raw k-mer strings and writes them as
// one spilled batch, the way bin.Buffer.SortUnique + bitslice.EncodeAll
// + batch.WriteSlicesFile/WriteIndexFile would in the real pipeline.
func writeBatch(t *testing.T, outdir string, k, binNo, batchNo int, seqs []string) {
	t.Helper()
	w := kmer.NumWords(k)
	counts := map[string]uint32{}
	for _, s := range seqs {
		counts[s]++
	}
	var strs []string
	for s := range counts {
		strs = append(strs, s)
	}
	for i := 1; i < len(strs); i++ {
		for j := i; j > 0 && strs[j-1] > strs[j]; j-- {
			strs[j-1], strs[j] = strs[j], strs[j-1]
		}
	}
	// Re-sort by packed key order, not string order, for correctness.
	keys := make([]kmer.Key, len(strs))
	for i, s := range strs {
		keys[i] = kmer.PackInitial([]byte(s), k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && kmer.Compare(keys[j-1], keys[j]) > 0; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
			strs[j-1], strs[j] = strs[j], strs[j-1]
		}
	}

	flat := make([]uint64, 0, len(keys)*w)
	tally := make([]uint32, len(keys))
	for i, key := range keys {
		flat = append(flat, key...)
		tally[i] = counts[strs[i]]
	}

	slices := bitslice.EncodeAll(w, flat, len(keys))
	ix := rangeindex.Build(tally)

	require.NoError(t, batch.WriteSlicesFile(outdir, k, binNo, batchNo, slices))
	require.NoError(t, batch.WriteIndexFile(outdir, k, binNo, batchNo, ix))
}

// readMergedCounts reads back the merged final files of a bin and
// returns a map from k-mer string to multiplicity.
func readMergedCounts(t *testing.T, dir string, k, binNo int) map[string]uint32 {
	t.Helper()
	w := kmer.NumWords(k)
	slices, err := batch.ReadSlicesFile(dir, k, binNo, 0)
	require.NoError(t, err)
	ix, err := batch.ReadIndexFile(dir, k, binNo, 0)
	require.NoError(t, err)

	n := 0
	if len(slices) > 0 {
		n = int(slices[0].Len())
	}
	flat := bitslice.Reconstruct(w, slices, n)

	got := map[string]uint32{}
	for i := 0; i < n; i++ {
		key := kmer.Key(flat[i*w : (i+1)*w])
		got[kmer.ToString(key, k)] = ix.Value(uint32(i))
	}
	return got
}

func TestMergeBinSingleBatch(t *testing.T) {
	k := 3
	binNo := 9
	dir := t.TempDir()

	writeBatch(t, dir, k, binNo, 1, []string{
		"ACG", "CGT", "GTA", "TAC", "ACG", "CGT", "GTA", "TAC", "ACG", "CGT",
	})
	require.NoError(t, MergeBin(dir, k, binNo, 1))

	require.Equal(t, map[string]uint32{"ACG": 3, "CGT": 3, "GTA": 2, "TAC": 2}, readMergedCounts(t, dir, k, binNo))
}

// TestMergeBinMatchesSingleBatch is spec scenario S5: forcing two
// spills of the same input must produce the same counts as one batch.
func TestMergeBinMatchesSingleBatch(t *testing.T) {
	k := 3
	dir1 := t.TempDir()
	writeBatch(t, dir1, k, 0, 1, []string{
		"ACG", "CGT", "GTA", "TAC", "ACG", "CGT", "GTA", "TAC", "ACG", "CGT",
	})
	require.NoError(t, MergeBin(dir1, k, 0, 1))
	single := readMergedCounts(t, dir1, k, 0)

	dir2 := t.TempDir()
	writeBatch(t, dir2, k, 0, 1, []string{"ACG", "CGT", "GTA", "TAC", "ACG"})
	writeBatch(t, dir2, k, 0, 2, []string{"CGT", "GTA", "TAC", "ACG", "CGT"})
	require.NoError(t, MergeBin(dir2, k, 0, 2))
	split := readMergedCounts(t, dir2, k, 0)

	require.Equal(t, single, split)
}

func TestMergeBinEmptyBatch(t *testing.T) {
	k := 3
	dir := t.TempDir()
	writeBatch(t, dir, k, 0, 1, nil)
	require.NoError(t, MergeBin(dir, k, 0, 1))
	require.Empty(t, readMergedCounts(t, dir, k, 0))
}
