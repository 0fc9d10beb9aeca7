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

// Package merge performs the multi-way external merge of a bin's
// spilled batches into one final bit-sliced file and range index.
package merge

import (
	"github.com/kmerwah/kmerwah/kmerwah/batch"
	"github.com/kmerwah/kmerwah/kmerwah/bin"
	"github.com/kmerwah/kmerwah/kmerwah/bitslice"
	"github.com/kmerwah/kmerwah/kmerwah/kmer"
	"github.com/kmerwah/kmerwah/kmerwah/rangeindex"
	"github.com/kmerwah/kmerwah/kmerwah/wah"
)

// readKeyAt reconstructs the p-th sorted key of one batch from its bit
// slices by testing containment bit by bit, per spec's O(64W) readback.
func readKeyAt(w int, slices []*wah.BitVec, p uint32) kmer.Key {
	key := make(kmer.Key, w)
	for wi := 0; wi < w; wi++ {
		var word uint64
		for bitPos := 0; bitPos < 64; bitPos++ {
			if slices[wi*64+bitPos].Contains(p) {
				word |= uint64(1) << uint(63-bitPos)
			}
		}
		key[wi] = word
	}
	return key
}

// MergeBin performs the k-way argmin merge of bin's numBatches spilled
// batches (numbered 1..numBatches), writing the merged final slices and
// index file and removing the per-batch files on success. On any I/O
// error the batch files are left in place for retry, per spec's
// failure semantics.
func MergeBin(outdir string, k, binNo, numBatches int) error {
	w := kmer.NumWords(k)

	slicesPerBatch := make([][]*wah.BitVec, numBatches)
	indexPerBatch := make([]rangeindex.Index, numBatches)
	batchLen := make([]uint32, numBatches)

	for i := 0; i < numBatches; i++ {
		batchNo := i + 1
		s, err := batch.ReadSlicesFile(outdir, k, binNo, batchNo)
		if err != nil {
			return err
		}
		ix, err := batch.ReadIndexFile(outdir, k, binNo, batchNo)
		if err != nil {
			return err
		}
		slicesPerBatch[i] = s
		indexPerBatch[i] = ix
		if len(s) > 0 {
			batchLen[i] = s[0].Len()
		}
	}

	curKey := make([]kmer.Key, numBatches)
	curTally := make([]uint32, numBatches)
	offset := make([]uint32, numBatches)
	exhausted := make([]bool, numBatches)
	remaining := numBatches

	for i := 0; i < numBatches; i++ {
		if batchLen[i] == 0 {
			exhausted[i] = true
			remaining--
			continue
		}
		curKey[i] = readKeyAt(w, slicesPerBatch[i], 0)
		curTally[i] = indexPerBatch[i].Value(0)
		offset[i] = 1
	}

	enc := bitslice.NewEncoder(w)
	var tally []uint32
	var distinct kmer.Key
	haveDistinct := false

	for remaining > 0 {
		min := -1
		for i := 0; i < numBatches; i++ {
			if exhausted[i] {
				continue
			}
			if min == -1 || kmer.Compare(curKey[i], curKey[min]) < 0 {
				min = i
			}
		}

		if haveDistinct && kmer.Equal(curKey[min], distinct) {
			tally[len(tally)-1] += curTally[min]
		} else {
			if haveDistinct {
				enc.Add(distinct)
			}
			distinct = kmer.Clone(curKey[min])
			tally = append(tally, curTally[min])
			haveDistinct = true
		}

		if offset[min] >= batchLen[min] {
			exhausted[min] = true
			remaining--
		} else {
			curKey[min] = readKeyAt(w, slicesPerBatch[min], offset[min])
			curTally[min] = indexPerBatch[min].Value(offset[min])
			offset[min]++
		}
	}
	if haveDistinct {
		enc.Add(distinct)
	}

	mergedSlices := enc.Finalize()
	mergedIndex := rangeindex.Build(tally)

	if err := batch.WriteSlicesFile(outdir, k, binNo, 0, mergedSlices); err != nil {
		return err
	}
	if err := batch.WriteIndexFile(outdir, k, binNo, 0, mergedIndex); err != nil {
		return err
	}

	for i := 0; i < numBatches; i++ {
		if err := batch.RemoveBatchFiles(outdir, k, binNo, i+1); err != nil {
			return err
		}
	}
	return nil
}

// MergeAll fans MergeBin out across threads workers, partitioning the
// 256 bins into contiguous ranges per spec's scheduling model, and
// joins before returning.
func MergeAll(outdir string, k, threads, numBatches int) error {
	return bin.ForEachBin(threads, func(b int) error {
		return MergeBin(outdir, k, b, numBatches)
	})
}
