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

// Package engine drives the end-to-end k-mer counting pipeline: a
// single owning Engine object takes sequences in, spills and merges
// bins on disk, and answers point and histogram queries once loaded.
package engine

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/kmerwah/kmerwah/kmerwah/batch"
	"github.com/kmerwah/kmerwah/kmerwah/bin"
	"github.com/kmerwah/kmerwah/kmerwah/bitslice"
	"github.com/kmerwah/kmerwah/kmerwah/kmer"
	"github.com/kmerwah/kmerwah/kmerwah/merge"
	"github.com/kmerwah/kmerwah/kmerwah/rangeindex"
	"github.com/kmerwah/kmerwah/kmerwah/wah"
)

// Error kinds, per spec's error handling design.
var (
	ErrConfigInvalid = errors.New("engine: invalid configuration")
	ErrOutOfMemory   = errors.New("engine: allocate: memory budget too small")
	ErrStateError    = errors.New("engine: operation invalid in current state")
)

type state int

const (
	stateIngest state = iota
	stateQuery
)

// Freq is one (frequency, count) point of a histogram.
type Freq struct {
	F uint32
	N uint32
}

// Engine is the single owning object of one counting run: no process
// globals, matching spec.md §9's design note.
type Engine struct {
	K       int
	W       int
	Threads int
	OutDir  string
	Mode    bin.Mode

	// Progress, if set, is called at phase boundaries instead of the
	// engine importing a logger directly; cmd wires it to its own
	// logger (see SPEC_FULL.md §10.2).
	Progress func(event string, bin, total int)

	state    state
	bufs     []*bin.Buffer
	capacity int
	batchNo  int

	indexes []rangeindex.Index // loaded by Load, one per bin
}

// New validates k/mode and returns a fresh Engine in its ingest state.
func New(k, threads int, outdir string, mode bin.Mode) (*Engine, error) {
	if k < 1 || k > kmer.MaxK {
		return nil, ErrConfigInvalid
	}
	if mode != bin.RAW && mode != bin.CANONICAL && mode != bin.BOTH {
		return nil, ErrConfigInvalid
	}
	if threads < 1 {
		threads = 1
	}
	return &Engine{
		K:       k,
		W:       kmer.NumWords(k),
		Threads: threads,
		OutDir:  outdir,
		Mode:    mode,
		state:   stateIngest,
	}, nil
}

// Allocate sizes the 256 bin arenas from a total memory budget.
func (e *Engine) Allocate(maxBytes int64) error {
	if e.state != stateIngest {
		return ErrStateError
	}
	capacity := maxBytes / int64(e.W*8) / int64(bin.NumBins)
	if capacity < 1 {
		return ErrOutOfMemory
	}
	e.capacity = int(capacity)
	e.bufs = make([]*bin.Buffer, bin.NumBins)
	for i := range e.bufs {
		e.bufs[i] = bin.NewBuffer(e.W, e.capacity)
	}
	return nil
}

// AddSequence extracts every length-k window of seq and stores it,
// spilling all bins whenever one fills. A sequence shorter than k is a
// silent no-op, per spec.
func (e *Engine) AddSequence(seq []byte) error {
	if e.state != stateIngest {
		return ErrStateError
	}
	if e.bufs == nil {
		return ErrStateError
	}
	if len(seq) < e.K {
		return nil
	}

	key := kmer.PackInitial(seq[:e.K], e.K)
	if err := e.storeKey(key); err != nil {
		return err
	}
	for i := e.K; i < len(seq); i++ {
		kmer.ShiftAppend(key, e.K, seq[i])
		if err := e.storeKey(key); err != nil {
			return err
		}
	}
	return nil
}

// storeKey stores key per mode, spilling and retrying if its bin (or,
// for BOTH, either destination bin) is full.
func (e *Engine) storeKey(key kmer.Key) error {
	for {
		skipped := bin.AddKey(e.bufs, key, e.K, e.Mode)
		if !skipped {
			return nil
		}
		if err := e.Serialize(); err != nil {
			return err
		}
	}
}

// Serialize spills all 256 bins to a new batch file set: sort-unique,
// then bit-slice + range-index + write, each fanned out by bin range,
// then resets the arenas.
func (e *Engine) Serialize() error {
	e.batchNo++
	batchNo := e.batchNo

	distinct := make([][]uint64, bin.NumBins)
	tally := make([][]uint32, bin.NumBins)

	if err := bin.ForEachBin(e.Threads, func(b int) error {
		d, t := e.bufs[b].SortUnique()
		distinct[b], tally[b] = d, t
		return nil
	}); err != nil {
		return err
	}

	if err := bin.ForEachBin(e.Threads, func(b int) error {
		n := len(tally[b])
		slices := bitslice.EncodeAll(e.W, distinct[b], n)
		ix := rangeindex.Build(tally[b])
		if err := batch.WriteSlicesFile(e.OutDir, e.K, b, batchNo, slices); err != nil {
			return err
		}
		return batch.WriteIndexFile(e.OutDir, e.K, b, batchNo, ix)
	}); err != nil {
		return err
	}

	for _, buf := range e.bufs {
		buf.Reset()
	}
	if e.Progress != nil {
		e.Progress("serialize", batchNo, bin.NumBins)
	}
	return nil
}

// Save performs a final Serialize, then either merges all batches (if
// more than one was spilled) or renames the sole batch's files to their
// final names. The arenas are released afterwards, so a later
// AddSequence or Save returns ErrStateError.
func (e *Engine) Save() error {
	if e.state != stateIngest || e.bufs == nil {
		return ErrStateError
	}
	if err := e.Serialize(); err != nil {
		return err
	}

	if e.batchNo > 1 {
		if err := merge.MergeAll(e.OutDir, e.K, e.Threads, e.batchNo); err != nil {
			return err
		}
	} else {
		if err := bin.ForEachBin(e.Threads, func(b int) error {
			return renameToFinal(e.OutDir, e.K, b)
		}); err != nil {
			return err
		}
	}
	e.bufs = nil
	if e.Progress != nil {
		e.Progress("save", bin.NumBins, bin.NumBins)
	}
	return nil
}

func renameToFinal(outdir string, k, b int) error {
	if err := os.Rename(
		filepath.Join(outdir, batch.SlicesFileName(k, b, 1)),
		filepath.Join(outdir, batch.SlicesFileName(k, b, 0)),
	); err != nil {
		return err
	}
	return os.Rename(
		filepath.Join(outdir, batch.IndexFileName(k, b, 1)),
		filepath.Join(outdir, batch.IndexFileName(k, b, 0)),
	)
}

// Load reads every bin's final range index into memory and switches the
// engine to the query state. Bit-sliced k-mer bitmaps are left on disk
// and loaded on demand by Find.
func (e *Engine) Load() error {
	indexes := make([]rangeindex.Index, bin.NumBins)
	if err := bin.ForEachBin(e.Threads, func(b int) error {
		ix, err := batch.ReadIndexFile(e.OutDir, e.K, b, 0)
		if err != nil {
			return err
		}
		indexes[b] = ix
		return nil
	}); err != nil {
		return err
	}
	e.indexes = indexes
	e.state = stateQuery
	return nil
}

// Histogram produces the (frequency, count) series for every frequency
// that occurs anywhere in the corpus, in ascending order, by walking a
// per-bin cursor into each bin's sorted distinct-value list V.
func (e *Engine) Histogram() ([]Freq, error) {
	if e.state != stateQuery {
		return nil, ErrStateError
	}
	cursors := make([]int, bin.NumBins)
	var out []Freq

	for {
		minF := uint32(0)
		found := false
		for b := 0; b < bin.NumBins; b++ {
			v := e.indexes[b].V
			if cursors[b] < len(v) && (!found || v[cursors[b]] < minF) {
				minF = v[cursors[b]]
				found = true
			}
		}
		if !found {
			break
		}
		var total uint32
		for b := 0; b < bin.NumBins; b++ {
			ix := e.indexes[b]
			if cursors[b] < len(ix.V) && ix.V[cursors[b]] == minF {
				total += ix.CountExactly(cursors[b])
				cursors[b]++
			}
		}
		out = append(out, Freq{F: minF, N: total})
	}
	return out, nil
}

// Find returns the frequency of the k-mer string query (length must be
// K), or 0 if it was never observed. It loads the query's bin's bit
// slices on demand and locates the k-mer by bit-plane intersection: for
// each bit of the query key, intersect either that slice or its
// complement; the surviving bitmap has at most one set bit, whose
// position indexes the bin's range index.
func (e *Engine) Find(query string) (uint32, error) {
	if e.state != stateQuery {
		return 0, ErrStateError
	}
	if len(query) != e.K {
		return 0, ErrConfigInvalid
	}

	key := kmer.PackInitial([]byte(query), e.K)
	switch e.Mode {
	case bin.CANONICAL:
		key = kmer.Canonical(key, e.K)
	}

	b := bin.Route(key)
	slices, err := batch.ReadSlicesFile(e.OutDir, e.K, b, 0)
	if err != nil {
		return 0, err
	}
	if len(slices) == 0 || slices[0].Len() == 0 {
		return 0, nil
	}

	var candidate *wah.BitVec
	for wi := 0; wi < e.W; wi++ {
		word := key[wi]
		for p := 0; p < 64; p++ {
			idx := wi*64 + p
			var operand *wah.BitVec
			if (word>>uint(63-p))&1 != 0 {
				operand = slices[idx]
			} else {
				operand = slices[idx].Complement()
			}
			if candidate == nil {
				candidate = operand
			} else {
				candidate = candidate.Intersect(operand)
			}
		}
	}

	pos, ok := candidate.Select(0)
	if !ok {
		return 0, nil
	}
	ix, err := batch.ReadIndexFile(e.OutDir, e.K, b, 0)
	if err != nil {
		return 0, err
	}
	return ix.Value(pos), nil
}
