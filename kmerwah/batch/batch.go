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

// Package batch reads and writes the per-bin on-disk files: the
// bit-sliced k-mer file (a spilled batch or the final merged form) and
// its sibling range-index file.
package batch

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kmerwah/kmerwah/kmerwah/rangeindex"
	"github.com/kmerwah/kmerwah/kmerwah/wah"
)

var le = binary.LittleEndian

// ErrInvalidFileFormat is returned when a slices or index file's header
// is structurally inconsistent (e.g. a length that disagrees with the
// file size).
var ErrInvalidFileFormat = errors.New("batch: invalid file format")

// ErrBrokenFile is returned on a short read or truncated payload.
var ErrBrokenFile = errors.New("batch: broken or truncated file")

// SlicesFileName returns the bit-sliced k-mer file name for the given
// k-mer length and bin. batch == 0 names the final, post-merge file
// (no batch suffix); batch > 0 names an intermediate spilled batch.
func SlicesFileName(k, bin, batchNo int) string {
	if batchNo == 0 {
		return fmt.Sprintf("%d-mers.%d", k, bin)
	}
	return fmt.Sprintf("%d-mers.%d.%d", k, bin, batchNo)
}

// IndexFileName returns the sibling range-index file name.
func IndexFileName(k, bin, batchNo int) string {
	return SlicesFileName(k, bin, batchNo) + ".idx"
}

// WriteSlices writes the bit-sliced k-mer file:
//
//	n_slices:   u64
//	count[i]:   u32, i in [0, n_slices)
//	for each slice: byte_len u64, then byte_len bytes of WAH dump.
func WriteSlices(w io.Writer, slices []*wah.BitVec) error {
	if err := writeU64(w, uint64(len(slices))); err != nil {
		return err
	}
	for _, s := range slices {
		if err := writeU32(w, s.Count()); err != nil {
			return err
		}
	}
	for _, s := range slices {
		dump := s.Dump()
		if err := writeU64(w, uint64(len(dump))); err != nil {
			return err
		}
		if _, err := w.Write(dump); err != nil {
			return err
		}
	}
	return nil
}

// ReadSlices reads a file written by WriteSlices.
func ReadSlices(r io.Reader) ([]*wah.BitVec, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	counts := make([]uint32, n)
	for i := range counts {
		c, err := readU32(r)
		if err != nil {
			return nil, err
		}
		counts[i] = c
	}
	slices := make([]*wah.BitVec, n)
	for i := range slices {
		dump, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		bv, err := wah.Load(dump)
		if err != nil {
			return nil, ErrBrokenFile
		}
		if bv.Count() != counts[i] {
			return nil, ErrInvalidFileFormat
		}
		slices[i] = bv
	}
	return slices, nil
}

// WriteIndex writes the range-index file:
//
//	n_distinct_values: u64
//	V[j]:               u32, j in [0, n_distinct_values)
//	for each value: byte_len u64, then byte_len bytes of WAH dump of C[j].
func WriteIndex(w io.Writer, ix rangeindex.Index) error {
	if err := writeU64(w, uint64(len(ix.V))); err != nil {
		return err
	}
	for _, v := range ix.V {
		if err := writeU32(w, v); err != nil {
			return err
		}
	}
	for _, c := range ix.C {
		dump := c.Dump()
		if err := writeU64(w, uint64(len(dump))); err != nil {
			return err
		}
		if _, err := w.Write(dump); err != nil {
			return err
		}
	}
	return nil
}

// ReadIndex reads a file written by WriteIndex.
func ReadIndex(r io.Reader) (rangeindex.Index, error) {
	n, err := readU64(r)
	if err != nil {
		return rangeindex.Index{}, err
	}
	v := make([]uint32, n)
	for i := range v {
		val, err := readU32(r)
		if err != nil {
			return rangeindex.Index{}, err
		}
		v[i] = val
	}
	c := make([]*wah.BitVec, n)
	for i := range c {
		dump, err := readBlob(r)
		if err != nil {
			return rangeindex.Index{}, err
		}
		bv, err := wah.Load(dump)
		if err != nil {
			return rangeindex.Index{}, ErrBrokenFile
		}
		c[i] = bv
	}
	return rangeindex.Index{V: v, C: c}, nil
}

// WriteSlicesFile and WriteIndexFile/ReadSlicesFile/ReadIndexFile wrap
// the Write/Read pair with file creation and buffering, the way
// lexicmap/tree's serialization.WriteToFile wraps Write.

// WriteSlicesFile writes slices to outdir/SlicesFileName(k, bin, batchNo).
func WriteSlicesFile(outdir string, k, bin, batchNo int, slices []*wah.BitVec) (err error) {
	path := filepath.Join(outdir, SlicesFileName(k, bin, batchNo))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err = WriteSlices(bw, slices); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadSlicesFile reads outdir/SlicesFileName(k, bin, batchNo).
func ReadSlicesFile(outdir string, k, bin, batchNo int) ([]*wah.BitVec, error) {
	path := filepath.Join(outdir, SlicesFileName(k, bin, batchNo))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSlices(bufio.NewReader(f))
}

// WriteIndexFile writes ix to outdir/IndexFileName(k, bin, batchNo).
func WriteIndexFile(outdir string, k, bin, batchNo int, ix rangeindex.Index) (err error) {
	path := filepath.Join(outdir, IndexFileName(k, bin, batchNo))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err = WriteIndex(bw, ix); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadIndexFile reads outdir/IndexFileName(k, bin, batchNo).
func ReadIndexFile(outdir string, k, bin, batchNo int) (rangeindex.Index, error) {
	path := filepath.Join(outdir, IndexFileName(k, bin, batchNo))
	f, err := os.Open(path)
	if err != nil {
		return rangeindex.Index{}, err
	}
	defer f.Close()
	return ReadIndex(bufio.NewReader(f))
}

// RemoveBatchFiles deletes the slices and index files of one batch,
// called by the merger after a successful merge.
func RemoveBatchFiles(outdir string, k, bin, batchNo int) error {
	if err := os.Remove(filepath.Join(outdir, SlicesFileName(k, bin, batchNo))); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(filepath.Join(outdir, IndexFileName(k, bin, batchNo))); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	le.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	le.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, ErrBrokenFile
		}
		return 0, err
	}
	return le.Uint64(buf[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, ErrBrokenFile
		}
		return 0, err
	}
	return le.Uint32(buf[:]), nil
}

func readBlob(r io.Reader) ([]byte, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrBrokenFile
	}
	return buf, nil
}
