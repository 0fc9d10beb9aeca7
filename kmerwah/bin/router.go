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

// Package bin shards packed k-mers into a fixed number of hash bins and
// holds each bin's pre-allocated arena during ingestion.
package bin

import (
	"encoding/binary"

	"github.com/zeebo/wyhash"

	"github.com/kmerwah/kmerwah/kmerwah/kmer"
)

// NumBins is N, the fixed number of hash partitions of the k-mer space.
const NumBins = 256

// routerSeed is an arbitrary fixed seed; it only needs to be stable
// across a single engine's lifetime (bin assignment must not change
// between a spill and the batches it produces), not cryptographically
// meaningful.
const routerSeed = 0x6b6d6572776168 // "kmerwah" in hex-ish, just a fixed constant

// Route hashes key's content and returns its bin index in [0, NumBins).
func Route(key kmer.Key) int {
	buf := make([]byte, 8*len(key))
	for i, w := range key {
		binary.BigEndian.PutUint64(buf[i*8:i*8+8], w)
	}
	h := wyhash.Hash(buf, routerSeed)
	return int(h % uint64(NumBins))
}

// Mode selects which strand(s) of a k-mer are stored.
type Mode int

const (
	// RAW stores each k-mer exactly as observed.
	RAW Mode = iota
	// CANONICAL stores min(x, rc(x)), folding both strands together.
	CANONICAL
	// BOTH stores x and rc(x) as independent entries.
	BOTH
)

func (m Mode) String() string {
	switch m {
	case RAW:
		return "raw"
	case CANONICAL:
		return "canonical"
	case BOTH:
		return "both"
	default:
		return "unknown"
	}
}
