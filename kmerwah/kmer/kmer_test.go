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

package kmer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomSeq(rng *rand.Rand, n int) []byte {
	bases := []byte("ACGT")
	seq := make([]byte, n)
	for i := range seq {
		seq[i] = bases[rng.Intn(4)]
	}
	return seq
}

func TestPackUnpackRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for k := 1; k <= 128; k++ {
		seq := randomSeq(rng, k)
		key := PackInitial(seq, k)
		require.Equal(t, string(seq), ToString(key, k), "k=%d", k)
	}
}

func TestShiftAppendSlidesWindow(t *testing.T) {
	seq := []byte("ACGTACGT")
	k := 4
	key := PackInitial(seq[:k], k)
	require.Equal(t, "ACGT", ToString(key, k))

	for i := k; i < len(seq); i++ {
		ShiftAppend(key, k, seq[i])
		require.Equal(t, string(seq[i-k+1:i+1]), ToString(key, k))
	}
}

func TestReverseComplementInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, k := range []int{1, 2, 5, 31, 32, 33, 63, 64, 65, 100, 200, 256} {
		seq := randomSeq(rng, k)
		key := PackInitial(seq, k)
		rc := ReverseComplement(key, k)
		rcrc := ReverseComplement(rc, k)
		require.Truef(t, Equal(key, rcrc), "k=%d rc(rc(x)) != x", k)
	}
}

func TestReverseComplementKnownValues(t *testing.T) {
	cases := []struct{ seq, rc string }{
		{"ACGT", "ACGT"},
		{"AAAA", "TTTT"},
		{"ACG", "CGT"},
		{"TTTT", "AAAA"},
		{"GATTACA", "TGTAATC"},
	}
	for _, c := range cases {
		k := len(c.seq)
		key := PackInitial([]byte(c.seq), k)
		rc := ReverseComplement(key, k)
		require.Equal(t, c.rc, ToString(rc, k), "seq=%s", c.seq)
	}
}

func TestCanonicalIdempotentAndAgreesWithRC(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	for _, k := range []int{1, 3, 4, 5, 31, 32, 33, 64, 65, 128} {
		seq := randomSeq(rng, k)
		key := PackInitial(seq, k)
		c1 := Canonical(key, k)
		c2 := Canonical(c1, k)
		require.Truef(t, Equal(c1, c2), "k=%d canonical not idempotent", k)

		rc := ReverseComplement(key, k)
		cRC := Canonical(rc, k)
		require.Truef(t, Equal(c1, cRC), "k=%d canonical(x) != canonical(rc(x))", k)
	}
}

func TestCompareOrdering(t *testing.T) {
	a := PackInitial([]byte("AAAA"), 4)
	b := PackInitial([]byte("AAAC"), 4)
	c := PackInitial([]byte("TTTT"), 4)
	require.Equal(t, -1, Compare(a, b))
	require.Equal(t, 1, Compare(b, a))
	require.Equal(t, 0, Compare(a, Clone(a)))
	require.Equal(t, -1, Compare(a, c))
}

func TestUnknownSymbolMapsToA(t *testing.T) {
	key := PackInitial([]byte("ACNT"), 4)
	require.Equal(t, "ACAT", ToString(key, 4))
}

func TestMaskZeroesUnusedBits(t *testing.T) {
	k := 33 // W=2, second word uses only its low 2 bits
	seq := randomSeq(rand.New(rand.NewSource(3)), k)
	key := PackInitial(seq, k)
	require.Equal(t, key[1]&^Mask(k), uint64(0))
}
