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

// Package kmer packs, unpacks and canonicalizes DNA k-mers of up to 256
// bases into fixed-size arrays of 64-bit words, two bits per base.
package kmer

import "strings"

// MaxK is the largest supported k-mer length (W <= 8 words).
const MaxK = 256

// symsPerWord is the number of 2-bit symbols packed into one 64-bit word.
const symsPerWord = 32

// Key is a packed k-mer: W = NumWords(k) words, big-endian across words.
// Words 0..W-2 hold 32 symbols each, symbol 0 in the top two bits of
// Key[0]; the last word holds the remaining symbols in its low bits, so
// symbol k-1 occupies the bottom two bits of Key[len(Key)-1]. For k < 32
// the single word is right-aligned and symbol 0 sits at bits 2k-2..2k-1.
type Key []uint64

var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// base2bit maps a nucleotide byte to its 2-bit code; unknown symbols
// (anything other than A/C/G/T, upper or lower case) map to 0 (A), per
// the documented "N treated as A" behavior.
var base2bit [256]uint64

func init() {
	base2bit['A'], base2bit['a'] = 0, 0
	base2bit['C'], base2bit['c'] = 1, 1
	base2bit['G'], base2bit['g'] = 2, 2
	base2bit['T'], base2bit['t'] = 3, 3
}

// NumWords returns W = ceil(k/32), the word count of a k-mer key.
func NumWords(k int) int {
	return (k + symsPerWord - 1) / symsPerWord
}

// Mask returns kmask, the bitmask of the used bits of a key's last word.
func Mask(k int) uint64 {
	rem := k % symsPerWord
	if rem == 0 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(2*rem) - 1
}

// New returns a zeroed key with the correct word count for k.
func New(k int) Key {
	return make(Key, NumWords(k))
}

// Clone returns an independent copy of key.
func Clone(key Key) Key {
	out := make(Key, len(key))
	copy(out, key)
	return out
}

// Compare returns -1, 0 or 1 comparing a and b lexicographically over the
// word array, word 0 most significant, matching whole-key memcmp order.
func Compare(a, b Key) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Equal reports whether a and b denote the same packed key.
func Equal(a, b Key) bool {
	return Compare(a, b) == 0
}

// ShiftAppend shifts key left by one symbol (2 bits), across all W words
// with carry between adjacent words, ORs in sym's code at the low end,
// and re-masks the last word to k bits. After the call key equals the
// original with its leading symbol dropped and sym appended.
func ShiftAppend(key Key, k int, sym byte) {
	w := len(key)
	code := base2bit[sym]
	for i := 0; i < w-1; i++ {
		carry := key[i+1] >> 62
		if rem := k % symsPerWord; i+1 == w-1 && rem != 0 {
			// the partial last word keeps its leading symbol at bits 2rem-2..2rem-1
			carry = (key[i+1] >> uint(2*rem-2)) & 3
		}
		key[i] = (key[i] << 2) | carry
	}
	key[w-1] = ((key[w-1] << 2) | code) & Mask(k)
}

// PackInitial packs the first k bytes of seq into a fresh key via
// repeated ShiftAppend. seq must have length >= k.
func PackInitial(seq []byte, k int) Key {
	key := New(k)
	for i := 0; i < k; i++ {
		ShiftAppend(key, k, seq[i])
	}
	return key
}

// reverseGroups64 reverses the order of the 32 2-bit symbol groups within
// a 64-bit word, leaving the two bits of each group in place.
func reverseGroups64(x uint64) uint64 {
	var out uint64
	for i := 0; i < symsPerWord; i++ {
		sym := (x >> uint(62-2*i)) & 3
		out |= sym << uint(2*i)
	}
	return out
}

// rcWord reverses the symbol order within a word and complements every
// symbol (A<->T, C<->G), which for 2-bit codes is exactly bitwise NOT.
func rcWord(x uint64) uint64 {
	return ^reverseGroups64(x)
}

// shiftRightArray logically right-shifts the W-word array, treated as one
// big-endian number (Key[0] most significant), by 0 < s < 64 bits.
func shiftRightArray(arr Key, s int) {
	for i := len(arr) - 1; i >= 1; i-- {
		arr[i] = (arr[i] >> uint(s)) | (arr[i-1] << uint(64-s))
	}
	arr[0] = arr[0] >> uint(s)
}

// ReverseComplement returns the reverse complement of key: word order is
// reversed and each word is symbol-reversed and complemented. When k is
// not a multiple of 32, the complemented padding then sits in the low
// 64-2*(k%32) bits of word 0; it is squeezed out (a right shift for a
// single word, otherwise by pulling each following word's top bits up into
// the gap) so the result has the same layout as key.
func ReverseComplement(key Key, k int) Key {
	w := len(key)
	out := make(Key, w)
	for i := 0; i < w; i++ {
		out[i] = rcWord(key[w-1-i])
	}
	if rem := k % symsPerWord; rem != 0 {
		s := 64 - 2*rem
		if w == 1 {
			shiftRightArray(out, s)
		} else {
			out[0] &^= uint64(1)<<uint(s) - 1
			for i := 0; i < w-1; i++ {
				if i > 0 {
					out[i] <<= uint(s)
				}
				out[i] |= out[i+1] >> uint(2*rem)
			}
		}
	}
	out[w-1] &= Mask(k)
	return out
}

// Canonical returns the lexicographically smaller of key and its reverse
// complement.
func Canonical(key Key, k int) Key {
	rc := ReverseComplement(key, k)
	if Compare(key, rc) <= 0 {
		return key
	}
	return rc
}

// ToString renders the first k symbols of key as a nucleotide string, for
// diagnostics.
func ToString(key Key, k int) string {
	var sb strings.Builder
	sb.Grow(k)
	last, rem := NumWords(k)-1, k%symsPerWord
	for i := 0; i < k; i++ {
		wordIdx := i / symsPerWord
		posInWord := i % symsPerWord
		shift := uint(62 - 2*posInWord)
		if wordIdx == last && rem != 0 {
			shift = uint(2 * (rem - 1 - posInWord))
		}
		sym := (key[wordIdx] >> shift) & 3
		sb.WriteByte(bit2base[sym])
	}
	return sb.String()
}
