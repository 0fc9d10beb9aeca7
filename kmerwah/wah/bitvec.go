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

// Package wah implements a Word-Aligned Hybrid compressed bitmap over a
// 32-bit position space. Each word is either a literal (bit 31 clear, 31
// explicit bits) or a fill (bit 31 set, bit 30 the fill value, bits 29..0
// the run length measured in 31-bit units).
package wah

import (
	"encoding/binary"
	"errors"
)

var le = binary.LittleEndian

// Magic-free, fixed-layout header used by Dump/Load.
const headerSize = 4 + 4 + 1 + 4 // length, count, rle, word_count

// ErrRunOverflow is the value AppendFill panics with when an appended run
// would push the logical bit length of the bitmap past 2^31 positions.
var ErrRunOverflow = errors.New("wah: run would overflow 2^31 positions")

// ErrNonMonotoneAppend names the non-monotone-append error condition.
// AppendFill takes an unsigned run and never reports it.
var ErrNonMonotoneAppend = errors.New("wah: non-monotone append")

// ErrBrokenFile is returned by Load when the byte slice is shorter than
// the header or than the payload its word_count header announces.
var ErrBrokenFile = errors.New("wah: broken or truncated dump")

const literalBits = 31
const fillFlag = uint32(1) << 31
const fillValFlag = uint32(1) << 30
const fillLenMask = fillValFlag - 1 // 30 bits
const literalMask = uint32(1)<<literalBits - 1
const maxPositions = uint32(1) << 31

// BitVec is a WAH-compressed bitmap.
type BitVec struct {
	length uint32 // logical bit length
	cnt    uint32 // cached popcount

	words []uint32

	// streaming state: a partial literal word not yet flushed.
	litBuf   uint32
	litCount uint32
}

// NewStreaming returns an empty BitVec ready to receive AppendFill calls.
func NewStreaming() *BitVec {
	return &BitVec{words: make([]uint32, 0, 16)}
}

// NewFromSorted builds a BitVec of the given logical length from an
// ascending list of unique set-bit positions, each < length.
func NewFromSorted(length uint32, positions []uint32) *BitVec {
	b := NewStreaming()
	var prev uint32
	for _, p := range positions {
		if p > prev {
			b.AppendFill(0, p-prev)
		}
		b.AppendFill(1, 1)
		prev = p + 1
	}
	if length > prev {
		b.AppendFill(0, length-prev)
	}
	return b.Finalize()
}

// Len returns the logical bit length.
func (b *BitVec) Len() uint32 { return b.length }

// Count returns the cached number of set bits.
func (b *BitVec) Count() uint32 { return b.cnt }

// AppendFill appends run consecutive bits of the given value (0 or 1).
// Two adjacent fills of the same value are coalesced into one fill word,
// as required by the WAH invariant. Appends must be monotone: callers
// build a bitmap strictly left to right.
func (b *BitVec) AppendFill(value byte, run uint32) {
	if run == 0 {
		return
	}
	if uint64(b.length)+uint64(run) > uint64(maxPositions) {
		panic(ErrRunOverflow)
	}

	for run > 0 {
		if b.litCount == 0 && run >= literalBits {
			nWords := run / literalBits
			b.emitFillWords(value, nWords)
			b.length += nWords * literalBits
			run -= nWords * literalBits
			if run == 0 {
				break
			}
		}

		avail := literalBits - b.litCount
		n := run
		if n > avail {
			n = avail
		}
		if value != 0 {
			mask := (uint32(1)<<n - 1) << b.litCount
			b.litBuf |= mask
			b.cnt += n
		}
		b.litCount += n
		b.length += n
		run -= n
		if b.litCount == literalBits {
			b.flushLiteral()
		}
	}
}

// flushLiteral closes the partial literal word, recognizing all-zero and
// all-one words as one-word fills so they coalesce with a preceding fill.
// The bits of litBuf were already counted in b.cnt as they were appended,
// so this must not double-count them.
func (b *BitVec) flushLiteral() {
	switch b.litBuf {
	case 0:
		b.appendFillWord(0, 1)
	case literalMask:
		b.appendFillWord(1, 1)
	default:
		b.words = append(b.words, b.litBuf)
	}
	b.litBuf = 0
	b.litCount = 0
}

// emitFillWords appends nWords of fill value not yet reflected in b.cnt.
func (b *BitVec) emitFillWords(value byte, nWords uint32) {
	if nWords == 0 {
		return
	}
	if value != 0 {
		b.cnt += nWords * literalBits
	}
	b.appendFillWord(value, nWords)
}

// appendFillWord appends nWords of fill value, coalescing with the last
// word if it is already a fill of the same value. It never touches b.cnt.
func (b *BitVec) appendFillWord(value byte, nWords uint32) {
	if n := len(b.words); n > 0 {
		last := b.words[n-1]
		if last&fillFlag != 0 {
			lastVal := byte((last & fillValFlag) >> 30)
			if lastVal == value {
				run := last & fillLenMask
				b.words[n-1] = fillFlag | uint32(value)<<30 | (run + nWords)
				return
			}
		}
	}
	b.words = append(b.words, fillFlag|uint32(value)<<30|nWords)
}

// Finalize pads and flushes any partial literal word (padded with zeros
// past the logical length, per the WAH invariant) and returns the BitVec.
func (b *BitVec) Finalize() *BitVec {
	if b.litCount > 0 {
		b.flushLiteral()
	}
	return b
}

// Contains reports whether the given position's bit is set. It walks the
// compressed words, skipping whole fills in O(1) rather than expanding them.
func (b *BitVec) Contains(pos uint32) bool {
	if pos >= b.length {
		return false
	}
	var base uint32
	for _, w := range b.words {
		if w&fillFlag != 0 {
			run := w & fillLenMask
			span := run * literalBits
			if pos < base+span {
				return (w & fillValFlag) != 0
			}
			base += span
		} else {
			if pos < base+literalBits {
				return w&(1<<(pos-base)) != 0
			}
			base += literalBits
		}
	}
	return false
}

// Rank returns the number of set bits in [0, pos).
func (b *BitVec) Rank(pos uint32) uint32 {
	if pos > b.length {
		pos = b.length
	}
	var base, rank uint32
	for _, w := range b.words {
		if base >= pos {
			break
		}
		if w&fillFlag != 0 {
			run := w & fillLenMask
			span := run * literalBits
			end := base + span
			if pos >= end {
				if w&fillValFlag != 0 {
					rank += span
				}
			} else {
				if w&fillValFlag != 0 {
					rank += pos - base
				}
			}
			base = end
		} else {
			end := base + literalBits
			if pos >= end {
				rank += uint32(popcount31(w))
			} else {
				n := pos - base
				rank += uint32(popcount31(w & (1<<n - 1)))
			}
			base = end
		}
	}
	return rank
}

func popcount31(w uint32) int {
	var c int
	w &= literalMask
	for w != 0 {
		w &= w - 1
		c++
	}
	return c
}

// Select returns the position of the k-th (0-based) set bit, or false if
// there are fewer than k+1 set bits.
func (b *BitVec) Select(k uint32) (uint32, bool) {
	var base, seen uint32
	for _, w := range b.words {
		if w&fillFlag != 0 {
			run := w & fillLenMask
			span := run * literalBits
			if w&fillValFlag != 0 {
				if seen+span > k {
					return base + (k - seen), true
				}
				seen += span
			}
			base += span
		} else {
			pc := uint32(popcount31(w))
			if seen+pc > k {
				need := k - seen
				var i uint32
				for i = 0; i < literalBits; i++ {
					if w&(1<<i) != 0 {
						if need == 0 {
							return base + i, true
						}
						need--
					}
				}
			}
			seen += pc
			base += literalBits
		}
	}
	return 0, false
}

// op combines two literal (31-bit) words.
type op func(a, b uint32) uint32

func opUnion(a, b uint32) uint32     { return a | b }
func opIntersect(a, b uint32) uint32 { return a & b }

// cursor decodes a WAH word stream lazily, one encoded word at a time,
// exposing the shorter-of-the-two-runs word-pair decoder the algorithm
// needs for union/intersect.
type cursor struct {
	words  []uint32
	idx    int
	isFill bool
	val    byte   // meaningful if isFill
	lit    uint32 // meaningful if !isFill: the 31-bit payload
	remain uint32 // remaining 31-bit units of the current word
}

func newCursor(words []uint32) *cursor {
	c := &cursor{words: words}
	c.load()
	return c
}

func (c *cursor) load() {
	if c.idx >= len(c.words) {
		c.remain = 0
		return
	}
	w := c.words[c.idx]
	if w&fillFlag != 0 {
		c.isFill = true
		c.val = byte((w & fillValFlag) >> 30)
		c.remain = w & fillLenMask
	} else {
		c.isFill = false
		c.lit = w & literalMask
		c.remain = 1
	}
}

func (c *cursor) exhausted() bool {
	return c.remain == 0 && c.idx >= len(c.words)
}

// consume advances the cursor by n 31-bit units, which must be <= remain.
func (c *cursor) consume(n uint32) {
	c.remain -= n
	if c.remain == 0 {
		c.idx++
		c.load()
	}
}

// literalWord returns the 31-bit payload of the current word, expanding
// a fill value to an all-0 or all-1 literal if necessary.
func (c *cursor) literalWord() uint32 {
	if !c.isFill {
		return c.lit
	}
	if c.val != 0 {
		return literalMask
	}
	return 0
}

func combine(a, b *BitVec, f op) *BitVec {
	out := NewStreaming()
	ca := newCursor(a.words)
	cb := newCursor(b.words)

	for !ca.exhausted() || !cb.exhausted() {
		if ca.exhausted() {
			n := cb.remain
			appendCursorRun(out, cb, f, f(literalMask, 0) == literalMask)
			cb.consume(n)
			continue
		}
		if cb.exhausted() {
			n := ca.remain
			appendCursorRun(out, ca, f, f(literalMask, 0) == literalMask)
			ca.consume(n)
			continue
		}

		if ca.isFill && cb.isFill {
			n := ca.remain
			if cb.remain < n {
				n = cb.remain
			}
			out.AppendFill(fillBit(f(fillLiteral(ca.val), fillLiteral(cb.val))), n*literalBits)
			ca.consume(n)
			cb.consume(n)
			continue
		}

		combined := f(ca.literalWord(), cb.literalWord()) & literalMask
		emitLiteralOrFill(out, combined)
		ca.consume(1)
		cb.consume(1)
	}

	length := a.length
	if b.length > length {
		length = b.length
	}
	if out.length < length {
		out.AppendFill(0, length-out.length)
	}
	return out.Finalize()
}

// appendCursorRun copies the remainder of one exhausted-pair side through
// unchanged (as if the other operand were all-zero), which is correct for
// union (x|0=x) but not for intersect; onlyForUnion guards that.
func appendCursorRun(out *BitVec, c *cursor, f op, onlyForUnion bool) {
	if !onlyForUnion {
		// intersect against an implicit zero operand is all zero.
		out.AppendFill(0, remainingBits(c))
		return
	}
	if c.isFill {
		out.AppendFill(c.val, c.remain*literalBits)
	} else {
		emitLiteralOrFill(out, c.lit)
	}
}

func remainingBits(c *cursor) uint32 {
	if c.isFill {
		return c.remain * literalBits
	}
	return literalBits
}

func fillLiteral(v byte) uint32 {
	if v != 0 {
		return literalMask
	}
	return 0
}

func fillBit(lit uint32) byte {
	if lit == literalMask {
		return 1
	}
	return 0
}

func emitLiteralOrFill(out *BitVec, lit uint32) {
	switch lit {
	case 0:
		out.AppendFill(0, literalBits)
	case literalMask:
		out.AppendFill(1, literalBits)
	default:
		var i uint32
		for i = 0; i < literalBits; i++ {
			if lit&(1<<i) != 0 {
				out.AppendFill(1, 1)
			} else {
				out.AppendFill(0, 1)
			}
		}
	}
}

// Union returns the bitwise OR of b and other.
func (b *BitVec) Union(other *BitVec) *BitVec {
	return combine(b, other, opUnion)
}

// Intersect returns the bitwise AND of b and other.
func (b *BitVec) Intersect(other *BitVec) *BitVec {
	return combine(b, other, opIntersect)
}

// Complement returns the bitwise NOT of b over [0, b.Len()). Each word is
// truncated at the logical length before flipping, so the padding past it
// stays zero and Count/Select see only positions inside the length.
func (b *BitVec) Complement() *BitVec {
	out := NewStreaming()
	remaining := b.length
	for _, w := range b.words {
		if remaining == 0 {
			break
		}
		if w&fillFlag != 0 {
			val := byte((w & fillValFlag) >> 30)
			run := w & fillLenMask
			bits := run * literalBits
			if bits > remaining {
				bits = remaining
			}
			out.AppendFill(1-val, bits)
			remaining -= bits
		} else {
			lit := w & literalMask
			flipped := literalMask &^ lit
			n := uint32(literalBits)
			if n > remaining {
				n = remaining
			}
			for i := uint32(0); i < n; i++ {
				bitVal := byte(0)
				if flipped&(1<<i) != 0 {
					bitVal = 1
				}
				out.AppendFill(bitVal, 1)
			}
			remaining -= n
		}
	}
	return out.Finalize()
}

// Dump serializes the bitmap as:
//
//	logical_bit_length: u32
//	count:               u32
//	rle:                 u8  (always 1, reserved for future encodings)
//	word_count:          u32
//	word_count 32-bit words, little-endian.
func (b *BitVec) Dump() []byte {
	buf := make([]byte, headerSize+4*len(b.words))
	le.PutUint32(buf[0:4], b.length)
	le.PutUint32(buf[4:8], b.cnt)
	buf[8] = 1
	le.PutUint32(buf[9:13], uint32(len(b.words)))
	off := headerSize
	for _, w := range b.words {
		le.PutUint32(buf[off:off+4], w)
		off += 4
	}
	return buf
}

// Load parses a dump produced by Dump.
func Load(data []byte) (*BitVec, error) {
	if len(data) < headerSize {
		return nil, ErrBrokenFile
	}
	b := &BitVec{}
	b.length = le.Uint32(data[0:4])
	b.cnt = le.Uint32(data[4:8])
	nWords := int(le.Uint32(data[9:13]))
	if len(data) < headerSize+4*nWords {
		return nil, ErrBrokenFile
	}
	b.words = make([]uint32, nWords)
	off := headerSize
	for i := 0; i < nWords; i++ {
		b.words[i] = le.Uint32(data[off : off+4])
		off += 4
	}
	return b, nil
}
