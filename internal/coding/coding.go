// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package coding implements the low-level integer codecs used by the block
// formats: fixed-width little-endian fields, 32-bit varints, and the
// group-varint encoding used for block offset tables.
package coding

import (
	"encoding/binary"
	"math/bits"

	"github.com/colstore/colstore/internal/base"
)

// EncodeFixed32 writes v to b[0:4] in little-endian order.
func EncodeFixed32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// DecodeFixed32 reads a little-endian uint32 from b[0:4].
func DecodeFixed32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// PutUvarint32 appends the varint encoding of v to dst and returns the
// extended slice.
func PutUvarint32(dst []byte, v uint32) []byte {
	return binary.AppendUvarint(dst, uint64(v))
}

// Uvarint32 decodes a 32-bit varint from the front of b. It returns the value
// and the number of bytes consumed, or an ErrCorruption-marked error if the
// varint is truncated or overflows 32 bits.
func Uvarint32(b []byte) (uint32, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 || v > (1<<32)-1 {
		return 0, 0, base.CorruptionErrorf("truncated or overlong varint32")
	}
	return uint32(v), n, nil
}

// CalcRequiredBytes32 returns the minimum number of bytes (1-4) needed to
// represent v in the group-varint encoding.
func CalcRequiredBytes32(v uint32) int {
	if v == 0 {
		return 1
	}
	return (bits.Len32(v) + 7) / 8
}

// Group-varint encoding: values are encoded in groups of four. Each group is
// a selector byte followed by the four values in truncated little-endian
// form. Two selector bits per value hold its byte length minus one, the first
// value of the group occupying the two high bits.
//
// A group is at most 1+4*4 = 17 bytes.

// MaxGroupVarint32Size is the maximum encoded size of one group.
const MaxGroupVarint32Size = 17

// AppendGroupVarint32 appends one group of four values to dst and returns
// the extended slice.
func AppendGroupVarint32(dst []byte, a, b, c, d uint32) []byte {
	na, nb, nc, nd := CalcRequiredBytes32(a), CalcRequiredBytes32(b),
		CalcRequiredBytes32(c), CalcRequiredBytes32(d)
	sel := byte((na-1)<<6 | (nb-1)<<4 | (nc-1)<<2 | (nd - 1))
	dst = append(dst, sel)
	var scratch [4]byte
	for _, e := range []struct {
		v uint32
		n int
	}{{a, na}, {b, nb}, {c, nc}, {d, nd}} {
		binary.LittleEndian.PutUint32(scratch[:], e.v)
		dst = append(dst, scratch[:e.n]...)
	}
	return dst
}

// AppendGroupVarint32Sequence appends the group-varint encoding of vals to
// dst, zero-padding the final group to four values, and returns the extended
// slice. A decoder must know the true count; padding values decode as zeros
// and are ignored by callers.
func AppendGroupVarint32Sequence(dst []byte, vals []uint32) []byte {
	for len(vals) >= 4 {
		dst = AppendGroupVarint32(dst, vals[0], vals[1], vals[2], vals[3])
		vals = vals[4:]
	}
	if len(vals) > 0 {
		var tail [4]uint32
		copy(tail[:], vals)
		dst = AppendGroupVarint32(dst, tail[0], tail[1], tail[2], tail[3])
	}
	return dst
}

// DecodeGroupVarint32 decodes one group starting at b[pos] without bounds
// checks beyond slice indexing. The caller must have verified that at least
// MaxGroupVarint32Size bytes remain at pos; this is the fast path used when
// sufficient lookahead exists.
func DecodeGroupVarint32(b []byte, pos int) (vals [4]uint32, next int) {
	sel := b[pos]
	pos++
	lens := [4]int{int(sel>>6&3) + 1, int(sel>>4&3) + 1, int(sel>>2&3) + 1, int(sel&3) + 1}
	for i := 0; i < 4; i++ {
		var v uint32
		for j := 0; j < lens[i]; j++ {
			v |= uint32(b[pos+j]) << (8 * j)
		}
		vals[i] = v
		pos += lens[i]
	}
	return vals, pos
}

// DecodeGroupVarint32Safe decodes one group starting at b[pos], verifying
// every byte read against len(b). It is used near the end of a buffer where
// the fast path's lookahead requirement doesn't hold. Returns an
// ErrCorruption-marked error if the group is truncated.
func DecodeGroupVarint32Safe(b []byte, pos int) (vals [4]uint32, next int, err error) {
	if pos >= len(b) {
		return vals, 0, base.CorruptionErrorf("group varint: selector byte past end of buffer")
	}
	sel := b[pos]
	pos++
	for i := 0; i < 4; i++ {
		n := int(sel>>(6-2*i)&3) + 1
		if pos+n > len(b) {
			return vals, 0, base.CorruptionErrorf("group varint: truncated group")
		}
		var v uint32
		for j := 0; j < n; j++ {
			v |= uint32(b[pos+j]) << (8 * j)
		}
		vals[i] = v
		pos += n
	}
	return vals, pos, nil
}
