// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cfile

import (
	"bytes"

	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/internal/coding"
	"github.com/colstore/colstore/internal/invariants"
	"github.com/colstore/colstore/row"
)

// The binary plain block stores variable-length byte strings uncompressed:
//
//	+------------------------------+
//	| ordinal_pos_base  (u32 LE)   |
//	| num_elems         (u32 LE)   |
//	| offsets_pos       (u32 LE)   |
//	+------------------------------+
//	| raw value bytes, concatenated|
//	+------------------------------+
//	| group-varint encoded offsets |
//	| (one per value, relative to  |
//	|  block start)                |
//	+------------------------------+
//
// offsets_pos is the byte offset of the offset table within the block.
// Decoding appends one synthetic extra offset equal to offsets_pos so that
// value i spans [offset[i], offset[i+1]) uniformly, including the last.
const binaryPlainHeaderSize = 12

// BinaryPlainBlockBuilder builds binary plain blocks. The header space is
// reserved at construction and filled in by Finish.
type BinaryPlainBlockBuilder struct {
	buf     []byte
	offsets []uint32
	// sizeEstimate tracks the serialized size incrementally: header, value
	// bytes, offset bytes, and one group-varint selector byte per four
	// values. Updated on every Add rather than recomputed; it may overcount
	// slightly but never undercounts.
	sizeEstimate int
	blockSize    int
	finished     bool
}

var _ BlockBuilder = (*BinaryPlainBlockBuilder)(nil)

// NewBinaryPlainBlockBuilder constructs a builder targeting blockSize bytes.
func NewBinaryPlainBlockBuilder(blockSize int) *BinaryPlainBlockBuilder {
	b := &BinaryPlainBlockBuilder{blockSize: blockSize}
	b.Reset()
	return b
}

// Reset implements BlockBuilder.
func (b *BinaryPlainBlockBuilder) Reset() {
	b.offsets = b.offsets[:0]
	b.buf = append(b.buf[:0], make([]byte, binaryPlainHeaderSize)...)
	b.sizeEstimate = binaryPlainHeaderSize
	b.finished = false
}

// IsBlockFull implements BlockBuilder.
func (b *BinaryPlainBlockBuilder) IsBlockFull() bool {
	return b.sizeEstimate > b.blockSize
}

// Add implements BlockBuilder.
func (b *BinaryPlainBlockBuilder) Add(values [][]byte) int {
	invariants.Assertf(!b.finished, "Add on a finished builder")
	i := 0
	for i < len(values) {
		// An empty block admits its first value unconditionally, so a value
		// larger than the block size still makes progress.
		if b.IsBlockFull() && len(b.offsets) > 0 {
			break
		}
		// Every fourth entry needs a group-varint selector byte.
		if len(b.offsets)%4 == 0 {
			b.sizeEstimate++
		}
		offset := uint32(len(b.buf))
		b.offsets = append(b.offsets, offset)
		b.sizeEstimate += coding.CalcRequiredBytes32(offset)

		b.buf = append(b.buf, values[i]...)
		b.sizeEstimate += len(values[i])
		i++
	}
	return i
}

// Count implements BlockBuilder.
func (b *BinaryPlainBlockBuilder) Count() int { return len(b.offsets) }

// Finish implements BlockBuilder.
func (b *BinaryPlainBlockBuilder) Finish(ordinalPos base.RowID) []byte {
	invariants.Assertf(!b.finished, "Finish called twice without Reset")
	b.finished = true

	offsetsPos := uint32(len(b.buf))
	coding.EncodeFixed32(b.buf[0:], uint32(ordinalPos))
	coding.EncodeFixed32(b.buf[4:], uint32(len(b.offsets)))
	coding.EncodeFixed32(b.buf[8:], offsetsPos)

	if len(b.offsets) > 0 {
		b.buf = coding.AppendGroupVarint32Sequence(b.buf, b.offsets)
	}
	return b.buf
}

func (b *BinaryPlainBlockBuilder) keyAtIdx(idx int) ([]byte, error) {
	if len(b.offsets) == 0 {
		return nil, base.NotFoundErrorf("no keys in data block")
	}
	if idx < 0 || idx >= len(b.offsets) {
		return nil, base.InvalidArgumentErrorf("index %d out of range", idx)
	}
	start := b.offsets[idx]
	end := uint32(len(b.buf))
	if b.finished {
		// After Finish the offset table has been appended; the data section
		// ends at offsets_pos, which Finish wrote into the header.
		end = coding.DecodeFixed32(b.buf[8:])
	}
	if idx+1 < len(b.offsets) {
		end = b.offsets[idx+1]
	}
	return b.buf[start:end], nil
}

// FirstKey implements BlockBuilder.
func (b *BinaryPlainBlockBuilder) FirstKey() ([]byte, error) {
	return b.keyAtIdx(0)
}

// LastKey implements BlockBuilder.
func (b *BinaryPlainBlockBuilder) LastKey() ([]byte, error) {
	return b.keyAtIdx(len(b.offsets) - 1)
}

// BinaryPlainBlockDecoder decodes binary plain blocks.
type BinaryPlainBlockDecoder struct {
	data           []byte
	parsed         bool
	numElems       int
	ordinalPosBase base.RowID
	curIdx         int
	// offsets holds numElems+1 entries; the synthetic last entry equals
	// offsets_pos so that value lengths need no special case.
	offsets []uint32
}

var _ BlockDecoder = (*BinaryPlainBlockDecoder)(nil)

// NewBinaryPlainBlockDecoder constructs a decoder over data, which must
// remain valid and unmodified for the decoder's lifetime.
func NewBinaryPlainBlockDecoder(data []byte) *BinaryPlainBlockDecoder {
	return &BinaryPlainBlockDecoder{data: data}
}

// ParseHeader implements BlockDecoder.
func (d *BinaryPlainBlockDecoder) ParseHeader() error {
	invariants.Assertf(!d.parsed, "ParseHeader called twice")

	if len(d.data) < binaryPlainHeaderSize {
		return base.CorruptionErrorf(
			"not enough bytes for header: string block header size (%d) less than "+
				"minimum possible header length (%d)", len(d.data), binaryPlainHeaderSize)
	}
	d.ordinalPosBase = base.RowID(coding.DecodeFixed32(d.data[0:]))
	d.numElems = int(coding.DecodeFixed32(d.data[4:]))
	offsetsPos := coding.DecodeFixed32(d.data[8:])

	if int(offsetsPos) > len(d.data) {
		return base.CorruptionErrorf("offsets_pos %d > block size %d in plain string block",
			offsetsPos, len(d.data))
	}

	// Decode the offset table. Use the unchecked fast path while at least a
	// full maximum-sized group of lookahead remains; fall back to the
	// bounds-checked decoder near the end of the buffer.
	d.offsets = make([]uint32, 0, d.numElems+1)
	pos := int(offsetsPos)
	rem := d.numElems
	for rem >= 4 {
		if len(d.data)-pos >= coding.MaxGroupVarint32Size {
			var vals [4]uint32
			vals, pos = coding.DecodeGroupVarint32(d.data, pos)
			d.offsets = append(d.offsets, vals[0], vals[1], vals[2], vals[3])
		} else {
			vals, next, err := coding.DecodeGroupVarint32Safe(d.data, pos)
			if err != nil {
				return base.CorruptionErrorf("unable to decode offsets in block")
			}
			pos = next
			d.offsets = append(d.offsets, vals[0], vals[1], vals[2], vals[3])
		}
		rem -= 4
	}
	if rem > 0 {
		vals, _, err := coding.DecodeGroupVarint32Safe(d.data, pos)
		if err != nil {
			return base.CorruptionErrorf("unable to decode offsets in block")
		}
		d.offsets = append(d.offsets, vals[:rem]...)
	}

	// Synthetic trailing offset, one past the last value's bytes.
	d.offsets = append(d.offsets, offsetsPos)

	// The offsets must be non-decreasing (empty values repeat an offset) and
	// confined to the data section; a violation means the table is garbage.
	for i := 0; i+1 < len(d.offsets); i++ {
		if d.offsets[i] > d.offsets[i+1] || int(d.offsets[i]) > len(d.data) {
			return base.CorruptionErrorf("decoded offset %d out of order or out of range", i)
		}
	}

	d.parsed = true
	d.curIdx = 0
	return nil
}

// Count implements BlockDecoder.
func (d *BinaryPlainBlockDecoder) Count() int { return d.numElems }

// CurrentIndex implements BlockDecoder.
func (d *BinaryPlainBlockDecoder) CurrentIndex() int { return d.curIdx }

// FirstRowID implements BlockDecoder.
func (d *BinaryPlainBlockDecoder) FirstRowID() base.RowID { return d.ordinalPosBase }

// HasNext implements BlockDecoder.
func (d *BinaryPlainBlockDecoder) HasNext() bool { return d.curIdx < d.numElems }

// ValueAt returns the idx'th value without moving the cursor. The returned
// slice aliases the block buffer.
func (d *BinaryPlainBlockDecoder) ValueAt(idx int) []byte {
	invariants.Assertf(d.parsed, "must call ParseHeader()")
	invariants.CheckBounds(idx, d.numElems)
	return d.data[d.offsets[idx]:d.offsets[idx+1]]
}

// SeekToPositionInBlock implements BlockDecoder.
func (d *BinaryPlainBlockDecoder) SeekToPositionInBlock(pos int) {
	if d.numElems == 0 {
		invariants.Assertf(pos == 0, "seek to %d in empty block", pos)
		return
	}
	invariants.Assertf(pos <= d.numElems, "seek to %d beyond block count %d", pos, d.numElems)
	d.curIdx = pos
}

// SeekForward implements BlockDecoder.
func (d *BinaryPlainBlockDecoder) SeekForward(n int) int {
	if rem := d.numElems - d.curIdx; n > rem {
		n = rem
	}
	d.curIdx += n
	return n
}

// SeekAtOrAfterValue implements BlockDecoder.
func (d *BinaryPlainBlockDecoder) SeekAtOrAfterValue(target []byte) (exact bool, err error) {
	invariants.Assertf(d.parsed, "must call ParseHeader()")
	left, right := 0, d.numElems
	for left != right {
		mid := (left + right) / 2
		c := bytes.Compare(d.ValueAt(mid), target)
		switch {
		case c < 0:
			left = mid + 1
		case c > 0:
			right = mid
		default:
			d.curIdx = mid
			return true, nil
		}
	}
	d.curIdx = left
	if d.curIdx == d.numElems {
		return false, base.NotFoundErrorf("after last key in block")
	}
	return false, nil
}

// handleBatch drives a batch copy, invoking fn for each value. fn receives
// the relative batch index and the value (aliasing the block buffer).
func (d *BinaryPlainBlockDecoder) handleBatch(n int, fn func(i int, val []byte)) int {
	invariants.Assertf(d.parsed, "must call ParseHeader()")
	if n == 0 || d.curIdx >= d.numElems {
		return 0
	}
	if rem := d.numElems - d.curIdx; n > rem {
		n = rem
	}
	for i := 0; i < n; i++ {
		fn(i, d.ValueAt(d.curIdx))
		d.curIdx++
	}
	return n
}

// CopyNextValues implements BlockDecoder. Values are relocated into dst's
// arena; no copied value references the block buffer past this call.
func (d *BinaryPlainBlockDecoder) CopyNextValues(n int, dst *row.ColumnBlock, dstOff int) (int, error) {
	return d.handleBatch(n, func(i int, val []byte) {
		dst.SetCell(dstOff+i, val)
	}), nil
}

// CopyNextAndEval implements BlockDecoder with a fused predicate path:
// values failing the predicate, or rows already unselected, are skipped
// entirely rather than materialized.
func (d *BinaryPlainBlockDecoder) CopyNextAndEval(
	n int, ctx *MaterializationContext, sel *row.SelectionVectorView, dst *row.ColumnBlock, dstOff int,
) (int, error) {
	ctx.SetDecoderEvalSupported()
	return d.handleBatch(n, func(i int, val []byte) {
		if !sel.TestBit(i) {
			return
		}
		if ctx.Pred.Evaluate(val) {
			dst.SetCell(dstOff+i, val)
		} else {
			sel.ClearBit(i)
		}
	}), nil
}
