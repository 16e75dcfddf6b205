// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cfile implements the columnar file format: independently encoded,
// independently seekable value blocks, an optional value index enabling
// seek-by-value, named metadata entries, and a checksummed, compressed
// on-disk layout.
package cfile

import (
	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/row"
)

// BlockBuilder accumulates values for one block of a column. Implementations
// exist per encoding (plain, prefix, bit-shuffle, RLE, dictionary); all honor
// the same contract:
//
//   - IsBlockFull is purely a function of accumulated state, no I/O.
//   - Add accepts a prefix of the given values, stopping once the block is
//     full; an empty block always admits at least one value, even if that
//     alone overshoots the size target.
//   - Finish produces a self-describing immutable buffer. Finishing twice
//     without a Reset is a programming error.
//   - FirstKey/LastKey are valid only after at least one Add.
//
// Builders are exclusively owned by a single writer for their lifetime.
type BlockBuilder interface {
	// Add appends up to len(values) values and returns how many were
	// accepted.
	Add(values [][]byte) int
	// IsBlockFull reports whether the accumulated size estimate exceeds the
	// configured block size.
	IsBlockFull() bool
	// Finish serializes the block, recording ordinalPos as the ordinal
	// position of the block's first value. The returned buffer aliases the
	// builder's memory and is invalidated by Reset.
	Finish(ordinalPos base.RowID) []byte
	// Reset clears all accumulated state; afterwards Count() == 0.
	Reset()
	// Count returns the number of accepted values.
	Count() int
	// FirstKey returns the first appended value. Marked ErrNotFound if the
	// block is empty.
	FirstKey() ([]byte, error)
	// LastKey returns the last appended value. Marked ErrNotFound if the
	// block is empty.
	LastKey() ([]byte, error)
}

// BlockDecoder decodes one block. ParseHeader is the sole gate before any
// other call. A decoder maintains a cursor in [0, Count()], where Count() is
// the valid one-past-the-end sentinel.
type BlockDecoder interface {
	// ParseHeader validates and decodes the block structure. Malformed bytes
	// yield an ErrCorruption-marked error.
	ParseHeader() error
	// SeekToPositionInBlock positions the cursor at pos, which must be in
	// [0, Count()]. No bounds check beyond that contract; violating it is
	// undefined behavior.
	SeekToPositionInBlock(pos int)
	// SeekAtOrAfterValue positions the cursor at the first value >= target,
	// reporting whether the match was exact. Requires the block to contain
	// sorted values; behavior on unsorted content is unspecified. If target
	// exceeds every stored value, returns an ErrNotFound-marked error with
	// the cursor at Count().
	SeekAtOrAfterValue(target []byte) (exact bool, err error)
	// SeekForward advances the cursor by up to n, clamped to the remaining
	// count, and returns the number actually skipped.
	SeekForward(n int) int
	// CopyNextValues copies up to n values into dst starting at dstOff,
	// relocating each into dst's arena, and returns the number copied.
	CopyNextValues(n int, dst *row.ColumnBlock, dstOff int) (int, error)
	// CopyNextAndEval is CopyNextValues fused with predicate evaluation:
	// values failing ctx's predicate, or already excluded by sel, are not
	// copied and have their selection bit cleared. Encodings without a fused
	// implementation fall back to CopyNextValues and mark ctx as not
	// supporting decoder-level evaluation.
	CopyNextAndEval(n int, ctx *MaterializationContext, sel *row.SelectionVectorView, dst *row.ColumnBlock, dstOff int) (int, error)
	// HasNext reports whether the cursor is before Count().
	HasNext() bool
	// Count returns the number of values in the block.
	Count() int
	// CurrentIndex returns the cursor position.
	CurrentIndex() int
	// FirstRowID returns the ordinal position of the block's first value.
	FirstRowID() base.RowID
}

// MaterializationContext carries the predicate for a column materialization
// and records whether the decoder evaluated it. When a decoder cannot fuse
// evaluation, the scan layer falls back to evaluating the predicate over the
// materialized values.
type MaterializationContext struct {
	Pred row.Predicate

	evalSupported bool
}

// SetDecoderEvalSupported records that the decoder evaluated the predicate.
func (c *MaterializationContext) SetDecoderEvalSupported() { c.evalSupported = true }

// SetDecoderEvalNotSupported records that the caller must evaluate the
// predicate itself.
func (c *MaterializationContext) SetDecoderEvalNotSupported() { c.evalSupported = false }

// DecoderEvalSupported reports whether the decoder evaluated the predicate.
func (c *MaterializationContext) DecoderEvalSupported() bool { return c.evalSupported }
