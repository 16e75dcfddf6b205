// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package row

import (
	"math/bits"

	"github.com/colstore/colstore/internal/arena"
	"github.com/colstore/colstore/internal/invariants"
)

// ColumnBlock is a scan batch's buffer for one column: nrows cells plus a
// null bitmap. Fixed-width types are stored in a contiguous stride buffer;
// binary cells are arena-backed slices.
type ColumnBlock struct {
	ti    *TypeInfo
	nrows int
	// fixed holds nrows*ti.Size bytes for fixed-width types; nil for binary.
	fixed []byte
	// vals holds binary cells; nil for fixed-width types.
	vals    [][]byte
	nonNull []byte
	arena   *arena.Arena
}

// NewColumnBlock constructs a buffer for nrows cells of ti's type. Binary
// cells are relocated into a.
func NewColumnBlock(ti *TypeInfo, nrows int, a *arena.Arena) *ColumnBlock {
	cb := &ColumnBlock{
		ti:      ti,
		nrows:   nrows,
		nonNull: make([]byte, (nrows+7)/8),
		arena:   a,
	}
	if ti.Size > 0 {
		cb.fixed = make([]byte, nrows*ti.Size)
	} else {
		cb.vals = make([][]byte, nrows)
	}
	return cb
}

// NumRows returns the buffer's row capacity.
func (cb *ColumnBlock) NumRows() int { return cb.nrows }

// TypeInfo returns the buffer's cell type.
func (cb *ColumnBlock) TypeInfo() *TypeInfo { return cb.ti }

// Arena returns the arena backing binary cells.
func (cb *ColumnBlock) Arena() *arena.Arena { return cb.arena }

// SetCell stores value at row, relocating binary values into the arena. A
// nil value stores NULL.
func (cb *ColumnBlock) SetCell(row int, value []byte) {
	invariants.CheckBounds(row, cb.nrows)
	if value == nil {
		cb.nonNull[row/8] &^= 1 << (row % 8)
		return
	}
	cb.nonNull[row/8] |= 1 << (row % 8)
	if cb.fixed != nil {
		invariants.Assertf(len(value) == cb.ti.Size,
			"cell size %d != type width %d", len(value), cb.ti.Size)
		copy(cb.fixed[row*cb.ti.Size:], value)
		return
	}
	cb.vals[row] = cb.arena.RelocateBytes(value)
}

// Cell returns the cell at row and whether it is non-null.
func (cb *ColumnBlock) Cell(row int) (value []byte, ok bool) {
	invariants.CheckBounds(row, cb.nrows)
	if cb.nonNull[row/8]&(1<<(row%8)) == 0 {
		return nil, false
	}
	if cb.fixed != nil {
		return cb.fixed[row*cb.ti.Size : (row+1)*cb.ti.Size], true
	}
	return cb.vals[row], true
}

// SelectionVector tracks per-row liveness for a scan batch as a bitmap.
type SelectionVector struct {
	bits  []byte
	nrows int
}

// NewSelectionVector constructs a selection vector of nrows bits, all clear.
func NewSelectionVector(nrows int) *SelectionVector {
	return &SelectionVector{bits: make([]byte, (nrows+7)/8), nrows: nrows}
}

// NumRows returns the vector's length.
func (sv *SelectionVector) NumRows() int { return sv.nrows }

// SetAllTrue selects every row.
func (sv *SelectionVector) SetAllTrue() {
	for i := range sv.bits {
		sv.bits[i] = 0xff
	}
	sv.clearTrailingBits()
}

// SetAllFalse unselects every row.
func (sv *SelectionVector) SetAllFalse() {
	for i := range sv.bits {
		sv.bits[i] = 0
	}
}

// IsRowSelected reports whether row is selected.
func (sv *SelectionVector) IsRowSelected(row int) bool {
	invariants.CheckBounds(row, sv.nrows)
	return sv.bits[row/8]&(1<<(row%8)) != 0
}

// SetRowSelected selects row.
func (sv *SelectionVector) SetRowSelected(row int) {
	invariants.CheckBounds(row, sv.nrows)
	sv.bits[row/8] |= 1 << (row % 8)
}

// SetRowUnselected unselects row.
func (sv *SelectionVector) SetRowUnselected(row int) {
	invariants.CheckBounds(row, sv.nrows)
	sv.bits[row/8] &^= 1 << (row % 8)
}

// CountSelected returns the number of selected rows.
func (sv *SelectionVector) CountSelected() int {
	n := 0
	for _, b := range sv.bits {
		n += bits.OnesCount8(b)
	}
	return n
}

// AnySelected reports whether at least one row is selected.
func (sv *SelectionVector) AnySelected() bool {
	for _, b := range sv.bits {
		if b != 0 {
			return true
		}
	}
	return false
}

func (sv *SelectionVector) clearTrailingBits() {
	if rem := sv.nrows % 8; rem != 0 {
		sv.bits[len(sv.bits)-1] &= (1 << rem) - 1
	}
}

// SelectionVectorView is a window into a SelectionVector starting at a row
// offset, letting a decoder address bits relative to its copy destination.
type SelectionVectorView struct {
	sv     *SelectionVector
	offset int
}

// NewSelectionVectorView returns a view of sv beginning at offset.
func NewSelectionVectorView(sv *SelectionVector, offset int) *SelectionVectorView {
	return &SelectionVectorView{sv: sv, offset: offset}
}

// TestBit reports whether relative row i is selected.
func (v *SelectionVectorView) TestBit(i int) bool {
	return v.sv.IsRowSelected(v.offset + i)
}

// ClearBit unselects relative row i.
func (v *SelectionVectorView) ClearBit(i int) {
	v.sv.SetRowUnselected(v.offset + i)
}

// Predicate evaluates a single cell. Implementations are supplied by the
// scan layer; decoders may fuse evaluation into their copy loop.
type Predicate interface {
	Evaluate(cell []byte) bool
}

// RangePredicate selects cells in [Lower, Upper). A nil bound is unbounded
// on that side.
type RangePredicate struct {
	TI    *TypeInfo
	Lower []byte
	Upper []byte
}

// Evaluate implements Predicate.
func (p *RangePredicate) Evaluate(cell []byte) bool {
	if p.Lower != nil && p.TI.Compare(cell, p.Lower) < 0 {
		return false
	}
	if p.Upper != nil && p.TI.Compare(cell, p.Upper) >= 0 {
		return false
	}
	return true
}
