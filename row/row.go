// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package row

import (
	"strings"

	"github.com/colstore/colstore/internal/arena"
	"github.com/colstore/colstore/internal/invariants"
)

// Row is a single in-memory row addressed by column index against a fixed
// schema. It is the target of changelist application during compaction and
// the source for UNDO capture.
type Row struct {
	schema *Schema
	cells  [][]byte
	isNull []bool
}

// NewRow constructs an all-NULL row for the given schema.
func NewRow(schema *Schema) *Row {
	n := schema.NumColumns()
	r := &Row{schema: schema, cells: make([][]byte, n), isNull: make([]bool, n)}
	for i := range r.isNull {
		r.isNull[i] = true
	}
	return r
}

// Schema returns the row's schema.
func (r *Row) Schema() *Schema { return r.schema }

// SetCell stores a copy of value (relocated into a) at column colIdx; a nil
// value stores NULL.
func (r *Row) SetCell(colIdx int, value []byte, a *arena.Arena) {
	invariants.CheckBounds(colIdx, len(r.cells))
	if value == nil {
		r.cells[colIdx] = nil
		r.isNull[colIdx] = true
		return
	}
	r.cells[colIdx] = a.RelocateBytes(value)
	r.isNull[colIdx] = false
}

// Cell returns the cell at colIdx; ok is false if the cell is NULL.
func (r *Row) Cell(colIdx int) (value []byte, ok bool) {
	invariants.CheckBounds(colIdx, len(r.cells))
	if r.isNull[colIdx] {
		return nil, false
	}
	return r.cells[colIdx], true
}

// String renders the row for debug output.
func (r *Row) String() string {
	var b strings.Builder
	b.WriteString("(")
	for i := range r.cells {
		if i > 0 {
			b.WriteString(", ")
		}
		col := r.schema.Column(i)
		b.WriteString(col.Name)
		b.WriteString("=")
		if r.isNull[i] {
			b.WriteString("NULL")
		} else {
			b.WriteString(col.TypeInfo().FormatValue(r.cells[i]))
		}
	}
	b.WriteString(")")
	return b.String()
}
