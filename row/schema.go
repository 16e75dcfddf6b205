// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package row

import (
	"fmt"
	"strings"

	"github.com/colstore/colstore/internal/base"
)

// ColumnNotFound is the sentinel returned by Schema.FindColumnByID for an
// unknown column ID. An unknown ID is not an error: old deltas may reference
// columns dropped by a later schema change and are skipped by callers.
const ColumnNotFound = -1

// ColumnSchema describes one column.
type ColumnSchema struct {
	ID       base.ColumnID
	Name     string
	Type     DataType
	Nullable bool
	IsKey    bool
}

// TypeInfo returns the column's physical-type trait table.
func (c *ColumnSchema) TypeInfo() *TypeInfo { return GetTypeInfo(c.Type) }

// String implements fmt.Stringer.
func (c *ColumnSchema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[id=%d %s", c.Name, c.ID, c.TypeInfo().Name)
	if c.Nullable {
		b.WriteString(" NULLABLE")
	}
	if c.IsKey {
		b.WriteString(" KEY")
	}
	b.WriteString("]")
	return b.String()
}

// FormatCell renders a cell of this column for debug output; value may be
// nil for NULL.
func (c *ColumnSchema) FormatCell(value []byte) string {
	if value == nil {
		return "NULL"
	}
	return c.TypeInfo().FormatValue(value)
}

// Schema is an ordered set of columns with lookup by column ID. Immutable
// after construction.
type Schema struct {
	cols []ColumnSchema
	byID map[base.ColumnID]int
}

// NewSchema constructs a schema from the given columns, which must have
// unique IDs and names.
func NewSchema(cols ...ColumnSchema) (*Schema, error) {
	s := &Schema{cols: cols, byID: make(map[base.ColumnID]int, len(cols))}
	names := make(map[string]struct{}, len(cols))
	for i := range cols {
		if _, ok := s.byID[cols[i].ID]; ok {
			return nil, base.InvalidArgumentErrorf("duplicate column ID %d", cols[i].ID)
		}
		if _, ok := names[cols[i].Name]; ok {
			return nil, base.InvalidArgumentErrorf("duplicate column name %q", cols[i].Name)
		}
		s.byID[cols[i].ID] = i
		names[cols[i].Name] = struct{}{}
	}
	return s, nil
}

// MustNewSchema is NewSchema, panicking on error. For statically known
// schemas in tests and tools.
func MustNewSchema(cols ...ColumnSchema) *Schema {
	s, err := NewSchema(cols...)
	if err != nil {
		panic(err)
	}
	return s
}

// EmptySchema returns a schema with no columns, used for scans that only
// test row liveness.
func EmptySchema() *Schema {
	return &Schema{byID: map[base.ColumnID]int{}}
}

// NumColumns returns the number of columns.
func (s *Schema) NumColumns() int { return len(s.cols) }

// Column returns the idx'th column.
func (s *Schema) Column(idx int) *ColumnSchema { return &s.cols[idx] }

// ColumnID returns the ID of the idx'th column.
func (s *Schema) ColumnID(idx int) base.ColumnID { return s.cols[idx].ID }

// FindColumnByID returns the index of the column with the given ID, or
// ColumnNotFound.
func (s *Schema) FindColumnByID(id base.ColumnID) int {
	idx, ok := s.byID[id]
	if !ok {
		return ColumnNotFound
	}
	return idx
}

// IsKeyColumn reports whether the idx'th column is part of the primary key.
// Returns false for ColumnNotFound.
func (s *Schema) IsKeyColumn(idx int) bool {
	return idx >= 0 && idx < len(s.cols) && s.cols[idx].IsKey
}

// String implements fmt.Stringer.
func (s *Schema) String() string {
	parts := make([]string, len(s.cols))
	for i := range s.cols {
		parts[i] = s.cols[i].String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
