// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package row holds the typed-value machinery shared by encoders, predicates
// and key comparisons: physical column types and their trait tables, the
// Variant runtime value, schemas, scan-batch column buffers, and the
// RowChangeList mutation codec.
package row

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// DataType enumerates the physical types a column can have. STRING columns
// share the BINARY physical representation.
type DataType uint8

const (
	TypeUnknown DataType = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeBinary
)

// TypeInfo is the trait table for one physical type: fixed width, ordering,
// consecutive-value detection, value bounds, and debug formatting. Cells are
// represented as raw little-endian byte slices of the type's width (variable
// length for TypeBinary).
//
// TypeInfos are process-lifetime, read-only singletons; use GetTypeInfo.
type TypeInfo struct {
	Type DataType
	Name string
	// Size is the fixed cell width in bytes, or 0 for TypeBinary.
	Size int

	compare        func(a, b []byte) int
	areConsecutive func(a, b []byte) bool
	format         func(v []byte) string
	minValue       []byte
	maxValue       []byte // nil if the type has no maximum (TypeBinary)
}

// Compare compares two cells of this type.
func (t *TypeInfo) Compare(a, b []byte) int { return t.compare(a, b) }

// AreConsecutive reports whether b is the immediate successor of a in this
// type's value space.
func (t *TypeInfo) AreConsecutive(a, b []byte) bool { return t.areConsecutive(a, b) }

// FormatValue renders a cell for debug output.
func (t *TypeInfo) FormatValue(v []byte) string { return t.format(v) }

// MinValue returns the smallest cell of this type.
func (t *TypeInfo) MinValue() []byte { return t.minValue }

// MaxValue returns the largest cell of this type, or nil if the type is
// unbounded above.
func (t *TypeInfo) MaxValue() []byte { return t.maxValue }

// IsMinValue reports whether v is the type's minimum.
func (t *TypeInfo) IsMinValue(v []byte) bool { return t.Compare(v, t.minValue) == 0 }

// IsMaxValue reports whether v is the type's maximum.
func (t *TypeInfo) IsMaxValue(v []byte) bool {
	return t.maxValue != nil && t.Compare(v, t.maxValue) == 0
}

var typeInfos = sync.OnceValue(func() map[DataType]*TypeInfo {
	m := make(map[DataType]*TypeInfo)
	add := func(ti *TypeInfo) { m[ti.Type] = ti }

	add(&TypeInfo{
		Type: TypeBool, Name: "bool", Size: 1,
		compare: func(a, b []byte) int { return int(a[0]) - int(b[0]) },
		areConsecutive: func(a, b []byte) bool {
			return a[0] == 0 && b[0] == 1
		},
		format:   func(v []byte) string { return fmt.Sprintf("%t", v[0] != 0) },
		minValue: []byte{0},
		maxValue: []byte{1},
	})
	add(intTypeInfo(TypeInt8, "int8", 1))
	add(intTypeInfo(TypeInt16, "int16", 2))
	add(intTypeInfo(TypeInt32, "int32", 4))
	add(intTypeInfo(TypeInt64, "int64", 8))
	add(&TypeInfo{
		Type: TypeFloat32, Name: "float32", Size: 4,
		compare: func(a, b []byte) int {
			fa := math.Float32frombits(binary.LittleEndian.Uint32(a))
			fb := math.Float32frombits(binary.LittleEndian.Uint32(b))
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return +1
			}
			return 0
		},
		areConsecutive: func(a, b []byte) bool { return false },
		format: func(v []byte) string {
			return fmt.Sprintf("%g", math.Float32frombits(binary.LittleEndian.Uint32(v)))
		},
		minValue: EncodeFloat32Cell(float32(math.Inf(-1))),
		maxValue: EncodeFloat32Cell(float32(math.Inf(1))),
	})
	add(&TypeInfo{
		Type: TypeFloat64, Name: "float64", Size: 8,
		compare: func(a, b []byte) int {
			fa := math.Float64frombits(binary.LittleEndian.Uint64(a))
			fb := math.Float64frombits(binary.LittleEndian.Uint64(b))
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return +1
			}
			return 0
		},
		areConsecutive: func(a, b []byte) bool { return false },
		format: func(v []byte) string {
			return fmt.Sprintf("%g", math.Float64frombits(binary.LittleEndian.Uint64(v)))
		},
		minValue: EncodeFloat64Cell(math.Inf(-1)),
		maxValue: EncodeFloat64Cell(math.Inf(1)),
	})
	add(&TypeInfo{
		Type: TypeBinary, Name: "binary", Size: 0,
		compare: bytes.Compare,
		areConsecutive: func(a, b []byte) bool {
			// b follows a immediately iff b is a with a trailing zero byte.
			return len(b) == len(a)+1 && bytes.Equal(a, b[:len(a)]) && b[len(a)] == 0
		},
		format:   func(v []byte) string { return fmt.Sprintf("%q", v) },
		minValue: []byte{},
		maxValue: nil,
	})
	return m
})

func intTypeInfo(t DataType, name string, size int) *TypeInfo {
	decode := func(v []byte) int64 {
		var u uint64
		for i := 0; i < size; i++ {
			u |= uint64(v[i]) << (8 * i)
		}
		// Sign-extend.
		shift := 64 - 8*size
		return int64(u<<shift) >> shift
	}
	minCell := make([]byte, size)
	maxCell := make([]byte, size)
	for i := 0; i < size-1; i++ {
		maxCell[i] = 0xff
	}
	minCell[size-1] = 0x80
	maxCell[size-1] = 0x7f
	return &TypeInfo{
		Type: t, Name: name, Size: size,
		compare: func(a, b []byte) int {
			ia, ib := decode(a), decode(b)
			switch {
			case ia < ib:
				return -1
			case ia > ib:
				return +1
			}
			return 0
		},
		areConsecutive: func(a, b []byte) bool {
			ia, ib := decode(a), decode(b)
			return ia != math.MaxInt64 && ia+1 == ib
		},
		format:   func(v []byte) string { return fmt.Sprintf("%d", decode(v)) },
		minValue: minCell,
		maxValue: maxCell,
	}
}

// GetTypeInfo returns the trait table for t. It panics on an unknown type;
// an unknown DataType indicates a bug, not bad input.
func GetTypeInfo(t DataType) *TypeInfo {
	ti, ok := typeInfos()[t]
	if !ok {
		panic(fmt.Sprintf("row: no type info for data type %d", t))
	}
	return ti
}

// Cell encoding helpers.

// EncodeInt8Cell returns the cell encoding of v.
func EncodeInt8Cell(v int8) []byte { return []byte{byte(v)} }

// EncodeInt16Cell returns the cell encoding of v.
func EncodeInt16Cell(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

// EncodeInt32Cell returns the cell encoding of v.
func EncodeInt32Cell(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// EncodeInt64Cell returns the cell encoding of v.
func EncodeInt64Cell(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

// DecodeInt32Cell decodes a TypeInt32 cell.
func DecodeInt32Cell(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

// DecodeInt64Cell decodes a TypeInt64 cell.
func DecodeInt64Cell(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

// EncodeBoolCell returns the cell encoding of v.
func EncodeBoolCell(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// EncodeFloat32Cell returns the cell encoding of v.
func EncodeFloat32Cell(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

// EncodeFloat64Cell returns the cell encoding of v.
func EncodeFloat64Cell(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}
