// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package row

// Variant is a runtime tagged value over the physical type set. A Variant
// exclusively owns a copy of its cell bytes: it never aliases caller-owned
// memory past the call that set it, and replaces the copy on every Reset.
type Variant struct {
	ti   *TypeInfo
	cell []byte
}

// NewVariant constructs a Variant holding a copy of cell, which must be a
// valid cell of ti's type. A nil cell constructs a null Variant.
func NewVariant(ti *TypeInfo, cell []byte) *Variant {
	v := &Variant{}
	v.Reset(ti, cell)
	return v
}

// Reset replaces the variant's type and value. The previous cell copy is
// released.
func (v *Variant) Reset(ti *TypeInfo, cell []byte) {
	v.ti = ti
	if cell == nil {
		v.cell = nil
		return
	}
	v.cell = append(v.cell[:0:0], cell...)
}

// Clear resets the variant to an untyped null.
func (v *Variant) Clear() {
	v.ti = nil
	v.cell = nil
}

// TypeInfo returns the variant's type, or nil if cleared.
func (v *Variant) TypeInfo() *TypeInfo { return v.ti }

// IsNull reports whether the variant holds no value.
func (v *Variant) IsNull() bool { return v.cell == nil }

// Cell returns the variant's owned cell bytes; nil if null. The returned
// slice is invalidated by the next Reset or Clear.
func (v *Variant) Cell() []byte { return v.cell }

// String renders the variant for debug output.
func (v *Variant) String() string {
	if v.ti == nil || v.cell == nil {
		return "NULL"
	}
	return v.ti.FormatValue(v.cell)
}
