// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package row

import (
	"slices"
	"strings"

	"github.com/cockroachdb/redact"

	"github.com/colstore/colstore/internal/arena"
	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/internal/coding"
	"github.com/colstore/colstore/internal/invariants"
)

// ChangeType is the leading tag byte of an encoded RowChangeList.
type ChangeType uint8

const (
	// ChangeTypeUninitialized is invalid on disk; decoding it is corruption.
	ChangeTypeUninitialized ChangeType = iota
	// ChangeTypeDelete marks the row deleted. A DELETE changelist is exactly
	// the one tag byte.
	ChangeTypeDelete
	// ChangeTypeUpdate carries one or more column mutations. An UPDATE with
	// zero mutations is rejected at decode time as corruption.
	ChangeTypeUpdate
	// ChangeTypeReinsert revives a deleted row, carrying the reinserted
	// column values. A REINSERT may legitimately be empty when the table has
	// only primary-key columns.
	ChangeTypeReinsert
)

// String implements fmt.Stringer.
func (t ChangeType) String() string {
	switch t {
	case ChangeTypeDelete:
		return "DELETE"
	case ChangeTypeUpdate:
		return "UPDATE"
	case ChangeTypeReinsert:
		return "REINSERT"
	default:
		return "UNINITIALIZED"
	}
}

// RowChangeList is the compact encoded form of one row's set of column
// mutations or its deletion: a ChangeType tag byte followed, for
// UPDATE/REINSERT, by (column_id varint, size varint, value bytes) triples
// where size==0 encodes NULL and otherwise size-1 value bytes follow.
//
// Column IDs need not be sorted on disk; decode is a linear scan.
type RowChangeList struct {
	Data []byte
}

// DebugString renders the raw changelist bytes, redaction-aware: the value
// bytes are treated as unsafe user data.
func (rcl RowChangeList) DebugString() string {
	return string(redact.Sprintf("%x", rcl.Data).Redact())
}

// String renders the changelist against a schema for debug output. Invalid
// changelists render an error description rather than failing.
func (rcl RowChangeList) String(schema *Schema) string {
	dec := NewChangeListDecoder(rcl)
	if err := dec.Init(); err != nil {
		return "[invalid: " + err.Error() + "]"
	}
	if dec.IsDelete() {
		return "DELETE"
	}
	var b strings.Builder
	if dec.IsReinsert() {
		b.WriteString("REINSERT ")
	} else {
		b.WriteString("SET ")
	}
	first := true
	for dec.HasNext() {
		if !first {
			b.WriteString(", ")
		}
		first = false
		var upd DecodedUpdate
		err := dec.DecodeNext(&upd)
		var colIdx int
		var value []byte
		if err == nil {
			colIdx, value, err = upd.Validate(schema)
		}
		if err != nil {
			return "[invalid update: " + err.Error() + ", before corruption: " + b.String() + "]"
		}
		if colIdx == ColumnNotFound {
			b.WriteString(string(redact.Sprintf("[unknown column id %d]=", int32(upd.ColID))))
			if upd.IsNull {
				b.WriteString("NULL")
			} else {
				b.WriteString(string(redact.Sprintf("%x", upd.RawValue).Redact()))
			}
			continue
		}
		col := schema.Column(colIdx)
		b.WriteString(col.Name)
		b.WriteString("=")
		if upd.IsNull {
			b.WriteString("NULL")
		} else {
			b.WriteString(col.TypeInfo().FormatValue(value))
		}
	}
	return b.String()
}

// ChangeListEncoder builds an encoded RowChangeList. The type must be set
// exactly once (SetToDelete, SetToUpdate, SetToReinsert, or SetType) before
// any mutations are appended; appending after SetToDelete is invalid.
type ChangeListEncoder struct {
	typ ChangeType
	buf []byte
}

// Reset returns the encoder to the uninitialized state, retaining its
// buffer.
func (e *ChangeListEncoder) Reset() {
	e.typ = ChangeTypeUninitialized
	e.buf = e.buf[:0]
}

// IsInitialized reports whether a type has been set.
func (e *ChangeListEncoder) IsInitialized() bool { return e.typ != ChangeTypeUninitialized }

// Type returns the encoder's change type.
func (e *ChangeListEncoder) Type() ChangeType { return e.typ }

// SetType sets the changelist type. Setting a different type twice is a
// programming error.
func (e *ChangeListEncoder) SetType(t ChangeType) {
	if e.typ == t {
		return
	}
	invariants.Assertf(e.typ == ChangeTypeUninitialized,
		"changelist type already set to %s", e.typ)
	e.typ = t
	e.buf = append(e.buf, byte(t))
}

// SetToDelete marks the changelist as a DELETE.
func (e *ChangeListEncoder) SetToDelete() { e.SetType(ChangeTypeDelete) }

// SetToUpdate marks the changelist as an UPDATE.
func (e *ChangeListEncoder) SetToUpdate() { e.SetType(ChangeTypeUpdate) }

// SetToReinsert marks the changelist as a REINSERT.
func (e *ChangeListEncoder) SetToReinsert() { e.SetType(ChangeTypeReinsert) }

// AddColumnUpdate sets the type to UPDATE and appends one column mutation.
// A nil cell encodes NULL; the column must be nullable in that case.
func (e *ChangeListEncoder) AddColumnUpdate(col *ColumnSchema, id base.ColumnID, cell []byte) {
	e.SetToUpdate()
	e.EncodeColumnMutation(col, id, cell)
}

// EncodeColumnMutation appends one column mutation for an UPDATE or
// REINSERT changelist.
func (e *ChangeListEncoder) EncodeColumnMutation(col *ColumnSchema, id base.ColumnID, cell []byte) {
	invariants.Assertf(e.typ == ChangeTypeUpdate || e.typ == ChangeTypeReinsert,
		"cannot append a column mutation to a %s changelist", e.typ)
	if cell == nil {
		invariants.Assertf(col.Nullable, "NULL mutation for non-nullable column %s", col.Name)
		e.EncodeColumnMutationRaw(id, true, nil)
		return
	}
	e.EncodeColumnMutationRaw(id, false, cell)
}

// EncodeColumnMutationRaw appends one (column id, null flag, raw value)
// triple in wire form.
func (e *ChangeListEncoder) EncodeColumnMutationRaw(id base.ColumnID, isNull bool, value []byte) {
	invariants.Assertf(e.typ == ChangeTypeUpdate || e.typ == ChangeTypeReinsert,
		"cannot append a column mutation to a %s changelist", e.typ)
	e.buf = coding.PutUvarint32(e.buf, uint32(id))
	if isNull {
		e.buf = append(e.buf, 0)
		return
	}
	e.buf = coding.PutUvarint32(e.buf, uint32(len(value))+1)
	e.buf = append(e.buf, value...)
}

// AsChangeList returns the encoded changelist. The returned slice aliases
// the encoder's buffer and is invalidated by Reset.
func (e *ChangeListEncoder) AsChangeList() RowChangeList {
	invariants.Assertf(e.IsInitialized(), "changelist type never set")
	return RowChangeList{Data: e.buf}
}

// DecodedUpdate is one decoded (column id, null flag, raw value) triple.
type DecodedUpdate struct {
	ColID    base.ColumnID
	IsNull   bool
	RawValue []byte
}

// Validate maps the update's column ID into schema, which may differ from
// the schema the update was written against. An unknown column ID is not an
// error: colIdx is ColumnNotFound and the caller skips the update. For known
// columns, a NULL for a non-nullable column or a size mismatch against the
// column's fixed width is corruption.
func (d *DecodedUpdate) Validate(schema *Schema) (colIdx int, value []byte, err error) {
	colIdx = schema.FindColumnByID(d.ColID)
	if colIdx == ColumnNotFound {
		return colIdx, nil, nil
	}
	col := schema.Column(colIdx)
	if d.IsNull {
		if !col.Nullable {
			return 0, nil, base.CorruptionErrorf(
				"decoded set-to-NULL for non-nullable column %s", col)
		}
		return colIdx, nil, nil
	}
	ti := col.TypeInfo()
	if ti.Size > 0 && ti.Size != len(d.RawValue) {
		return 0, nil, base.CorruptionErrorf(
			"invalid value %s for column %s",
			redact.Sprintf("%x", d.RawValue).Redact(), col)
	}
	return colIdx, d.RawValue, nil
}

// ChangeListDecoder decodes an encoded RowChangeList. Init must be called
// before any other method.
type ChangeListDecoder struct {
	typ       ChangeType
	remaining []byte
}

// NewChangeListDecoder constructs a decoder over rcl.
func NewChangeListDecoder(rcl RowChangeList) *ChangeListDecoder {
	return &ChangeListDecoder{remaining: rcl.Data}
}

// Init reads and validates the type tag. An empty changelist, an unknown
// tag, a DELETE longer than one byte, or an UPDATE with no column entries is
// corruption.
func (d *ChangeListDecoder) Init() error {
	if len(d.remaining) == 0 {
		return base.CorruptionErrorf("empty changelist - expected type")
	}
	t := ChangeType(d.remaining[0])
	if t == ChangeTypeUninitialized || t > ChangeTypeReinsert {
		return base.CorruptionErrorf("bad type enum value: %d in %s",
			d.remaining[0], RowChangeList{Data: d.remaining}.DebugString())
	}
	d.typ = t
	if d.IsDelete() && len(d.remaining) != 1 {
		return base.CorruptionErrorf("DELETE changelist too long: %s",
			RowChangeList{Data: d.remaining}.DebugString())
	}
	d.remaining = d.remaining[1:]
	// Empty UPDATE changelists are discarded at write time, so decoding one
	// indicates corruption. REINSERTs may legitimately be empty when the
	// table has only primary-key columns.
	if d.IsUpdate() && len(d.remaining) == 0 {
		return base.CorruptionErrorf("empty changelist - expected column updates")
	}
	return nil
}

// Type returns the decoded change type.
func (d *ChangeListDecoder) Type() ChangeType { return d.typ }

// IsDelete reports whether the changelist is a DELETE.
func (d *ChangeListDecoder) IsDelete() bool { return d.typ == ChangeTypeDelete }

// IsUpdate reports whether the changelist is an UPDATE.
func (d *ChangeListDecoder) IsUpdate() bool { return d.typ == ChangeTypeUpdate }

// IsReinsert reports whether the changelist is a REINSERT.
func (d *ChangeListDecoder) IsReinsert() bool { return d.typ == ChangeTypeReinsert }

// HasNext reports whether more column entries remain.
func (d *ChangeListDecoder) HasNext() bool { return len(d.remaining) > 0 }

// DecodeNext extracts the next column entry. Truncated varints or a value
// claiming more bytes than remain are corruption.
func (d *ChangeListDecoder) DecodeNext(dec *DecodedUpdate) error {
	invariants.Assertf(d.typ != ChangeTypeUninitialized, "must call Init()")
	id, n, err := coding.Uvarint32(d.remaining)
	if err != nil {
		return base.CorruptionErrorf("invalid column ID varint in delta")
	}
	d.remaining = d.remaining[n:]
	dec.ColID = base.ColumnID(id)

	size, n, err := coding.Uvarint32(d.remaining)
	if err != nil {
		return base.CorruptionErrorf("invalid size varint in delta")
	}
	d.remaining = d.remaining[n:]

	dec.IsNull = size == 0
	dec.RawValue = nil
	if dec.IsNull {
		return nil
	}
	size--
	if uint32(len(d.remaining)) < size {
		return base.CorruptionErrorf(
			"truncated value for column id %d, expected %d bytes, only %d remaining",
			id, size, len(d.remaining))
	}
	dec.RawValue = d.remaining[:size:size]
	d.remaining = d.remaining[size:]
	return nil
}

// IncludedColumnIDs returns the column IDs referenced by the changelist, in
// encoded order. The decoder must be freshly initialized; the entries are
// consumed.
func (d *ChangeListDecoder) IncludedColumnIDs() ([]base.ColumnID, error) {
	var ids []base.ColumnID
	for d.HasNext() {
		var upd DecodedUpdate
		if err := d.DecodeNext(&upd); err != nil {
			return nil, err
		}
		ids = append(ids, upd.ColID)
	}
	return ids, nil
}

// ProjectChangeList re-encodes src against a projection schema, silently
// dropping updates to columns the projection doesn't contain. out must be
// uninitialized.
func ProjectChangeList(projection *Schema, src RowChangeList, out *ChangeListEncoder) error {
	dec := NewChangeListDecoder(src)
	if err := dec.Init(); err != nil {
		return err
	}
	invariants.Assertf(!out.IsInitialized(), "output encoder already initialized")
	if dec.IsDelete() {
		out.SetToDelete()
		return nil
	}
	for dec.HasNext() {
		var upd DecodedUpdate
		if err := dec.DecodeNext(&upd); err != nil {
			return err
		}
		colIdx, _, err := upd.Validate(projection)
		if err != nil {
			return err
		}
		if colIdx == ColumnNotFound {
			continue
		}
		out.SetType(dec.Type())
		out.EncodeColumnMutationRaw(upd.ColID, upd.IsNull, upd.RawValue)
	}
	return nil
}

// RemoveColumnIDsFromChangeList re-encodes src dropping entries for the
// given column IDs, which must be sorted ascending. If every entry is
// dropped, out is left uninitialized.
func RemoveColumnIDsFromChangeList(src RowChangeList, colIDs []base.ColumnID, out *ChangeListEncoder) error {
	dec := NewChangeListDecoder(src)
	if err := dec.Init(); err != nil {
		return err
	}
	if dec.IsDelete() {
		out.SetToDelete()
		return nil
	}
	for dec.HasNext() {
		var upd DecodedUpdate
		if err := dec.DecodeNext(&upd); err != nil {
			return err
		}
		if _, found := slices.BinarySearch(colIDs, upd.ColID); found {
			continue
		}
		out.SetType(dec.Type())
		out.EncodeColumnMutationRaw(upd.ColID, upd.IsNull, upd.RawValue)
	}
	return nil
}

// MutateRowAndCaptureChanges applies the decoder's UPDATE or REINSERT
// entries onto dst and simultaneously encodes the prior cell values into
// out, producing the inverse changelist for UNDO generation. Entries for
// columns absent from dst's schema are skipped.
//
// If a corrupt entry is hit partway through, entries already applied are not
// rolled back; this asymmetry is an accepted property of the design.
func (d *ChangeListDecoder) MutateRowAndCaptureChanges(dst *Row, a *arena.Arena, out *ChangeListEncoder) error {
	invariants.Assertf(d.IsUpdate() || d.IsReinsert(),
		"cannot mutate a row with a %s changelist", d.typ)
	invariants.Assertf(out.IsInitialized(), "output encoder must have its type set")
	schema := dst.Schema()
	for d.HasNext() {
		var upd DecodedUpdate
		if err := d.DecodeNext(&upd); err != nil {
			return err
		}
		colIdx, value, err := upd.Validate(schema)
		if err != nil {
			return err
		}
		if colIdx == ColumnNotFound {
			continue
		}
		// Mutations never touch key columns.
		invariants.Assertf(!schema.IsKeyColumn(colIdx),
			"changelist mutates key column %s", schema.Column(colIdx).Name)

		old, ok := dst.Cell(colIdx)
		if !ok {
			out.EncodeColumnMutationRaw(upd.ColID, true, nil)
		} else {
			out.EncodeColumnMutationRaw(upd.ColID, false, old)
		}
		if upd.IsNull {
			dst.SetCell(colIdx, nil, a)
		} else {
			dst.SetCell(colIdx, value, a)
		}
	}
	return nil
}

// ApplyToOneColumn applies only the decoder's entries matching the column at
// colIdx in schema onto dst's cell at rowIdx, ignoring all other entries.
// Used for column-at-a-time materialization.
func (d *ChangeListDecoder) ApplyToOneColumn(rowIdx int, dst *ColumnBlock, schema *Schema, colIdx int) error {
	invariants.Assertf(d.IsUpdate() || d.IsReinsert(),
		"cannot apply a %s changelist to a column", d.typ)
	colID := schema.ColumnID(colIdx)
	for d.HasNext() {
		var upd DecodedUpdate
		if err := d.DecodeNext(&upd); err != nil {
			return err
		}
		if upd.ColID != colID {
			continue
		}
		validatedIdx, value, err := upd.Validate(schema)
		if err != nil {
			return err
		}
		invariants.Assertf(validatedIdx == colIdx, "column id %d resolved to %d, expected %d",
			colID, validatedIdx, colIdx)
		if upd.IsNull {
			dst.SetCell(rowIdx, nil)
		} else {
			dst.SetCell(rowIdx, value)
		}
	}
	return nil
}
