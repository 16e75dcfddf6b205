// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package row

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/colstore/colstore/internal/arena"
	"github.com/colstore/colstore/internal/base"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(
		ColumnSchema{ID: 0, Name: "key", Type: TypeInt32, IsKey: true},
		ColumnSchema{ID: 1, Name: "val", Type: TypeInt32, Nullable: true},
		ColumnSchema{ID: 2, Name: "str", Type: TypeBinary, Nullable: true},
	)
	require.NoError(t, err)
	return s
}

func TestChangeListEncodeDecode(t *testing.T) {
	schema := testSchema(t)

	var enc ChangeListEncoder
	enc.AddColumnUpdate(schema.Column(1), 1, EncodeInt32Cell(42))
	enc.AddColumnUpdate(schema.Column(2), 2, []byte("hello"))
	enc.AddColumnUpdate(schema.Column(1), 1, nil)

	dec := NewChangeListDecoder(enc.AsChangeList())
	require.NoError(t, dec.Init())
	require.True(t, dec.IsUpdate())

	var upd DecodedUpdate
	require.NoError(t, dec.DecodeNext(&upd))
	require.Equal(t, base.ColumnID(1), upd.ColID)
	require.False(t, upd.IsNull)
	require.Equal(t, int32(42), DecodeInt32Cell(upd.RawValue))

	require.NoError(t, dec.DecodeNext(&upd))
	require.Equal(t, base.ColumnID(2), upd.ColID)
	require.Equal(t, []byte("hello"), upd.RawValue)

	require.NoError(t, dec.DecodeNext(&upd))
	require.Equal(t, base.ColumnID(1), upd.ColID)
	require.True(t, upd.IsNull)
	require.Nil(t, upd.RawValue)

	require.False(t, dec.HasNext())
}

func TestChangeListString(t *testing.T) {
	schema := testSchema(t)

	var enc ChangeListEncoder
	enc.AddColumnUpdate(schema.Column(1), 1, EncodeInt32Cell(7))
	enc.AddColumnUpdate(schema.Column(2), 2, nil)
	require.Equal(t, "SET val=7, str=NULL", enc.AsChangeList().String(schema))

	enc.Reset()
	enc.SetToDelete()
	require.Equal(t, "DELETE", enc.AsChangeList().String(schema))
}

func TestChangeListInitCorruption(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad-tag", []byte{99}},
		{"uninitialized-tag", []byte{0}},
		{"empty-update", []byte{byte(ChangeTypeUpdate)}},
		{"long-delete", []byte{byte(ChangeTypeDelete), 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dec := NewChangeListDecoder(RowChangeList{Data: tc.data})
			err := dec.Init()
			require.Error(t, err)
			require.True(t, errors.Is(err, base.ErrCorruption), "%v", err)
		})
	}
	// An empty REINSERT is legal.
	dec := NewChangeListDecoder(RowChangeList{Data: []byte{byte(ChangeTypeReinsert)}})
	require.NoError(t, dec.Init())
	// And so is a bare DELETE.
	dec = NewChangeListDecoder(RowChangeList{Data: []byte{byte(ChangeTypeDelete)}})
	require.NoError(t, dec.Init())
}

func TestChangeListTruncatedValue(t *testing.T) {
	var enc ChangeListEncoder
	enc.SetToUpdate()
	enc.EncodeColumnMutationRaw(2, false, []byte("abcdef"))
	data := enc.AsChangeList().Data

	dec := NewChangeListDecoder(RowChangeList{Data: data[:len(data)-2]})
	require.NoError(t, dec.Init())
	var upd DecodedUpdate
	err := dec.DecodeNext(&upd)
	require.True(t, errors.Is(err, base.ErrCorruption), "%v", err)
}

func TestValidateAgainstSchema(t *testing.T) {
	schema := testSchema(t)

	// Unknown column IDs are skipped, not errors.
	upd := DecodedUpdate{ColID: 55, RawValue: []byte("x")}
	colIdx, _, err := upd.Validate(schema)
	require.NoError(t, err)
	require.Equal(t, ColumnNotFound, colIdx)

	// NULL for a non-nullable column is corruption.
	upd = DecodedUpdate{ColID: 0, IsNull: true}
	_, _, err = upd.Validate(schema)
	require.True(t, errors.Is(err, base.ErrCorruption), "%v", err)

	// A fixed-width column with the wrong size is corruption.
	upd = DecodedUpdate{ColID: 1, RawValue: []byte("abc")}
	_, _, err = upd.Validate(schema)
	require.True(t, errors.Is(err, base.ErrCorruption), "%v", err)

	upd = DecodedUpdate{ColID: 1, RawValue: EncodeInt32Cell(5)}
	colIdx, value, err := upd.Validate(schema)
	require.NoError(t, err)
	require.Equal(t, 1, colIdx)
	require.Equal(t, int32(5), DecodeInt32Cell(value))
}

func TestProjectChangeList(t *testing.T) {
	schema := testSchema(t)
	projection := MustNewSchema(
		ColumnSchema{ID: 2, Name: "str", Type: TypeBinary, Nullable: true},
	)

	var enc ChangeListEncoder
	enc.AddColumnUpdate(schema.Column(1), 1, EncodeInt32Cell(42))
	enc.AddColumnUpdate(schema.Column(2), 2, []byte("keep"))

	var out ChangeListEncoder
	require.NoError(t, ProjectChangeList(projection, enc.AsChangeList(), &out))
	require.Equal(t, `SET str="keep"`, out.AsChangeList().String(projection))

	// A DELETE survives projection untouched.
	enc.Reset()
	enc.SetToDelete()
	out.Reset()
	require.NoError(t, ProjectChangeList(projection, enc.AsChangeList(), &out))
	require.True(t, out.IsInitialized())
	require.Equal(t, ChangeTypeDelete, out.Type())

	// If no updated column is in the projection, out stays uninitialized.
	enc.Reset()
	enc.AddColumnUpdate(schema.Column(1), 1, EncodeInt32Cell(1))
	out.Reset()
	require.NoError(t, ProjectChangeList(projection, enc.AsChangeList(), &out))
	require.False(t, out.IsInitialized())
}

func TestRemoveColumnIDsFromChangeList(t *testing.T) {
	schema := testSchema(t)

	var enc ChangeListEncoder
	enc.AddColumnUpdate(schema.Column(1), 1, EncodeInt32Cell(42))
	enc.AddColumnUpdate(schema.Column(2), 2, []byte("keep"))

	var out ChangeListEncoder
	require.NoError(t, RemoveColumnIDsFromChangeList(
		enc.AsChangeList(), []base.ColumnID{1}, &out))
	require.Equal(t, `SET str="keep"`, out.AsChangeList().String(schema))

	// Removing every column leaves out uninitialized.
	out.Reset()
	require.NoError(t, RemoveColumnIDsFromChangeList(
		enc.AsChangeList(), []base.ColumnID{1, 2}, &out))
	require.False(t, out.IsInitialized())

	// An empty removal set keeps everything.
	out.Reset()
	require.NoError(t, RemoveColumnIDsFromChangeList(enc.AsChangeList(), nil, &out))
	require.Equal(t, enc.AsChangeList().Data, out.AsChangeList().Data)
}

func TestMutateRowAndCaptureChanges(t *testing.T) {
	schema := testSchema(t)
	a := arena.New(0)

	r := NewRow(schema)
	r.SetCell(0, EncodeInt32Cell(1), a)
	r.SetCell(1, EncodeInt32Cell(10), a)
	r.SetCell(2, []byte("before"), a)

	var enc ChangeListEncoder
	enc.AddColumnUpdate(schema.Column(1), 1, EncodeInt32Cell(20))
	enc.AddColumnUpdate(schema.Column(2), 2, nil)

	dec := NewChangeListDecoder(enc.AsChangeList())
	require.NoError(t, dec.Init())
	var undo ChangeListEncoder
	undo.SetToUpdate()
	require.NoError(t, dec.MutateRowAndCaptureChanges(r, a, &undo))

	cell, ok := r.Cell(1)
	require.True(t, ok)
	require.Equal(t, int32(20), DecodeInt32Cell(cell))
	_, ok = r.Cell(2)
	require.False(t, ok)

	// The captured changes restore the previous values.
	require.Equal(t, `SET val=10, str="before"`, undo.AsChangeList().String(schema))
}

func TestIncludedColumnIDs(t *testing.T) {
	schema := testSchema(t)

	var enc ChangeListEncoder
	enc.AddColumnUpdate(schema.Column(2), 2, []byte("x"))
	enc.AddColumnUpdate(schema.Column(1), 1, EncodeInt32Cell(3))

	dec := NewChangeListDecoder(enc.AsChangeList())
	require.NoError(t, dec.Init())
	ids, err := dec.IncludedColumnIDs()
	require.NoError(t, err)
	require.Equal(t, []base.ColumnID{2, 1}, ids)
}
