// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"fmt"

	"github.com/colstore/colstore/fs"
	"github.com/colstore/colstore/internal/arena"
	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/row"
)

// DeltaStore is a readable store of row mutations: a delta file on disk, or
// any in-memory equivalent. Stores are shared read-only; each scan obtains
// its own iterator.
type DeltaStore interface {
	// Init makes the store ready to create iterators. Idempotent.
	Init() error

	// Initted reports whether Init has completed.
	Initted() bool

	// DeltaType returns the direction of the deltas in this store.
	DeltaType() DeltaType

	// NewDeltaIterator returns an iterator over the store, or NotFound as a
	// skip signal if the store is irrelevant for the snapshot in opts.
	NewDeltaIterator(opts RowIteratorOptions) (DeltaIterator, error)

	// CheckRowDeleted reports whether the given row is deleted considering
	// every mutation in the store.
	CheckRowDeleted(rowIdx base.RowID, io fs.IOContext) (bool, error)

	// EstimateSize returns the approximate on-disk size of the store.
	EstimateSize() int64

	fmt.Stringer
}

var _ DeltaStore = (*DeltaFileReader)(nil)

// EstimateSize returns the delta file's size in bytes.
func (r *DeltaFileReader) EstimateSize() int64 { return r.cfr.FileSize() }

// String implements fmt.Stringer.
func (r *DeltaFileReader) String() string {
	return fmt.Sprintf("%s delta file %s", r.typ, r.cfr.BlockID())
}

// DeltaKeyAndUpdate is one delta lifted out of a store: its key and the
// encoded changelist, relocated into caller-owned memory.
type DeltaKeyAndUpdate struct {
	Key  DeltaKey
	Cell []byte
}

// Stringify renders the delta for debugging.
func (d DeltaKeyAndUpdate) Stringify(schema *row.Schema) string {
	return fmt.Sprintf("%s %s", d.Key, row.RowChangeList{Data: d.Cell}.String(schema))
}

// debugDumpBatchSize is the window size used by the dump helpers.
const debugDumpBatchSize = 100

// DebugDumpDeltaIterator renders every delta reachable from iter, in order,
// one line per delta. The iterator must be freshly created.
func DebugDumpDeltaIterator(iter DeltaIterator, schema *row.Schema, out *[]string) error {
	if err := iter.Init(); err != nil {
		return err
	}
	if err := iter.SeekToOrdinal(0); err != nil {
		return err
	}
	a := arena.New(32 << 10)
	for iter.HasNext() {
		if err := iter.PrepareBatch(debugDumpBatchSize, PrepareForCollect); err != nil {
			return err
		}
		var cells []DeltaKeyAndUpdate
		if err := iter.FilterColumnIDsAndCollectDeltas(nil, &cells, a); err != nil {
			return err
		}
		for _, c := range cells {
			*out = append(*out, c.Stringify(schema))
		}
		a.Reset()
	}
	return nil
}

// WriteDeltaIteratorToFile copies every delta reachable from iter into w,
// preserving order. The iterator must be freshly created and its direction
// must match typ.
func WriteDeltaIteratorToFile(typ DeltaType, iter DeltaIterator, w *DeltaFileWriter) error {
	if err := iter.Init(); err != nil {
		return err
	}
	if err := iter.SeekToOrdinal(0); err != nil {
		return err
	}
	a := arena.New(32 << 10)
	for iter.HasNext() {
		if err := iter.PrepareBatch(debugDumpBatchSize, PrepareForCollect); err != nil {
			return err
		}
		var cells []DeltaKeyAndUpdate
		if err := iter.FilterColumnIDsAndCollectDeltas(nil, &cells, a); err != nil {
			return err
		}
		for _, c := range cells {
			var err error
			if typ == RedoDelta {
				err = w.AppendDeltaRedo(c.Key, row.RowChangeList{Data: c.Cell})
			} else {
				err = w.AppendDeltaUndo(c.Key, row.RowChangeList{Data: c.Cell})
			}
			if err != nil {
				return err
			}
		}
		a.Reset()
	}
	return nil
}
