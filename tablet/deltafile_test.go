// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"github.com/colstore/colstore/cfile"
	"github.com/colstore/colstore/fs"
	"github.com/colstore/colstore/internal/arena"
	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/row"
)

func col0Schema() *row.Schema {
	return row.MustNewSchema(
		row.ColumnSchema{ID: 0, Name: "col0", Type: row.TypeInt32, Nullable: true},
	)
}

type deltaEntry struct {
	key     DeltaKey
	changes row.RowChangeList
}

func updateCol0(v int32) row.RowChangeList {
	var enc row.ChangeListEncoder
	enc.SetToUpdate()
	enc.EncodeColumnMutationRaw(0, false, row.EncodeInt32Cell(v))
	return enc.AsChangeList()
}

func writeDeltaFile(
	t *testing.T, bm *fs.BlockManager, typ DeltaType, entries []deltaEntry,
) fs.BlockID {
	t.Helper()
	return writeDeltaFileOpts(t, bm, typ,
		cfile.WriterOptions{Compression: cfile.NoCompression}, entries)
}

func writeDeltaFileOpts(
	t *testing.T, bm *fs.BlockManager, typ DeltaType, opts cfile.WriterOptions, entries []deltaEntry,
) fs.BlockID {
	t.Helper()
	wb, err := bm.CreateBlock()
	require.NoError(t, err)
	w := NewDeltaFileWriter(wb, opts)
	for _, e := range entries {
		if typ == RedoDelta {
			require.NoError(t, w.AppendDeltaRedo(e.key, e.changes))
		} else {
			require.NoError(t, w.AppendDeltaUndo(e.key, e.changes))
		}
	}
	require.NoError(t, w.Finish())
	return wb.ID()
}

func openDeltaFile(
	t *testing.T, bm *fs.BlockManager, id fs.BlockID, typ DeltaType,
) *DeltaFileReader {
	t.Helper()
	rb, err := bm.OpenBlock(id)
	require.NoError(t, err)
	dfr, err := OpenDeltaFileReader(rb, typ, fs.IOContext{TabletID: "test"}, cfile.ReaderOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dfr.Close() })
	return dfr
}

// The canonical three-delta REDO file used by the snapshot scenarios.
func scenarioFile(t *testing.T, bm *fs.BlockManager) fs.BlockID {
	return writeDeltaFile(t, bm, RedoDelta, []deltaEntry{
		{DeltaKey{RowIdx: 5, Timestamp: 10}, updateCol0(42)},
		{DeltaKey{RowIdx: 5, Timestamp: 20}, deleteChangeList()},
		{DeltaKey{RowIdx: 7, Timestamp: 15}, updateCol0(7)},
	})
}

func newIterAt(t *testing.T, dfr *DeltaFileReader, snap MvccSnapshot) DeltaIterator {
	t.Helper()
	iter, err := dfr.NewDeltaIterator(RowIteratorOptions{
		Projection: col0Schema(),
		Snapshot:   snap,
	})
	require.NoError(t, err)
	require.NoError(t, iter.Init())
	return iter
}

func TestDeltaFileApplyAtPartialSnapshot(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	dfr := openDeltaFile(t, bm, scenarioFile(t, bm), RedoDelta)

	// Commits everything through ts=15; the ts=20 delete is not yet visible.
	iter := newIterAt(t, dfr, NewSnapshotAtTimestamp(16))
	require.NoError(t, iter.SeekToOrdinal(5))
	require.NoError(t, iter.PrepareBatch(3, PrepareForApply))

	a := arena.New(0)
	cb := row.NewColumnBlock(row.GetTypeInfo(row.TypeInt32), 3, a)
	require.NoError(t, iter.ApplyUpdates(0, cb))

	cell, ok := cb.Cell(0) // row 5
	require.True(t, ok)
	require.Equal(t, int32(42), row.DecodeInt32Cell(cell))
	_, ok = cb.Cell(1) // row 6, untouched
	require.False(t, ok)
	cell, ok = cb.Cell(2) // row 7
	require.True(t, ok)
	require.Equal(t, int32(7), row.DecodeInt32Cell(cell))

	sv := row.NewSelectionVector(3)
	sv.SetAllTrue()
	require.NoError(t, iter.ApplyDeletes(sv))
	require.True(t, sv.IsRowSelected(0))
	require.True(t, sv.IsRowSelected(1))
	require.True(t, sv.IsRowSelected(2))

	mayHave, err := iter.MayHaveDeltas()
	require.NoError(t, err)
	require.True(t, mayHave)
}

func TestDeltaFileApplyAtLaterSnapshot(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	dfr := openDeltaFile(t, bm, scenarioFile(t, bm), RedoDelta)

	// Commits everything through ts=25; the delete of row 5 is now visible,
	// while the earlier column update still applies.
	iter := newIterAt(t, dfr, NewSnapshotAtTimestamp(25))
	require.NoError(t, iter.SeekToOrdinal(5))
	require.NoError(t, iter.PrepareBatch(3, PrepareForApply))

	sv := row.NewSelectionVector(3)
	sv.SetAllTrue()
	require.NoError(t, iter.ApplyDeletes(sv))
	require.False(t, sv.IsRowSelected(0))
	require.True(t, sv.IsRowSelected(1))
	require.True(t, sv.IsRowSelected(2))

	a := arena.New(0)
	cb := row.NewColumnBlock(row.GetTypeInfo(row.TypeInt32), 3, a)
	require.NoError(t, iter.ApplyUpdates(0, cb))
	cell, ok := cb.Cell(0)
	require.True(t, ok)
	require.Equal(t, int32(42), row.DecodeInt32Cell(cell))
}

func TestDeltaFileIrrelevantSnapshot(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	dfr := openDeltaFile(t, bm, scenarioFile(t, bm), RedoDelta)

	// Nothing in the file (min ts 10) can be committed at ts<=5.
	snap := NewSnapshotAtTimestamp(5)
	require.False(t, dfr.IsRelevantForSnapshot(&snap))
	_, err = dfr.NewDeltaIterator(RowIteratorOptions{
		Projection: col0Schema(),
		Snapshot:   snap,
	})
	require.True(t, errors.Is(err, base.ErrNotFound), "%v", err)
}

func TestDeltaFileLazyRelevanceRecheck(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	id := scenarioFile(t, bm)

	rb, err := bm.OpenBlock(id)
	require.NoError(t, err)
	dfr := OpenDeltaFileReaderNoInit(rb, RedoDelta, fs.IOContext{}, cfile.ReaderOptions{})
	defer dfr.Close()

	// Before init the reader cannot exclude anything, so iterator creation
	// succeeds even for a snapshot the file is irrelevant to.
	snap := NewSnapshotAtTimestamp(5)
	require.True(t, dfr.IsRelevantForSnapshot(&snap))
	iter, err := dfr.NewDeltaIterator(RowIteratorOptions{
		Projection: col0Schema(),
		Snapshot:   snap,
	})
	require.NoError(t, err)
	require.NoError(t, iter.Init())

	// The seek completes init, rechecks relevance, and exhausts the
	// iterator without reading any data block.
	require.NoError(t, iter.SeekToOrdinal(0))
	require.False(t, iter.HasNext())
	require.NoError(t, iter.PrepareBatch(100, PrepareForApply))
	mayHave, err := iter.MayHaveDeltas()
	require.NoError(t, err)
	require.False(t, mayHave)
}

func TestDeltaFileCollectMutations(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	dfr := openDeltaFile(t, bm, scenarioFile(t, bm), RedoDelta)

	iter := newIterAt(t, dfr, NewSnapshotIncludingAllTransactions())
	require.NoError(t, iter.SeekToOrdinal(5))
	require.NoError(t, iter.PrepareBatch(3, PrepareForCollect))

	a := arena.New(0)
	heads := make([]*Mutation, 3)
	require.NoError(t, iter.CollectMutations(heads, a))

	// Row 5: two mutations, prepended so the later one is at the head.
	require.NotNil(t, heads[0])
	require.Equal(t, base.Timestamp(20), heads[0].Timestamp)
	require.NotNil(t, heads[0].Next)
	require.Equal(t, base.Timestamp(10), heads[0].Next.Timestamp)
	require.Nil(t, heads[0].Next.Next)

	require.Nil(t, heads[1])

	require.NotNil(t, heads[2])
	require.Equal(t, base.Timestamp(15), heads[2].Timestamp)
	require.Nil(t, heads[2].Next)
}

func TestDeltaFileFilterColumnIDs(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	dfr := openDeltaFile(t, bm, scenarioFile(t, bm), RedoDelta)

	iter := newIterAt(t, dfr, NewSnapshotIncludingAllTransactions())
	require.NoError(t, iter.SeekToOrdinal(0))
	require.NoError(t, iter.PrepareBatch(100, PrepareForCollect))

	// Removing column 0 drops both updates; the delete survives.
	a := arena.New(0)
	var out []DeltaKeyAndUpdate
	require.NoError(t, iter.FilterColumnIDsAndCollectDeltas([]base.ColumnID{0}, &out, a))
	require.Len(t, out, 1)
	require.Equal(t, DeltaKey{RowIdx: 5, Timestamp: 20}, out[0].Key)
	require.Equal(t, "DELETE", row.RowChangeList{Data: out[0].Cell}.String(col0Schema()))

	// An empty removal set keeps everything.
	iter2 := newIterAt(t, dfr, NewSnapshotIncludingAllTransactions())
	require.NoError(t, iter2.SeekToOrdinal(0))
	require.NoError(t, iter2.PrepareBatch(100, PrepareForCollect))
	out = nil
	require.NoError(t, iter2.FilterColumnIDsAndCollectDeltas(nil, &out, a))
	require.Len(t, out, 3)
}

func TestDeltaFileCheckRowDeleted(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	dfr := openDeltaFile(t, bm, scenarioFile(t, bm), RedoDelta)

	deleted, err := dfr.CheckRowDeleted(5, fs.IOContext{})
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = dfr.CheckRowDeleted(7, fs.IOContext{})
	require.NoError(t, err)
	require.False(t, deleted)

	deleted, err = dfr.CheckRowDeleted(1000, fs.IOContext{})
	require.NoError(t, err)
	require.False(t, deleted)

	// A file with no deletes short-circuits without any iterator work.
	id := writeDeltaFile(t, bm, RedoDelta, []deltaEntry{
		{DeltaKey{RowIdx: 1, Timestamp: 1}, updateCol0(1)},
	})
	dfr2 := openDeltaFile(t, bm, id, RedoDelta)
	deleted, err = dfr2.CheckRowDeleted(1, fs.IOContext{})
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestDeltaFileUndoApply(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	// UNDO ordering: row ascending, timestamp descending within a row.
	id := writeDeltaFile(t, bm, UndoDelta, []deltaEntry{
		{DeltaKey{RowIdx: 5, Timestamp: 20}, updateCol0(1)},
		{DeltaKey{RowIdx: 5, Timestamp: 10}, updateCol0(2)},
		{DeltaKey{RowIdx: 7, Timestamp: 15}, deleteChangeList()},
	})
	dfr := openDeltaFile(t, bm, id, UndoDelta)

	// Reading as of ts<=14 committed: the ts=20 update and ts=15 insert
	// must be rolled back; the ts=10 update is already part of the base.
	iter := newIterAt(t, dfr, NewSnapshotAtTimestamp(15))
	require.NoError(t, iter.SeekToOrdinal(5))
	require.NoError(t, iter.PrepareBatch(3, PrepareForApply))

	a := arena.New(0)
	cb := row.NewColumnBlock(row.GetTypeInfo(row.TypeInt32), 3, a)
	require.NoError(t, iter.ApplyUpdates(0, cb))
	cell, ok := cb.Cell(0)
	require.True(t, ok)
	require.Equal(t, int32(1), row.DecodeInt32Cell(cell))

	sv := row.NewSelectionVector(3)
	sv.SetAllTrue()
	require.NoError(t, iter.ApplyDeletes(sv))
	require.True(t, sv.IsRowSelected(0))
	require.False(t, sv.IsRowSelected(2))

	// A snapshot that already includes every transaction needs no rollback
	// at all, so the whole file is irrelevant.
	snap := NewSnapshotAtTimestamp(25)
	require.False(t, dfr.IsRelevantForSnapshot(&snap))
}

func TestDeltaFileUndoMultiBlock(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)

	// A tiny block size lands every delta in its own block, so one row's
	// history spans several index entries whose encoded keys descend
	// bytewise within the row. The file must still open and read back.
	id := writeDeltaFileOpts(t, bm, UndoDelta, cfile.WriterOptions{
		Compression: cfile.NoCompression,
		BlockSize:   1,
	}, []deltaEntry{
		{DeltaKey{RowIdx: 5, Timestamp: 30}, updateCol0(30)},
		{DeltaKey{RowIdx: 5, Timestamp: 20}, updateCol0(20)},
		{DeltaKey{RowIdx: 5, Timestamp: 10}, updateCol0(10)},
	})
	dfr := openDeltaFile(t, bm, id, UndoDelta)

	// ts=10 is already committed at this snapshot; the two newer updates
	// roll back in stored order, leaving the older payload in place.
	iter := newIterAt(t, dfr, NewSnapshotAtTimestamp(15))
	require.NoError(t, iter.SeekToOrdinal(5))
	require.NoError(t, iter.PrepareBatch(1, PrepareForApply))

	a := arena.New(0)
	cb := row.NewColumnBlock(row.GetTypeInfo(row.TypeInt32), 1, a)
	require.NoError(t, iter.ApplyUpdates(0, cb))
	cell, ok := cb.Cell(0)
	require.True(t, ok)
	require.Equal(t, int32(20), row.DecodeInt32Cell(cell))
}

func TestDeltaFileMultiBlockScan(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)

	const nrows = 2000
	entries := make([]deltaEntry, nrows)
	for i := range entries {
		entries[i] = deltaEntry{
			key:     DeltaKey{RowIdx: base.RowID(i), Timestamp: base.Timestamp(i + 1)},
			changes: updateCol0(int32(i)),
		}
	}
	wb, err := bm.CreateBlock()
	require.NoError(t, err)
	// A small block size forces the deltas across many blocks.
	w := NewDeltaFileWriter(wb, cfile.WriterOptions{
		BlockSize:   512,
		Compression: cfile.NoCompression,
	})
	for _, e := range entries {
		require.NoError(t, w.AppendDeltaRedo(e.key, e.changes))
	}
	require.Equal(t, uint32(nrows), w.WrittenDeltaCount())
	require.NoError(t, w.Finish())

	dfr := openDeltaFile(t, bm, wb.ID(), RedoDelta)
	iter := newIterAt(t, dfr, NewSnapshotIncludingAllTransactions())
	require.NoError(t, iter.SeekToOrdinal(0))

	// Walk the file in fixed windows and verify every row's update lands at
	// the right relative offset.
	const window = 170
	a := arena.New(0)
	for start := 0; start < nrows; start += window {
		require.NoError(t, iter.PrepareBatch(window, PrepareForApply))
		cb := row.NewColumnBlock(row.GetTypeInfo(row.TypeInt32), window, a)
		require.NoError(t, iter.ApplyUpdates(0, cb))
		for i := 0; i < window && start+i < nrows; i++ {
			cell, ok := cb.Cell(i)
			require.True(t, ok, "row %d", start+i)
			require.Equal(t, int32(start+i), row.DecodeInt32Cell(cell))
		}
		a.Reset()
	}
	// Consumed blocks are evicted by the next prepare, after which the
	// iterator reports itself drained.
	require.NoError(t, iter.PrepareBatch(window, PrepareForApply))
	require.False(t, iter.HasNext())
	mayHave, err := iter.MayHaveDeltas()
	require.NoError(t, err)
	require.False(t, mayHave)
}

func TestDeltaFileSeekPastEnd(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	dfr := openDeltaFile(t, bm, scenarioFile(t, bm), RedoDelta)

	iter := newIterAt(t, dfr, NewSnapshotIncludingAllTransactions())
	require.NoError(t, iter.SeekToOrdinal(1000))
	require.NoError(t, iter.PrepareBatch(10, PrepareForApply))
	mayHave, err := iter.MayHaveDeltas()
	require.NoError(t, err)
	require.False(t, mayHave)
}

func TestDeltaFileWriterEmptyFinish(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	wb, err := bm.CreateBlock()
	require.NoError(t, err)
	w := NewDeltaFileWriter(wb, cfile.WriterOptions{})
	err = w.Finish()
	require.True(t, errors.Is(err, base.ErrAborted), "%v", err)
}

func TestDebugDumpDeltaIterator(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	dfr := openDeltaFile(t, bm, scenarioFile(t, bm), RedoDelta)

	iter, err := dfr.NewDeltaIterator(RowIteratorOptions{
		Projection: col0Schema(),
		Snapshot:   NewSnapshotIncludingAllTransactions(),
	})
	require.NoError(t, err)

	var lines []string
	require.NoError(t, DebugDumpDeltaIterator(iter, col0Schema(), &lines))
	require.Equal(t, []string{
		"(row 5 ts 10) SET col0=42",
		"(row 5 ts 20) DELETE",
		"(row 7 ts 15) SET col0=7",
	}, lines)
}

func TestWriteDeltaIteratorToFile(t *testing.T) {
	bm, err := fs.OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	dfr := openDeltaFile(t, bm, scenarioFile(t, bm), RedoDelta)

	iter, err := dfr.NewDeltaIterator(RowIteratorOptions{
		Projection: col0Schema(),
		Snapshot:   NewSnapshotIncludingAllTransactions(),
	})
	require.NoError(t, err)

	wb, err := bm.CreateBlock()
	require.NoError(t, err)
	w := NewDeltaFileWriter(wb, cfile.WriterOptions{})
	require.NoError(t, WriteDeltaIteratorToFile(RedoDelta, iter, w))
	require.NoError(t, w.Finish())

	// The copy must dump identically to the original.
	copied := openDeltaFile(t, bm, wb.ID(), RedoDelta)
	origIter, err := dfr.NewDeltaIterator(RowIteratorOptions{
		Projection: col0Schema(),
		Snapshot:   NewSnapshotIncludingAllTransactions(),
	})
	require.NoError(t, err)
	copyIter, err := copied.NewDeltaIterator(RowIteratorOptions{
		Projection: col0Schema(),
		Snapshot:   NewSnapshotIncludingAllTransactions(),
	})
	require.NoError(t, err)

	var origLines, copyLines []string
	require.NoError(t, DebugDumpDeltaIterator(origIter, col0Schema(), &origLines))
	require.NoError(t, DebugDumpDeltaIterator(copyIter, col0Schema(), &copyLines))
	require.Equal(t, origLines, copyLines)
	require.Len(t, copyLines, 3)
	require.Contains(t, copied.String(), "REDO delta file")
}
