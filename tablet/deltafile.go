// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"github.com/colstore/colstore/cfile"
	"github.com/colstore/colstore/fs"
	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/internal/invariants"
	"github.com/colstore/colstore/row"
)

// deltaStatsEntryName is the file metadata entry holding encoded DeltaStats.
const deltaStatsEntryName = "deltafile.stats"

// DeltaFileWriter writes a sorted sequence of (DeltaKey, RowChangeList) pairs
// into a CFile. The file's value index stores bare encoded DeltaKeys so that
// reads can seek by key without decoding changelist payloads.
//
// A writer is exclusively owned by one goroutine from construction through
// Finish or Abort.
type DeltaFileWriter struct {
	cw    *cfile.Writer
	stats *DeltaStats

	keyBuf []byte

	// Tracks append order when invariant checks are enabled.
	hasLast  bool
	lastKey  DeltaKey
	lastType DeltaType
}

// NewDeltaFileWriter creates a writer on wb. The value index is always
// written, and index keys keep the full encoded DeltaKey so that seeks can
// compare complete (row, timestamp) pairs.
func NewDeltaFileWriter(wb *fs.WritableBlock, opts cfile.WriterOptions) *DeltaFileWriter {
	opts.WriteValidx = true
	opts.OptimizeIndexKeys = false
	opts.IndexKeyEncoder = func(value []byte) ([]byte, error) {
		k, _, err := DecodeDeltaKey(value)
		if err != nil {
			return nil, err
		}
		return k.EncodeTo(nil), nil
	}
	return &DeltaFileWriter{
		cw:    cfile.NewWriter(wb, opts),
		stats: NewDeltaStats(),
	}
}

// AppendDeltaRedo appends one REDO delta. Keys must arrive in ascending
// (row, timestamp) order; this is checked only in builds with invariants
// enabled.
func (w *DeltaFileWriter) AppendDeltaRedo(key DeltaKey, changes row.RowChangeList) error {
	return w.appendDelta(key, RedoDelta, changes)
}

// AppendDeltaUndo appends one UNDO delta. Keys must arrive in ascending row
// order with descending timestamps within a row; this is checked only in
// builds with invariants enabled.
func (w *DeltaFileWriter) AppendDeltaUndo(key DeltaKey, changes row.RowChangeList) error {
	return w.appendDelta(key, UndoDelta, changes)
}

func (w *DeltaFileWriter) appendDelta(key DeltaKey, typ DeltaType, changes row.RowChangeList) error {
	if invariants.Enabled {
		if w.hasLast {
			invariants.Assertf(w.lastType == typ,
				"mixed delta types in one file: %s then %s", w.lastType, typ)
			invariants.Assertf(w.lastKey.Compare(key, typ) < 0,
				"deltas out of order: %s then %s", w.lastKey, key)
		}
		w.hasLast = true
		w.lastKey = key
		w.lastType = typ
	}
	if err := w.stats.UpdateStats(key.Timestamp, changes); err != nil {
		return err
	}
	w.keyBuf = key.EncodeTo(w.keyBuf[:0])
	entry := append(w.keyBuf, changes.Data...)
	return w.cw.AppendEntries([][]byte{entry})
}

// WrittenDeltaCount returns the number of deltas appended so far.
func (w *DeltaFileWriter) WrittenDeltaCount() uint32 {
	return w.cw.WrittenValueCount()
}

// Finish writes the delta stats metadata entry and closes out the file.
// Returns Aborted if no deltas were ever appended; empty delta files must not
// be persisted, and callers are expected to detect the no-op flush first.
func (w *DeltaFileWriter) Finish() error {
	if w.cw.WrittenValueCount() == 0 {
		if err := w.cw.Abort(); err != nil {
			return err
		}
		return base.AbortedErrorf("no deltas appended")
	}
	w.cw.AddMetadataPair(deltaStatsEntryName, w.stats.Encode())
	return w.cw.Finish()
}

// Abort discards the file.
func (w *DeltaFileWriter) Abort() error {
	return w.cw.Abort()
}

// DeltaFileReader provides access to one delta file. Construction is cheap;
// the first seek (or an explicit Init) triggers loading of the file footer,
// value index and delta stats. A reader is immutable after init and may be
// shared by any number of concurrently running iterators.
type DeltaFileReader struct {
	cfr  *cfile.Reader
	typ  DeltaType
	io   fs.IOContext
	opts cfile.ReaderOptions

	once  base.InitOnce
	stats *DeltaStats
}

// OpenDeltaFileReaderNoInit wraps rb without reading anything from it.
func OpenDeltaFileReaderNoInit(
	rb *fs.ReadableBlock, typ DeltaType, io fs.IOContext, opts cfile.ReaderOptions,
) *DeltaFileReader {
	opts = opts.EnsureDefaults()
	return &DeltaFileReader{
		cfr:  cfile.NewReaderNoInit(rb, opts),
		typ:  typ,
		io:   io,
		opts: opts,
	}
}

// OpenDeltaFileReader wraps rb and eagerly initializes the reader.
func OpenDeltaFileReader(
	rb *fs.ReadableBlock, typ DeltaType, io fs.IOContext, opts cfile.ReaderOptions,
) (*DeltaFileReader, error) {
	r := OpenDeltaFileReaderNoInit(rb, typ, io, opts)
	if err := r.Init(); err != nil {
		return nil, err
	}
	return r, nil
}

// Init loads the file footer, value index and delta stats. Idempotent and
// safe for concurrent callers; a failed attempt may be retried.
func (r *DeltaFileReader) Init() error {
	return r.once.Do(r.doInit)
}

func (r *DeltaFileReader) doInit() error {
	if err := r.cfr.Init(); err != nil {
		return err
	}
	if !r.cfr.HasValidx() {
		return base.NotSupportedErrorf("delta file has no value index")
	}
	raw, ok := r.cfr.MetadataEntry(deltaStatsEntryName)
	if !ok {
		return base.NotSupportedErrorf("delta file missing %q metadata", deltaStatsEntryName)
	}
	stats, err := DecodeDeltaStats(raw)
	if err != nil {
		return err
	}
	r.stats = stats
	return nil
}

// Initted reports whether Init has completed successfully.
func (r *DeltaFileReader) Initted() bool { return r.once.Done() }

// DeltaType returns the direction of the deltas in this file.
func (r *DeltaFileReader) DeltaType() DeltaType { return r.typ }

// Close closes the underlying block.
func (r *DeltaFileReader) Close() error { return r.cfr.Close() }

// Stats returns the file's delta stats. Requires Init.
func (r *DeltaFileReader) Stats() *DeltaStats {
	invariants.Assertf(r.once.Done(), "delta file reader not initialized")
	return r.stats
}

// IsRelevantForSnapshot reports whether this file could contain any mutation
// relevant to snap, using only the delta stats. If the reader has not been
// initialized yet the answer is conservatively true; the check never falsely
// excludes a file.
func (r *DeltaFileReader) IsRelevantForSnapshot(snap *MvccSnapshot) bool {
	if !r.once.Done() {
		return true
	}
	switch r.typ {
	case RedoDelta:
		return snap.MayHaveCommittedTransactionsAtOrAfter(r.stats.MinTimestamp())
	case UndoDelta:
		return snap.MayHaveUncommittedTransactionsAtOrBefore(r.stats.MaxTimestamp())
	}
	return true
}

// NewDeltaIterator returns an iterator over this file's deltas, or NotFound
// if the file is known to be irrelevant for the snapshot in opts. The
// NotFound is a skip signal rather than an error condition; callers treat it
// as "nothing to scan here". The returned iterator performs no I/O until its
// first seek.
func (r *DeltaFileReader) NewDeltaIterator(opts RowIteratorOptions) (DeltaIterator, error) {
	if !r.IsRelevantForSnapshot(&opts.Snapshot) {
		return nil, base.NotFoundErrorf("delta file not relevant for snapshot")
	}
	return newDeltaFileIterator(r, opts), nil
}

// CheckRowDeleted reports whether the row at rowIdx is deleted as of a
// snapshot that includes every transaction in this file. If the file's stats
// record no deletions the answer is false without any block I/O.
func (r *DeltaFileReader) CheckRowDeleted(rowIdx base.RowID, io fs.IOContext) (bool, error) {
	if err := r.Init(); err != nil {
		return false, err
	}
	if r.stats.DeleteCount() == 0 {
		return false, nil
	}
	opts := RowIteratorOptions{
		Projection: row.EmptySchema(),
		Snapshot:   NewSnapshotIncludingAllTransactions(),
		IOContext:  io,
	}
	it := newDeltaFileIterator(r, opts)
	if err := it.Init(); err != nil {
		return false, err
	}
	if err := it.SeekToOrdinal(rowIdx); err != nil {
		return false, err
	}
	if err := it.PrepareBatch(1, PrepareForApply); err != nil {
		return false, err
	}
	sv := row.NewSelectionVector(1)
	sv.SetAllTrue()
	if err := it.ApplyDeletes(sv); err != nil {
		return false, err
	}
	return !sv.IsRowSelected(0), nil
}
