// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/colstore/colstore/cfile"
	"github.com/colstore/colstore/fs"
	"github.com/colstore/colstore/internal/arena"
	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/internal/invariants"
	"github.com/colstore/colstore/row"
)

// PrepareFlag tells PrepareBatch which consumers will run against the
// prepared window, so it can skip work the consumers won't need.
type PrepareFlag int

const (
	// PrepareForApply prepares for ApplyUpdates and ApplyDeletes.
	PrepareForApply PrepareFlag = 1 << iota
	// PrepareForCollect prepares for CollectMutations and
	// FilterColumnIDsAndCollectDeltas.
	PrepareForCollect
)

// RowIteratorOptions configures a delta iterator.
type RowIteratorOptions struct {
	// Projection is the set of columns the scan materializes. Updates to
	// columns outside the projection are skipped.
	Projection *row.Schema
	// Snapshot determines which mutations are visible.
	Snapshot MvccSnapshot
	// IOContext attributes block reads.
	IOContext fs.IOContext
}

// DeltaIterator iterates over the mutations of one delta store in row-ordinal
// order. Calls must follow the sequence Init, SeekToOrdinal, then repeated
// PrepareBatch each followed by any number of Apply/Collect calls against the
// same prepared window. Prepared windows must not regress.
type DeltaIterator interface {
	// Init prepares the iterator for seeking.
	Init() error

	// SeekToOrdinal positions the iterator so that the next PrepareBatch
	// starts at the given row ordinal.
	SeekToOrdinal(idx base.RowID) error

	// PrepareBatch loads the deltas for the window of nrows rows starting
	// where the previous window ended (or at the seek point).
	PrepareBatch(nrows int, flag PrepareFlag) error

	// ApplyUpdates applies visible updates of the projection column colIdx
	// onto dst, which holds one cell per row of the prepared window.
	ApplyUpdates(colIdx int, dst *row.ColumnBlock) error

	// ApplyDeletes updates the selection vector of the prepared window,
	// clearing rows with visible deletes and re-setting rows with visible
	// reinserts.
	ApplyDeletes(sv *row.SelectionVector) error

	// CollectMutations prepends each visible mutation onto the per-row list
	// heads in dst, which holds one entry per row of the prepared window.
	// Changelist bytes are relocated into a.
	CollectMutations(dst []*Mutation, a *arena.Arena) error

	// FilterColumnIDsAndCollectDeltas rewrites every delta in the prepared
	// window with the given columns removed and appends the non-empty
	// results to out. Visibility is not consulted.
	FilterColumnIDsAndCollectDeltas(colIDs []base.ColumnID, out *[]DeltaKeyAndUpdate, a *arena.Arena) error

	// HasNext reports whether any deltas remain at or after the current
	// position.
	HasNext() bool

	// MayHaveDeltas reports whether the current prepared window has any
	// unconsumed deltas.
	MayHaveDeltas() (bool, error)

	fmt.Stringer
}

// preparedDeltaBlock is one decoded delta block buffered for the scan.
type preparedDeltaBlock struct {
	ptr     cfile.BlockPointer
	decoder *cfile.BinaryPlainBlockDecoder

	// Row ordinals of the first and last key in the block.
	firstUpdatedIdx base.RowID
	lastUpdatedIdx  base.RowID

	// Index of the first entry at or after the current window start. Fast
	// forwarded by PrepareBatch so repeated narrow windows over one block
	// don't rescan from zero.
	startIdx int
}

func (b *preparedDeltaBlock) String() string {
	return fmt.Sprintf("%s (%d-%d)", b.ptr, b.firstUpdatedIdx, b.lastUpdatedIdx)
}

// deltaFileIterator implements DeltaIterator over a DeltaFileReader. It holds
// a shared handle on the reader; the reader may back any number of iterators
// concurrently while each iterator owns its own cursor state.
type deltaFileIterator struct {
	dfr  *DeltaFileReader
	opts RowIteratorOptions

	indexIter *cfile.IndexIterator
	blocks    []*preparedDeltaBlock

	preparedIdx   base.RowID
	preparedCount int

	initted   bool
	seeked    bool
	prepared  bool
	exhausted bool
}

var _ DeltaIterator = (*deltaFileIterator)(nil)

func newDeltaFileIterator(dfr *DeltaFileReader, opts RowIteratorOptions) *deltaFileIterator {
	return &deltaFileIterator{dfr: dfr, opts: opts}
}

func (it *deltaFileIterator) Init() error {
	invariants.Assertf(!it.initted, "double Init")
	if it.opts.Projection == nil {
		return base.InvalidArgumentErrorf("delta iterator requires a projection")
	}
	it.initted = true
	return nil
}

func (it *deltaFileIterator) SeekToOrdinal(idx base.RowID) error {
	invariants.Assertf(it.initted, "seek before Init")
	// The reader may not have been initialized when the iterator was
	// created; the first seek completes it.
	if err := it.dfr.Init(); err != nil {
		return err
	}
	it.blocks = it.blocks[:0]
	it.preparedIdx = idx
	it.preparedCount = 0
	it.prepared = false
	it.seeked = true

	// Relevance may have been inconclusive before init loaded the stats.
	if !it.dfr.IsRelevantForSnapshot(&it.opts.Snapshot) {
		it.exhausted = true
		return nil
	}
	it.exhausted = false

	if it.indexIter == nil {
		iter, err := it.dfr.cfr.NewIndexIterator()
		if err != nil {
			return err
		}
		it.indexIter = iter
	}
	target := DeltaKey{RowIdx: idx, Timestamp: base.TimestampMin}.EncodeTo(nil)
	err := it.indexIter.SeekAtOrBefore(target)
	if errors.Is(err, base.ErrNotFound) {
		// The target precedes every index entry. The at-or-before seek has
		// no way to express "before everything", so land on the first entry
		// instead; PrepareBatch skips rows below the window anyway.
		err = it.indexIter.SeekToFirst()
	}
	return err
}

func (it *deltaFileIterator) PrepareBatch(nrows int, _ PrepareFlag) error {
	invariants.Assertf(it.seeked, "prepare before seek")
	invariants.Assertf(nrows > 0, "prepare of empty window")

	startRow := it.preparedIdx
	if it.prepared {
		startRow = it.preparedIdx + base.RowID(it.preparedCount)
	}
	stopRow := startRow + base.RowID(nrows) - 1

	// Evict blocks fully below the new window.
	for len(it.blocks) > 0 && it.blocks[0].lastUpdatedIdx < startRow {
		it.blocks = it.blocks[1:]
	}

	// Pull blocks until the next one starts past the window.
	for !it.exhausted {
		nextRow, err := it.firstRowIdxInCurrentIndexBlock()
		if err != nil {
			return err
		}
		if nextRow > stopRow {
			break
		}
		if err := it.readCurrentBlockOntoQueue(); err != nil {
			return err
		}
		err = it.indexIter.Next()
		if errors.Is(err, base.ErrNotFound) {
			it.exhausted = true
			break
		}
		if err != nil {
			return err
		}
	}

	// Fast-forward the front block past rows below the window.
	if len(it.blocks) > 0 {
		blk := it.blocks[0]
		i := blk.startIdx
		for ; i < blk.decoder.Count(); i++ {
			key, _, err := DecodeDeltaKey(blk.decoder.ValueAt(i))
			if err != nil {
				return err
			}
			if key.RowIdx >= startRow {
				break
			}
		}
		blk.startIdx = i
	}

	it.preparedIdx = startRow
	it.preparedCount = nrows
	it.prepared = true
	return nil
}

func (it *deltaFileIterator) firstRowIdxInCurrentIndexBlock() (base.RowID, error) {
	key, _, err := DecodeDeltaKey(it.indexIter.CurrentKey())
	if err != nil {
		return 0, err
	}
	return key.RowIdx, nil
}

func (it *deltaFileIterator) readCurrentBlockOntoQueue() error {
	ptr := it.indexIter.CurrentPointer()
	data, err := it.dfr.cfr.ReadBlock(ptr)
	if err != nil {
		return err
	}
	dec := cfile.NewBinaryPlainBlockDecoder(data)
	if err := dec.ParseHeader(); err != nil {
		return errors.Wrapf(err, "unable to decode delta block %s", ptr)
	}
	if dec.Count() == 0 {
		return base.CorruptionErrorf("empty delta block %s", ptr)
	}
	blk := &preparedDeltaBlock{ptr: ptr, decoder: dec}
	first, _, err := DecodeDeltaKey(dec.ValueAt(0))
	if err != nil {
		return err
	}
	last, _, err := DecodeDeltaKey(dec.ValueAt(dec.Count() - 1))
	if err != nil {
		return err
	}
	blk.firstUpdatedIdx = first.RowIdx
	blk.lastUpdatedIdx = last.RowIdx
	it.blocks = append(it.blocks, blk)
	return nil
}

// mutationVisitor is invoked for each mutation in the prepared window. It
// returns whether to keep visiting further mutations of the same row.
type mutationVisitor func(key DeltaKey, changes []byte) (keepRow bool, err error)

// visitMutations is the shared traversal behind the Apply and Collect
// operations. Entries below the window are skipped, the scan stops entirely
// at the first entry past the window, and once a visitor declines further
// mutations of a row, the rest of that row's entries are skipped.
func (it *deltaFileIterator) visitMutations(visitor mutationVisitor) error {
	invariants.Assertf(it.prepared, "visit before prepare")
	startRow := it.preparedIdx
	stopRow := it.preparedIdx + base.RowID(it.preparedCount) - 1

	suppress := false
	var suppressedRow base.RowID
	for _, blk := range it.blocks {
		for i := blk.startIdx; i < blk.decoder.Count(); i++ {
			key, changes, err := DecodeDeltaKey(blk.decoder.ValueAt(i))
			if err != nil {
				return err
			}
			if key.RowIdx > stopRow {
				return nil
			}
			if key.RowIdx < startRow {
				continue
			}
			if suppress {
				if key.RowIdx == suppressedRow {
					continue
				}
				suppress = false
			}
			keepRow, err := visitor(key, changes)
			if err != nil {
				return err
			}
			if !keepRow {
				suppress = true
				suppressedRow = key.RowIdx
			}
		}
	}
	return nil
}

// isRedoRelevant reports whether a REDO mutation at ts is visible in snap,
// and whether later mutations of the same row could still be visible.
// REDO entries within a row are ordered by ascending timestamp, so once the
// snapshot cannot commit anything at or after ts, the row is done.
func isRedoRelevant(snap *MvccSnapshot, ts base.Timestamp) (relevant, keepRow bool) {
	relevant = snap.IsCommitted(ts)
	keepRow = true
	if !relevant && !snap.MayHaveCommittedTransactionsAtOrAfter(ts) {
		keepRow = false
	}
	return relevant, keepRow
}

// isUndoRelevant reports whether an UNDO mutation at ts must be applied to
// roll the row back for snap, and whether earlier mutations of the same row
// could still matter. UNDO entries within a row are ordered by descending
// timestamp.
func isUndoRelevant(snap *MvccSnapshot, ts base.Timestamp) (relevant, keepRow bool) {
	relevant = !snap.IsCommitted(ts)
	keepRow = snap.MayHaveUncommittedTransactionsAtOrBefore(ts)
	return relevant, keepRow
}

func (it *deltaFileIterator) isRelevant(ts base.Timestamp) (relevant, keepRow bool) {
	if it.dfr.DeltaType() == RedoDelta {
		return isRedoRelevant(&it.opts.Snapshot, ts)
	}
	return isUndoRelevant(&it.opts.Snapshot, ts)
}

func (it *deltaFileIterator) ApplyUpdates(colIdx int, dst *row.ColumnBlock) error {
	return it.visitMutations(func(key DeltaKey, changes []byte) (bool, error) {
		relevant, keepRow := it.isRelevant(key.Timestamp)
		if !relevant {
			return keepRow, nil
		}
		dec := row.NewChangeListDecoder(row.RowChangeList{Data: changes})
		if err := dec.Init(); err != nil {
			return false, err
		}
		if dec.IsDelete() {
			// Liveness is ApplyDeletes' concern.
			return keepRow, nil
		}
		rel := int(key.RowIdx - it.preparedIdx)
		if err := dec.ApplyToOneColumn(rel, dst, it.opts.Projection, colIdx); err != nil {
			return false, err
		}
		return keepRow, nil
	})
}

func (it *deltaFileIterator) ApplyDeletes(sv *row.SelectionVector) error {
	return it.visitMutations(func(key DeltaKey, changes []byte) (bool, error) {
		relevant, keepRow := it.isRelevant(key.Timestamp)
		if !relevant {
			return keepRow, nil
		}
		dec := row.NewChangeListDecoder(row.RowChangeList{Data: changes})
		if err := dec.Init(); err != nil {
			return false, err
		}
		rel := int(key.RowIdx - it.preparedIdx)
		switch dec.Type() {
		case row.ChangeTypeUpdate:
			// An update implies the row was live.
			invariants.Assertf(sv.IsRowSelected(rel),
				"update of unselected row %d", key.RowIdx)
		case row.ChangeTypeDelete:
			sv.SetRowUnselected(rel)
		case row.ChangeTypeReinsert:
			invariants.Assertf(!sv.IsRowSelected(rel),
				"reinsert of selected row %d", key.RowIdx)
			sv.SetRowSelected(rel)
		default:
			it.dfr.opts.Logger.Fatalf("unexpected changelist type %d in %s",
				dec.Type(), key)
		}
		return keepRow, nil
	})
}

func (it *deltaFileIterator) CollectMutations(dst []*Mutation, a *arena.Arena) error {
	invariants.Assertf(len(dst) >= it.preparedCount,
		"destination holds %d rows, window has %d", len(dst), it.preparedCount)
	return it.visitMutations(func(key DeltaKey, changes []byte) (bool, error) {
		relevant, keepRow := it.isRelevant(key.Timestamp)
		if !relevant {
			return keepRow, nil
		}
		rel := int(key.RowIdx - it.preparedIdx)
		NewMutation(a, key.Timestamp, changes).PrependToList(&dst[rel])
		return keepRow, nil
	})
}

func (it *deltaFileIterator) FilterColumnIDsAndCollectDeltas(
	colIDs []base.ColumnID, out *[]DeltaKeyAndUpdate, a *arena.Arena,
) error {
	var enc row.ChangeListEncoder
	return it.visitMutations(func(key DeltaKey, changes []byte) (bool, error) {
		// Every row's full changelist must be inspected; no early exit.
		enc.Reset()
		err := row.RemoveColumnIDsFromChangeList(row.RowChangeList{Data: changes}, colIDs, &enc)
		if err != nil {
			return false, err
		}
		if enc.IsInitialized() {
			*out = append(*out, DeltaKeyAndUpdate{
				Key:  key,
				Cell: a.RelocateBytes(enc.AsChangeList().Data),
			})
		}
		return true, nil
	})
}

func (it *deltaFileIterator) HasNext() bool {
	invariants.Assertf(it.seeked, "HasNext before seek")
	return !it.exhausted || len(it.blocks) > 0
}

func (it *deltaFileIterator) MayHaveDeltas() (bool, error) {
	invariants.Assertf(it.prepared, "MayHaveDeltas before prepare")
	stopRow := it.preparedIdx + base.RowID(it.preparedCount) - 1
	for _, blk := range it.blocks {
		if blk.startIdx >= blk.decoder.Count() {
			continue
		}
		key, _, err := DecodeDeltaKey(blk.decoder.ValueAt(blk.startIdx))
		if err != nil {
			return false, err
		}
		if key.RowIdx <= stopRow {
			return true, nil
		}
		// Blocks are ordered; nothing later can start earlier.
		return false, nil
	}
	return false, nil
}

func (it *deltaFileIterator) String() string {
	return fmt.Sprintf("DeltaFileIterator(%s)", it.dfr.typ)
}
