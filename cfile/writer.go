// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cfile

import (
	"bytes"
	"encoding/binary"
	"slices"

	"github.com/colstore/colstore/fs"
	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/internal/coding"
	"github.com/colstore/colstore/internal/invariants"
)

type validxEntry struct {
	key []byte
	ptr BlockPointer
}

// Writer produces a CFile of binary values on a writable block. Values are
// appended in order, buffered into data blocks which are flushed as they fill,
// and optionally indexed by their first value.
type Writer struct {
	wb   *fs.WritableBlock
	opts WriterOptions

	builder    *BinaryPlainBlockBuilder
	valueCount uint32

	validx   []validxEntry
	metadata []struct{ key, value string }

	finished bool
}

// NewWriter creates a Writer that appends to wb. The caller must call either
// Finish or Abort.
func NewWriter(wb *fs.WritableBlock, opts WriterOptions) *Writer {
	opts = opts.EnsureDefaults()
	w := &Writer{
		wb:   wb,
		opts: opts,
	}
	w.builder = NewBinaryPlainBlockBuilder(opts.BlockSize)
	w.builder.Reset()
	return w
}

// AppendEntries appends values to the file in order. Data blocks are flushed
// to the underlying block as they fill up.
func (w *Writer) AppendEntries(values [][]byte) error {
	invariants.Assertf(!w.finished, "append to finished writer")
	rem := values
	for len(rem) > 0 {
		n := w.builder.Add(rem)
		rem = rem[n:]
		w.valueCount += uint32(n)
		if w.builder.IsBlockFull() {
			if err := w.flushBlock(); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddMetadataPair attaches a named metadata entry to the file. Entries are
// written out by Finish and retrievable via Reader.MetadataEntry.
func (w *Writer) AddMetadataPair(key string, value []byte) {
	invariants.Assertf(!w.finished, "metadata on finished writer")
	w.metadata = append(w.metadata, struct{ key, value string }{key, string(value)})
}

// WrittenValueCount returns the number of values appended so far.
func (w *Writer) WrittenValueCount() uint32 {
	return w.valueCount
}

func (w *Writer) flushBlock() error {
	if w.builder.Count() == 0 {
		return nil
	}
	var indexKey []byte
	if w.opts.WriteValidx {
		first, err := w.builder.FirstKey()
		if err != nil {
			return err
		}
		indexKey = slices.Clone(first)
		if w.opts.IndexKeyEncoder != nil {
			indexKey, err = w.opts.IndexKeyEncoder(indexKey)
			if err != nil {
				return err
			}
		}
		if w.opts.OptimizeIndexKeys && len(w.validx) > 0 {
			indexKey = shortenIndexKey(w.validx[len(w.validx)-1].key, indexKey)
		}
	}
	payload := w.builder.Finish(base.RowID(w.valueCount) - base.RowID(w.builder.Count()))
	ptr, err := w.writeStoredBlock(payload)
	if err != nil {
		return err
	}
	if w.opts.WriteValidx {
		w.validx = append(w.validx, validxEntry{key: indexKey, ptr: ptr})
	}
	w.builder.Reset()
	return nil
}

// shortenIndexKey returns the shortest prefix of key that still sorts
// strictly after prev, keeping index entries usable for at-or-before seeks
// while dropping bytes the search never needs.
func shortenIndexKey(prev, key []byte) []byte {
	for l := 1; l < len(key); l++ {
		if bytes.Compare(key[:l], prev) > 0 {
			return key[:l]
		}
	}
	return key
}

func (w *Writer) writeStoredBlock(payload []byte) (BlockPointer, error) {
	stored := encodeStoredBlock(payload, w.opts.Compression)
	ptr := BlockPointer{
		Offset: uint64(w.wb.BytesAppended()),
		Length: uint32(len(stored)),
	}
	if err := w.wb.Append(stored); err != nil {
		return BlockPointer{}, err
	}
	return ptr, nil
}

// Finish flushes any buffered values, writes the value index, metadata and
// footer, and syncs and closes the underlying block.
func (w *Writer) Finish() error {
	invariants.Assertf(!w.finished, "double Finish")
	w.finished = true
	if err := w.flushBlock(); err != nil {
		return err
	}

	var f footer
	f.version = cfileVersion
	if w.opts.WriteValidx {
		f.flags |= footerFlagValidx
		ptr, err := w.writeStoredBlock(encodeValidxBlock(w.validx))
		if err != nil {
			return err
		}
		f.validx = ptr
	}
	metaPtr, err := w.writeStoredBlock(encodeMetadataBlock(w.metadata))
	if err != nil {
		return err
	}
	f.meta = metaPtr
	if err := w.wb.Append(f.encode()); err != nil {
		return err
	}
	return w.wb.Finish()
}

// Abort discards the file without finishing it.
func (w *Writer) Abort() error {
	w.finished = true
	return w.wb.Abort()
}

// encodeValidxBlock lays out the value index payload: an entry count followed
// by (key, block pointer) entries with varint-prefixed keys.
func encodeValidxBlock(entries []validxEntry) []byte {
	buf := make([]byte, 4, 16*len(entries)+4)
	coding.EncodeFixed32(buf, uint32(len(entries)))
	for _, e := range entries {
		buf = coding.PutUvarint32(buf, uint32(len(e.key)))
		buf = append(buf, e.key...)
		buf = binary.AppendUvarint(buf, e.ptr.Offset)
		buf = coding.PutUvarint32(buf, e.ptr.Length)
	}
	return buf
}

func encodeMetadataBlock(entries []struct{ key, value string }) []byte {
	buf := make([]byte, 4, 32*len(entries)+4)
	coding.EncodeFixed32(buf, uint32(len(entries)))
	for _, e := range entries {
		buf = coding.PutUvarint32(buf, uint32(len(e.key)))
		buf = append(buf, e.key...)
		buf = coding.PutUvarint32(buf, uint32(len(e.value)))
		buf = append(buf, e.value...)
	}
	return buf
}
