// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cfile

import (
	"bytes"
	"encoding/binary"

	"github.com/colstore/colstore/fs"
	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/internal/coding"
	"github.com/colstore/colstore/internal/invariants"
)

// Reader provides access to the blocks of a CFile. Construction is cheap;
// the footer, metadata and value index are loaded lazily on first Init so
// that many files can be opened without touching most of them.
type Reader struct {
	rb   *fs.ReadableBlock
	opts ReaderOptions

	once     base.InitOnce
	footer   footer
	metadata map[string][]byte
	validx   []validxEntry
}

// NewReaderNoInit wraps rb without reading anything from it.
func NewReaderNoInit(rb *fs.ReadableBlock, opts ReaderOptions) *Reader {
	opts = opts.EnsureDefaults()
	return &Reader{rb: rb, opts: opts}
}

// NewReader wraps rb and eagerly initializes the reader.
func NewReader(rb *fs.ReadableBlock, opts ReaderOptions) (*Reader, error) {
	r := NewReaderNoInit(rb, opts)
	if err := r.Init(); err != nil {
		return nil, err
	}
	return r, nil
}

// Init loads the footer, metadata and value index. It is idempotent and safe
// for concurrent use; a failed attempt may be retried.
func (r *Reader) Init() error {
	return r.once.Do(r.doInit)
}

func (r *Reader) doInit() error {
	size := r.rb.Size()
	if size < footerSize {
		return base.CorruptionErrorf("file too short for footer: %d bytes", size)
	}
	buf := make([]byte, footerSize)
	if _, err := r.rb.ReadAt(buf, size-footerSize); err != nil {
		return err
	}
	f, err := decodeFooter(buf)
	if err != nil {
		return err
	}
	r.footer = f

	metaPayload, err := r.readBlockAt(f.meta)
	if err != nil {
		return err
	}
	r.metadata, err = decodeMetadataBlock(metaPayload)
	if err != nil {
		return err
	}

	if f.flags&footerFlagValidx != 0 {
		validxPayload, err := r.readBlockAt(f.validx)
		if err != nil {
			return err
		}
		r.validx, err = decodeValidxBlock(validxPayload)
		if err != nil {
			return err
		}
	}
	return nil
}

// Initted reports whether Init has completed successfully.
func (r *Reader) Initted() bool { return r.once.Done() }

// Close closes the underlying block.
func (r *Reader) Close() error { return r.rb.Close() }

// FileSize returns the size of the underlying block in bytes.
func (r *Reader) FileSize() int64 { return r.rb.Size() }

// BlockID returns the identity of the underlying block.
func (r *Reader) BlockID() fs.BlockID { return r.rb.ID() }

// HasValidx reports whether the file carries a value index. Requires Init.
func (r *Reader) HasValidx() bool {
	invariants.Assertf(r.once.Done(), "reader not initialized")
	return r.footer.flags&footerFlagValidx != 0
}

// MetadataEntry returns the named metadata entry, if present. Requires Init.
func (r *Reader) MetadataEntry(key string) ([]byte, bool) {
	invariants.Assertf(r.once.Done(), "reader not initialized")
	v, ok := r.metadata[key]
	return v, ok
}

// ReadBlock reads, verifies and decompresses the stored block at ptr.
func (r *Reader) ReadBlock(ptr BlockPointer) ([]byte, error) {
	return r.readBlockAt(ptr)
}

func (r *Reader) readBlockAt(ptr BlockPointer) ([]byte, error) {
	if int64(ptr.Offset)+int64(ptr.Length) > r.rb.Size() {
		return nil, base.CorruptionErrorf("block %s beyond end of file (%d bytes)",
			ptr, r.rb.Size())
	}
	stored := make([]byte, ptr.Length)
	if _, err := r.rb.ReadAt(stored, int64(ptr.Offset)); err != nil {
		return nil, err
	}
	return decodeStoredBlock(stored)
}

// NewIndexIterator returns an iterator over the value index. Requires Init.
func (r *Reader) NewIndexIterator() (*IndexIterator, error) {
	if !r.HasValidx() {
		return nil, base.NotSupportedErrorf("file has no value index")
	}
	return &IndexIterator{entries: r.validx, pos: -1}, nil
}

// IndexIterator iterates over the (first value, block pointer) entries of a
// file's value index.
type IndexIterator struct {
	entries []validxEntry
	pos     int
}

// SeekToFirst positions the iterator at the first index entry. Returns
// NotFound if the index is empty.
func (it *IndexIterator) SeekToFirst() error {
	if len(it.entries) == 0 {
		return base.NotFoundErrorf("empty value index")
	}
	it.pos = 0
	return nil
}

// SeekAtOrBefore positions the iterator at the last entry whose key is less
// than or equal to target. Returns NotFound if target precedes every entry.
//
// Entries are stored in the writer's append order, which need not be bytewise
// sorted: keys may share a sorted fixed-width prefix while a suffix component
// runs backwards within each prefix group. The seek requires only that the
// bytewise comparison against target partitions the entries; a target that is
// a prefix-group lower bound satisfies this regardless of suffix direction.
func (it *IndexIterator) SeekAtOrBefore(target []byte) error {
	// Find the first entry strictly greater than target; the answer is the
	// entry before it.
	lo, hi := 0, len(it.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(it.entries[mid].key, target) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return base.NotFoundErrorf("no index entry at or before target")
	}
	it.pos = lo - 1
	return nil
}

// Next advances to the next index entry. Returns NotFound at the end.
func (it *IndexIterator) Next() error {
	invariants.Assertf(it.pos >= 0, "iterator not positioned")
	if it.pos+1 >= len(it.entries) {
		return base.NotFoundErrorf("end of value index")
	}
	it.pos++
	return nil
}

// CurrentKey returns the key of the current index entry.
func (it *IndexIterator) CurrentKey() []byte {
	invariants.Assertf(it.pos >= 0, "iterator not positioned")
	return it.entries[it.pos].key
}

// CurrentPointer returns the block pointer of the current index entry.
func (it *IndexIterator) CurrentPointer() BlockPointer {
	invariants.Assertf(it.pos >= 0, "iterator not positioned")
	return it.entries[it.pos].ptr
}

func decodeValidxBlock(payload []byte) ([]validxEntry, error) {
	if len(payload) < 4 {
		return nil, base.CorruptionErrorf("value index block too short")
	}
	count := coding.DecodeFixed32(payload)
	payload = payload[4:]
	entries := make([]validxEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		keyLen, n, err := coding.Uvarint32(payload)
		if err != nil {
			return nil, err
		}
		payload = payload[n:]
		if int(keyLen) > len(payload) {
			return nil, base.CorruptionErrorf("truncated value index key")
		}
		key := payload[:keyLen:keyLen]
		payload = payload[keyLen:]
		off, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, base.CorruptionErrorf("bad value index block offset")
		}
		payload = payload[n:]
		length, n, err := coding.Uvarint32(payload)
		if err != nil {
			return nil, err
		}
		payload = payload[n:]
		entries = append(entries, validxEntry{key: key, ptr: BlockPointer{Offset: off, Length: length}})
	}
	return entries, nil
}

func decodeMetadataBlock(payload []byte) (map[string][]byte, error) {
	if len(payload) < 4 {
		return nil, base.CorruptionErrorf("metadata block too short")
	}
	count := coding.DecodeFixed32(payload)
	payload = payload[4:]
	m := make(map[string][]byte, count)
	for i := uint32(0); i < count; i++ {
		keyLen, n, err := coding.Uvarint32(payload)
		if err != nil {
			return nil, err
		}
		payload = payload[n:]
		if int(keyLen) > len(payload) {
			return nil, base.CorruptionErrorf("truncated metadata key")
		}
		key := string(payload[:keyLen])
		payload = payload[keyLen:]
		valLen, n, err := coding.Uvarint32(payload)
		if err != nil {
			return nil, err
		}
		payload = payload[n:]
		if int(valLen) > len(payload) {
			return nil, base.CorruptionErrorf("truncated metadata value")
		}
		m[key] = payload[:valLen:valLen]
		payload = payload[valLen:]
	}
	return m, nil
}
