// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package fs provides the filesystem block-manager boundary consumed by the
// cfile and tablet layers. Blocks are opaque byte-range stores with a stable
// identity; the layers above never touch the filesystem directly.
package fs

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/colstore/colstore/internal/base"
)

// BlockID uniquely identifies a block within a block manager.
type BlockID uint64

// String implements fmt.Stringer.
func (id BlockID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// IOContext carries attribution for I/O performed on behalf of a higher-level
// operation (e.g. which tablet a scan belongs to). It does not carry
// cancellation; scans cancel cooperatively between operations.
type IOContext struct {
	TabletID string
}

// BlockManager creates and opens blocks backed by files under a single
// directory of a VFS. It is safe for concurrent use.
type BlockManager struct {
	fs     vfs.FS
	dir    string
	nextID atomic.Uint64
}

// OpenBlockManager opens (creating if necessary) a block manager rooted at
// dir.
func OpenBlockManager(filesystem vfs.FS, dir string) (*BlockManager, error) {
	if err := filesystem.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	bm := &BlockManager{fs: filesystem, dir: dir}
	// Start IDs after any existing blocks.
	ls, err := filesystem.List(dir)
	if err != nil {
		return nil, err
	}
	var maxID uint64
	for _, name := range ls {
		var id uint64
		if _, err := fmt.Sscanf(name, "%016x.blk", &id); err == nil && id > maxID {
			maxID = id
		}
	}
	bm.nextID.Store(maxID)
	return bm, nil
}

func (bm *BlockManager) path(id BlockID) string {
	return bm.fs.PathJoin(bm.dir, fmt.Sprintf("%016x.blk", uint64(id)))
}

// CreateBlock creates a new writable block with a fresh identity.
func (bm *BlockManager) CreateBlock() (*WritableBlock, error) {
	id := BlockID(bm.nextID.Add(1))
	f, err := bm.fs.Create(bm.path(id))
	if err != nil {
		return nil, err
	}
	return &WritableBlock{bm: bm, id: id, f: f}, nil
}

// OpenBlock opens an existing block for random-access reads. Returns an
// ErrNotFound-marked error if no such block exists.
func (bm *BlockManager) OpenBlock(id BlockID) (*ReadableBlock, error) {
	f, err := bm.fs.Open(bm.path(id))
	if err != nil {
		if oserror.IsNotExist(err) {
			return nil, errors.Mark(err, base.ErrNotFound)
		}
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &ReadableBlock{id: id, f: f, size: stat.Size()}, nil
}

// WritableBlock is an append-only block under construction. It is exclusively
// owned by a single writer for its entire lifetime.
type WritableBlock struct {
	bm       *BlockManager
	id       BlockID
	f        vfs.File
	appended int64
	finished bool
}

// ID returns the block's identity.
func (w *WritableBlock) ID() BlockID { return w.id }

// BytesAppended returns the number of bytes appended so far.
func (w *WritableBlock) BytesAppended() int64 { return w.appended }

// Append appends p to the block.
func (w *WritableBlock) Append(p []byte) error {
	if w.finished {
		return base.InvalidArgumentErrorf("append to finished block %s", w.id)
	}
	n, err := w.f.Write(p)
	w.appended += int64(n)
	return err
}

// Finish durably persists the block and closes it. No further appends are
// allowed.
func (w *WritableBlock) Finish() error {
	if w.finished {
		return base.InvalidArgumentErrorf("block %s already finished", w.id)
	}
	w.finished = true
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// Abort closes and removes the partially written block.
func (w *WritableBlock) Abort() error {
	w.finished = true
	_ = w.f.Close()
	return w.bm.fs.Remove(w.bm.path(w.id))
}

// ReadableBlock is an immutable block open for random-access reads. It is
// safe for concurrent readers.
type ReadableBlock struct {
	id   BlockID
	f    vfs.File
	size int64
}

// ID returns the block's identity.
func (r *ReadableBlock) ID() BlockID { return r.id }

// Size returns the block's length in bytes.
func (r *ReadableBlock) Size() int64 { return r.size }

// ReadAt implements io.ReaderAt against the block contents.
func (r *ReadableBlock) ReadAt(p []byte, off int64) (int, error) {
	n, err := r.f.ReadAt(p, off)
	if err == io.EOF && n == len(p) {
		err = nil
	}
	return n, err
}

// Close releases the underlying file handle.
func (r *ReadableBlock) Close() error {
	return r.f.Close()
}
