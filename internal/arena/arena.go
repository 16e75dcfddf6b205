// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package arena implements a chunked bump allocator. Decoded values are
// relocated out of transient block buffers into an arena so that their
// lifetime is decoupled from the underlying block's.
package arena

// Arena allocates byte slices out of large chunks. It is not safe for
// concurrent use; each scanner owns its own arena.
type Arena struct {
	cur       []byte
	chunkSize int
	allocated int
}

const defaultChunkSize = 16 << 10

// New constructs an arena with the given chunk size. A chunkSize of zero
// selects a default.
func New(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Arena{chunkSize: chunkSize}
}

// AllocBytes returns an arena-owned, zeroed slice of length n. Allocations
// larger than the chunk size get a dedicated chunk.
func (a *Arena) AllocBytes(n int) []byte {
	if n > cap(a.cur)-len(a.cur) {
		size := a.chunkSize
		if n > size {
			size = n
		}
		a.cur = make([]byte, 0, size)
		a.allocated += size
	}
	s := a.cur[len(a.cur) : len(a.cur)+n]
	a.cur = a.cur[:len(a.cur)+n]
	return s
}

// RelocateBytes copies v into the arena and returns the copy. The returned
// slice remains valid until Reset; the source may be reused or freed.
func (a *Arena) RelocateBytes(v []byte) []byte {
	if len(v) == 0 {
		// Preserve nil-ness vs. empty: a zero-length copy is still non-nil so
		// that callers can distinguish "empty value" from "no value".
		if v == nil {
			return nil
		}
		return []byte{}
	}
	s := a.AllocBytes(len(v))
	copy(s, v)
	return s
}

// Allocated returns the total byte capacity reserved by the arena.
func (a *Arena) Allocated() int {
	return a.allocated
}

// Reset discards all allocations. Previously returned slices must not be
// used afterwards.
func (a *Arena) Reset() {
	a.cur = nil
	a.allocated = 0
}
