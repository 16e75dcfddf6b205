// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"cmp"
	"encoding/binary"
	"fmt"

	"github.com/colstore/colstore/internal/base"
)

// DeltaType distinguishes the two kinds of delta files kept for a rowset.
type DeltaType int8

const (
	// RedoDelta files contain mutations applied since the base data was
	// flushed. They are sorted by (row, timestamp) ascending.
	RedoDelta DeltaType = iota
	// UndoDelta files contain the inverse mutations needed to roll rows back
	// to points before the base data. They are sorted by row ascending,
	// timestamp descending.
	UndoDelta
)

// String implements fmt.Stringer.
func (t DeltaType) String() string {
	switch t {
	case RedoDelta:
		return "REDO"
	case UndoDelta:
		return "UNDO"
	}
	return fmt.Sprintf("DeltaType(%d)", int8(t))
}

const encodedDeltaKeyLength = 4 + 8

// DeltaKey identifies a single mutation: the ordinal index of the row within
// the rowset, and the timestamp of the transaction that made the change.
type DeltaKey struct {
	RowIdx    base.RowID
	Timestamp base.Timestamp
}

// EncodeTo appends the big-endian encoding of k to dst. The encoding sorts
// bytewise in (row, timestamp) ascending order.
func (k DeltaKey) EncodeTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(k.RowIdx))
	dst = binary.BigEndian.AppendUint64(dst, uint64(k.Timestamp))
	return dst
}

// DecodeDeltaKey parses an encoded key from the front of b, returning the key
// and the remaining bytes.
func DecodeDeltaKey(b []byte) (DeltaKey, []byte, error) {
	if len(b) < encodedDeltaKeyLength {
		return DeltaKey{}, nil, base.CorruptionErrorf(
			"delta key too short: %d bytes", len(b))
	}
	k := DeltaKey{
		RowIdx:    base.RowID(binary.BigEndian.Uint32(b)),
		Timestamp: base.Timestamp(binary.BigEndian.Uint64(b[4:])),
	}
	return k, b[encodedDeltaKeyLength:], nil
}

// Compare orders two keys within a delta file of the given type. Keys are
// ordered by row index ascending; within a row, REDO files order timestamps
// ascending and UNDO files descending.
func (k DeltaKey) Compare(other DeltaKey, typ DeltaType) int {
	if c := cmp.Compare(k.RowIdx, other.RowIdx); c != 0 {
		return c
	}
	c := k.Timestamp.Compare(other.Timestamp)
	if typ == UndoDelta {
		return -c
	}
	return c
}

// String implements fmt.Stringer.
func (k DeltaKey) String() string {
	return fmt.Sprintf("(row %d ts %d)", k.RowIdx, uint64(k.Timestamp))
}
