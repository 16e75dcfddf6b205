// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base // import "github.com/colstore/colstore/internal/base"

import (
	"math"

	"github.com/cockroachdb/redact"
)

// RowID is the ordinal position of a row within a column or rowset. It is the
// seek key for positional access into CFile data blocks, and the first
// component of a delta key.
type RowID uint32

// ColumnID identifies a column within a table for the lifetime of the table,
// across schema changes. Deltas reference columns by ID, never by index, so
// that old deltas remain decodable after columns are added or dropped.
type ColumnID int32

// Timestamp is an MVCC transaction timestamp. Timestamps are totally ordered;
// a larger value is a later transaction.
//
// TimestampMax is not a valid transaction timestamp; it is the initial value
// when accumulating a minimum.
type Timestamp uint64

const (
	// TimestampMin sorts before every valid timestamp.
	TimestampMin Timestamp = 0
	// TimestampMax sorts after every valid timestamp.
	TimestampMax Timestamp = math.MaxUint64
)

// SafeFormat implements redact.SafeFormatter.
func (t Timestamp) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d", uint64(t))
}

// Compare returns -1, 0, or +1 depending on whether t is less than, equal to,
// or greater than other.
func (t Timestamp) Compare(other Timestamp) int {
	switch {
	case t < other:
		return -1
	case t > other:
		return +1
	default:
		return 0
	}
}
