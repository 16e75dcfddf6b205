// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"fmt"
	"slices"
	"strings"

	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/internal/invariants"
)

// MvccSnapshot is a point-in-time view of which transactions are committed.
// It is represented compactly as two watermarks plus the set of committed
// timestamps in between:
//
//   - every transaction below allCommittedBefore is committed
//   - no transaction at or above noneCommittedAtOrAfter is committed
//   - between the two, exactly the listed timestamps are committed
type MvccSnapshot struct {
	allCommittedBefore     base.Timestamp
	noneCommittedAtOrAfter base.Timestamp
	// committed holds the in-flight-range committed timestamps, sorted.
	committed []base.Timestamp
}

// NewSnapshotIncludingAllTransactions returns a snapshot in which every
// transaction is considered committed.
func NewSnapshotIncludingAllTransactions() MvccSnapshot {
	return MvccSnapshot{
		allCommittedBefore:     base.TimestampMax,
		noneCommittedAtOrAfter: base.TimestampMax,
	}
}

// NewSnapshotExcludingAllTransactions returns a snapshot in which no
// transaction is considered committed.
func NewSnapshotExcludingAllTransactions() MvccSnapshot {
	return MvccSnapshot{
		allCommittedBefore:     base.TimestampMin,
		noneCommittedAtOrAfter: base.TimestampMin,
	}
}

// NewSnapshotAtTimestamp returns a snapshot in which exactly the transactions
// with timestamps below ts are considered committed.
func NewSnapshotAtTimestamp(ts base.Timestamp) MvccSnapshot {
	return MvccSnapshot{
		allCommittedBefore:     ts,
		noneCommittedAtOrAfter: ts,
	}
}

// NewSnapshot returns a snapshot with the given watermarks and the given set
// of committed timestamps in between. committedInRange must be sorted.
func NewSnapshot(
	allCommittedBefore, noneCommittedAtOrAfter base.Timestamp,
	committedInRange []base.Timestamp,
) MvccSnapshot {
	invariants.Assertf(allCommittedBefore <= noneCommittedAtOrAfter,
		"inverted snapshot watermarks %d > %d",
		uint64(allCommittedBefore), uint64(noneCommittedAtOrAfter))
	return MvccSnapshot{
		allCommittedBefore:     allCommittedBefore,
		noneCommittedAtOrAfter: noneCommittedAtOrAfter,
		committed:              slices.Clone(committedInRange),
	}
}

// IsCommitted reports whether the transaction with the given timestamp is
// committed in this snapshot.
func (s *MvccSnapshot) IsCommitted(ts base.Timestamp) bool {
	// Fast paths cover the common case of a snapshot with no in-flight
	// transactions.
	if ts < s.allCommittedBefore {
		return true
	}
	if ts >= s.noneCommittedAtOrAfter {
		return false
	}
	_, found := slices.BinarySearch(s.committed, ts)
	return found
}

// MayHaveCommittedTransactionsAtOrAfter reports whether any transaction with
// a timestamp at or after ts could be committed in this snapshot. Used to
// prune REDO delta files whose earliest mutation is still invisible.
func (s *MvccSnapshot) MayHaveCommittedTransactionsAtOrAfter(ts base.Timestamp) bool {
	return ts < s.noneCommittedAtOrAfter
}

// MayHaveUncommittedTransactionsAtOrBefore reports whether any transaction
// with a timestamp at or before ts could be uncommitted in this snapshot.
// Used to prune UNDO delta files whose newest mutation is already visible.
func (s *MvccSnapshot) MayHaveUncommittedTransactionsAtOrBefore(ts base.Timestamp) bool {
	return ts > s.allCommittedBefore ||
		(ts == s.allCommittedBefore && !s.IsCommitted(ts))
}

// String implements fmt.Stringer.
func (s MvccSnapshot) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "MvccSnapshot[committed={T|T < %d", uint64(s.allCommittedBefore))
	if len(s.committed) > 0 {
		sb.WriteString(" or T in {")
		for i, ts := range s.committed {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "%d", uint64(ts))
		}
		sb.WriteString("}")
	}
	sb.WriteString("}]")
	return sb.String()
}
