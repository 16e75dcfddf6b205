// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/colstore/internal/base"
)

func TestSnapshotAtTimestamp(t *testing.T) {
	snap := NewSnapshotAtTimestamp(10)
	require.True(t, snap.IsCommitted(0))
	require.True(t, snap.IsCommitted(9))
	require.False(t, snap.IsCommitted(10))
	require.False(t, snap.IsCommitted(11))
}

func TestSnapshotExtremes(t *testing.T) {
	all := NewSnapshotIncludingAllTransactions()
	none := NewSnapshotExcludingAllTransactions()
	for _, ts := range []base.Timestamp{0, 1, 1000, base.TimestampMax - 1} {
		require.True(t, all.IsCommitted(ts))
		require.False(t, none.IsCommitted(ts))
	}
}

func TestSnapshotInFlightRange(t *testing.T) {
	// Everything below 10 committed, nothing at or above 20, and of the
	// in-between transactions only 12 and 15 are committed.
	snap := NewSnapshot(10, 20, []base.Timestamp{12, 15})
	require.True(t, snap.IsCommitted(9))
	require.False(t, snap.IsCommitted(10))
	require.False(t, snap.IsCommitted(11))
	require.True(t, snap.IsCommitted(12))
	require.True(t, snap.IsCommitted(15))
	require.False(t, snap.IsCommitted(19))
	require.False(t, snap.IsCommitted(20))
	require.False(t, snap.IsCommitted(25))
}

func TestMayHaveCommittedTransactionsAtOrAfter(t *testing.T) {
	snap := NewSnapshot(10, 20, []base.Timestamp{12})
	require.True(t, snap.MayHaveCommittedTransactionsAtOrAfter(0))
	require.True(t, snap.MayHaveCommittedTransactionsAtOrAfter(19))
	require.False(t, snap.MayHaveCommittedTransactionsAtOrAfter(20))
	require.False(t, snap.MayHaveCommittedTransactionsAtOrAfter(100))
}

func TestMayHaveUncommittedTransactionsAtOrBefore(t *testing.T) {
	snap := NewSnapshot(10, 20, []base.Timestamp{12})
	require.False(t, snap.MayHaveUncommittedTransactionsAtOrBefore(9))
	// At the watermark itself, it depends on whether that exact timestamp is
	// committed.
	require.True(t, snap.MayHaveUncommittedTransactionsAtOrBefore(10))
	require.True(t, snap.MayHaveUncommittedTransactionsAtOrBefore(11))
	require.True(t, snap.MayHaveUncommittedTransactionsAtOrBefore(100))

	allCommittedThrough10 := NewSnapshot(10, 11, []base.Timestamp{10})
	require.False(t, allCommittedThrough10.MayHaveUncommittedTransactionsAtOrBefore(9))
	require.False(t, allCommittedThrough10.MayHaveUncommittedTransactionsAtOrBefore(10))
	require.True(t, allCommittedThrough10.MayHaveUncommittedTransactionsAtOrBefore(11))
}
