// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package fs

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"github.com/colstore/colstore/internal/base"
)

func TestBlockManagerRoundTrip(t *testing.T) {
	mem := vfs.NewMem()
	bm, err := OpenBlockManager(mem, "blocks")
	require.NoError(t, err)

	wb, err := bm.CreateBlock()
	require.NoError(t, err)
	require.NoError(t, wb.Append([]byte("hello ")))
	require.NoError(t, wb.Append([]byte("world")))
	require.Equal(t, int64(11), wb.BytesAppended())
	require.NoError(t, wb.Finish())

	rb, err := bm.OpenBlock(wb.ID())
	require.NoError(t, err)
	defer rb.Close()
	require.Equal(t, int64(11), rb.Size())

	buf := make([]byte, 5)
	n, err := rb.ReadAt(buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	// A full read ending exactly at the block's end is not an error.
	n, err = rb.ReadAt(buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestBlockManagerFinishedBlock(t *testing.T) {
	bm, err := OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	wb, err := bm.CreateBlock()
	require.NoError(t, err)
	require.NoError(t, wb.Finish())

	err = wb.Append([]byte("x"))
	require.True(t, errors.Is(err, base.ErrInvalidArgument), "%v", err)
	err = wb.Finish()
	require.True(t, errors.Is(err, base.ErrInvalidArgument), "%v", err)
}

func TestBlockManagerAbort(t *testing.T) {
	bm, err := OpenBlockManager(vfs.NewMem(), "blocks")
	require.NoError(t, err)
	wb, err := bm.CreateBlock()
	require.NoError(t, err)
	require.NoError(t, wb.Append([]byte("partial")))
	require.NoError(t, wb.Abort())

	_, err = bm.OpenBlock(wb.ID())
	require.True(t, errors.Is(err, base.ErrNotFound), "%v", err)
}

func TestBlockManagerReopenPreservesIDs(t *testing.T) {
	mem := vfs.NewMem()
	bm, err := OpenBlockManager(mem, "blocks")
	require.NoError(t, err)

	var ids []BlockID
	for i := 0; i < 3; i++ {
		wb, err := bm.CreateBlock()
		require.NoError(t, err)
		require.NoError(t, wb.Append([]byte{byte(i)}))
		require.NoError(t, wb.Finish())
		ids = append(ids, wb.ID())
	}

	// A manager reopened over the same directory must not reuse identities.
	bm2, err := OpenBlockManager(mem, "blocks")
	require.NoError(t, err)
	wb, err := bm2.CreateBlock()
	require.NoError(t, err)
	for _, id := range ids {
		require.NotEqual(t, id, wb.ID())
	}
	require.NoError(t, wb.Abort())

	// Existing blocks stay readable through the new manager.
	rb, err := bm2.OpenBlock(ids[2])
	require.NoError(t, err)
	require.Equal(t, int64(1), rb.Size())
	require.NoError(t, rb.Close())
}
