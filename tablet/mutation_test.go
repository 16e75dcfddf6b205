// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstore/colstore/internal/arena"
)

func TestMutationListOps(t *testing.T) {
	a := arena.New(0)

	var head *Mutation
	NewMutation(a, 10, updateCol0(1).Data).PrependToList(&head)
	NewMutation(a, 20, updateCol0(2).Data).PrependToList(&head)
	NewMutation(a, 30, deleteChangeList().Data).AppendToList(&head)

	// Prepends stack newest-first, the append lands at the tail.
	var got []uint64
	for m := head; m != nil; m = m.Next {
		got = append(got, uint64(m.Timestamp))
	}
	require.Equal(t, []uint64{20, 10, 30}, got)

	head = ReverseMutationList(head)
	got = got[:0]
	for m := head; m != nil; m = m.Next {
		got = append(got, uint64(m.Timestamp))
	}
	require.Equal(t, []uint64{30, 10, 20}, got)
}

func TestMutationListArenaCopy(t *testing.T) {
	a := arena.New(0)
	src := updateCol0(7).Data
	m := NewMutation(a, 5, src)
	src[0] = 0xff
	require.Equal(t, updateCol0(7).Data, m.Changes.Data)
}

func TestStringifyMutationList(t *testing.T) {
	schema := col0Schema()
	a := arena.New(0)

	require.Equal(t, "[]", StringifyMutationList(schema, nil))

	var head *Mutation
	NewMutation(a, 20, deleteChangeList().Data).PrependToList(&head)
	NewMutation(a, 10, updateCol0(42).Data).PrependToList(&head)
	require.Equal(t, "[@10(SET col0=42), @20(DELETE)]",
		StringifyMutationList(schema, head))
}
