// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"fmt"
	"strings"

	"github.com/colstore/colstore/internal/arena"
	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/row"
)

// Mutation is one node in a singly linked list of changes to a row. The
// changelist bytes are relocated into an arena owned by the caller so that a
// collected list stays valid after the source block is released.
type Mutation struct {
	Timestamp base.Timestamp
	Changes   row.RowChangeList
	Next      *Mutation
}

// NewMutation copies changes into a and returns a detached node.
func NewMutation(a *arena.Arena, ts base.Timestamp, changes []byte) *Mutation {
	return &Mutation{
		Timestamp: ts,
		Changes:   row.RowChangeList{Data: a.RelocateBytes(changes)},
	}
}

// PrependToList pushes m onto the front of the list rooted at *head.
func (m *Mutation) PrependToList(head **Mutation) {
	m.Next = *head
	*head = m
}

// AppendToList appends m at the tail of the list rooted at *head.
func (m *Mutation) AppendToList(head **Mutation) {
	m.Next = nil
	for p := head; ; p = &(*p).Next {
		if *p == nil {
			*p = m
			return
		}
	}
}

// ReverseMutationList reverses the list in place and returns the new head.
func ReverseMutationList(head *Mutation) *Mutation {
	var prev *Mutation
	for head != nil {
		next := head.Next
		head.Next = prev
		prev = head
		head = next
	}
	return prev
}

// StringifyMutationList renders a mutation list for debugging.
func StringifyMutationList(schema *row.Schema, head *Mutation) string {
	var sb strings.Builder
	sb.WriteString("[")
	for m := head; m != nil; m = m.Next {
		if m != head {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "@%d(%s)", uint64(m.Timestamp), m.Changes.String(schema))
	}
	sb.WriteString("]")
	return sb.String()
}
