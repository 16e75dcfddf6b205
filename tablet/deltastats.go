// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablet

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/colstore/colstore/internal/base"
	"github.com/colstore/colstore/row"
)

// DeltaStats summarizes the contents of a delta file: the range of timestamps
// it spans, how many deletes and reinserts it carries, and how many updates
// touch each column. Readers use the summary to skip files that cannot be
// relevant to a scan.
type DeltaStats struct {
	deleteCount   int64
	reinsertCount int64
	updateCounts  map[base.ColumnID]int64

	maxTimestamp base.Timestamp
	minTimestamp base.Timestamp
}

// NewDeltaStats returns empty stats.
func NewDeltaStats() *DeltaStats {
	return &DeltaStats{
		updateCounts: make(map[base.ColumnID]int64),
		maxTimestamp: base.TimestampMin,
		minTimestamp: base.TimestampMax,
	}
}

// IncrementDeleteCount records n deletions.
func (s *DeltaStats) IncrementDeleteCount(n int64) { s.deleteCount += n }

// IncrementReinsertCount records n reinserts.
func (s *DeltaStats) IncrementReinsertCount(n int64) { s.reinsertCount += n }

// IncrementUpdateCount records n updates of the given column.
func (s *DeltaStats) IncrementUpdateCount(colID base.ColumnID, n int64) {
	s.updateCounts[colID] += n
}

// DeleteCount returns the number of deletions recorded.
func (s *DeltaStats) DeleteCount() int64 { return s.deleteCount }

// ReinsertCount returns the number of reinserts recorded.
func (s *DeltaStats) ReinsertCount() int64 { return s.reinsertCount }

// UpdateCount returns the number of updates recorded for colID.
func (s *DeltaStats) UpdateCount(colID base.ColumnID) int64 {
	return s.updateCounts[colID]
}

// UpdatedColumns returns the IDs of the columns with recorded updates,
// sorted.
func (s *DeltaStats) UpdatedColumns() []base.ColumnID {
	ids := make([]base.ColumnID, 0, len(s.updateCounts))
	for id := range s.updateCounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MinTimestamp returns the earliest timestamp observed, or TimestampMax if
// no mutations were recorded.
func (s *DeltaStats) MinTimestamp() base.Timestamp { return s.minTimestamp }

// MaxTimestamp returns the latest timestamp observed, or TimestampMin if no
// mutations were recorded.
func (s *DeltaStats) MaxTimestamp() base.Timestamp { return s.maxTimestamp }

// UpdateStats folds one mutation into the stats.
func (s *DeltaStats) UpdateStats(ts base.Timestamp, changes row.RowChangeList) error {
	dec := row.NewChangeListDecoder(changes)
	if err := dec.Init(); err != nil {
		return err
	}
	switch {
	case dec.IsDelete():
		s.IncrementDeleteCount(1)
	case dec.IsReinsert():
		s.IncrementReinsertCount(1)
	default:
		ids, err := dec.IncludedColumnIDs()
		if err != nil {
			return err
		}
		for _, id := range ids {
			s.IncrementUpdateCount(id, 1)
		}
	}
	if ts > s.maxTimestamp {
		s.maxTimestamp = ts
	}
	if ts < s.minTimestamp {
		s.minTimestamp = ts
	}
	return nil
}

// Encode serializes the stats for storage as a file metadata entry.
func (s *DeltaStats) Encode() []byte {
	ids := s.UpdatedColumns()
	buf := make([]byte, 0, 40+10*len(ids))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.minTimestamp))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.maxTimestamp))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.deleteCount))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.reinsertCount))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ids)))
	for _, id := range ids {
		buf = binary.AppendUvarint(buf, uint64(uint32(id)))
		buf = binary.AppendUvarint(buf, uint64(s.updateCounts[id]))
	}
	return buf
}

// DecodeDeltaStats parses stats previously produced by Encode.
func DecodeDeltaStats(b []byte) (*DeltaStats, error) {
	if len(b) < 36 {
		return nil, base.CorruptionErrorf("delta stats too short: %d bytes", len(b))
	}
	s := NewDeltaStats()
	s.minTimestamp = base.Timestamp(binary.LittleEndian.Uint64(b))
	s.maxTimestamp = base.Timestamp(binary.LittleEndian.Uint64(b[8:]))
	s.deleteCount = int64(binary.LittleEndian.Uint64(b[16:]))
	s.reinsertCount = int64(binary.LittleEndian.Uint64(b[24:]))
	n := binary.LittleEndian.Uint32(b[32:])
	b = b[36:]
	for i := uint32(0); i < n; i++ {
		id, k := binary.Uvarint(b)
		if k <= 0 {
			return nil, base.CorruptionErrorf("truncated delta stats column id")
		}
		b = b[k:]
		count, k := binary.Uvarint(b)
		if k <= 0 {
			return nil, base.CorruptionErrorf("truncated delta stats update count")
		}
		b = b[k:]
		s.updateCounts[base.ColumnID(int32(uint32(id)))] = int64(count)
	}
	return s, nil
}

// String implements fmt.Stringer.
func (s *DeltaStats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ts range=[%d, %d]", uint64(s.minTimestamp), uint64(s.maxTimestamp))
	fmt.Fprintf(&sb, ", delete_count=%d, reinsert_count=%d", s.deleteCount, s.reinsertCount)
	for _, id := range s.UpdatedColumns() {
		fmt.Fprintf(&sb, ", updates[col %d]=%d", id, s.updateCounts[id])
	}
	return sb.String()
}
