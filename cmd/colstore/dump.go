// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/colstore/colstore/cfile"
	"github.com/colstore/colstore/fs"
	"github.com/colstore/colstore/row"
	"github.com/colstore/colstore/tablet"
)

var dumpFlags = struct {
	deltaType string
	statsOnly bool
	nrows     int
}{}

var dumpCmd = &cobra.Command{
	Use:   "dump <dir> <block-id>",
	Short: "dump the contents of a delta file",
	Args:  cobra.ExactArgs(2),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(
		&dumpFlags.deltaType, "type", "redo", "delta direction to decode with (redo|undo)")
	dumpCmd.Flags().BoolVar(
		&dumpFlags.statsOnly, "stats-only", false, "print only the file's delta stats")
	dumpCmd.Flags().IntVar(
		&dumpFlags.nrows, "nrows", 0, "print at most this many deltas (0 means all)")
}

func runDump(_ *cobra.Command, args []string) error {
	var typ tablet.DeltaType
	switch dumpFlags.deltaType {
	case "redo":
		typ = tablet.RedoDelta
	case "undo":
		typ = tablet.UndoDelta
	default:
		return fmt.Errorf("unknown delta type %q", dumpFlags.deltaType)
	}
	id, err := strconv.ParseUint(args[1], 16, 64)
	if err != nil {
		return fmt.Errorf("bad block id %q: %w", args[1], err)
	}

	bm, err := fs.OpenBlockManager(vfs.Default, args[0])
	if err != nil {
		return err
	}
	rb, err := bm.OpenBlock(fs.BlockID(id))
	if err != nil {
		return err
	}
	dfr, err := tablet.OpenDeltaFileReader(rb, typ, fs.IOContext{}, cfile.ReaderOptions{})
	if err != nil {
		return err
	}
	defer dfr.Close()

	printStats(dfr.Stats())
	if dumpFlags.statsOnly {
		return nil
	}

	iter, err := dfr.NewDeltaIterator(tablet.RowIteratorOptions{
		Projection: row.EmptySchema(),
		Snapshot:   tablet.NewSnapshotIncludingAllTransactions(),
	})
	if err != nil {
		return err
	}
	var lines []string
	if err := tablet.DebugDumpDeltaIterator(iter, row.EmptySchema(), &lines); err != nil {
		return err
	}
	if dumpFlags.nrows > 0 && len(lines) > dumpFlags.nrows {
		lines = lines[:dumpFlags.nrows]
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}

func printStats(stats *tablet.DeltaStats) {
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"min ts", "max ts", "deletes", "reinserts", "updated columns"})
	var cols string
	for i, id := range stats.UpdatedColumns() {
		if i > 0 {
			cols += ","
		}
		cols += fmt.Sprintf("%d(%d)", id, stats.UpdateCount(id))
	}
	tw.Append([]string{
		fmt.Sprintf("%d", uint64(stats.MinTimestamp())),
		fmt.Sprintf("%d", uint64(stats.MaxTimestamp())),
		fmt.Sprintf("%d", stats.DeleteCount()),
		fmt.Sprintf("%d", stats.ReinsertCount()),
		cols,
	})
	tw.Render()
}
