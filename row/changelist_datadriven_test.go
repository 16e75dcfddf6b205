// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package row

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"

	"github.com/colstore/colstore/internal/base"
)

// TestChangeListDataDriven exercises changelist building, rendering, and the
// projection/removal rewrites against testdata/changelist.
//
// Directives:
//
//	build            input lines "delete", "reinsert", or "set col=value"
//	                 (value "NULL" encodes an explicit NULL); renders the
//	                 built changelist and remembers it
//	raw <hex>        renders the given raw bytes as a changelist
//	project columns=(a,b,...)
//	                 projects the last built changelist onto the named
//	                 columns
//	remove ids=(1,2,...)
//	                 drops entries for the given column IDs from the last
//	                 built changelist
//	included-ids     lists the column IDs the last built changelist touches
func TestChangeListDataDriven(t *testing.T) {
	schema := MustNewSchema(
		ColumnSchema{ID: 0, Name: "key", Type: TypeInt32, IsKey: true},
		ColumnSchema{ID: 1, Name: "val", Type: TypeInt32, Nullable: true},
		ColumnSchema{ID: 2, Name: "str", Type: TypeBinary, Nullable: true},
	)
	colByName := func(name string) *ColumnSchema {
		for i := 0; i < schema.NumColumns(); i++ {
			if schema.Column(i).Name == name {
				return schema.Column(i)
			}
		}
		t.Fatalf("unknown column %q", name)
		return nil
	}
	encodeCell := func(col *ColumnSchema, val string) []byte {
		if val == "NULL" {
			return nil
		}
		switch col.Type {
		case TypeInt32:
			v, err := strconv.ParseInt(val, 10, 32)
			if err != nil {
				t.Fatalf("bad int32 %q: %v", val, err)
			}
			return EncodeInt32Cell(int32(v))
		case TypeBinary:
			return []byte(val)
		default:
			t.Fatalf("unhandled type %s", col.TypeInfo().Name)
			return nil
		}
	}

	var last RowChangeList
	datadriven.RunTest(t, "testdata/changelist", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "build":
			var enc ChangeListEncoder
			for _, line := range strings.Split(td.Input, "\n") {
				fields := strings.Fields(line)
				if len(fields) == 0 {
					continue
				}
				switch fields[0] {
				case "delete":
					enc.SetToDelete()
				case "reinsert":
					enc.SetToReinsert()
				case "set":
					for _, kv := range fields[1:] {
						name, val, ok := strings.Cut(kv, "=")
						if !ok {
							td.Fatalf(t, "malformed mutation %q", kv)
						}
						col := colByName(name)
						if !enc.IsInitialized() {
							enc.SetToUpdate()
						}
						enc.EncodeColumnMutation(col, col.ID, encodeCell(col, val))
					}
				default:
					td.Fatalf(t, "unknown build line %q", line)
				}
			}
			last = RowChangeList{Data: append([]byte(nil), enc.AsChangeList().Data...)}
			return last.String(schema)

		case "raw":
			data, err := hex.DecodeString(strings.TrimSpace(td.Input))
			if err != nil {
				td.Fatalf(t, "bad hex: %v", err)
			}
			return RowChangeList{Data: data}.String(schema)

		case "project":
			var names []string
			td.ScanArgs(t, "columns", &names)
			cols := make([]ColumnSchema, len(names))
			for i, name := range names {
				cols[i] = *colByName(name)
			}
			var enc ChangeListEncoder
			if err := ProjectChangeList(MustNewSchema(cols...), last, &enc); err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			if !enc.IsInitialized() {
				return "<all entries dropped>"
			}
			return enc.AsChangeList().String(schema)

		case "remove":
			var idStrs []string
			td.ScanArgs(t, "ids", &idStrs)
			ids := make([]base.ColumnID, len(idStrs))
			for i, s := range idStrs {
				v, err := strconv.Atoi(s)
				if err != nil {
					td.Fatalf(t, "bad column ID %q", s)
				}
				ids[i] = base.ColumnID(v)
			}
			var enc ChangeListEncoder
			if err := RemoveColumnIDsFromChangeList(last, ids, &enc); err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			if !enc.IsInitialized() {
				return "<all entries dropped>"
			}
			return enc.AsChangeList().String(schema)

		case "included-ids":
			dec := NewChangeListDecoder(last)
			if err := dec.Init(); err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			ids, err := dec.IncludedColumnIDs()
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			return fmt.Sprint(ids)

		default:
			td.Fatalf(t, "unknown command %q", td.Cmd)
			return ""
		}
	})
}
