// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package invariants provides assertion helpers that are compiled in only
// under the "invariants" or "race" build tags. Violations caught here are
// programming errors in the caller, not bad input: release builds skip the
// checks entirely and violating a checked contract there is undefined
// behavior.
package invariants

// Integer is a constraint that permits any integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}
