// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// The error taxonomy of the storage layer. Every expected failure mode is
// classified by marking it with exactly one of the sentinels below; callers
// classify with errors.Is rather than by message.
//
// ErrNotFound is deliberately overloaded: it signals both "genuinely absent"
// (no metadata entry, seek past the last value) and "correctly skip" (a delta
// file irrelevant for a snapshot). Callers distinguish the two by context.
var (
	// ErrCorruption indicates that on-disk data isn't in the expected format:
	// a bad header, a truncated varint, an offset out of range, an unparseable
	// metadata entry. Never retried; rereading produces the same bytes.
	ErrCorruption = errors.New("colstore: corruption")

	// ErrNotFound indicates an absent value or a deliberate skip signal; see
	// the package comment above.
	ErrNotFound = errors.New("colstore: not found")

	// ErrInvalidArgument indicates caller misuse detectable without I/O.
	ErrInvalidArgument = errors.New("colstore: invalid argument")

	// ErrAborted indicates a well-defined refusal to proceed under a specific
	// precondition, such as finishing a delta file with no appended deltas.
	ErrAborted = errors.New("colstore: aborted")

	// ErrNotSupported indicates a file that is structurally valid but missing
	// a capability this code requires, such as a delta file without a value
	// index.
	ErrNotSupported = errors.New("colstore: not supported")
)

// CorruptionErrorf formats according to a format specifier and returns the
// string as an error value that is marked as a corruption error.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// MarkCorruptionError marks the given error as a corruption error.
func MarkCorruptionError(err error) error {
	if errors.Is(err, ErrCorruption) {
		return err
	}
	return errors.Mark(err, ErrCorruption)
}

// NotFoundErrorf returns an error marked as a not-found error.
func NotFoundErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// InvalidArgumentErrorf returns an error marked as an invalid-argument error.
func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}

// AbortedErrorf returns an error marked as an aborted error.
func AbortedErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrAborted)
}

// NotSupportedErrorf returns an error marked as a not-supported error.
func NotSupportedErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotSupported)
}
