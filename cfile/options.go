// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cfile

import "github.com/colstore/colstore/internal/base"

// Compression is the opaque byte-transform applied to a block's payload
// before it is written.
type Compression uint8

const (
	// DefaultCompression selects SnappyCompression.
	DefaultCompression Compression = iota
	// NoCompression stores payloads verbatim.
	NoCompression
	// SnappyCompression compresses payloads with snappy.
	SnappyCompression
	// ZstdCompression compresses payloads with zstd.
	ZstdCompression
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case SnappyCompression, DefaultCompression:
		return "snappy"
	case ZstdCompression:
		return "zstd"
	default:
		return "unknown"
	}
}

// DefaultBlockSize is the target uncompressed size of a data block.
const DefaultBlockSize = 32 << 10

// WriterOptions configures a CFile writer.
type WriterOptions struct {
	// BlockSize is the target uncompressed block size. A block may exceed it
	// by one value; see BlockBuilder.Add.
	BlockSize int

	// Compression selects the block payload transform.
	Compression Compression

	// WriteValidx enables the value index, allowing readers to seek by
	// value.
	WriteValidx bool

	// OptimizeIndexKeys shortens value-index keys to the shortest prefix
	// that still distinguishes adjacent blocks. Must be disabled when index
	// keys are themselves structured (e.g. delta keys), since truncation
	// would corrupt them.
	OptimizeIndexKeys bool

	// IndexKeyEncoder, if set, transforms a block's first value into its
	// value-index key. The default stores the value verbatim.
	IndexKeyEncoder func(value []byte) ([]byte, error)

	Logger base.Logger
}

// EnsureDefaults fills unset fields with defaults.
func (o WriterOptions) EnsureDefaults() WriterOptions {
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.Compression == DefaultCompression {
		o.Compression = SnappyCompression
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger
	}
	return o
}

// ReaderOptions configures a CFile reader.
type ReaderOptions struct {
	Logger base.Logger
}

// EnsureDefaults fills unset fields with defaults.
func (o ReaderOptions) EnsureDefaults() ReaderOptions {
	if o.Logger == nil {
		o.Logger = base.DefaultLogger
	}
	return o
}
