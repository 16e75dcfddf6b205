// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cfile

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/colstore/colstore/internal/base"
)

// On-disk layout of a CFile:
//
//	[stored block 0] ... [stored block N-1]
//	[value index block]    (optional)
//	[metadata block]
//	[footer]
//
// Each stored block is the (possibly compressed) payload followed by a
// one-byte codec tag and an 8-byte XXH64 checksum of payload+tag. The footer
// is fixed-size and locates the index and metadata blocks.

const (
	blockTrailerSize = 9 // 1-byte codec tag + 8-byte checksum

	footerSize = 48
	// cfileMagic trails the file; "Colfil1\n".
	cfileMagic       = "\x43\x6f\x6c\x66\x69\x6c\x31\x0a"
	cfileVersion     = 1
	footerFlagValidx = 1 << 0
)

const (
	codecTagNone   = 0
	codecTagSnappy = 1
	codecTagZstd   = 2
)

// BlockPointer locates a stored block within the file.
type BlockPointer struct {
	Offset uint64
	// Length covers the payload and trailer.
	Length uint32
}

// String implements fmt.Stringer.
func (p BlockPointer) String() string {
	return fmt.Sprintf("@%d:%d", p.Offset, p.Length)
}

var zstdEncoder = func() *zstd.Encoder {
	e, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	return e
}()

var zstdDecoder = func() *zstd.Decoder {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	return d
}()

// encodeStoredBlock returns the stored form of payload under the given
// compression: compressed payload, codec tag, checksum.
func encodeStoredBlock(payload []byte, compression Compression) []byte {
	var stored []byte
	var tag byte
	switch compression {
	case SnappyCompression, DefaultCompression:
		stored = snappy.Encode(nil, payload)
		tag = codecTagSnappy
	case ZstdCompression:
		stored = zstdEncoder.EncodeAll(payload, nil)
		tag = codecTagZstd
	default:
		stored = append([]byte(nil), payload...)
		tag = codecTagNone
	}
	stored = append(stored, tag)
	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(stored))
	return append(stored, sum[:]...)
}

// decodeStoredBlock verifies the checksum of a stored block and returns the
// decompressed payload.
func decodeStoredBlock(stored []byte) ([]byte, error) {
	if len(stored) < blockTrailerSize {
		return nil, base.CorruptionErrorf("stored block too short: %d bytes", len(stored))
	}
	body := stored[:len(stored)-8]
	want := binary.LittleEndian.Uint64(stored[len(stored)-8:])
	if got := xxhash.Sum64(body); got != want {
		return nil, base.CorruptionErrorf("block checksum mismatch %x != %x", got, want)
	}
	payload := body[:len(body)-1]
	switch tag := body[len(body)-1]; tag {
	case codecTagNone:
		return payload, nil
	case codecTagSnappy:
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, base.MarkCorruptionError(err)
		}
		return decoded, nil
	case codecTagZstd:
		decoded, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, base.MarkCorruptionError(err)
		}
		return decoded, nil
	default:
		return nil, base.CorruptionErrorf("unknown block codec tag %d", tag)
	}
}

type footer struct {
	validx  BlockPointer
	meta    BlockPointer
	flags   uint32
	version uint32
}

func (f *footer) encode() []byte {
	b := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(b[0:], f.validx.Offset)
	binary.LittleEndian.PutUint32(b[8:], f.validx.Length)
	binary.LittleEndian.PutUint64(b[12:], f.meta.Offset)
	binary.LittleEndian.PutUint32(b[20:], f.meta.Length)
	binary.LittleEndian.PutUint32(b[24:], f.flags)
	binary.LittleEndian.PutUint32(b[28:], f.version)
	copy(b[footerSize-len(cfileMagic):], cfileMagic)
	return b
}

func decodeFooter(b []byte) (footer, error) {
	var f footer
	if len(b) != footerSize {
		return f, base.CorruptionErrorf("bad footer length %d", len(b))
	}
	if string(b[footerSize-len(cfileMagic):]) != cfileMagic {
		return f, base.CorruptionErrorf("bad magic number")
	}
	f.validx.Offset = binary.LittleEndian.Uint64(b[0:])
	f.validx.Length = binary.LittleEndian.Uint32(b[8:])
	f.meta.Offset = binary.LittleEndian.Uint64(b[12:])
	f.meta.Length = binary.LittleEndian.Uint32(b[20:])
	f.flags = binary.LittleEndian.Uint32(b[24:])
	f.version = binary.LittleEndian.Uint32(b[28:])
	if f.version != cfileVersion {
		return f, base.CorruptionErrorf("unsupported cfile version %d", f.version)
	}
	return f, nil
}
