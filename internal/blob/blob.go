// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package blob frames binary documents for storage: an optional compression
// pass plus a BLAKE3 digest of the uncompressed bytes.
//
// A sealed blob is laid out as
//
//	magic "bjz1" | compression uint8 | raw length uint32 LE | digest [32]byte | payload
package blob

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/xdg-go/binjson"
	"github.com/zeebo/blake3"
)

// Magic starts every sealed blob.
var Magic = []byte("bjz1")

// HeaderSize is the length of the fixed blob header.
const HeaderSize = 4 + 1 + 4 + 32

// Compression identifies how a blob payload is compressed.  The values are
// stored in blob headers.
type Compression uint8

const (
	None Compression = 0
	LZ4  Compression = 1
	Zstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a name as printed by String.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	}
	return 0, fmt.Errorf("unknown compression: %q", name)
}

// Hash is a 32-byte BLAKE3 digest of a raw document.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Short returns the first 12 hex digits of h.
func (h Hash) Short() string { return hex.EncodeToString(h[:6]) }

// digestKey separates document digests from other BLAKE3 uses of the same
// bytes.
var digestKey = [32]byte{
	'b', 'i', 'n', 'j', 's', 'o', 'n', '.', 'd', 'o', 'c', 'u', 'm', 'e', 'n', 't',
}

// Digest returns the keyed BLAKE3 hash of raw.
func Digest(raw []byte) Hash {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("blob: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(raw)
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// Header is the decoded fixed part of a sealed blob.
type Header struct {
	Compression Compression
	RawSize     uint32
	Digest      Hash
}

// ErrCorrupt is matched by every error Open and ReadHeader return for
// malformed input.
var ErrCorrupt = errors.New("blob: corrupt")

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// IsSealed reports whether data starts with the blob magic.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, Magic)
}

// Seal frames raw with compression c.  When c does not shrink raw the
// payload is stored uncompressed and the header says so.
func Seal(raw []byte, c Compression) ([]byte, error) {
	if len(raw) > binjson.MaxSize {
		return nil, fmt.Errorf("blob: %d bytes exceeds document limit", len(raw))
	}
	payload, err := compress(raw, c)
	if errors.Is(err, errIncompressible) {
		payload, c = raw, None
	} else if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize, HeaderSize+len(payload))
	copy(out, Magic)
	out[4] = byte(c)
	binary.LittleEndian.PutUint32(out[5:], uint32(len(raw)))
	h := Digest(raw)
	copy(out[9:], h[:])
	return append(out, payload...), nil
}

// ReadHeader decodes the header of a sealed blob without touching the
// payload.
func ReadHeader(sealed []byte) (Header, error) {
	if len(sealed) < HeaderSize {
		return Header{}, corruptf("%d bytes is shorter than a header", len(sealed))
	}
	if !IsSealed(sealed) {
		return Header{}, corruptf("bad magic %q", sealed[:4])
	}
	h := Header{
		Compression: Compression(sealed[4]),
		RawSize:     binary.LittleEndian.Uint32(sealed[5:]),
	}
	copy(h.Digest[:], sealed[9:HeaderSize])
	if h.Compression > Zstd {
		return Header{}, corruptf("unknown compression %d", sealed[4])
	}
	if h.RawSize > binjson.MaxSize {
		return Header{}, corruptf("raw size %d exceeds document limit", h.RawSize)
	}
	return h, nil
}

// Open reverses Seal and checks the digest of the result.
func Open(sealed []byte) ([]byte, error) {
	h, err := ReadHeader(sealed)
	if err != nil {
		return nil, err
	}
	raw, err := decompress(sealed[HeaderSize:], h.Compression, int(h.RawSize))
	if err != nil {
		return nil, corruptf("%v", err)
	}
	if Digest(raw) != h.Digest {
		return nil, corruptf("digest mismatch")
	}
	return raw, nil
}
