// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package blob

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/xdg-go/binjson"
)

func sampleDocument(t *testing.T) []byte {
	t.Helper()
	text := "[" + strings.Repeat(`{"name": "compressible", "n": 12345.5, "ok": true},`, 200) + "null]"
	raw, err := binjson.UnmarshalValue([]byte(text), nil)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestSealOpen(t *testing.T) {
	t.Parallel()

	raw := sampleDocument(t)
	for _, c := range []Compression{None, LZ4, Zstd} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()
			sealed, err := Seal(raw, c)
			if err != nil {
				t.Fatal(err)
			}
			if !IsSealed(sealed) {
				t.Fatal("sealed blob lacks magic")
			}
			h, err := ReadHeader(sealed)
			if err != nil {
				t.Fatal(err)
			}
			if h.Compression != c || h.RawSize != uint32(len(raw)) || h.Digest != Digest(raw) {
				t.Errorf("header mismatch: %+v", h)
			}
			if c != None && len(sealed) >= len(raw) {
				t.Errorf("%v didn't shrink the document: %d -> %d", c, len(raw), len(sealed))
			}
			got, err := Open(sealed)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, raw) {
				t.Fatal("round trip changed the document")
			}
			if _, err := binjson.Load(got); err != nil {
				t.Fatalf("opened document doesn't load: %v", err)
			}
		})
	}
}

func TestSealIncompressible(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 1))
	raw := make([]byte, 4096)
	for i := range raw {
		raw[i] = byte(rng.Uint32())
	}
	for _, c := range []Compression{LZ4, Zstd} {
		sealed, err := Seal(raw, c)
		if err != nil {
			t.Fatal(err)
		}
		h, err := ReadHeader(sealed)
		if err != nil {
			t.Fatal(err)
		}
		if h.Compression != None {
			t.Errorf("%v: expected fallback to none, got %v", c, h.Compression)
		}
		got, err := Open(sealed)
		if err != nil || !bytes.Equal(got, raw) {
			t.Errorf("%v: round trip failed: %v", c, err)
		}
	}
}

func TestOpenCorrupt(t *testing.T) {
	t.Parallel()

	raw := sampleDocument(t)
	sealed, err := Seal(raw, Zstd)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := Seal(raw, None)
	if err != nil {
		t.Fatal(err)
	}

	flipped := bytes.Clone(plain)
	flipped[len(flipped)-1] ^= 1
	badTag := bytes.Clone(sealed)
	badTag[4] = 9
	badSize := bytes.Clone(plain)
	badSize[5]++
	badMagic := bytes.Clone(sealed)
	badMagic[0] = 'x'

	cases := map[string][]byte{
		"short":       sealed[:10],
		"truncated":   sealed[:len(sealed)-5],
		"payload bit": flipped,
		"bad tag":     badTag,
		"bad size":    badSize,
		"bad magic":   badMagic,
		"raw input":   raw,
	}
	for label, in := range cases {
		if _, err := Open(in); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", label, err)
		}
	}
}

func TestDigest(t *testing.T) {
	t.Parallel()

	a := Digest([]byte("a"))
	if a != Digest([]byte("a")) {
		t.Fatal("digest isn't deterministic")
	}
	if a == Digest([]byte("b")) {
		t.Fatal("different inputs share a digest")
	}
	if len(a.String()) != 64 || len(a.Short()) != 12 || !strings.HasPrefix(a.String(), a.Short()) {
		t.Errorf("bad hex forms: %s %s", a, a.Short())
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{None, LZ4, Zstd} {
		got, err := ParseCompression(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCompression(%q): got %v %v", c, got, err)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("expected error for unknown compression")
	}
	if Compression(7).String() != "unknown(7)" {
		t.Errorf("got %q", Compression(7).String())
	}
}

func TestZstdOutputBounded(t *testing.T) {
	if testing.Short() {
		t.Skip("compresses a payload larger than a document")
	}
	t.Parallel()

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	chunk := make([]byte, 1<<20)
	for n := 0; n <= binjson.MaxSize; n += len(chunk) {
		if _, err := enc.Write(chunk); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = decompress(buf.Bytes(), Zstd, 16)
	if !errors.Is(err, zstd.ErrDecoderSizeExceeded) {
		t.Fatalf("expected ErrDecoderSizeExceeded, got %v", err)
	}
}
