// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"bytes"
	"errors"
	"testing"
)

func TestDetachEmpty(t *testing.T) {
	t.Parallel()

	c := container{isObject: true}
	if err := c.detach(40); err != nil {
		t.Fatal(err)
	}
	eq(t, len(c.d.raw), headerSize+baseSize+40)
	eq(t, c.base, uint32(headerSize))
	eq(t, c.d.refs.Load(), int32(1))
	eq(t, c.view().isObject(), true)
	eq(t, c.view().tableOffset(), uint32(0))
	eq(t, string(c.d.raw[:4]), "qbjs")
}

func TestDetachCeiling(t *testing.T) {
	t.Parallel()

	// The real ceiling is checked before anything is allocated.
	var c container
	err := c.detach(MaxSize)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if c.d != nil {
		t.Fatal("failed detach allocated a buffer")
	}
}

func TestDetachReusesUniqueBuffer(t *testing.T) {
	t.Parallel()

	var c container
	if err := c.detach(200); err != nil {
		t.Fatal(err)
	}
	d := c.d
	if err := c.detach(100); err != nil {
		t.Fatal(err)
	}
	if c.d != d {
		t.Fatal("detach copied a unique buffer with enough room")
	}
	if err := c.detach(1000); err != nil {
		t.Fatal(err)
	}
	if c.d == d {
		t.Fatal("detach didn't grow a buffer without room")
	}
	eq(t, len(c.d.raw) >= headerSize+baseSize+1000, true)
}

func TestDetachShared(t *testing.T) {
	t.Parallel()

	var c container
	if err := c.detach(64); err != nil {
		t.Fatal(err)
	}
	other := c.clone()
	eq(t, c.d.refs.Load(), int32(2))

	if err := c.detach(0); err != nil {
		t.Fatal(err)
	}
	if c.d == other.d {
		t.Fatal("detach didn't copy a shared buffer")
	}
	eq(t, c.d.refs.Load(), int32(1))
	eq(t, other.d.refs.Load(), int32(1))
	eq(t, bytes.Equal(c.d.raw[:c.d.used()], other.d.raw[:other.d.used()]), true)
}

func TestGrowthPolicy(t *testing.T) {
	t.Parallel()

	d := newDocument(0, false)
	d.retain()
	// A shared root is copied with at least minReserve of slack.
	x, err := d.clone(headerSize, 1)
	if err != nil {
		t.Fatal(err)
	}
	eq(t, len(x.raw), headerSize+baseSize+minReserve)
	eq(t, x.refs.Load(), int32(1))
}

func TestGrowthCeiling(t *testing.T) {
	withSizeLimit(t, 256)

	d := newDocument(0, false)
	d.retain()
	if _, err := d.clone(headerSize, 240); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if _, err := d.clone(headerSize, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompactCounterCopiedForRoot(t *testing.T) {
	t.Parallel()

	o := new(Object)
	o.SetCompactionPolicy(NeverCompact)
	noErr(t, o.Insert("a", Int(1)))
	noErr(t, o.Insert("a", Int(2)))
	eq(t, o.StaleCount(), 1)

	// A clone that detaches keeps the counter; the compaction that
	// follows is still owed.
	p := o.Clone()
	noErr(t, p.Insert("b", Int(3)))
	eq(t, p.StaleCount(), 1)
	p.Compact()
	eq(t, p.StaleCount(), 0)
	eq(t, o.StaleCount(), 1)
}

func TestCompactLayout(t *testing.T) {
	t.Parallel()

	o := new(Object)
	o.SetCompactionPolicy(NeverCompact)
	noErr(t, o.Insert("b", StringValue("first")))
	noErr(t, o.Insert("a", Number(0.5)))
	noErr(t, o.Insert("b", StringValue("second")))
	noErr(t, o.Insert("c", ArrayValue(must(FromJSONArray([]any{1.0, "x"})))))
	before := o.Size()
	o.Compact()
	if o.Size() >= before {
		t.Fatalf("compaction didn't shrink: %d -> %d", before, o.Size())
	}
	eq(t, len(o.c.d.raw), o.Size())

	want := must(Unmarshal([]byte(`{"a": 0.5, "b": "second", "c": [1, "x"]}`), nil))
	got := o.TakeRawData()
	if !bytes.Equal(got, want) {
		t.Fatalf("compacted layout differs:\ngot  %x\nwant %x", got, want)
	}
}
