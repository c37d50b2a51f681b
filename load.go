// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"cmp"
	"slices"
)

// maxNesting bounds the container depth Load accepts.
const maxNesting = 1024

// Load checks that raw holds a complete binary document, as returned by
// TakeRawData, and returns its root as an array or object Value.  The Value
// reads raw in place and never writes to it; mutating a container obtained
// from it works on a copy.  Bytes after the root container are ignored.
func Load(raw []byte) (Value, error) {
	if len(raw) < headerSize+baseSize {
		return Value{}, dataErrf(raw, 0, "document too short")
	}
	if tag := le.Uint32(raw); tag != formatTag {
		return Value{}, dataErrf(raw, 0, "bad tag %#08x", tag)
	}
	if v := le.Uint32(raw[4:]); v != formatVersion {
		return Value{}, dataErrf(raw, 4, "unsupported version %d", v)
	}
	limit := uint64(len(raw))
	if limit > MaxSize {
		limit = MaxSize
	}
	if err := validateContainer(raw, headerSize, uint32(limit), 0); err != nil {
		return Value{}, err
	}

	root := base{raw, headerSize}
	d := &document{raw: raw[:headerSize+root.size()], borrowed: true}
	d.refs.Store(1)
	kind := KindArray
	if root.isObject() {
		kind = KindObject
	}
	return holding(kind, d, headerSize), nil
}

// validateContainer checks the container at off, which must end at or before
// limit.
func validateContainer(raw []byte, off, limit uint32, depth int) error {
	if depth > maxNesting {
		return dataErrf(raw, off, "nesting deeper than %d", maxNesting)
	}
	if uint64(off)+baseSize > uint64(limit) {
		return dataErrf(raw, off, "container header out of bounds")
	}
	b := base{raw, off}
	size := b.size()
	if size < baseSize || uint64(off)+uint64(size) > uint64(limit) {
		return dataErrf(raw, off, "container size %d out of bounds", size)
	}
	n := b.length()
	table := b.tableOffset()
	if n == 0 {
		if table != 0 && (table < baseSize || table > size) {
			return dataErrf(raw, off+8, "table offset %d out of bounds", table)
		}
		return nil
	}
	if table < baseSize || uint64(table)+uint64(n)*slotSize > uint64(size) {
		return dataErrf(raw, off+8, "table of %d entries at %d out of bounds", n, table)
	}
	if err := checkDisjoint(b, n, table); err != nil {
		return err
	}

	if !b.isObject() {
		for i := uint32(0); i < n; i++ {
			if err := validateSlot(b, b.slot(i), table, depth, off+table+i*slotSize); err != nil {
				return err
			}
		}
		return nil
	}

	var prev string
	for i := uint32(0); i < n; i++ {
		e := b.tableEntry(i)
		if e < baseSize || uint64(e)+slotSize+2 > uint64(table) {
			return dataErrf(raw, off+table+i*slotSize, "entry offset %d out of bounds", e)
		}
		s := slot(le.Uint32(b.at(e)))
		if err := validateString(b, e+slotSize, table, s.latinKey()); err != nil {
			return err
		}
		key := readString(b.at(e+slotSize), s.latinKey())
		if i > 0 && key <= prev {
			return dataErrf(raw, off+e, "key %q out of order", key)
		}
		prev = key
		if err := validateSlot(b, s, table, depth, off+e); err != nil {
			return err
		}
	}
	return nil
}

// validateSlot checks that the payload of s lies inside b before its table.
// at is the absolute offset of the slot, for error reporting.
func validateSlot(b base, s slot, table uint32, depth int, at uint32) error {
	switch s.kind() {
	case KindNull, KindBool, KindUndefined:
		return nil
	case KindDouble:
		if s.latinOrInt() {
			return nil
		}
		if v := s.value(); v < baseSize || uint64(v)+8 > uint64(table) {
			return dataErrf(b.raw, at, "double at %d out of bounds", v)
		}
		return nil
	case KindString:
		return validateString(b, s.value(), table, s.latinOrInt())
	case KindArray, KindObject:
		v := s.value()
		if v < baseSize {
			return dataErrf(b.raw, at, "container offset %d out of bounds", v)
		}
		if err := validateContainer(b.raw, b.off+v, b.off+table, depth+1); err != nil {
			return err
		}
		if nested := (base{b.raw, b.off + v}); nested.isObject() != (s.kind() == KindObject) {
			return dataErrf(b.raw, at, "slot type %v disagrees with container", s.kind())
		}
		return nil
	}
	return dataErrf(b.raw, at, "unknown value type %d", uint8(s.kind()))
}

// validateString checks the encoded string at rel inside b.
func validateString(b base, rel, table uint32, latin bool) error {
	at := b.off + rel
	if rel < baseSize {
		return dataErrf(b.raw, at, "string offset %d out of bounds", rel)
	}
	prefix := uint32(4)
	if latin {
		prefix = 2
	}
	if uint64(rel)+uint64(prefix) > uint64(table) {
		return dataErrf(b.raw, at, "string header out of bounds")
	}
	var n uint32
	if latin {
		n = uint32(le.Uint16(b.at(rel)))
	} else {
		n = le.Uint32(b.at(rel))
		if n%2 != 0 {
			return dataErrf(b.raw, at, "odd UTF-16 byte length %d", n)
		}
	}
	if uint64(rel)+(uint64(prefix)+uint64(n)+3)&^3 > uint64(table) {
		return dataErrf(b.raw, at, "string of %d bytes out of bounds", n)
	}
	return nil
}

// span is the byte range of a nested container, relative to its parent.
type span struct{ start, end uint64 }

// checkDisjoint rejects nested containers of b that share bytes.  With
// siblings disjoint every container is reached by one path only, so a
// full validation touches each table once.
func checkDisjoint(b base, n, table uint32) error {
	var spans []span
	for i := uint32(0); i < n; i++ {
		var s slot
		if b.isObject() {
			e := b.tableEntry(i)
			if e < baseSize || uint64(e)+slotSize > uint64(table) {
				continue
			}
			s = slot(le.Uint32(b.at(e)))
		} else {
			s = b.slot(i)
		}
		if k := s.kind(); k != KindArray && k != KindObject {
			continue
		}
		v := s.value()
		if v < baseSize || uint64(v)+baseSize > uint64(table) {
			continue
		}
		spans = append(spans, span{uint64(v), uint64(v) + uint64(le.Uint32(b.at(v)))})
	}
	if len(spans) < 2 {
		return nil
	}
	slices.SortFunc(spans, func(x, y span) int { return cmp.Compare(x.start, y.start) })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return dataErrf(b.raw, b.off+uint32(spans[i].start),
				"nested container overlaps the one at %d", spans[i-1].start)
		}
	}
	return nil
}
