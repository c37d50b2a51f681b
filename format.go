// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import "encoding/binary"

/*
   Layout of a binary document (all integers little-endian):

   document  ::= header container
   header    ::= tag:32 ("qbjs") version:32 (1)
   container ::= size:32 lengthAndKind:32 tableOffset:32 data* table
   table     ::= slot* (array) | entryOffset* (object, sorted by key)
   entry     ::= slot key value-data?
   slot      ::= type:3 latinOrIntValue:1 latinKey:1 value:27

   Offsets stored in a container (tableOffset, slot values, entry offsets)
   are relative to the start of that container, so a container can be copied
   byte-for-byte into another buffer without fixups.
*/

var le = binary.LittleEndian

const (
	headerSize = 8
	baseSize   = 12
	slotSize   = 4

	formatTag     uint32 = 'q' | 'b'<<8 | 'j'<<16 | 's'<<24
	formatVersion uint32 = 1

	// MaxSize is the largest offset or payload size a slot can express.
	// No container may grow to MaxSize bytes.
	MaxSize = 1<<27 - 1

	// minReserve is the smallest amount of slack added when a buffer grows.
	minReserve = 128
)

// sizeLimit is MaxSize except in tests, which lower it to exercise the
// capacity checks without allocating huge buffers.
var sizeLimit uint32 = MaxSize

const (
	slotKindMask      = 0x7
	slotLatinOrInt    = 1 << 3
	slotLatinKey      = 1 << 4
	slotValueShift    = 5
	maxCompressedInt  = 1<<26 - 1
	minCompressedInt  = -(1 << 26)
	maxLatin1StrBytes = 0x8000
)

// slot is the fixed-width record describing one stored value.
type slot uint32

func makeSlot(k Kind, latinOrInt, latinKey bool, value uint32) slot {
	s := slot(k&slotKindMask) | slot(value<<slotValueShift)
	if latinOrInt {
		s |= slotLatinOrInt
	}
	if latinKey {
		s |= slotLatinKey
	}
	return s
}

func (s slot) kind() Kind        { return Kind(s & slotKindMask) }
func (s slot) latinOrInt() bool  { return s&slotLatinOrInt != 0 }
func (s slot) latinKey() bool    { return s&slotLatinKey != 0 }
func (s slot) value() uint32     { return uint32(s) >> slotValueShift }
func (s slot) intValue() int32   { return int32(s) >> slotValueShift }
func (s slot) withValue(v uint32) slot {
	return s&(1<<slotValueShift-1) | slot(v<<slotValueShift)
}

func align4(n uint32) uint32 { return (n + 3) &^ 3 }

func writeHeader(raw []byte) {
	le.PutUint32(raw[0:4], formatTag)
	le.PutUint32(raw[4:8], formatVersion)
}

// base addresses one container inside a raw buffer. It must be rebuilt after
// anything that can reallocate the buffer.
type base struct {
	raw []byte
	off uint32
}

func (b base) size() uint32       { return le.Uint32(b.raw[b.off:]) }
func (b base) setSize(n uint32)   { le.PutUint32(b.raw[b.off:], n) }
func (b base) length() uint32     { return le.Uint32(b.raw[b.off+4:]) >> 1 }
func (b base) isObject() bool     { return le.Uint32(b.raw[b.off+4:])&1 != 0 }
func (b base) tableOffset() uint32 { return le.Uint32(b.raw[b.off+8:]) }

func (b base) setTableOffset(n uint32) { le.PutUint32(b.raw[b.off+8:], n) }

func (b base) setLength(n uint32, isObject bool) {
	v := n << 1
	if isObject {
		v |= 1
	}
	le.PutUint32(b.raw[b.off+4:], v)
}

func (b base) tableEntry(i uint32) uint32 {
	return le.Uint32(b.raw[b.off+b.tableOffset()+i*slotSize:])
}

func (b base) setTableEntry(i, v uint32) {
	le.PutUint32(b.raw[b.off+b.tableOffset()+i*slotSize:], v)
}

// at returns the bytes of the container starting at a relative offset.
func (b base) at(rel uint32) []byte { return b.raw[b.off+rel:] }

// bytes returns the whole container.
func (b base) bytes() []byte { return b.raw[b.off : b.off+b.size()] }

// slot returns the i-th slot of an array container.
func (b base) slot(i uint32) slot { return slot(b.tableEntry(i)) }

// entrySlot returns the slot of the i-th (in index order) object entry.
func (b base) entrySlot(i uint32) (slot, uint32) {
	e := b.tableEntry(i)
	return slot(le.Uint32(b.at(e))), e
}

// entrySize is the size of an object entry's slot and key, excluding the
// value payload which follows it.
func (b base) entrySize(e uint32) uint32 {
	s := slot(le.Uint32(b.at(e)))
	return slotSize + storedStringSize(b.at(e+slotSize), s.latinKey())
}

func writeEmptyBase(dst []byte, isObject bool) {
	b := base{dst, 0}
	b.setSize(baseSize)
	b.setLength(0, isObject)
	b.setTableOffset(0)
}

// reserveSpace makes room for dataSize bytes of payload in front of the
// table and, unless replace is set, for numItems new table entries at
// posInTable. The new table entries are set to the offset of the reserved
// payload, which is returned. The caller guarantees the buffer has room.
func (b base) reserveSpace(dataSize, posInTable, numItems uint32, replace bool) (uint32, error) {
	size := b.size()
	if uint64(size)+uint64(dataSize) >= uint64(sizeLimit) {
		return 0, newCapacityError(size, dataSize)
	}

	off := b.tableOffset()
	length := b.length()
	if length == 0 {
		off = baseSize
	}
	table := b.off + off
	if replace {
		copy(b.raw[table+dataSize:], b.raw[table:table+length*slotSize])
	} else {
		copy(b.raw[table+dataSize+(posInTable+numItems)*slotSize:], b.raw[table+posInTable*slotSize:table+length*slotSize])
		copy(b.raw[table+dataSize:], b.raw[table:table+posInTable*slotSize])
	}
	b.setTableOffset(off + dataSize)
	size += dataSize
	if !replace {
		length += numItems
		size += numItems * slotSize
		b.setLength(length, b.isObject())
	}
	b.setSize(size)
	for i := uint32(0); i < numItems; i++ {
		b.setTableEntry(posInTable+i, off)
	}
	return off, nil
}

// usedStorage returns the aligned size of the out-of-line payload of s,
// which lives in container b.
func usedStorage(b base, s slot) uint32 {
	switch s.kind() {
	case KindDouble:
		if s.latinOrInt() {
			return 0
		}
		return 8
	case KindString:
		return storedStringSize(b.at(s.value()), s.latinOrInt())
	case KindArray, KindObject:
		return base{b.raw, b.off + s.value()}.size()
	}
	return 0
}
