// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import "sync/atomic"

// document is the single contiguous buffer backing a tree of containers. The
// root container starts right after the header. len(raw) is the allocated
// capacity; headerSize plus the root's size is the part in use.
type document struct {
	raw  []byte
	refs atomic.Int32

	// compactionCounter counts overwrites that left dead bytes behind. It is
	// a heuristic, not a byte count.
	compactionCounter uint32

	// borrowed marks a buffer owned by the caller of Load. It is never
	// written in place.
	borrowed bool
}

func newDocument(reserve uint32, isObject bool) *document {
	d := &document{raw: make([]byte, headerSize+baseSize+reserve)}
	writeHeader(d.raw)
	writeEmptyBase(d.raw[headerSize:], isObject)
	d.refs.Store(1)
	return d
}

func (d *document) retain()  { d.refs.Add(1) }
func (d *document) release() { d.refs.Add(-1) }
func (d *document) shared() bool {
	return d.borrowed || d.refs.Load() > 1
}

func (d *document) root() base { return base{d.raw, headerSize} }

// used returns the number of bytes of raw that hold the document.
func (d *document) used() uint32 { return headerSize + d.root().size() }

// clone returns a uniquely owned document whose root is the container at
// off, with room for reserve more bytes. d itself is returned when it
// already qualifies.
func (d *document) clone(off, reserve uint32) (*document, error) {
	size := headerSize + base{d.raw, off}.size()
	if off == headerSize && !d.shared() && uint64(len(d.raw)) >= uint64(size)+uint64(reserve) {
		return d, nil
	}

	alloc := uint64(size)
	if reserve > 0 {
		if reserve < minReserve {
			reserve = minReserve
		}
		alloc = max(uint64(size)+uint64(reserve), min(2*uint64(size), uint64(sizeLimit)))
		if alloc > uint64(sizeLimit) {
			return nil, newCapacityError(size, reserve)
		}
	}
	x := d.copyOut(off, uint32(alloc)-size)
	if off == headerSize {
		x.compactionCounter = d.compactionCounter
	}
	return x, nil
}

// copyOut copies the container at off into a fresh document with extra
// bytes of slack.
func (d *document) copyOut(off, extra uint32) *document {
	b := base{d.raw, off}
	x := &document{raw: make([]byte, headerSize+b.size()+extra)}
	writeHeader(x.raw)
	copy(x.raw[headerSize:], b.bytes())
	x.refs.Store(1)
	return x
}

// compact rebuilds the root container without the bytes left behind by
// overwritten entries. Entries are laid out in index order, each followed by
// its payload. The caller must own d exclusively.
func (d *document) compact() {
	if d.compactionCounter == 0 {
		return
	}
	r := d.root()
	length := r.length()
	isObject := r.isObject()

	var reserve uint32
	for i := uint32(0); i < length; i++ {
		if isObject {
			s, e := r.entrySlot(i)
			reserve += r.entrySize(e) + usedStorage(r, s)
		} else {
			reserve += usedStorage(r, r.slot(i))
		}
	}

	size := baseSize + reserve + length*slotSize
	raw := make([]byte, headerSize+size)
	writeHeader(raw)
	nb := base{raw, headerSize}
	nb.setSize(size)
	nb.setLength(length, isObject)
	nb.setTableOffset(baseSize + reserve)

	offset := uint32(baseSize)
	for i := uint32(0); i < length; i++ {
		if isObject {
			s, e := r.entrySlot(i)
			es := r.entrySize(e)
			entryOff := offset
			copy(nb.at(offset), r.at(e)[:es])
			offset += es
			if ds := usedStorage(r, s); ds > 0 {
				copy(nb.at(offset), r.at(s.value())[:ds])
				le.PutUint32(nb.at(entryOff), uint32(s.withValue(offset)))
				offset += ds
			}
			nb.setTableEntry(i, entryOff)
			continue
		}
		s := r.slot(i)
		if ds := usedStorage(r, s); ds > 0 {
			copy(nb.at(offset), r.at(s.value())[:ds])
			s = s.withValue(offset)
			offset += ds
		}
		nb.setTableEntry(i, uint32(s))
	}

	d.raw = raw
	d.compactionCounter = 0
}

// container is the state shared by Array and Object: the document and the
// offset of this container's base within it. A nil document is an empty
// container that has not been materialized yet.
type container struct {
	d        *document
	base     uint32
	isObject bool
}

func (c *container) view() base { return base{c.d.raw, c.base} }

// detach makes sure c owns its document exclusively and that reserve more
// bytes can be written after the container's current content. On failure c
// is left untouched.
func (c *container) detach(reserve uint32) error {
	if c.d == nil {
		if reserve >= sizeLimit {
			return newCapacityError(0, reserve)
		}
		c.d = newDocument(reserve, c.isObject)
		c.base = headerSize
		return nil
	}
	if reserve == 0 && !c.d.shared() {
		return nil
	}

	x, err := c.d.clone(c.base, reserve)
	if err != nil {
		return err
	}
	if x != c.d {
		c.d.release()
		c.d = x
	}
	c.base = headerSize
	return nil
}

func (c *container) compact() {
	if c.d == nil {
		return
	}
	if c.base != headerSize {
		x := c.d.copyOut(c.base, 0)
		c.d.release()
		c.d, c.base = x, headerSize
	}
	if c.d.compactionCounter == 0 {
		return
	}
	if err := c.detach(0); err != nil {
		return
	}
	c.d.compact()
}

// finish forces one compaction pass so a freshly built container carries
// no slack.
func (c *container) finish() {
	if c.d == nil {
		return
	}
	c.d.compactionCounter = 1
	c.compact()
}

func (c *container) takeRawData() []byte {
	if c.d == nil {
		return nil
	}
	if c.base != headerSize || c.d.shared() {
		x := c.d.copyOut(c.base, 0)
		c.d.release()
		c.d = nil
		return x.raw
	}
	raw := c.d.raw[:c.d.used():c.d.used()]
	c.d = nil
	return raw
}

func (c *container) clone() container {
	if c.d != nil {
		c.d.retain()
	}
	return *c
}

func (c *container) release() {
	if c.d != nil {
		c.d.release()
	}
	*c = container{isObject: c.isObject}
}

func (c *container) length() int {
	if c.d == nil {
		return 0
	}
	return int(c.view().length())
}

func (c *container) size() int {
	if c.d == nil {
		return 0
	}
	return headerSize + int(c.view().size())
}

func (c *container) staleCount() int {
	if c.d == nil || c.base != headerSize {
		return 0
	}
	return int(c.d.compactionCounter)
}
