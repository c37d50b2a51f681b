// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import "iter"

// Array is an ordered sequence of values stored in a binary document.  The
// zero value is an empty array ready to use.  An Array must not be copied by
// value after first use; use Clone to share its buffer instead.
type Array struct {
	addr *Array
	c    container
}

// NewArray returns an empty array.
func NewArray() *Array { return new(Array) }

func (a *Array) copyCheck() {
	if a.addr == nil {
		a.addr = a
	} else if a.addr != a {
		panic("binjson: illegal use of non-zero Array copied by value")
	}
}

// Append adds v after the last element.  Undefined values are stored as
// null.  If the document would grow past MaxSize, Append returns a
// *CapacityError and the array is unchanged.
func (a *Array) Append(v Value) error {
	a.copyCheck()
	valueSize, compressed := v.requiredStorage()
	fresh := a.c.d == nil
	if err := a.c.detach(valueSize + slotSize); err != nil {
		return warnCapacity("append", err)
	}

	b := a.c.view()
	pos := b.length()
	off, err := b.reserveSpace(valueSize, pos, 1, false)
	if err != nil {
		if fresh {
			a.c.release()
		}
		return warnCapacity("append", err)
	}
	b.setTableEntry(pos, uint32(makeSlot(v.storedKind(), compressed, false, v.valueToStore(off))))
	v.copyData(b.at(off), compressed)
	return nil
}

// Len returns the number of elements.
func (a *Array) Len() int { return a.c.length() }

// At returns element i, or an undefined Value when i is out of range.  A
// container result shares the array's buffer until released.
func (a *Array) At(i int) Value {
	if i < 0 || i >= a.c.length() {
		return UndefinedValue()
	}
	b := a.c.view()
	return valueAt(a.c.d, b, b.slot(uint32(i)))
}

// All iterates over the elements in order.
func (a *Array) All() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		for i := 0; i < a.c.length(); i++ {
			if !yield(i, a.At(i)) {
				return
			}
		}
	}
}

// Compact rebuilds the underlying buffer without dead bytes.  It does nothing
// when nothing has been overwritten.
func (a *Array) Compact() {
	a.copyCheck()
	a.c.compact()
}

// TakeRawData returns the complete binary document and leaves the array
// empty.  The buffer is handed over without copying when the array is its
// only owner.  It returns nil for an array that was never written.
func (a *Array) TakeRawData() []byte {
	a.copyCheck()
	return a.c.takeRawData()
}

// Clone returns an array sharing a's buffer.  Either side detaches on its
// next write.
func (a *Array) Clone() *Array {
	return &Array{c: a.c.clone()}
}

// Release drops a's reference to its buffer and leaves it empty.
func (a *Array) Release() {
	a.c.release()
}

// Size returns the number of bytes TakeRawData would return.
func (a *Array) Size() int { return a.c.size() }

// StaleCount returns the compaction counter of the underlying buffer.
func (a *Array) StaleCount() int { return a.c.staleCount() }

// ToJSON converts the array back into the generic tree accepted by
// FromJSONValue.
func (a *Array) ToJSON() []any {
	if a.c.d == nil {
		return []any{}
	}
	return containerJSON(a.c.view()).([]any)
}
