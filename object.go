// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import "iter"

// Object is a string-keyed map stored in a binary document.  Keys are unique
// and kept in an index sorted by key.  The zero value is an empty object
// ready to use.  An Object must not be copied by value after first use; use
// Clone to share its buffer instead.
type Object struct {
	addr   *Object
	c      container
	policy *CompactionPolicy
}

// NewObject returns an empty object.
func NewObject() *Object { return new(Object) }

func (o *Object) copyCheck() {
	if o.addr == nil {
		o.addr = o
		o.c.isObject = true
	} else if o.addr != o {
		panic("binjson: illegal use of non-zero Object copied by value")
	}
}

// SetCompactionPolicy replaces DefaultCompactionPolicy for o.
func (o *Object) SetCompactionPolicy(p CompactionPolicy) {
	o.policy = &p
}

func (o *Object) compactionPolicy() CompactionPolicy {
	if o.policy == nil {
		return DefaultCompactionPolicy
	}
	return *o.policy
}

// Insert sets key to v.  An existing entry for key is replaced, leaving its
// old bytes behind until the next compaction.  Keys are stored as Unicode
// text: each byte of invalid UTF-8 becomes U+FFFD, as in encoding/json, so
// keys differing only in invalid bytes name the same entry.  If the document would grow
// past MaxSize, Insert returns a *CapacityError and the object is unchanged.
func (o *Object) Insert(key string, v Value) error {
	o.copyCheck()
	valueSize, compressed := v.requiredStorage()
	latinKey := useLatin1(key)
	valueOffset := slotSize + stringSize(key, latinKey)
	required := valueOffset + valueSize
	fresh := o.c.d == nil
	if err := o.c.detach(required + slotSize); err != nil {
		return warnCapacity("insert", err)
	}

	b := o.c.view()
	pos, exists := indexOf(b, key)
	if exists {
		o.c.d.compactionCounter++
	}
	off, err := b.reserveSpace(required, pos, 1, exists)
	if err != nil {
		if exists {
			o.c.d.compactionCounter--
		}
		if fresh {
			o.c.release()
		}
		return warnCapacity("insert", err)
	}

	s := makeSlot(v.storedKind(), compressed, latinKey, v.valueToStore(off+valueOffset))
	le.PutUint32(b.at(off), uint32(s))
	writeString(b.at(off+slotSize), key, latinKey)
	v.copyData(b.at(off+valueOffset), compressed)

	if o.compactionPolicy().ShouldCompact(int(o.c.d.compactionCounter), int(b.length())) {
		o.c.compact()
	}
	return nil
}

// indexOf binary searches the sorted index of b for key.  It returns the
// position of key, or the position it would be inserted at.
func indexOf(b base, key string) (uint32, bool) {
	n := b.length()
	lo, hi := uint32(0), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		s, e := b.entrySlot(mid)
		if compareKey(b.at(e+slotSize), s.latinKey(), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n {
		s, e := b.entrySlot(lo)
		if compareKey(b.at(e+slotSize), s.latinKey(), key) == 0 {
			return lo, true
		}
	}
	return lo, false
}

// Value returns the value stored under key, or an undefined Value.
func (o *Object) Value(key string) Value {
	if o.c.d == nil {
		return UndefinedValue()
	}
	b := o.c.view()
	i, ok := indexOf(b, key)
	if !ok {
		return UndefinedValue()
	}
	s, _ := b.entrySlot(i)
	return valueAt(o.c.d, b, s)
}

// Contains reports whether key is present.
func (o *Object) Contains(key string) bool {
	if o.c.d == nil {
		return false
	}
	_, ok := indexOf(o.c.view(), key)
	return ok
}

// Len returns the number of entries.
func (o *Object) Len() int { return o.c.length() }

// keyAt returns the key of the i-th entry in index order.
func (o *Object) keyAt(i uint32) string {
	b := o.c.view()
	s, e := b.entrySlot(i)
	return readString(b.at(e+slotSize), s.latinKey())
}

// Keys returns the keys in index order.
func (o *Object) Keys() []string {
	keys := make([]string, o.Len())
	for i := range keys {
		keys[i] = o.keyAt(uint32(i))
	}
	return keys
}

// All iterates over the entries in index order.
func (o *Object) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for i := 0; i < o.c.length(); i++ {
			b := o.c.view()
			s, e := b.entrySlot(uint32(i))
			if !yield(readString(b.at(e+slotSize), s.latinKey()), valueAt(o.c.d, b, s)) {
				return
			}
		}
	}
}

// Compact rebuilds the underlying buffer without the bytes left behind by
// replaced entries.  It does nothing when nothing has been replaced.
func (o *Object) Compact() {
	o.copyCheck()
	o.c.compact()
}

// TakeRawData returns the complete binary document and leaves the object
// empty.  See Array.TakeRawData.
func (o *Object) TakeRawData() []byte {
	o.copyCheck()
	return o.c.takeRawData()
}

// Clone returns an object sharing o's buffer and compaction policy.
func (o *Object) Clone() *Object {
	return &Object{c: o.c.clone(), policy: o.policy}
}

// Release drops o's reference to its buffer and leaves it empty.
func (o *Object) Release() {
	o.c.release()
}

// Size returns the number of bytes TakeRawData would return.
func (o *Object) Size() int { return o.c.size() }

// StaleCount returns the compaction counter of the underlying buffer.
func (o *Object) StaleCount() int { return o.c.staleCount() }

// ToJSON converts the object back into the generic tree accepted by
// FromJSONValue.  Members come out sorted by key.
func (o *Object) ToJSON() Members {
	if o.c.d == nil {
		return Members{}
	}
	return containerJSON(o.c.view()).(Members)
}
