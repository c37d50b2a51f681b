// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Kind identifies the type of a Value. The set is closed; the numeric values
// are the type codes stored in value slots.
type Kind uint8

const (
	KindNull      Kind = 0
	KindBool      Kind = 1
	KindDouble    Kind = 2
	KindString    Kind = 3
	KindArray     Kind = 4
	KindObject    Kind = 5
	KindUndefined Kind = 7
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is the argument and result type of every container operation. It
// holds a scalar inline, a string, or a reference to an array or object
// living in a shared document buffer.
//
// A Value that refers to a container holds a reference on that container's
// buffer, which keeps later writers from mutating it in place. Call Release
// once the Value is no longer needed to let them skip the copy. Copies of a
// Value share its one reference: the first Release on any of them drops it,
// after which none of the copies may be read. Use Clone for a copy with a
// reference of its own.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	d    *document
	base uint32
	held *atomic.Bool
}

// holding returns a container Value owning a reference already taken on d.
func holding(k Kind, d *document, off uint32) Value {
	held := new(atomic.Bool)
	held.Store(true)
	return Value{kind: k, d: d, base: off, held: held}
}

// NullValue returns a null Value.
func NullValue() Value { return Value{kind: KindNull} }

// UndefinedValue returns an undefined Value. Containers store it as null.
func UndefinedValue() Value { return Value{kind: KindUndefined} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a double Value.
func Number(f float64) Value { return Value{kind: KindDouble, n: f} }

// Int returns a double Value holding i. Integers that fit in 27 bits are
// stored inline.
func Int(i int64) Value { return Value{kind: KindDouble, n: float64(i)} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ArrayValue returns a Value sharing a's buffer. A nil or empty array gives
// an empty array Value.
func ArrayValue(a *Array) Value {
	if a == nil || a.c.d == nil {
		return Value{kind: KindArray}
	}
	a.c.d.retain()
	return holding(KindArray, a.c.d, a.c.base)
}

// ObjectValue returns a Value sharing o's buffer. A nil or empty object gives
// an empty object Value.
func ObjectValue(o *Object) Value {
	if o == nil || o.c.d == nil {
		return Value{kind: KindObject}
	}
	o.c.d.retain()
	return holding(KindObject, o.c.d, o.c.base)
}

// valueAt decodes slot s stored in container b of document d.
func valueAt(d *document, b base, s slot) Value {
	switch k := s.kind(); k {
	case KindBool:
		return Value{kind: KindBool, b: s.value() != 0}
	case KindDouble:
		if s.latinOrInt() {
			return Value{kind: KindDouble, n: float64(s.intValue())}
		}
		return Value{kind: KindDouble, n: math.Float64frombits(le.Uint64(b.at(s.value())))}
	case KindString:
		return Value{kind: KindString, s: readString(b.at(s.value()), s.latinOrInt())}
	case KindArray, KindObject:
		d.retain()
		return holding(k, d, b.off+s.value())
	case KindUndefined:
		return Value{kind: KindUndefined}
	default:
		return Value{kind: KindNull}
	}
}

// Kind returns the type of v.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// Release drops v's reference on a shared buffer and resets v to undefined.
func (v *Value) Release() {
	if v.d != nil && v.held != nil && v.held.CompareAndSwap(true, false) {
		v.d.release()
	}
	*v = Value{kind: KindUndefined}
}

// Clone returns a copy of v holding its own reference, to be released
// separately.
func (v Value) Clone() Value {
	if v.d == nil {
		return v
	}
	v.d.retain()
	return holding(v.kind, v.d, v.base)
}

// ToBool returns the boolean held by v, or false for other kinds.
func (v Value) ToBool() bool {
	return v.kind == KindBool && v.b
}

// ToDouble returns the number held by v, or 0 for other kinds.
func (v Value) ToDouble() float64 {
	if v.kind != KindDouble {
		return 0
	}
	return v.n
}

// ToInt returns the number held by v truncated to an integer, or 0.
func (v Value) ToInt() int64 {
	if v.kind != KindDouble {
		return 0
	}
	return int64(v.n)
}

// ToString returns the string held by v, or "" for other kinds.
func (v Value) ToString() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// ToArray returns the array held by v. The result shares v's buffer and is
// safe to mutate: mutation detaches it first. Other kinds give an empty
// array.
func (v Value) ToArray() *Array {
	a := new(Array)
	if v.kind != KindArray || v.d == nil {
		return a
	}
	v.d.retain()
	if v.base != headerSize {
		v.detach()
	}
	a.c = container{d: v.d, base: v.base}
	return a
}

// ToObject returns the object held by v; see ToArray.
func (v Value) ToObject() *Object {
	o := &Object{c: container{isObject: true}}
	if v.kind != KindObject || v.d == nil {
		return o
	}
	v.d.retain()
	if v.base != headerSize {
		v.detach()
	}
	o.c = container{d: v.d, base: v.base, isObject: true}
	return o
}

// detach gives v a buffer of its own holding only the container it refers
// to. Unlike container detach it always copies.
func (v *Value) detach() {
	if v.d == nil {
		return
	}
	x := v.d.copyOut(v.base, 0)
	v.d.release()
	v.d = x
	v.base = headerSize
}

// container returns the base v refers to; v must hold an array or object.
func (v Value) container() base {
	return base{v.d.raw, v.base}
}

// Len returns the element count of an array or object Value, or 0.
func (v Value) Len() int {
	if (v.kind != KindArray && v.kind != KindObject) || v.d == nil {
		return 0
	}
	return int(v.container().length())
}

// storedKind returns the slot type v is written with.
func (v Value) storedKind() Kind {
	if v.kind == KindUndefined {
		return KindNull
	}
	return v.kind
}

// ToJSON converts v into the generic tree accepted by FromJSONValue: nil,
// bool, float64, string, []any or Members.  Undefined converts to nil.
func (v Value) ToJSON() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindDouble:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		if v.d == nil {
			return []any{}
		}
		return containerJSON(v.container())
	case KindObject:
		if v.d == nil {
			return Members{}
		}
		return containerJSON(v.container())
	}
	return nil
}

// MarshalBinary returns a standalone binary document holding the array or
// object v refers to, as TakeRawData would.  Other kinds give a *TypeError.
func (v Value) MarshalBinary() ([]byte, error) {
	if v.kind != KindArray && v.kind != KindObject {
		return nil, &TypeError{Value: v.ToJSON()}
	}
	if v.d == nil {
		return emptyDocument(v.kind == KindObject), nil
	}
	return v.d.copyOut(v.base, 0).raw, nil
}

// containerJSON reads the container at b straight from the buffer.
func containerJSON(b base) any {
	n := b.length()
	if b.isObject() {
		out := make(Members, 0, n)
		for i := uint32(0); i < n; i++ {
			s, e := b.entrySlot(i)
			out = append(out, Member{
				Key:   readString(b.at(e+slotSize), s.latinKey()),
				Value: slotJSON(b, s),
			})
		}
		return out
	}
	out := make([]any, 0, n)
	for i := uint32(0); i < n; i++ {
		out = append(out, slotJSON(b, b.slot(i)))
	}
	return out
}

func slotJSON(b base, s slot) any {
	switch s.kind() {
	case KindArray, KindObject:
		return containerJSON(base{b.raw, b.off + s.value()})
	}
	return valueAt(nil, b, s).ToJSON()
}

// requiredStorage returns the payload size v needs when stored and whether
// the compressed encoding applies.
func (v Value) requiredStorage() (uint32, bool) {
	switch v.kind {
	case KindDouble:
		if _, ok := compressedNumber(v.n); ok {
			return 0, true
		}
		return 8, false
	case KindString:
		latin := useLatin1(v.s)
		return stringSize(v.s, latin), latin
	case KindArray, KindObject:
		if v.d == nil {
			return baseSize, false
		}
		return v.container().size(), false
	}
	return 0, false
}

// valueToStore returns the slot value for v when its payload is written at
// offset.
func (v Value) valueToStore(offset uint32) uint32 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindDouble:
		if c, ok := compressedNumber(v.n); ok {
			return uint32(c)
		}
		return offset
	case KindString, KindArray, KindObject:
		return offset
	}
	return 0
}

// copyData writes v's payload at the start of dst.
func (v Value) copyData(dst []byte, compressed bool) {
	switch v.kind {
	case KindDouble:
		if !compressed {
			le.PutUint64(dst, math.Float64bits(v.n))
		}
	case KindString:
		writeString(dst, v.s, compressed)
	case KindArray, KindObject:
		if v.d == nil {
			writeEmptyBase(dst, v.kind == KindObject)
			return
		}
		copy(dst, v.container().bytes())
	}
}

// compressedNumber reports whether f is an integer small enough to live in
// a slot's value field and returns it.
func compressedNumber(f float64) (int32, bool) {
	if f != math.Trunc(f) || f < minCompressedInt || f > maxCompressedInt {
		return 0, false
	}
	if f == 0 && math.Signbit(f) {
		return 0, false
	}
	return int32(f), true
}
