// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member is one key/value pair of a text JSON object.
type Member struct {
	Key   string
	Value any
}

// Members is a text JSON object that keeps its keys in document order.  It
// is what the Decoder produces for objects.
type Members []Member

// Get returns the value of the last member named key.
func (m Members) Get(key string) (any, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i].Key == key {
			return m[i].Value, true
		}
	}
	return nil, false
}

// MarshalJSON renders m as a JSON object with members in order.
func (m Members) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", e.Key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FromJSONValue converts a generic tree into a Value.  It accepts nil, bool,
// every Go integer and float type, json.Number, string, []any, Members,
// map[string]any, the bson.D, bson.M and bson.A types, primitive.Null,
// primitive.Undefined, *Array, *Object and Value.  Anything else gives a
// *TypeError.
func FromJSONValue(v any) (Value, error) {
	switch x := v.(type) {
	case nil, primitive.Null:
		return NullValue(), nil
	case primitive.Undefined:
		return UndefinedValue(), nil
	case bool:
		return BoolValue(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("binjson: number %q: %w", x, err)
		}
		return Number(f), nil
	case string:
		return StringValue(x), nil
	case []any:
		a, err := FromJSONArray(x)
		if err != nil {
			return Value{}, err
		}
		defer a.Release()
		return ArrayValue(a), nil
	case primitive.A:
		return FromJSONValue([]any(x))
	case Members, map[string]any, primitive.D, primitive.M:
		o, err := FromJSONObject(x)
		if err != nil {
			return Value{}, err
		}
		defer o.Release()
		return ObjectValue(o), nil
	case *Array:
		return ArrayValue(x), nil
	case *Object:
		return ObjectValue(x), nil
	case Value:
		return x.Clone(), nil
	}
	return Value{}, &TypeError{Value: v}
}

// FromJSONArray builds an array from the elements of arr in order and
// compacts the result.
func FromJSONArray(arr []any) (*Array, error) {
	a := new(Array)
	for _, e := range arr {
		v, err := FromJSONValue(e)
		if err != nil {
			a.Release()
			return nil, err
		}
		err = a.Append(v)
		v.Release()
		if err != nil {
			a.Release()
			return nil, err
		}
	}
	a.copyCheck()
	a.c.finish()
	return a, nil
}

// FromJSONObject builds an object from a Members, map[string]any, bson.D or
// bson.M value and compacts the result.  Members and bson.D are inserted in
// order, so a repeated key keeps its last value.  Go maps are visited in
// sorted key order.
func FromJSONObject(obj any) (*Object, error) {
	o := new(Object)
	insert := func(k string, e any) error {
		v, err := FromJSONValue(e)
		if err != nil {
			return err
		}
		defer v.Release()
		return o.Insert(k, v)
	}

	var err error
	switch x := obj.(type) {
	case Members:
		for _, m := range x {
			if err = insert(m.Key, m.Value); err != nil {
				break
			}
		}
	case primitive.D:
		for _, e := range x {
			if err = insert(e.Key, e.Value); err != nil {
				break
			}
		}
	case map[string]any:
		err = insertSorted(x, insert)
	case primitive.M:
		err = insertSorted(x, insert)
	case nil:
	default:
		err = &TypeError{Value: obj}
	}
	if err != nil {
		o.Release()
		return nil, err
	}
	o.copyCheck()
	o.c.finish()
	return o, nil
}

func insertSorted(m map[string]any, insert func(string, any) error) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := insert(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// ToBSON converts a Members tree into bson.D, recursively, so it can be
// handed to the MongoDB driver.  Other values pass through unchanged.
func ToBSON(v any) any {
	switch x := v.(type) {
	case Members:
		d := make(bson.D, 0, len(x))
		for _, m := range x {
			d = append(d, bson.E{Key: m.Key, Value: ToBSON(m.Value)})
		}
		return d
	case []any:
		a := make(bson.A, 0, len(x))
		for _, e := range x {
			a = append(a, ToBSON(e))
		}
		return a
	}
	return v
}
