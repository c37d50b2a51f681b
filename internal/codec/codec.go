// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package codec reads structured data in several text and binary formats
// into the generic tree that binjson.FromJSONValue accepts.
package codec

import (
	"bytes"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/tidwall/jsonc"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/xdg-go/binjson"
	"go.mongodb.org/mongo-driver/bson"
)

// Format identifies an input encoding.
type Format uint8

const (
	JSON Format = iota
	JSONC
	YAML
	CBOR
	MsgPack
	BSON
)

var formatNames = map[Format]string{
	JSON:    "json",
	JSONC:   "jsonc",
	YAML:    "yaml",
	CBOR:    "cbor",
	MsgPack: "msgpack",
	BSON:    "bson",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(f))
}

// ParseFormat parses a format name as printed by String.  "yml" and "mpk"
// are accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json":
		return JSON, nil
	case "jsonc":
		return JSONC, nil
	case "yaml", "yml":
		return YAML, nil
	case "cbor":
		return CBOR, nil
	case "msgpack", "mpk":
		return MsgPack, nil
	case "bson":
		return BSON, nil
	}
	return 0, fmt.Errorf("unknown format: %q", name)
}

// FormatFromPath picks a format from the extension of path.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return 0, fmt.Errorf("%s: no file extension to pick a format from", path)
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// decMode decodes CBOR maps with an any target into map[string]any, the
// only map type a binary document can hold.
var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Decoder converts encoded data into a generic tree.
type Decoder struct {
	// MaxDepth bounds container nesting.  Zero means
	// binjson.DefaultMaxDepth.
	MaxDepth int
}

// Decode converts data with the default Decoder.
func Decode(f Format, data []byte) (any, error) {
	return Decoder{}.Decode(f, data)
}

// Decode converts data in format f into a tree of nil, bool, numbers,
// strings, []any, binjson.Members and map[string]any.  JSON, JSONC, YAML,
// MessagePack and BSON keep object members in document order.
func (d Decoder) Decode(f Format, data []byte) (any, error) {
	depth := d.MaxDepth
	if depth <= 0 {
		depth = binjson.DefaultMaxDepth
	}

	var v any
	var err error
	switch f {
	case JSON:
		return binjson.ParseDepth(data, depth)
	case JSONC:
		return binjson.ParseDepth(jsonc.ToJSON(data), depth)
	case YAML:
		return decodeYAML(data, depth)
	case CBOR:
		err = decMode.Unmarshal(data, &v)
	case MsgPack:
		v, err = decodeMsgPack(data)
	case BSON:
		var doc bson.D
		err = bson.Unmarshal(data, &doc)
		v = doc
	default:
		return nil, fmt.Errorf("unsupported format: %v", f)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %w", f, err)
	}
	return normalize(v, depth)
}

func decodeMsgPack(data []byte) (any, error) {
	r := bytes.NewReader(data)
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(r)
	dec.SetMapDecoder(decodeMsgPackMap)
	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d bytes of trailing data", r.Len())
	}
	return v, nil
}

// decodeMsgPackMap keeps map entries in stream order.
func decodeMsgPackMap(dec *msgpack.Decoder) (any, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	out := make(binjson.Members, 0, n)
	for i := 0; i < n; i++ {
		k, err := dec.DecodeInterface()
		if err != nil {
			return nil, err
		}
		v, err := dec.DecodeInterface()
		if err != nil {
			return nil, err
		}
		out = append(out, binjson.Member{Key: keyString(k), Value: v})
	}
	return out, nil
}
