// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/xdg-go/binjson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// normalize rewrites the values decoders produce that have no JSON
// counterpart.  Byte strings become base64 text, times become RFC 3339 text
// and BSON specific types become their canonical string forms.
func normalize(v any, depth int) (any, error) {
	if depth < 0 {
		return nil, errors.New("maximum depth exceeded")
	}
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			n, err := normalize(e, depth-1)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			n, err := normalize(e, depth-1)
			if err != nil {
				return nil, err
			}
			out[keyString(k)] = n
		}
		return out, nil
	case binjson.Members:
		out := make(binjson.Members, len(x))
		for i, m := range x {
			n, err := normalize(m.Value, depth-1)
			if err != nil {
				return nil, err
			}
			out[i] = binjson.Member{Key: m.Key, Value: n}
		}
		return out, nil
	case primitive.D:
		out := make(binjson.Members, len(x))
		for i, e := range x {
			n, err := normalize(e.Value, depth-1)
			if err != nil {
				return nil, err
			}
			out[i] = binjson.Member{Key: e.Key, Value: n}
		}
		return out, nil
	case primitive.M:
		return normalize(map[string]any(x), depth)
	case primitive.A:
		return normalize([]any(x), depth)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := normalize(e, depth-1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	case big.Int:
		f, _ := new(big.Float).SetInt(&x).Float64()
		return f, nil
	case cbor.Tag:
		return normalize(x.Content, depth)
	case primitive.ObjectID:
		return x.Hex(), nil
	case primitive.DateTime:
		return time.UnixMilli(int64(x)).UTC().Format(time.RFC3339Nano), nil
	case primitive.Binary:
		return base64.StdEncoding.EncodeToString(x.Data), nil
	case primitive.Decimal128:
		return x.String(), nil
	case primitive.Regex:
		return "/" + x.Pattern + "/" + x.Options, nil
	case primitive.Timestamp:
		return float64(x.T), nil
	case primitive.Symbol:
		return string(x), nil
	case primitive.JavaScript:
		return string(x), nil
	}
	return v, nil
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}
