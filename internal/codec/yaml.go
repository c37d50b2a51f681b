// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package codec

import (
	"errors"
	"fmt"

	"github.com/xdg-go/binjson"
	"gopkg.in/yaml.v3"
)

// decodeYAML walks the node tree rather than decoding into any so mappings
// keep their order.
func decodeYAML(data []byte, maxDepth int) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return yamlValue(&doc, 0, maxDepth)
}

func yamlValue(n *yaml.Node, depth, maxDepth int) (any, error) {
	if depth > maxDepth {
		return nil, errors.New("maximum depth exceeded")
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0], depth, maxDepth)
	case yaml.AliasNode:
		return yamlValue(n.Alias, depth+1, maxDepth)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(binjson.Members, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, vn := n.Content[i], n.Content[i+1]
			v, err := yamlValue(vn, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			if k.Tag == "!!merge" {
				merged, err := mergeMembers(v)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", k.Line, err)
				}
				out = append(out, merged...)
				continue
			}
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			out = append(out, binjson.Member{Key: k.Value, Value: v})
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return normalize(v, maxDepth-depth)
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

// mergeMembers flattens the value of a "<<" key, a mapping or a list of
// mappings.
func mergeMembers(v any) (binjson.Members, error) {
	switch x := v.(type) {
	case binjson.Members:
		return x, nil
	case []any:
		var out binjson.Members
		for _, e := range x {
			m, ok := e.(binjson.Members)
			if !ok {
				return nil, errors.New("merge list must hold mappings")
			}
			out = append(out, m...)
		}
		return out, nil
	}
	return nil, errors.New("merge value must be a mapping")
}
