// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"bytes"
	"encoding/hex"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

type unmarshalTestCase struct {
	label  string
	input  string
	output string
	errStr string
}

func testWithUnmarshal(t *testing.T, cases []unmarshalTestCase) {
	t.Helper()

	for _, c := range cases {
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()

			buf := make([]byte, 0, 256)
			buf, err := Unmarshal([]byte(c.input), buf)
			if c.errStr != "" {
				var got string
				if err != nil {
					got = err.Error()
				}
				if !strings.Contains(got, c.errStr) {
					t.Errorf("expected error with '%s', but got %v", c.errStr, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			expect := mustHex(t, c.output)
			if !bytes.Equal(expect, buf) {
				t.Fatalf("Unmarshal doesn't match expected:\nGot:    %v\nExpect: %v", hex.EncodeToString(buf), strings.ToLower(c.output))
			}
			if _, err := Load(buf); err != nil {
				t.Fatalf("Unmarshal output doesn't load: %v", err)
			}
		})
	}
}

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		t.Fatalf("error decoding test hex: %v", err)
	}
	return b
}

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Fatalf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func noErr(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// withSizeLimit lowers the capacity ceiling for the duration of a test. Tests
// using it must not call t.Parallel.
func withSizeLimit(t *testing.T, limit uint32) {
	old := sizeLimit
	sizeLimit = limit
	t.Cleanup(func() { sizeLimit = old })
}

// captureLog routes package diagnostics into a buffer for the duration of a
// test. Tests using it must not call t.Parallel.
func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

// tree builds a generic tree from JSON text.
func tree(t testing.TB, s string) any {
	t.Helper()
	v, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("parsing %s: %v", s, err)
	}
	return v
}
