// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestStreaming(t *testing.T) {
	t.Parallel()

	type testCase struct {
		label  string
		input  string
		count  int
		errStr string
	}

	cases := []testCase{
		// Document streams
		{
			label:  "no docs",
			input:  "",
			count:  0,
			errStr: io.EOF.Error(),
		},
		{
			label:  "1 doc",
			input:  "{}",
			count:  1,
			errStr: io.EOF.Error(),
		},
		{
			label:  "1 doc, leading WS",
			input:  " {}",
			count:  1,
			errStr: io.EOF.Error(),
		},
		{
			label:  "2 docs, no WS",
			input:  "{}{}",
			count:  2,
			errStr: io.EOF.Error(),
		},
		{
			label:  "2 docs, space separated",
			input:  "{} {}",
			count:  2,
			errStr: io.EOF.Error(),
		},
		{
			label:  "2 docs, LF separated",
			input:  "{}\n{}",
			count:  2,
			errStr: io.EOF.Error(),
		},
		{
			label:  "2 docs, CRLF separated",
			input:  "{}\r\n{}",
			count:  2,
			errStr: io.EOF.Error(),
		},
		{
			label:  "3 docs, LF separated",
			input:  "{}\n{}\n{}",
			count:  3,
			errStr: io.EOF.Error(),
		},

		// Array of documents
		{
			label:  "array: no docs",
			input:  "[]",
			count:  0,
			errStr: io.EOF.Error(),
		},
		{
			label:  "array: one doc w/ WS",
			input:  "[ {} ]",
			count:  1,
			errStr: io.EOF.Error(),
		},
		{
			label:  "array: 2 docs, no WS",
			input:  "[{},{}]",
			count:  2,
			errStr: io.EOF.Error(),
		},
		{
			label:  "array: 2 docs, space separated",
			input:  "[{}, {}]",
			count:  2,
			errStr: io.EOF.Error(),
		},
		{
			label:  "array: 2 docs, LF separated",
			input:  "[{},\n{}]",
			count:  2,
			errStr: io.EOF.Error(),
		},
		{
			label:  "array: 2 docs, CRLF separated",
			input:  "[{},\r\n{}]",
			count:  2,
			errStr: io.EOF.Error(),
		},
		{
			label:  "array: 3 docs",
			input:  "[{},{},{}]",
			count:  3,
			errStr: io.EOF.Error(),
		},
		{
			label:  "array: 2 arrays",
			input:  "[{},{},{}]\n[{}]",
			count:  3,
			errStr: io.EOF.Error(),
		},
		{
			label:  "array: no comma",
			input:  "[{} {}]",
			count:  0,
			errStr: "expecting value-separator or end of array",
		},
		{
			label:  "array: not terminated",
			input:  "[{},{}",
			count:  1,
			errStr: "unexpected EOF",
		},

		// Non documents in stream
		{
			label:  "non-document",
			input:  `42`,
			count:  0,
			errStr: "documents must be objects",
		},
		{
			label:  "non-document after document",
			input:  `{} 42`,
			count:  1,
			errStr: "documents must be objects",
		},
		{
			label:  "non-document in array",
			input:  `[42]`,
			count:  0,
			errStr: "documents must be objects",
		},
		{
			label:  "start with array terminator",
			input:  `]{"a":"b"}`,
			count:  0,
			errStr: "documents must be objects",
		},
	}

	for _, c := range cases {
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			var err error
			jsonReader := bufio.NewReader(bytes.NewReader([]byte(c.input)))
			dec, err := NewDecoder(jsonReader)
			if err != nil && err != io.EOF {
				t.Fatalf("unexpected error: %v", err)
			}

			buf := make([]byte, 0, 256)
			var n int
			for err == nil {
				buf = buf[0:0]
				buf, err = dec.Decode(buf)
				if err != nil {
					break
				}
				n++
			}
			if n != c.count {
				t.Errorf("expected %d docs, but got %d", c.count, n)
			}
			if !strings.Contains(err.Error(), c.errStr) {
				t.Errorf("expected error with '%s', but got %v", c.errStr, err)
			}

		})
	}
}

func TestDepthLimit(t *testing.T) {
	t.Parallel()

	input := `{"1":{"2":{"3":[{"5":"a"}]}}}`
	out := make([]byte, 0)

	dec, err := NewDecoder(bufio.NewReader(bytes.NewReader([]byte(input))))
	if err != nil {
		t.Fatal(err)
	}
	dec.MaxDepth(4)
	out, err = dec.Decode(out)
	if err == nil {
		t.Fatalf("expected error and got nil")
	}

	dec, err = NewDecoder(bufio.NewReader(bytes.NewReader([]byte(input))))
	if err != nil {
		t.Fatal(err)
	}
	dec.MaxDepth(5)
	_, err = dec.Decode(out)
	if err != nil {
		t.Fatalf("expected no error and got: %v", err)
	}
}

func TestDecodeAppends(t *testing.T) {
	t.Parallel()

	dec, err := NewDecoder(bufio.NewReader(strings.NewReader(`{"a":1} {"b":2}`)))
	if err != nil {
		t.Fatal(err)
	}
	var buf []byte
	for {
		buf, err = dec.Decode(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if buf != nil {
		t.Fatalf("Decode should return nil at end of stream, got %x", buf)
	}

	dec, _ = NewDecoder(bufio.NewReader(strings.NewReader(`{"a":1} {"b":2}`)))
	out := must(dec.Decode(nil))
	first := len(out)
	out = must(dec.Decode(out))
	eq(t, len(out), 2*first)

	v := must(Load(out[first:]))
	o := v.ToObject()
	eq(t, o.Value("b").ToInt(), int64(2))
}

func TestDecodeValue(t *testing.T) {
	t.Parallel()

	dec, err := NewDecoder(bufio.NewReader(strings.NewReader(`[{"b": [1, "two"]}, {"a": null}]`)))
	if err != nil {
		t.Fatal(err)
	}
	v, err := dec.DecodeValue()
	if err != nil {
		t.Fatal(err)
	}
	deepEqual(t, v, any(Members{{Key: "b", Value: []any{1.0, "two"}}}))
	v, err = dec.DecodeValue()
	if err != nil {
		t.Fatal(err)
	}
	deepEqual(t, v, any(Members{{Key: "a", Value: nil}}))
	_, err = dec.DecodeValue()
	eq(t, err, io.EOF)
}

func TestBOM(t *testing.T) {
	t.Parallel()

	cases := []struct {
		label  string
		input  []byte
		errStr string
	}{
		{"UTF-8", append([]byte{0xEF, 0xBB, 0xBF}, `{"a":1}`...), ""},
		{"UTF-16BE", append([]byte{0xFE, 0xFF}, `{"a":1}`...), "UTF-16 BOM"},
		{"UTF-16LE", append([]byte{0xFF, 0xFE}, `{"a":1}`...), "UTF-16 BOM"},
		{"UTF-32BE", append([]byte{0x00, 0x00, 0xFE, 0xFF}, `{"a":1}`...), "UTF-32 BOM"},
	}
	for _, c := range cases {
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			_, err := Unmarshal(c.input, nil)
			if c.errStr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), c.errStr) {
				t.Fatalf("expected error with '%s', but got %v", c.errStr, err)
			}
		})
	}
}

func TestLongStrings(t *testing.T) {
	t.Parallel()

	// Escapes straddling the 64 byte peek window must survive the repeek.
	for pad := 0; pad < 70; pad++ {
		prefix := strings.Repeat("x", pad)
		in := `{"a":"` + prefix + `\u00e9\ud83d\ude00"}`
		v := must(Parse([]byte(in)))
		got, _ := v.(Members).Get("a")
		eq(t, got.(string), prefix+"\u00e9\U0001F600")
	}
}

func TestParseDepth(t *testing.T) {
	t.Parallel()

	in := []byte(strings.Repeat("[", 3) + strings.Repeat("]", 3))
	_, err := ParseDepth(in, 2)
	if err == nil || !strings.Contains(err.Error(), "maximum depth exceeded") {
		t.Fatalf("expected depth error, got %v", err)
	}
	v, err := ParseDepth(in, 3)
	noErr(t, err)
	deepEqual(t, v, any([]any{[]any{[]any{}}}))
}
