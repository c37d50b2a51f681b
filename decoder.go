// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16BEBOM = []byte{0xFE, 0xFF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf32BEBOM = []byte{0x00, 0x00, 0xFE, 0xFF}
	utf32LEBOM = []byte{0xFF, 0xFE, 0x00, 0x00}
)

// numberPeekWidth bounds the length of a JSON number literal.
const numberPeekWidth = 1024

// DefaultMaxDepth is the nesting limit of a new Decoder and of Parse.
const DefaultMaxDepth = 200

// Decoder reads JSON documents from a buffered input stream and converts them
// to binary documents.  Documents may be separated by optional white space or
// may be the elements of one well-formed JSON array.
type Decoder struct {
	arrayFinished bool
	arrayStarted  bool
	curDepth      int
	json          *bufio.Reader
	maxDepth      int
}

// NewDecoder returns a new decoder.  If a UTF-8 byte-order-mark (BOM) exists,
// it will be stripped.  Because only UTF-8 is supported, other BOMs are errors.
// This function consumes leading white space and checks if the first character
// is '['.  If so, the input format is expected to be a single JSON array of
// documents and the stream will consist of the documents in the array.  Any
// read error (including io.EOF) will be returned.
//
// If the the bufio.Reader's size is less than 8192, it will be rebuffered.
// This is necessary to account for lookahead for long numbers to minimize
// copying.
func NewDecoder(json *bufio.Reader) (*Decoder, error) {
	d, err := newDecoder(json)
	if err != nil {
		return nil, err
	}

	ch, err := d.readAfterWS()
	if err != nil {
		// Before a document is read, EOF is valid.
		if err == io.EOF {
			return nil, err
		}
		return nil, newReadError(err)
	}

	switch ch {
	case '[':
		d.arrayStarted = true
	default:
		err = d.json.UnreadByte()
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

func newDecoder(json *bufio.Reader) (*Decoder, error) {
	if json.Size() < 8192 {
		json = bufio.NewReaderSize(json, 8192)
	}
	err := handleBOM(json)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		json:     json,
		maxDepth: DefaultMaxDepth,
	}, nil
}

// MaxDepth sets the maximum allowed depth of a JSON document.  The default is
// 200.
func (d *Decoder) MaxDepth(n int) {
	d.maxDepth = n
}

// DecodeValue reads the next JSON document from the stream and returns it as
// a generic tree: Members for objects, []any for arrays, float64, string,
// bool or nil.  The function returns io.EOF if no documents remain in the
// stream.
func (d *Decoder) DecodeValue() (any, error) {
	if d.arrayFinished {
		return nil, io.EOF
	}

	ch, err := d.readAfterWS()
	if err != nil {
		// Before reading a new document, EOF is valid.
		if err == io.EOF {
			return nil, err
		}
		return nil, newReadError(err)
	}

	switch ch {
	case '{':
	case ']':
		if d.arrayStarted {
			d.arrayFinished = true
			return nil, io.EOF
		}
		return nil, d.parseError(ch, "documents must be objects")
	default:
		return nil, d.parseError(ch, "documents must be objects")
	}

	doc, err := d.convertObject()
	if err != nil {
		return nil, err
	}

	// In array mode, consume the comma or the closing ']'.
	if d.arrayStarted {
		ch, err := d.readAfterWS()
		if err != nil {
			return nil, newReadError(err)
		}

		switch ch {
		case ',':
			// nothing
		case ']':
			d.arrayFinished = true
		default:
			return nil, d.parseError(ch, "expecting value-separator or end of array")
		}
	}

	return doc, nil
}

// Decode converts the next JSON document from the input stream into a binary
// document, as TakeRawData would return it, and appends it to buf.  The
// final buffer is returned, just like with `append`.  The function returns
// io.EOF if no documents remain in the stream.
func (d *Decoder) Decode(buf []byte) ([]byte, error) {
	doc, err := d.DecodeValue()
	if err != nil {
		return nil, err
	}
	return appendDocument(buf, doc)
}

func appendDocument(buf []byte, doc any) ([]byte, error) {
	var raw []byte
	switch x := doc.(type) {
	case []any:
		a, err := FromJSONArray(x)
		if err != nil {
			return nil, err
		}
		raw = a.TakeRawData()
		if raw == nil {
			raw = emptyDocument(false)
		}
	default:
		o, err := FromJSONObject(x)
		if err != nil {
			return nil, err
		}
		raw = o.TakeRawData()
		if raw == nil {
			raw = emptyDocument(true)
		}
	}
	return append(buf, raw...), nil
}

// emptyDocument returns the encoding of an empty array or object.
func emptyDocument(isObject bool) []byte {
	raw := make([]byte, headerSize+baseSize)
	writeHeader(raw)
	writeEmptyBase(raw[headerSize:], isObject)
	return raw
}

func (d *Decoder) readAfterWS() (byte, error) {
	var ch byte
	var err error
	for {
		ch, err = d.json.ReadByte()
		if err != nil {
			return 0, err
		}
		switch ch {
		case ' ', '\t', '\n', '\r':
		default:
			return ch, nil
		}
	}
}

func (d *Decoder) readCharAfterWS(b byte) error {
	ch, err := d.readAfterWS()
	if err != nil {
		return newReadError(err)
	}
	if ch != b {
		return d.parseError(ch, fmt.Sprintf("expecting '%c'", b))
	}
	return nil
}

func (d *Decoder) readNameSeparator() error {
	return d.readCharAfterWS(':')
}

func (d *Decoder) parseError(ch byte, msg string) error {
	after, _ := d.json.Peek(20)
	return &ParseError{fmt.Sprintf("parse error: %s on char '%s', followed by '%s...'", msg, string(ch), after)}
}

// Unmarshal converts a single JSON object to a binary document and appends
// it to out.  The final buffer is returned, just like with `append`.  The
// function returns io.EOF if the input is empty.
func Unmarshal(in []byte, out []byte) ([]byte, error) {
	jsonReader := bufio.NewReader(bytes.NewReader(in))
	dec, err := NewDecoder(jsonReader)
	if err != nil {
		return nil, err
	}
	return dec.Decode(out)
}

// Parse reads exactly one JSON value of any type from in and returns it as a
// generic tree.  Only white space may follow the value.
func Parse(in []byte) (any, error) {
	return ParseDepth(in, DefaultMaxDepth)
}

// ParseDepth is like Parse but allows containers nested maxDepth deep.
func ParseDepth(in []byte, maxDepth int) (any, error) {
	dec, err := newDecoder(bufio.NewReader(bytes.NewReader(in)))
	if err != nil {
		return nil, err
	}
	dec.MaxDepth(maxDepth)
	v, err := dec.convertValue()
	if err != nil {
		return nil, err
	}
	if ch, err := dec.readAfterWS(); err != io.EOF {
		if err != nil {
			return nil, newReadError(err)
		}
		return nil, dec.parseError(ch, "unexpected data after value")
	}
	return v, nil
}

// UnmarshalValue converts a JSON array or object in in to a binary document
// and appends it to out.
func UnmarshalValue(in []byte, out []byte) ([]byte, error) {
	v, err := Parse(in)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case Members, []any:
		return appendDocument(out, v)
	}
	return nil, &TypeError{Value: v}
}

// detect/discard/error on BOM. Inability to peek is a NOP and
// will be handled by the normal parser
func handleBOM(r *bufio.Reader) error {
	// Peek 2 byte BOMs
	preamble, err := r.Peek(2)
	if err != nil {
		return nil
	}
	if bytes.Equal(preamble, utf16BEBOM) || bytes.Equal(preamble, utf16LEBOM) {
		return fmt.Errorf("error: detected unsupported UTF-16 BOM")
	}

	// Peek 3 byte BOM; UTF-8 is supported, so discard them if found.
	preamble, err = r.Peek(3)
	if err != nil {
		return nil
	}
	if bytes.Equal(preamble, utf8BOM) {
		_, _ = r.Discard(3)
	}

	// Peek 4 byte BOMs
	preamble, err = r.Peek(4)
	if err != nil {
		return nil
	}
	if bytes.Equal(preamble, utf32BEBOM) || bytes.Equal(preamble, utf32LEBOM) {
		return fmt.Errorf("error: detected unsupported UTF-32 BOM")
	}

	return nil
}

// newReadError is used when we expect to be able to read and fail.  If the
// error is EOF, we convert it to UnexpectedEOF because we aren't between
// top-level documents.
func newReadError(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("error reading json: %w", err)
}
