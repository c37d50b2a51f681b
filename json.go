// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

func (d *Decoder) convertValue() (any, error) {
	ch, err := d.readAfterWS()
	if err != nil {
		return nil, newReadError(err)
	}

	switch ch {
	case '{':
		return d.convertObject()
	case '[':
		return d.convertArray()
	case 't':
		return true, d.convertLiteral('t', "rue")
	case 'f':
		return false, d.convertLiteral('f', "alse")
	case 'n':
		return nil, d.convertLiteral('n', "ull")
	case '"':
		return d.convertString()
	default:
		// Either a number or an error.
		err = d.json.UnreadByte()
		if err != nil {
			return nil, err
		}
		return d.convertNumber()
	}
}

func (d *Decoder) convertObject() (Members, error) {
	// Depth check
	d.curDepth++
	if d.curDepth > d.maxDepth {
		return nil, errors.New("maximum depth exceeded")
	}
	defer func() { d.curDepth-- }()

	// Check for empty object or start of key
	ch, err := d.readAfterWS()
	if err != nil {
		return nil, newReadError(err)
	}
	switch ch {
	case '}':
		return Members{}, nil
	case '"':
	default:
		return nil, d.parseError(ch, "expecting key or end of object")
	}

	var out Members
	for {
		key, err := d.convertString()
		if err != nil {
			return nil, err
		}

		// Next non-WS char must be ':' for separator
		err = d.readNameSeparator()
		if err != nil {
			return nil, err
		}

		v, err := d.convertValue()
		if err != nil {
			return nil, err
		}
		out = append(out, Member{Key: key, Value: v})

		ch, err = d.readAfterWS()
		if err != nil {
			return nil, newReadError(err)
		}
		switch ch {
		case ',':
			// Next non-WS character must be quote to start key
			ch, err = d.readAfterWS()
			if err != nil {
				return nil, newReadError(err)
			}
			if ch != '"' {
				return nil, d.parseError(ch, "expecting key")
			}
		case '}':
			return out, nil
		default:
			return nil, d.parseError(ch, "expecting value-separator or end of object")
		}
	}
}

func (d *Decoder) convertArray() ([]any, error) {
	// Depth check
	d.curDepth++
	if d.curDepth > d.maxDepth {
		return nil, errors.New("maximum depth exceeded")
	}
	defer func() { d.curDepth-- }()

	ch, err := d.readAfterWS()
	if err != nil {
		return nil, newReadError(err)
	}

	// Case: empty array
	if ch == ']' {
		return []any{}, nil
	}

	// Not empty: unread the byte for convertValue to check
	err = d.json.UnreadByte()
	if err != nil {
		return nil, err
	}

	var out []any
	for {
		v, err := d.convertValue()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		ch, err = d.readAfterWS()
		if err != nil {
			return nil, newReadError(err)
		}
		switch ch {
		case ',':
		case ']':
			return out, nil
		default:
			return nil, d.parseError(ch, "expecting value-separator or end of array")
		}
	}
}

// convertLiteral consumes the rest of true, false or null after its first
// character.
func (d *Decoder) convertLiteral(first byte, rest string) error {
	buf, err := d.json.Peek(len(rest))
	if err != nil {
		return newReadError(err)
	}
	if string(buf) != rest {
		return d.parseError(first, fmt.Sprintf("expecting %c%s", first, rest))
	}
	_, err = d.json.Discard(len(rest))
	if err != nil {
		return fmt.Errorf("unexpected error discarding buffered reader: %v", err)
	}
	return nil
}

func (d *Decoder) convertNumber() (float64, error) {
	buf, err := d.json.Peek(numberPeekWidth)
	if err != nil {
		// here, io.EOF is OK, since we're peeking and may hit end of
		// input
		if err != io.EOF {
			return 0, err
		}
	}

	// Find where the number appears to end.
	var i int
	var terminated bool
LOOP:
	for i = 0; i < len(buf); i++ {
		switch buf[i] {
		case ' ', '\t', '\n', '\r', ',', ']', '}':
			terminated = true
			break LOOP
		}
	}

	if !terminated && len(buf) == numberPeekWidth {
		return 0, d.parseError(buf[i-1], "number too long")
	}
	if i == 0 {
		if len(buf) == 0 {
			return 0, newReadError(io.ErrUnexpectedEOF)
		}
		return 0, d.parseError(buf[0], "expecting value")
	}
	if !isJSONNumber(buf[:i]) {
		return 0, d.parseError(buf[0], fmt.Sprintf("invalid number %q", buf[:i]))
	}

	n, err := strconv.ParseFloat(string(buf[:i]), 64)
	if err != nil {
		return 0, &ParseError{fmt.Sprintf("parse error: number conversion: %v", err)}
	}

	// i is at terminator or whitespace, so discard just before that.
	_, err = d.json.Discard(i)
	if err != nil {
		return 0, fmt.Errorf("unexpected error discarding buffered reader: %v", err)
	}
	return n, nil
}

// isJSONNumber reports whether b matches the JSON number grammar, which is
// stricter than what strconv.ParseFloat accepts.
func isJSONNumber(b []byte) bool {
	i := 0
	if i < len(b) && b[i] == '-' {
		i++
	}
	switch {
	case i < len(b) && b[i] == '0':
		i++
	case i < len(b) && b[i] >= '1' && b[i] <= '9':
		for i < len(b) && isDigit(b[i]) {
			i++
		}
	default:
		return false
	}
	if i < len(b) && b[i] == '.' {
		i++
		start := i
		for i < len(b) && isDigit(b[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		i++
		if i < len(b) && (b[i] == '+' || b[i] == '-') {
			i++
		}
		start := i
		for i < len(b) && isDigit(b[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// convertString reads a string whose opening quote was already consumed.
func (d *Decoder) convertString() (string, error) {
	var out strings.Builder
	var terminated bool
	var charsNeeded = 1

	for !terminated {
		// peek ahead 64 bytes
		buf, err := d.json.Peek(64)
		if err != nil {
			// here, io.EOF is OK, since we're only peeking and may hit end of
			// input
			if err != io.EOF {
				return "", err
			}
		}

		// if not enough chars, input ended before closing quote or end of
		// escape sequence
		if len(buf) < charsNeeded {
			return "", newReadError(io.ErrUnexpectedEOF)
		}

		var i int
	INNER:
		for i = 0; i < len(buf); i++ {
			switch buf[i] {
			case '\\':
				// need at least two chars in buf
				if len(buf)-i < 2 {
					// backslash is last char in peek buffer, so break out to
					// repeat peek from the backslash, this time needing at
					// least two characters
					charsNeeded = 2
					break INNER
				}

				switch buf[i+1] {
				case '"', '\\', '/':
					out.WriteByte(buf[i+1])
					i++
				case 'b':
					out.WriteByte('\b')
					i++
				case 'f':
					out.WriteByte('\f')
					i++
				case 'n':
					out.WriteByte('\n')
					i++
				case 'r':
					out.WriteByte('\r')
					i++
				case 't':
					out.WriteByte('\t')
					i++
				case 'u':
					// "\uXXXX" needs 6 chars total from i; a surrogate pair
					// needs 12, otherwise back up and repeek
					if len(buf)-i < 6 {
						charsNeeded = 6
						break INNER
					}
					r, err := parseHex4(buf[i+2 : i+6])
					if err != nil {
						return "", err
					}
					if utf16.IsSurrogate(r) {
						if len(buf)-i < 12 && len(buf) == 64 {
							charsNeeded = 6
							break INNER
						}
						if len(buf)-i >= 12 && buf[i+6] == '\\' && buf[i+7] == 'u' {
							r2, err := parseHex4(buf[i+8 : i+12])
							if err != nil {
								return "", err
							}
							if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
								out.WriteRune(dec)
								i += 11
								break
							}
						}
						r = utf8.RuneError
					}
					out.WriteRune(r)
					i += 5
				default:
					return "", d.parseError(buf[i+1], "unknown escape")
				}
				// escape done, go back to needing only one char at a time
				charsNeeded = 1
			case '"':
				terminated = true
				break INNER
			default:
				if buf[i] < 0x20 {
					return "", d.parseError(buf[i], "control character in string")
				}
				out.WriteByte(buf[i])
			}
		}

		// If terminated, closing quote is at index i, so discard i + 1 bytes to include it,
		// otherwise only discard i bytes to skip the text we've copied.
		if terminated {
			_, err = d.json.Discard(i + 1)
		} else {
			_, err = d.json.Discard(i)
		}
		if err != nil {
			return "", fmt.Errorf("unexpected error discarding buffered reader: %v", err)
		}
	}

	s := out.String()
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return s, nil
}

func parseHex4(b []byte) (rune, error) {
	n, err := strconv.ParseUint(string(b), 16, 16)
	if err != nil {
		return 0, &ParseError{fmt.Sprintf("parse error: converting unicode escape: %v", err)}
	}
	return rune(n), nil
}
