// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var latin1 = charmap.ISO8859_1

// useLatin1 reports whether s can be stored in the compact Latin-1 form.
func useLatin1(s string) bool {
	if len(s) >= 2*maxLatin1StrBytes {
		return false
	}
	n := 0
	for _, r := range s {
		if _, ok := latin1.EncodeRune(r); !ok {
			return false
		}
		n++
	}
	return n < maxLatin1StrBytes
}

func utf16Units(s string) uint32 {
	var n uint32
	for _, r := range s {
		n += uint32(utf16.RuneLen(r))
	}
	return n
}

// stringSize returns the aligned number of bytes s takes when encoded.
func stringSize(s string, latin bool) uint32 {
	if latin {
		return align4(2 + uint32(utf8.RuneCountInString(s)))
	}
	return align4(4 + 2*utf16Units(s))
}

// storedStringSize returns the aligned size of an encoded string at dst.
func storedStringSize(src []byte, latin bool) uint32 {
	if latin {
		return align4(2 + uint32(le.Uint16(src)))
	}
	return align4(4 + le.Uint32(src))
}

// writeString encodes s at the start of dst, which must hold at least
// stringSize(s, latin) bytes. Padding bytes are zeroed.
func writeString(dst []byte, s string, latin bool) {
	size := stringSize(s, latin)
	if latin {
		i := 2
		for _, r := range s {
			b, _ := latin1.EncodeRune(r)
			dst[i] = b
			i++
		}
		le.PutUint16(dst, uint16(i-2))
		clear(dst[i:size])
		return
	}

	i := 4
	for _, r := range s {
		if utf16.RuneLen(r) == 2 {
			r1, r2 := utf16.EncodeRune(r)
			le.PutUint16(dst[i:], uint16(r1))
			le.PutUint16(dst[i+2:], uint16(r2))
			i += 4
			continue
		}
		le.PutUint16(dst[i:], uint16(r))
		i += 2
	}
	le.PutUint32(dst, uint32(i-4))
	clear(dst[i:size])
}

// readString decodes the string encoded at the start of src.
func readString(src []byte, latin bool) string {
	if latin {
		n := int(le.Uint16(src))
		raw := src[2 : 2+n]
		ascii := true
		for _, c := range raw {
			if c >= utf8.RuneSelf {
				ascii = false
				break
			}
		}
		if ascii {
			return string(raw)
		}
		var sb strings.Builder
		sb.Grow(2 * n)
		for _, c := range raw {
			sb.WriteRune(latin1.DecodeByte(c))
		}
		return sb.String()
	}

	n := int(le.Uint32(src)) / 2
	units := make([]uint16, n)
	for i := range units {
		units[i] = le.Uint16(src[4+2*i:])
	}
	return string(utf16.Decode(units))
}

// compareKey compares the key encoded at src with key, rune by rune, without
// materializing the stored key.
func compareKey(src []byte, latin bool, key string) int {
	if latin {
		n := int(le.Uint16(src))
		stored := src[2 : 2+n]
		i := 0
		for _, r := range key {
			if i == n {
				return -1
			}
			if c := latin1.DecodeByte(stored[i]); c != r {
				if c < r {
					return -1
				}
				return 1
			}
			i++
		}
		if i < n {
			return 1
		}
		return 0
	}

	n := int(le.Uint32(src)) / 2
	units := src[4 : 4+2*n]
	i := 0
	for _, r := range key {
		if i == n {
			return -1
		}
		c := rune(le.Uint16(units[2*i:]))
		i++
		if utf16.IsSurrogate(c) && i < n {
			c = utf16.DecodeRune(c, rune(le.Uint16(units[2*i:])))
			i++
		}
		if c != r {
			if c < r {
				return -1
			}
			return 1
		}
	}
	if i < n {
		return 1
	}
	return 0
}
