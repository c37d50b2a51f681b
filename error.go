// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

import (
	"errors"
	"fmt"
)

// ParseError records JSON parsing errors.  It can include a small excerpt of
// text from the reader at the point of error.
type ParseError struct {
	msg string
}

func (pe *ParseError) Error() string { return pe.msg }

// ErrCapacity is the error wrapped by every CapacityError.
var ErrCapacity = errors.New("binjson: document too large")

// CapacityError reports that a write would have grown a container past the
// largest size a value slot can address.  The container is left unchanged.
type CapacityError struct {
	Used    uint32
	Reserve uint32
	Limit   uint32
}

func newCapacityError(used, reserve uint32) *CapacityError {
	return &CapacityError{Used: used, Reserve: reserve, Limit: sizeLimit}
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: %d bytes used, %d requested, limit %d", ErrCapacity, e.Used, e.Reserve, e.Limit)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }

// TypeError reports a Go value that has no binary JSON representation.
type TypeError struct {
	Value any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("binjson: cannot convert %T", e.Value)
}

// DataError reports raw bytes that do not hold a valid document. Off is the
// byte offset of the problem within Data.
type DataError struct {
	Data []byte
	Off  int
	Msg  string
}

func dataErrf(data []byte, off uint32, format string, args ...any) error {
	return &DataError{data, int(off), fmt.Sprintf(format, args...)}
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		return fmt.Sprintf("binjson: %s at offset %d: (%d) %x", e.Msg, e.Off, n, e.Data)
	}
	p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
	return fmt.Sprintf("binjson: %s at offset %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
}
