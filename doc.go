// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package binjson implements a compact binary container for JSON values.  A
// document is a single contiguous little-endian buffer holding an array or
// object; nested containers, strings and numbers live inside it, so a
// document can be handed around, stored or loaded again without parsing.
//
// Containers
//
// Array and Object are mutable views over a document.  Copies made with
// Clone, or Values taken from a container, share the buffer until one side
// writes, at which point the writer gets its own copy.  Objects keep their
// keys sorted and unique; overwriting a key leaves the old entry behind as
// dead space, which is reclaimed by Compact or automatically according to a
// CompactionPolicy.
//
// Documents are limited to MaxSize bytes.  A write that would grow past the
// limit fails with an error matching ErrCapacity and leaves the container
// as it was.
//
// Text JSON
//
// Unmarshal and Decoder convert UTF-8 JSON text into binary documents,
// either one at a time or as a stream of objects.  ToJSON goes the other
// way, producing a generic tree of nil, bool, float64, string, []any and
// Members that encoding/json can render.
//
// Load validates bytes produced by TakeRawData and reads them in place.
package binjson
