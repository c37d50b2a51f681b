// Copyright 2020 by David A. Golden. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package binjson

// CompactionPolicy decides when an Object compacts itself after an
// overwriting Insert.  Compaction runs when the stale counter exceeds
// MinStale and is at least the entry count divided by Divisor.  A Divisor of
// zero or less disables automatic compaction.
type CompactionPolicy struct {
	MinStale int
	Divisor  int
}

// DefaultCompactionPolicy compacts once more than 32 overwrites have
// accumulated and they amount to at least half the entry count.
var DefaultCompactionPolicy = CompactionPolicy{MinStale: 32, Divisor: 2}

// NeverCompact disables automatic compaction.  Compact still works.
var NeverCompact = CompactionPolicy{}

// ShouldCompact reports whether a container with the given stale counter and
// entry count should be compacted.
func (p CompactionPolicy) ShouldCompact(stale, length int) bool {
	if p.Divisor <= 0 {
		return false
	}
	return stale > p.MinStale && stale >= length/p.Divisor
}
