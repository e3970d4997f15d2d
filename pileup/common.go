// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pileup

import (
	"math"
)

// Common pileup components.

// PosType is the integer type used to represent 1-based genomic positions.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// PosTypeMin is the minimum value that can be represented by a PosType.
const PosTypeMin = math.MinInt32

// RefLen is the length of the reference genome the default mask layout was
// tuned for.
const RefLen = 29903

// Feature-tuple slots.  The four base slots line up with the usual packed
// 2-bit A/C/G/T encoding.
const (
	// SlotA counts A bases.
	SlotA = iota
	// SlotC counts C bases.
	SlotC
	// SlotG counts G bases.
	SlotG
	// SlotT counts T bases.
	SlotT
	// SlotIns counts insertion events.
	SlotIns
	// SlotDel counts deletion events, either '-' or '*'.
	SlotDel
)

const (
	// NBase is the number of regular base types.
	NBase = 4
	// NSlot is the width of a feature tuple.
	NSlot = 6
)

// Sentinel marks a feature-vector offset for which the pileup had no line at
// all.  It lies outside [0, 1], so it cannot be confused with a frequency.
const Sentinel = -1.0

// IsAbsent reports whether a feature value is the absence sentinel.
func IsAbsent(v float64) bool {
	return v == Sentinel
}

// slotNone marks bytes which don't name a base.
const slotNone = 0xff

// asciiToSlotTable maps A/C/G/T (either case) to their slot, everything else
// to slotNone.
var asciiToSlotTable = func() (t [256]byte) {
	for i := range t {
		t[i] = slotNone
	}
	for slot, b := range [NBase]byte{'A', 'C', 'G', 'T'} {
		t[b] = byte(slot)
		t[b+'a'-'A'] = byte(slot)
	}
	return
}()

// BaseToSlot returns the slot for an A/C/G/T base (case-insensitive).  ok is
// false for anything else, including N.
func BaseToSlot(b byte) (slot int, ok bool) {
	s := asciiToSlotTable[b]
	if s == slotNone {
		return 0, false
	}
	return int(s), true
}

// Counts holds raw event counts for one position, indexed by slot.
type Counts [NSlot]uint32

// Total returns the sum of all slots.
func (c *Counts) Total() (total uint64) {
	for _, n := range c {
		total += uint64(n)
	}
	return
}

// Feature is the normalized frequency tuple for one retained position,
// indexed by slot.  Its entries sum to 1, or are all zero when no events were
// observed.
type Feature [NSlot]float64

// Normalize converts the counts to frequencies.  A position with no events
// yields the zero tuple, which is distinct from the absence sentinel.
func (c *Counts) Normalize() (f Feature) {
	total := c.Total()
	if total == 0 {
		return
	}
	denom := float64(total)
	for i, n := range c {
		f[i] = float64(n) / denom
	}
	return
}
