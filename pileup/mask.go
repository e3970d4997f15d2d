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
	"encoding/binary"
	"fmt"
	"sort"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
)

// Band is a closed, 1-based range of masked positions.
type Band struct {
	First PosType
	Last  PosType
}

// DefaultBands are the masked ranges of the default layout: everything up to
// position 100, everything past RefLen-100, and the internal low-depth
// windows.
// 22897 sits inside the low-depth neighborhood but is retained.
var DefaultBands = []Band{
	{First: PosTypeMin, Last: 100},
	{First: 22029, Last: 22033},
	{First: 22340, Last: 22367},
	{First: 22898, Last: 22905},
	{First: 23108, Last: 23122},
	{First: RefLen - 100 + 1, Last: PosTypeMax},
}

// Layout is an immutable masking policy.  It is represented the same way
// interval unions are: a sorted sequence of half-open endpoints
// {start0, limit0, start1, limit1, ...}, widened to int64 so a band may end
// at PosTypeMax, plus, for each band, the number of
// masked positions up to and including that band.  Safe for concurrent use.
type Layout struct {
	endpoints   []int64
	cumExcluded []int
	fingerprint uint64
}

// DefaultLayout is the layout every training and prediction run uses.
var DefaultLayout = MustNewLayout(DefaultBands)

// NewLayout builds a Layout from bands sorted by position.  Bands must not
// overlap or touch.  Positions below 1 are never counted as excluded.
func NewLayout(bands []Band) (*Layout, error) {
	l := &Layout{
		endpoints:   make([]int64, 0, 2*len(bands)),
		cumExcluded: make([]int, 0, len(bands)),
	}
	cum := 0
	for i, b := range bands {
		if b.Last < b.First {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("pileup.NewLayout: invalid band [%d, %d]", b.First, b.Last))
		}
		if i > 0 && int64(b.First) <= int64(bands[i-1].Last)+1 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("pileup.NewLayout: band [%d, %d] is unsorted or adjacent to [%d, %d]",
				b.First, b.Last, bands[i-1].First, bands[i-1].Last))
		}
		first := b.First
		if first < 1 {
			first = 1
		}
		if b.Last >= first {
			cum += int(b.Last-first) + 1
		}
		l.endpoints = append(l.endpoints, int64(b.First), int64(b.Last)+1)
		l.cumExcluded = append(l.cumExcluded, cum)
	}
	buf := make([]byte, 8*len(l.endpoints))
	for i, e := range l.endpoints {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(e))
	}
	l.fingerprint = farm.Fingerprint64(buf)
	return l, nil
}

// MustNewLayout is NewLayout, panicking on error.
func MustNewLayout(bands []Band) *Layout {
	l, err := NewLayout(bands)
	if err != nil {
		panic(err)
	}
	return l
}

// endpointIndex returns the number of endpoints <= pos.  It is odd iff pos is
// masked.
func (l *Layout) endpointIndex(pos PosType) int {
	p := int64(pos)
	return sort.Search(len(l.endpoints), func(i int) bool { return l.endpoints[i] > p })
}

// IsMasked reports whether pos is excluded from feature vectors.
func (l *Layout) IsMasked(pos PosType) bool {
	return l.endpointIndex(pos)&1 != 0
}

// ExcludedBefore returns the number of masked positions in [1, pos).  It is a
// nondecreasing step function of pos.
func (l *Layout) ExcludedBefore(pos PosType) int {
	if pos <= 1 {
		return 0
	}
	ei := l.endpointIndex(pos)
	nDone := ei >> 1
	n := 0
	if nDone > 0 {
		n = l.cumExcluded[nDone-1]
	}
	if ei&1 != 0 {
		start := l.endpoints[ei-1]
		if start < 1 {
			start = 1
		}
		n += int(int64(pos) - start)
	}
	return n
}

// CompactOffset returns the index of the first element of pos's feature
// tuple.  Over retained positions it is strictly increasing with step NSlot.
func (l *Layout) CompactOffset(pos PosType) int {
	return (int(pos) - l.ExcludedBefore(pos)) * NSlot
}

// Fingerprint identifies the layout.  Vectors built under different layouts
// are not column-compatible.
func (l *Layout) Fingerprint() uint64 {
	return l.fingerprint
}

// Bands returns the layout's masked ranges.
func (l *Layout) Bands() []Band {
	bands := make([]Band, len(l.endpoints)/2)
	for i := range bands {
		bands[i] = Band{First: PosType(l.endpoints[2*i]), Last: PosType(l.endpoints[2*i+1] - 1)}
	}
	return bands
}

// IsMasked reports whether pos is masked under DefaultLayout.
func IsMasked(pos PosType) bool { return DefaultLayout.IsMasked(pos) }

// ExcludedBefore is DefaultLayout.ExcludedBefore.
func ExcludedBefore(pos PosType) int { return DefaultLayout.ExcludedBefore(pos) }

// CompactOffset is DefaultLayout.CompactOffset.
func CompactOffset(pos PosType) int { return DefaultLayout.CompactOffset(pos) }
