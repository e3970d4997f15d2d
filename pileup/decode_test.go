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
package pileup_test

import (
	"testing"

	"github.com/grailbio/ctfeatures/pileup"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

func TestCountResults(t *testing.T) {
	tests := []struct {
		results string
		ref     byte
		want    pileup.Counts
	}{
		{"..,,", 'A', pileup.Counts{4, 0, 0, 0, 0, 0}},
		{"..,,", 'g', pileup.Counts{0, 0, 4, 0, 0, 0}},
		{"A+2XY", 'C', pileup.Counts{1, 0, 0, 0, 1, 0}},
		{"a-1t.", 'T', pileup.Counts{1, 0, 0, 1, 0, 1}},
		{"^].^~,$", 'C', pileup.Counts{0, 2, 0, 0, 0, 0}},
		{"*.*", 'G', pileup.Counts{0, 0, 1, 0, 0, 2}},
		{"NnRY<>$", 'A', pileup.Counts{}},
		{"", 'A', pileup.Counts{}},
		{".+", 'A', pileup.Counts{1, 0, 0, 0, 1, 0}},
		{".+2", 'A', pileup.Counts{1, 0, 0, 0, 1, 0}},
		{"+12ACGTACGTACGTc", 'A', pileup.Counts{3, 4, 3, 3, 1, 0}},
		{"+9223372036854775807A.", 'A', pileup.Counts{2, 0, 0, 0, 1, 0}},
		{"-99999999999999999999999", 'A', pileup.Counts{0, 0, 0, 0, 0, 1}},
		{"+9AC", 'A', pileup.Counts{0, 0, 0, 0, 1, 0}},
		{"-x.", 'A', pileup.Counts{1, 0, 0, 0, 0, 1}},
		{"..", 'N', pileup.Counts{}},
		{"gGcC", 'N', pileup.Counts{0, 2, 2, 0, 0, 0}},
	}
	for _, tt := range tests {
		got := pileup.CountResults([]byte(tt.results), tt.ref)
		assert.Equal(t, tt.want, got, "results=%q ref=%c", tt.results, tt.ref)
	}
}

func TestParseResults(t *testing.T) {
	f := pileup.ParseResults([]byte("..,,"), 'A')
	expect.EQ(t, f, pileup.Feature{1, 0, 0, 0, 0, 0})

	f = pileup.ParseResults([]byte("A+2XY"), 'C')
	expect.EQ(t, f, pileup.Feature{0.5, 0, 0, 0, 0.5, 0})

	f = pileup.ParseResults([]byte("..,,G*"), 'A')
	sum := 0.0
	for _, v := range f {
		assert.True(t, v >= 0 && v <= 1)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.InDelta(t, 4.0/6, f[pileup.SlotA], 1e-12)
}

func TestParseResultsNoCoverage(t *testing.T) {
	// No events is the zero tuple, never the absence sentinel.
	for _, s := range []string{"", "$$", "^~"} {
		f := pileup.ParseResults([]byte(s), 'A')
		expect.EQ(t, f, pileup.Feature{})
		for _, v := range f {
			expect.False(t, pileup.IsAbsent(v))
		}
	}
}

func TestBaseToSlot(t *testing.T) {
	for i, b := range []byte("ACGT") {
		slot, ok := pileup.BaseToSlot(b)
		expect.True(t, ok)
		expect.EQ(t, slot, i)
		slot, ok = pileup.BaseToSlot(b + 'a' - 'A')
		expect.True(t, ok)
		expect.EQ(t, slot, i)
	}
	for _, b := range []byte("NnUu*.,+-^$ ") {
		_, ok := pileup.BaseToSlot(b)
		assert.False(t, ok, "byte %q", b)
	}
}
