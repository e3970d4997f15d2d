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
package vector

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"strconv"

	"github.com/grailbio/base/log"
	"github.com/grailbio/ctfeatures/pileup"
)

// Vector is the feature vector of one genome.  The label is kept apart from
// the features; Features holds only coverage tuples and sentinels.
type Vector struct {
	// GenomeID identifies the genome, usually derived from the pileup file
	// name.
	GenomeID string
	// Label is the Ct value, or NaN when HasLabel is false.
	Label    float64
	HasLabel bool
	// Features is the concatenation of the feature tuples of every retained
	// position, in compacted coordinates.  Offsets with no pileup line hold
	// pileup.Sentinel.
	Features []float64
}

// SetLabel attaches a Ct value.  NaN clears the label.
func (v *Vector) SetLabel(ct float64) {
	if math.IsNaN(ct) {
		v.ClearLabel()
		return
	}
	v.Label, v.HasLabel = ct, true
}

// ClearLabel marks the vector as unlabelled.
func (v *Vector) ClearLabel() {
	v.Label, v.HasLabel = math.NaN(), false
}

// Stats summarizes what Build did with the lines of a pileup.
type Stats struct {
	// Lines is the number of lines read.
	Lines int
	// Malformed counts lines with fewer than 5 fields or an unparsable
	// position.
	Malformed int
	// Masked counts lines at masked positions.
	Masked int
	// Retained counts lines that contributed a feature tuple.
	Retained int
	// Backward counts retained lines whose position did not advance past the
	// end of the vector, e.g. a repeated position.  Their tuples are still
	// appended.
	Backward int
}

// minFields is the number of leading mpileup columns Build needs: sequence
// name, position, reference base, depth and read results.
const minFields = 5

// splitFields splits the first n tab-separated fields of line into fields,
// returning the number found.  The last field stops at the next tab, so
// columns past n are ignored.
func splitFields(line []byte, fields [][]byte) int {
	n := 0
	for n < len(fields) {
		tab := bytes.IndexByte(line, '\t')
		if tab < 0 {
			fields[n] = line
			return n + 1
		}
		fields[n] = line[:tab]
		line = line[tab+1:]
		n++
	}
	return n
}

// maxLineSize bounds the length of one pileup line.  Very deep positions
// have read-result columns many megabytes long.
const maxLineSize = 300 << 20

// Build reads an mpileup stream and returns its compacted feature vector
// under layout.  Lines that are too short or have a bad position are skipped,
// as are masked positions.  Only I/O errors are returned.
func Build(r io.Reader, layout *pileup.Layout) (features []float64, stats Stats, err error) {
	if layout == nil {
		layout = pileup.DefaultLayout
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineSize)
	var fields [minFields][]byte
	features = []float64{}
	for scanner.Scan() {
		stats.Lines++
		line := scanner.Bytes()
		if splitFields(line, fields[:]) < minFields {
			stats.Malformed++
			continue
		}
		features = addLine(features, fields[:], layout, &stats)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, err
	}
	return features, stats, nil
}

// addLine appends the tuple for one well-formed line, if its position is
// retained.
func addLine(features []float64, fields [][]byte, layout *pileup.Layout, stats *Stats) []float64 {
	pos64, err := strconv.ParseInt(string(fields[1]), 10, 32)
	if err != nil {
		log.Debug.Printf("vector.Build: skipping line with position %q: %v", fields[1], err)
		stats.Malformed++
		return features
	}
	pos := pileup.PosType(pos64)
	if layout.IsMasked(pos) {
		stats.Masked++
		return features
	}
	var ref byte
	if len(fields[2]) > 0 {
		ref = fields[2][0]
	}
	tuple := pileup.ParseResults(fields[4], ref)

	target := layout.CompactOffset(pos)
	if target > len(features) {
		for i := len(features); i < target; i++ {
			features = append(features, pileup.Sentinel)
		}
	} else if target < len(features) {
		stats.Backward++
	}
	stats.Retained++
	return append(features, tuple[:]...)
}
