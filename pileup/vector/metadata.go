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
	"context"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// NoMetadata is the metadata path that disables labelling, as accepted by
// the command line.
const NoMetadata = "None"

// metadataRow is one row of the sample metadata CSV.  Other columns, such as
// the testing instrument, are ignored.
type metadataRow struct {
	ID string `tsv:"ID"`
	Ct string `tsv:"Ct Value"`
}

// Metadata maps genome IDs to Ct values.
type Metadata struct {
	cts map[string]float64
}

// ReadMetadata parses a comma-separated metadata table with a header row
// naming at least the "ID" and "Ct Value" columns.  Blank and NaN Ct values
// are kept as NaN.  When an ID appears more than once, the first row wins.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	tr := tsv.NewReader(r)
	tr.Comma = ','
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	m := &Metadata{cts: map[string]float64{}}
	for nRow := 1; ; nRow++ {
		var row metadataRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(err, errors.Invalid, "read metadata")
		}
		if _, ok := m.cts[row.ID]; ok {
			continue
		}
		ct := math.NaN()
		if s := strings.TrimSpace(row.Ct); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.E(err, errors.Invalid, "metadata row", strconv.Itoa(nRow), "ID", row.ID)
			}
			ct = v
		}
		m.cts[row.ID] = ct
	}
	return m, nil
}

// ReadMetadataPath opens path and calls ReadMetadata.
func ReadMetadataPath(ctx context.Context, path string) (m *Metadata, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open metadata", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return ReadMetadata(in.Reader(ctx))
}

// Len returns the number of distinct genome IDs.
func (m *Metadata) Len() int {
	return len(m.cts)
}

// Label returns the Ct value of genomeID.  ok is false when the genome is
// absent or its Ct value is NaN.  A nil *Metadata labels nothing.
func (m *Metadata) Label(genomeID string) (ct float64, ok bool) {
	if m == nil {
		return math.NaN(), false
	}
	ct, ok = m.cts[genomeID]
	if !ok || math.IsNaN(ct) {
		return math.NaN(), false
	}
	return ct, true
}
