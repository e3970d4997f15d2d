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
// Package matrix assembles per-genome feature vectors into a rectangular
// training matrix with an aligned label column, and evens single rows to a
// trained model's width.
//
// Row i of Features and Labels[i] always describe the same genome.  Every
// operation that reorders or slices one does the same to the other.
package matrix

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/ctfeatures/pileup"
	"github.com/grailbio/ctfeatures/pileup/vector"
	"gonum.org/v1/gonum/mat"
)

// logEvery is the progress-report interval, in vectors.
const logEvery = 250

// Matrix is a feature matrix with its label sequence.
type Matrix struct {
	// Features has one row per genome.  Short vectors are right-padded with
	// pileup.Sentinel.
	Features *mat.Dense
	// Labels[i] is the Ct value of row i, NaN if the genome is unlabelled.
	Labels []float64
	// GenomeIDs[i] names row i.  It is nil when the IDs are unknown.
	GenomeIDs []string
}

// New wraps features and labels, checking that they line up.
func New(features *mat.Dense, labels []float64, genomeIDs []string) (*Matrix, error) {
	if features == nil {
		return nil, errors.E(errors.Invalid, "matrix.New: nil features")
	}
	nRow, _ := features.Dims()
	if nRow != len(labels) {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("matrix.New: %d rows but %d labels", nRow, len(labels)))
	}
	if genomeIDs != nil && len(genomeIDs) != nRow {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("matrix.New: %d rows but %d genome IDs", nRow, len(genomeIDs)))
	}
	return &Matrix{Features: features, Labels: labels, GenomeIDs: genomeIDs}, nil
}

// Dims returns the number of rows and feature columns.
func (m *Matrix) Dims() (rows, cols int) {
	return m.Features.Dims()
}

// Row returns a copy of row i's features.
func (m *Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.Features)
}

// NumLabelled returns the number of rows with a label.
func (m *Matrix) NumLabelled() int {
	n := 0
	for _, ct := range m.Labels {
		if !math.IsNaN(ct) {
			n++
		}
	}
	return n
}

// Subset returns the matrix restricted to the given rows, in the given order.
// Features, labels and genome IDs are selected together.
func (m *Matrix) Subset(rows []int) (*Matrix, error) {
	nRow, nCol := m.Dims()
	if len(rows) == 0 {
		return nil, errors.E(errors.Invalid, "matrix.Subset: no rows selected")
	}
	sub := &Matrix{
		Features: mat.NewDense(len(rows), nCol, nil),
		Labels:   make([]float64, len(rows)),
	}
	if m.GenomeIDs != nil {
		sub.GenomeIDs = make([]string, len(rows))
	}
	for i, r := range rows {
		if r < 0 || r >= nRow {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("matrix.Subset: row %d out of range [0, %d)", r, nRow))
		}
		sub.Features.SetRow(i, m.Features.RawRowView(r))
		sub.Labels[i] = m.Labels[r]
		if sub.GenomeIDs != nil {
			sub.GenomeIDs[i] = m.GenomeIDs[r]
		}
	}
	return sub, nil
}

// Pad appends pileup.Sentinel to features until it has n entries.  It never
// shortens its input.
func Pad(features []float64, n int) []float64 {
	for len(features) < n {
		features = append(features, pileup.Sentinel)
	}
	return features
}

// Conform returns a copy of row evened to exactly numFeatures columns:
// sentinel-padded if it is shorter, with trailing columns dropped if it is
// longer.  This is how a new sample is fitted to an already-trained model.
func Conform(row []float64, numFeatures int) []float64 {
	if len(row) >= numFeatures {
		return append([]float64(nil), row[:numFeatures]...)
	}
	out := make([]float64, len(row), numFeatures)
	copy(out, row)
	return Pad(out, numFeatures)
}

// Assemble stacks vectors into a matrix, in the given order.  The width is
// the longest vector's length; shorter rows are padded, never truncated.
func Assemble(vectors []*vector.Vector) (*Matrix, error) {
	if len(vectors) == 0 {
		return nil, errors.E(errors.NotExist, "matrix.Assemble: no vectors")
	}
	maxLen := 0
	for _, v := range vectors {
		if len(v.Features) > maxLen {
			maxLen = len(v.Features)
		}
	}
	if maxLen == 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("matrix.Assemble: none of %d vectors has any features", len(vectors)))
	}
	data := make([]float64, 0, len(vectors)*maxLen)
	labels := make([]float64, len(vectors))
	ids := make([]string, len(vectors))
	for i, v := range vectors {
		data = Pad(append(data, v.Features...), (i+1)*maxLen)
		labels[i] = math.NaN()
		if v.HasLabel {
			labels[i] = v.Label
		}
		ids[i] = v.GenomeID
	}
	return New(mat.NewDense(len(vectors), maxLen, data), labels, ids)
}

// ListVectors returns the vector files directly under dir, sorted by path.
func ListVectors(ctx context.Context, dir string) ([]string, error) {
	var paths []string
	lister := file.List(ctx, dir, false)
	for lister.Scan() {
		if !lister.IsDir() && strings.HasSuffix(lister.Path(), vector.FileSuffix) {
			paths = append(paths, lister.Path())
		}
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, "list", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// AssembleDir loads every vector in listsDir, in path order, and assembles
// them.  Any unreadable vector, or one built under a different layout,
// aborts assembly.
func AssembleDir(ctx context.Context, listsDir string, layout *pileup.Layout) (*Matrix, error) {
	paths, err := ListVectors(ctx, listsDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.E(errors.NotExist, "no vectors in", listsDir)
	}
	vectors := make([]*vector.Vector, len(paths))
	for i, path := range paths {
		if vectors[i], err = vector.ReadPath(ctx, path, layout); err != nil {
			return nil, err
		}
		if (i+1)%logEvery == 0 {
			log.Printf("matrix.AssembleDir: read %d vectors", i+1)
		}
	}
	m, err := Assemble(vectors)
	if err != nil {
		return nil, err
	}
	nRow, nCol := m.Dims()
	log.Printf("matrix.AssembleDir: %d x %d matrix, %d labelled rows", nRow, nCol, m.NumLabelled())
	return m, nil
}
