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
package matrix

import (
	"context"
	"math"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Default output names, relative to the output directory.
const (
	DefaultMatrixName = "pileup_matrix.npy"
	DefaultLabelsName = "pileup_cts.npy"
)

// ManifestPath returns the path of the row manifest written next to the
// matrix at matPath.
func ManifestPath(matPath string) string {
	return matPath + ".rows.tsv"
}

func writeNpy(ctx context.Context, path string, val interface{}) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	return errors.Wrapf(npyio.Write(out.Writer(ctx), val), "write %s", path)
}

func readNpy(ctx context.Context, path string, ptr interface{}) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return errors.Wrapf(npyio.Read(in.Reader(ctx), ptr), "read %s", path)
}

// WriteRow writes a single feature row as a 1 x len(row) .npy matrix.
func WriteRow(ctx context.Context, path string, row []float64) error {
	return writeNpy(ctx, path, mat.NewDense(1, len(row), row))
}

// Write stores the matrix and its labels as two NumPy files, float64 2-D and
// float64 1-D (NaN for unlabelled rows).  If the genome IDs are known, a
// row manifest is written to ManifestPath(matPath).
func Write(ctx context.Context, m *Matrix, matPath, labelPath string) error {
	if err := writeNpy(ctx, matPath, m.Features); err != nil {
		return err
	}
	if err := writeNpy(ctx, labelPath, m.Labels); err != nil {
		return err
	}
	if m.GenomeIDs == nil {
		return nil
	}
	return writeManifest(ctx, ManifestPath(matPath), m)
}

func writeManifest(ctx context.Context, path string, m *Matrix) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("row\tgenome_id\tct")
	if err = w.EndLine(); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	for i, id := range m.GenomeIDs {
		w.WriteUint32(uint32(i))
		w.WriteString(id)
		if math.IsNaN(m.Labels[i]) {
			w.WriteString("NaN")
		} else {
			w.WriteString(strconv.FormatFloat(m.Labels[i], 'g', -1, 64))
		}
		if err = w.EndLine(); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	return errors.Wrapf(w.Flush(), "write %s", path)
}

// Read loads a matrix and labels written by Write.  It fails if the row and
// label counts differ.  GenomeIDs is left nil.
func Read(ctx context.Context, matPath, labelPath string) (*Matrix, error) {
	var features mat.Dense
	if err := readNpy(ctx, matPath, &features); err != nil {
		return nil, err
	}
	var labels []float64
	if err := readNpy(ctx, labelPath, &labels); err != nil {
		return nil, err
	}
	return New(&features, labels, nil)
}
