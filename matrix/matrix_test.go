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
package matrix_test

import (
	"io/ioutil"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/ctfeatures/matrix"
	"github.com/grailbio/ctfeatures/pileup"
	"github.com/grailbio/ctfeatures/pileup/vector"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newVector(id string, n int, ct float64) *vector.Vector {
	v := &vector.Vector{GenomeID: id, Features: make([]float64, n)}
	for i := range v.Features {
		v.Features[i] = float64(i%7) / 7
	}
	v.SetLabel(ct)
	return v
}

func countTrailingSentinels(row []float64) int {
	n := 0
	for i := len(row) - 1; i >= 0 && pileup.IsAbsent(row[i]); i-- {
		n++
	}
	return n
}

func TestAssemble(t *testing.T) {
	vectors := []*vector.Vector{
		newVector("short", 50, 21),
		newVector("long1", 80, math.NaN()),
		newVector("long2", 80, 33.5),
	}
	m, err := matrix.Assemble(vectors)
	require.NoError(t, err)
	nRow, nCol := m.Dims()
	expect.EQ(t, nRow, 3)
	expect.EQ(t, nCol, 80)
	expect.EQ(t, len(m.Labels), nRow)
	expect.EQ(t, m.GenomeIDs, []string{"short", "long1", "long2"})

	expect.EQ(t, countTrailingSentinels(m.Row(0)), 30)
	expect.EQ(t, m.Row(0)[:50], vectors[0].Features)
	expect.EQ(t, countTrailingSentinels(m.Row(1)), 0)
	expect.EQ(t, countTrailingSentinels(m.Row(2)), 0)
	expect.EQ(t, m.Row(2), vectors[2].Features)

	expect.EQ(t, m.Labels[0], 21.0)
	expect.True(t, math.IsNaN(m.Labels[1]))
	expect.EQ(t, m.Labels[2], 33.5)
	expect.EQ(t, m.NumLabelled(), 2)

	// Inputs are not modified.
	expect.EQ(t, len(vectors[0].Features), 50)
}

func TestAssembleErrors(t *testing.T) {
	_, err := matrix.Assemble(nil)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.NotExist, err))

	_, err = matrix.Assemble([]*vector.Vector{newVector("a", 0, 1), newVector("b", 0, 2)})
	require.Error(t, err)
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestNewMisaligned(t *testing.T) {
	features := mat.NewDense(2, 3, nil)
	_, err := matrix.New(features, []float64{1}, nil)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.Integrity, err))

	_, err = matrix.New(features, []float64{1, 2}, []string{"a"})
	require.Error(t, err)
	expect.True(t, errors.Is(errors.Integrity, err))

	_, err = matrix.New(features, []float64{1, 2}, nil)
	require.NoError(t, err)
}

func TestConform(t *testing.T) {
	row := []float64{0.5, 0.5, 0, 0, 0, 0}
	expect.EQ(t, matrix.Conform(row, 6), row)
	expect.EQ(t, matrix.Conform(row, 4), []float64{0.5, 0.5, 0, 0})
	expect.EQ(t, matrix.Conform(row, 8), []float64{0.5, 0.5, 0, 0, 0, 0, -1, -1})

	out := matrix.Conform(row, 6)
	out[0] = 7
	expect.EQ(t, row[0], 0.5)
}

func TestPadNeverTruncates(t *testing.T) {
	expect.EQ(t, matrix.Pad([]float64{1, 2, 3}, 2), []float64{1, 2, 3})
	expect.EQ(t, matrix.Pad([]float64{1}, 3), []float64{1, -1, -1})
}

func TestSubset(t *testing.T) {
	m, err := matrix.Assemble([]*vector.Vector{
		newVector("a", 6, 10),
		newVector("b", 12, 20),
		newVector("c", 3, 30),
	})
	require.NoError(t, err)
	sub, err := m.Subset([]int{2, 0})
	require.NoError(t, err)
	nRow, nCol := sub.Dims()
	expect.EQ(t, nRow, 2)
	expect.EQ(t, nCol, 12)
	expect.EQ(t, sub.GenomeIDs, []string{"c", "a"})
	expect.EQ(t, sub.Labels, []float64{30, 10})
	expect.EQ(t, sub.Row(0), m.Row(2))
	expect.EQ(t, sub.Row(1), m.Row(0))

	_, err = m.Subset([]int{3})
	assert.Error(t, err)
	_, err = m.Subset(nil)
	assert.Error(t, err)
}

func TestWriteRead(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	m, err := matrix.Assemble([]*vector.Vector{
		newVector("a", 6, 10),
		newVector("b", 12, math.NaN()),
	})
	require.NoError(t, err)
	matPath := filepath.Join(tmpdir, matrix.DefaultMatrixName)
	labelPath := filepath.Join(tmpdir, matrix.DefaultLabelsName)
	require.NoError(t, matrix.Write(ctx, m, matPath, labelPath))

	got, err := matrix.Read(ctx, matPath, labelPath)
	require.NoError(t, err)
	expect.True(t, mat.Equal(got.Features, m.Features))
	expect.EQ(t, got.Labels[0], 10.0)
	expect.True(t, math.IsNaN(got.Labels[1]))

	manifest, err := ioutil.ReadFile(matrix.ManifestPath(matPath))
	require.NoError(t, err)
	expect.EQ(t, strings.Split(strings.TrimSpace(string(manifest)), "\n"),
		[]string{"row\tgenome_id\tct", "0\ta\t10", "1\tb\tNaN"})

	// A label file from another run must not pair with this matrix.
	otherLabels := filepath.Join(tmpdir, "other_cts.npy")
	other, err := matrix.Assemble([]*vector.Vector{newVector("z", 6, 1)})
	require.NoError(t, err)
	require.NoError(t, matrix.Write(ctx, other, filepath.Join(tmpdir, "other.npy"), otherLabels))
	_, err = matrix.Read(ctx, matPath, otherLabels)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.Integrity, err))
}

func TestAssembleDir(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	for _, v := range []*vector.Vector{
		newVector("g2", 80, 25),
		newVector("g1", 50, 18),
		newVector("g3", 80, math.NaN()),
	} {
		require.NoError(t, vector.WritePath(ctx, vector.Path(tmpdir, v.GenomeID), v, nil))
	}
	require.NoError(t, ioutil.WriteFile(filepath.Join(tmpdir, "README"), []byte("ignored"), 0644))

	m, err := matrix.AssembleDir(ctx, tmpdir, nil)
	require.NoError(t, err)
	nRow, nCol := m.Dims()
	expect.EQ(t, nRow, 3)
	expect.EQ(t, nCol, 80)
	expect.EQ(t, m.GenomeIDs, []string{"g1", "g2", "g3"})
	expect.EQ(t, m.Labels[:2], []float64{18, 25})
	expect.EQ(t, countTrailingSentinels(m.Row(0)), 30)

	other := pileup.MustNewLayout([]pileup.Band{{First: pileup.PosTypeMin, Last: 100}})
	_, err = matrix.AssembleDir(ctx, tmpdir, other)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.Integrity, err))
}
