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
package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/ctfeatures/matrix"
	"github.com/grailbio/ctfeatures/pileup"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"v.io/x/lib/cmdline"
)

func runCmd(t *testing.T, args ...string) string {
	var stdout, stderr bytes.Buffer
	env := &cmdline.Env{Stdout: &stdout, Stderr: &stderr, Vars: map[string]string{}}
	require.NoError(t, cmdline.ParseAndRun(newCmdRoot(), env, args), "%v: %s", args, stderr.String())
	return stdout.String()
}

// writePileup writes a pileup covering positions [101, last].
func writePileup(t *testing.T, path string, last int) {
	var b strings.Builder
	for pos := 101; pos <= last; pos++ {
		fmt.Fprintf(&b, "MN908947.3\t%d\tA\t3\t.,G\tIII\n", pos)
	}
	require.NoError(t, ioutil.WriteFile(path, []byte(b.String()), 0644))
}

func TestPipeline(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	pileupsDir := filepath.Join(tmpdir, "pileups")
	require.NoError(t, os.MkdirAll(pileupsDir, 0755))
	writePileup(t, filepath.Join(pileupsDir, "g1.pileup"), 108)
	writePileup(t, filepath.Join(pileupsDir, "g2.pileup"), 113)
	writePileup(t, filepath.Join(pileupsDir, "g3.pileup"), 113)
	metaPath := filepath.Join(tmpdir, "meta.csv")
	require.NoError(t, ioutil.WriteFile(metaPath, []byte("ID,Instrument,Ct Value\ng1,a,19\ng2,a,27.5\ng3,b,\n"), 0644))

	listsDir := filepath.Join(tmpdir, "lists")
	outDir := filepath.Join(tmpdir, "out")
	runCmd(t, "parse", "-pileups-dir", pileupsDir, "-lists-dir", listsDir, "-metadata", metaPath)
	runCmd(t, "matrix", "-lists-dir", listsDir, "-out-dir", outDir)

	m, err := matrix.Read(vcontext.Background(),
		filepath.Join(outDir, matrix.DefaultMatrixName), filepath.Join(outDir, matrix.DefaultLabelsName))
	require.NoError(t, err)
	nRow, nCol := m.Dims()
	expect.EQ(t, nRow, 3)
	expect.EQ(t, nCol, 84)
	expect.EQ(t, m.Labels[:2], []float64{19, 27.5})

	row0 := m.Row(0)
	for i, v := range row0 {
		switch {
		case i < 6 || i >= 54:
			require.True(t, pileup.IsAbsent(v), "column %d", i)
		default:
			require.False(t, pileup.IsAbsent(v), "column %d", i)
		}
	}
	expect.EQ(t, row0[6:12], []float64{2.0 / 3, 0, 1.0 / 3, 0, 0, 0})
	expect.EQ(t, m.Row(1)[6:], m.Row(2)[6:])

	rowPath := filepath.Join(tmpdir, "row.npy")
	runCmd(t, "conform", "-num-features", "60", "-out", rowPath, filepath.Join(pileupsDir, "g2.pileup"))
	f, err := os.Open(rowPath)
	require.NoError(t, err)
	defer f.Close() // nolint: errcheck
	var row mat.Dense
	require.NoError(t, npyio.Read(f, &row))
	r, c := row.Dims()
	expect.EQ(t, r, 1)
	expect.EQ(t, c, 60)
	expect.EQ(t, row.RawRowView(0), m.Row(1)[:60])
}
