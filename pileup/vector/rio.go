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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/ctfeatures/pileup"
)

// FileSuffix is the suffix of persisted vector files.
const FileSuffix = ".rio"

// Header keys of a vector file.  All values are strings.
const (
	genomeIDHeader = "GenomeID"
	labelHeader    = "Label"
	layoutHeader   = "LayoutFingerprint"
	lenHeader      = "NumFeatures"
	checksumHeader = "FeatureChecksum"
)

// valuesPerRecord bounds the size of a single recordio record.
const valuesPerRecord = 1 << 14

func init() {
	recordiozstd.Init()
}

// Path returns the vector file path for genomeID in dir.
func Path(dir, genomeID string) string {
	return file.Join(dir, genomeID+FileSuffix)
}

// GenomeID derives a genome ID from a pileup path: the base name with any
// ".gz" and then any ".pileup" suffix removed.
func GenomeID(path string) string {
	id := filepath.Base(path)
	id = strings.TrimSuffix(id, ".gz")
	return strings.TrimSuffix(id, ".pileup")
}

func checksum(features []float64) uint64 {
	buf, _ := marshalFloats(nil, features)
	return seahash.Sum64(buf)
}

func formatLabel(v *Vector) string {
	if !v.HasLabel {
		return ""
	}
	return strconv.FormatFloat(v.Label, 'g', -1, 64)
}

func marshalFloats(scratch []byte, p interface{}) ([]byte, error) {
	vals := p.([]float64)
	n := 8 * len(vals)
	if cap(scratch) < n {
		scratch = make([]byte, n)
	}
	scratch = scratch[:n]
	for i, v := range vals {
		binary.LittleEndian.PutUint64(scratch[8*i:], math.Float64bits(v))
	}
	return scratch, nil
}

// Write serializes v to out.  The output depends only on v and layout, so
// rewriting an unchanged vector reproduces the same bytes.
func Write(out io.Writer, v *Vector, layout *pileup.Layout) error {
	if layout == nil {
		layout = pileup.DefaultLayout
	}
	w := recordio.NewWriter(out, recordio.WriterOpts{
		Marshal:      marshalFloats,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(genomeIDHeader, v.GenomeID)
	w.AddHeader(labelHeader, formatLabel(v))
	w.AddHeader(layoutHeader, strconv.FormatUint(layout.Fingerprint(), 16))
	w.AddHeader(lenHeader, strconv.Itoa(len(v.Features)))
	w.AddHeader(checksumHeader, strconv.FormatUint(checksum(v.Features), 16))
	for start := 0; start < len(v.Features); start += valuesPerRecord {
		end := start + valuesPerRecord
		if end > len(v.Features) {
			end = len(v.Features)
		}
		w.Append(v.Features[start:end])
	}
	return w.Finish()
}

// WritePath writes v to path, replacing any existing file.
func WritePath(ctx context.Context, path string, v *Vector, layout *pileup.Layout) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	e := errors.Once{}
	e.Set(Write(out.Writer(ctx), v, layout))
	e.Set(out.Close(ctx))
	if err := e.Err(); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

// Read parses a vector written by Write.  It fails with errors.Integrity if
// the vector was built under a layout other than layout, or if its contents
// don't match the recorded length and checksum.
func Read(in io.ReadSeeker, layout *pileup.Layout) (*Vector, error) {
	if layout == nil {
		layout = pileup.DefaultLayout
	}
	scanner := recordio.NewScanner(in, recordio.ScannerOpts{})
	defer scanner.Finish() // nolint: errcheck

	v := &Vector{}
	v.ClearLabel()
	hdr := map[string]string{}
	for _, kv := range scanner.Header() {
		// recordio adds keys of its own; only string values are ours.
		if s, ok := kv.Value.(string); ok {
			hdr[kv.Key] = s
		}
	}
	v.GenomeID = hdr[genomeIDHeader]
	if s := hdr[labelHeader]; s != "" {
		ct, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.E(err, errors.Invalid, "vector label")
		}
		v.SetLabel(ct)
	}
	if got, want := hdr[layoutHeader], strconv.FormatUint(layout.Fingerprint(), 16); got != want {
		return nil, errors.E(errors.Integrity,
			fmt.Sprintf("vector %q: mask layout fingerprint %q, expected %q", v.GenomeID, got, want))
	}
	n, err := strconv.Atoi(hdr[lenHeader])
	if err != nil {
		return nil, errors.E(err, errors.Invalid, "vector length")
	}
	if n < 0 {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("vector %q: negative length %d", v.GenomeID, n))
	}
	initCap := n
	if initCap > valuesPerRecord {
		initCap = valuesPerRecord
	}
	v.Features = make([]float64, 0, initCap)
	for scanner.Scan() {
		buf := scanner.Get().([]byte)
		if len(buf)%8 != 0 {
			return nil, errors.E(errors.Integrity, fmt.Sprintf("vector %q: record of %d bytes", v.GenomeID, len(buf)))
		}
		if len(v.Features)+len(buf)/8 > n {
			return nil, errors.E(errors.Integrity, fmt.Sprintf("vector %q: more features than the %d in the header", v.GenomeID, n))
		}
		for i := 0; i < len(buf); i += 8 {
			v.Features = append(v.Features, math.Float64frombits(binary.LittleEndian.Uint64(buf[i:])))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(v.Features) != n {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("vector %q: %d features, header says %d", v.GenomeID, len(v.Features), n))
	}
	if got, want := strconv.FormatUint(checksum(v.Features), 16), hdr[checksumHeader]; got != want {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("vector %q: checksum %s, header says %s", v.GenomeID, got, want))
	}
	return v, nil
}

// ReadPath opens path and calls Read.
func ReadPath(ctx context.Context, path string, layout *pileup.Layout) (v *Vector, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return Read(in.Reader(ctx), layout)
}
