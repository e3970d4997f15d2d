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
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/ctfeatures/pileup"
	"github.com/klauspost/compress/gzip"
)

// Opts controls ParseDir.
type Opts struct {
	// MetadataPath is the sample metadata CSV.  Empty or NoMetadata leaves
	// every vector unlabelled.
	MetadataPath string
	// Parallelism is the maximum number of pileups parsed at once;
	// 0 = runtime.NumCPU().
	Parallelism int
	// Layout is the masking policy; nil = pileup.DefaultLayout.
	Layout *pileup.Layout
}

// DefaultOpts are the default ParseDir options.
var DefaultOpts = Opts{
	MetadataPath: NoMetadata,
	Parallelism:  0,
}

// logEvery is the progress-report interval, in files.
const logEvery = 100

// IsPileupPath reports whether path names a pileup ParseDir should pick up:
// "*.pileup" or gzip-compressed "*.gz".
func IsPileupPath(path string) bool {
	return strings.HasSuffix(path, ".pileup") || strings.HasSuffix(path, ".gz")
}

// BuildPath builds the vector for one pileup file, which may be
// gzip-compressed.  The label is looked up in meta, which may be nil.
func BuildPath(ctx context.Context, path string, meta *Metadata, layout *pileup.Layout) (v *Vector, stats Stats, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, stats, errors.E(err, "open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, e := gzip.NewReader(r)
		if e != nil {
			return nil, stats, errors.E(e, "gunzip", path)
		}
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = e
			}
		}()
		r = gz
	}
	v = &Vector{GenomeID: GenomeID(path)}
	if v.Features, stats, err = Build(r, layout); err != nil {
		return nil, stats, errors.E(err, "read", path)
	}
	if ct, ok := meta.Label(v.GenomeID); ok {
		v.SetLabel(ct)
	} else {
		v.ClearLabel()
	}
	log.Debug.Printf("%s: %d lines, %d retained, %d masked, %d malformed, %d backward, %d features",
		path, stats.Lines, stats.Retained, stats.Masked, stats.Malformed, stats.Backward, len(v.Features))
	return v, stats, nil
}

// ParseFile builds the vector for one pileup and writes it to
// Path(listsDir, v.GenomeID).
func ParseFile(ctx context.Context, path, listsDir string, meta *Metadata, layout *pileup.Layout) (*Vector, error) {
	v, _, err := BuildPath(ctx, path, meta, layout)
	if err != nil {
		return nil, err
	}
	if err := WritePath(ctx, Path(listsDir, v.GenomeID), v, layout); err != nil {
		return nil, err
	}
	return v, nil
}

// Summary describes a ParseDir run.
type Summary struct {
	// Parsed is the number of vectors written.
	Parsed int
	// Labelled is the number of written vectors carrying a Ct value.
	Labelled int
	// Failed is the number of pileups that could not be parsed or written.
	Failed int
}

// ListPileups returns the pileup files directly under dir, sorted by path.
// Two files mapping to the same genome ID are an error, since their vectors
// would overwrite each other.
func ListPileups(ctx context.Context, dir string) ([]string, error) {
	var paths []string
	lister := file.List(ctx, dir, false)
	for lister.Scan() {
		if lister.IsDir() || !IsPileupPath(lister.Path()) {
			continue
		}
		paths = append(paths, lister.Path())
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, "list", dir)
	}
	sort.Strings(paths)
	seen := map[string]string{}
	for _, path := range paths {
		id := GenomeID(path)
		if prev, ok := seen[id]; ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s and %s both map to genome ID %q", prev, path, id))
		}
		seen[id] = path
	}
	return paths, nil
}

// ParseDir converts every pileup in pileupsDir to a vector file in listsDir.
// Files are independent and are processed in parallel.  A file that fails is
// logged and skipped; the error returned afterwards reports how many failed.
func ParseDir(ctx context.Context, pileupsDir, listsDir string, opts Opts) (Summary, error) {
	var summary Summary
	paths, err := ListPileups(ctx, pileupsDir)
	if err != nil {
		return summary, err
	}
	if len(paths) == 0 {
		return summary, errors.E(errors.NotExist, "no pileup files in", pileupsDir)
	}
	var meta *Metadata
	if opts.MetadataPath != "" && opts.MetadataPath != NoMetadata {
		if meta, err = ReadMetadataPath(ctx, opts.MetadataPath); err != nil {
			return summary, err
		}
		log.Printf("vector.ParseDir: %d genomes in metadata %s", meta.Len(), opts.MetadataPath)
	}
	layout := opts.Layout
	if layout == nil {
		layout = pileup.DefaultLayout
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(paths) {
		parallelism = len(paths)
	}

	log.Printf("vector.ParseDir: parsing %d pileups from %s (%d jobs)", len(paths), pileupsDir, parallelism)
	var nDone, nLabelled, nFailed int64
	_ = traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(paths)) / parallelism
		endIdx := ((jobIdx + 1) * len(paths)) / parallelism
		for _, path := range paths[startIdx:endIdx] {
			v, err := ParseFile(ctx, path, listsDir, meta, layout)
			if err != nil {
				log.Error.Printf("vector.ParseDir: %s: %v", path, err)
				atomic.AddInt64(&nFailed, 1)
				continue
			}
			if v.HasLabel {
				atomic.AddInt64(&nLabelled, 1)
			}
			if n := atomic.AddInt64(&nDone, 1); n%logEvery == 0 {
				log.Printf("vector.ParseDir: parsed %d files", n)
			}
		}
		return nil
	})
	summary = Summary{Parsed: int(nDone), Labelled: int(nLabelled), Failed: int(nFailed)}
	log.Printf("vector.ParseDir: wrote %d vectors (%d labelled) to %s", summary.Parsed, summary.Labelled, listsDir)
	if summary.Failed > 0 {
		return summary, errors.E(fmt.Sprintf("%d of %d pileups failed", summary.Failed, len(paths)))
	}
	return summary, nil
}
