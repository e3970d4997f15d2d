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
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/ctfeatures/matrix"
	"github.com/grailbio/ctfeatures/pileup/vector"
	"github.com/grailbio/ctfeatures/predict"
	"v.io/x/lib/cmdline"
)

func newCmdParse() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "parse",
		Short: "Convert a directory of pileups into per-genome feature vectors",
	}
	opts := vector.DefaultOpts
	pileupsDir := cmd.Flags.String("pileups-dir", ".", "Directory containing the *.pileup or *.gz pileup files")
	listsDir := cmd.Flags.String("lists-dir", "pileup_lists", "Output directory for the per-genome vector files")
	cmd.Flags.StringVar(&opts.MetadataPath, "metadata", opts.MetadataPath,
		`Metadata CSV with "ID" and "Ct Value" columns; "None" writes unlabelled vectors`)
	cmd.Flags.IntVar(&opts.Parallelism, "parallelism", opts.Parallelism, "Maximum number of pileups parsed at once; 0 = runtime.NumCPU()")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("parse takes no arguments, but got %v", argv)
		}
		if err := mkdirAll(*listsDir); err != nil {
			return err
		}
		summary, err := vector.ParseDir(vcontext.Background(), *pileupsDir, *listsDir, opts)
		log.Printf("parse: %d vectors written to %s, %d labelled, %d failed",
			summary.Parsed, *listsDir, summary.Labelled, summary.Failed)
		return err
	})
	return cmd
}

func newCmdMatrix() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "matrix",
		Short: "Assemble per-genome vectors into a feature matrix and label column",
	}
	listsDir := cmd.Flags.String("lists-dir", "pileup_lists", "Directory of vector files written by 'parse'")
	outDir := cmd.Flags.String("out-dir", "output", "Output directory")
	matName := cmd.Flags.String("mat-name", matrix.DefaultMatrixName, "File name of the feature matrix, relative to -out-dir")
	ctName := cmd.Flags.String("ct-name", matrix.DefaultLabelsName, "File name of the Ct label column, relative to -out-dir")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("matrix takes no arguments, but got %v", argv)
		}
		ctx := vcontext.Background()
		if err := mkdirAll(*outDir); err != nil {
			return err
		}
		m, err := matrix.AssembleDir(ctx, *listsDir, nil)
		if err != nil {
			return err
		}
		matPath := file.Join(*outDir, *matName)
		ctPath := file.Join(*outDir, *ctName)
		if err := matrix.Write(ctx, m, matPath, ctPath); err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%s\n%s\n", matPath, ctPath)
		return nil
	})
	return cmd
}

func newCmdConform() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "conform",
		Short:    "Parse one pileup and even its row to a trained model's width",
		ArgsName: "pileup",
	}
	numFeatures := cmd.Flags.Int("num-features", 0, "Number of features the model was trained on (required)")
	out := cmd.Flags.String("out", "this_row.npy", "Output path of the 1 x num-features row")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return env.UsageErrorf("conform takes one pileup path, but got %v", argv)
		}
		ctx := vcontext.Background()
		row, err := predict.Row(ctx, argv[0], *numFeatures, nil)
		if err != nil {
			return err
		}
		if err := matrix.WriteRow(ctx, *out, row); err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%s\n", *out)
		return nil
	})
	return cmd
}
