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
	"flag"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"v.io/x/lib/cmdline"
)

// mkdirAll creates a local output directory.  Remote paths need no
// directories.
func mkdirAll(dir string) error {
	if strings.Contains(dir, "://") {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-ctfeatures",
		Short:    "Pileup coverage features for Ct-value regression",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdParse(),
			newCmdMatrix(),
			newCmdConform(),
		},
	}
}

func main() {
	shutdown := grail.Init()
	cmdline.HideGlobalFlagsExcept()
	env := cmdline.EnvFromOS()
	err := cmdline.ParseAndRun(newCmdRoot(), env, flag.Args())
	shutdown()
	os.Exit(cmdline.ExitCode(err, env.Stderr))
}
