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

/*
bio-ctfeatures turns samtools mpileup reports of viral genomes into feature
vectors for Ct-value regression.

Subcommands, in pipeline order:

  parse    convert every *.pileup / *.gz in a directory into one vector file
           (<genome>.rio) per genome, labelled from a metadata CSV
  matrix   stack all vector files into pileup_matrix.npy plus the aligned
           label column pileup_cts.npy
  conform  parse one new pileup and even its row to a trained model's
           feature count, for prediction

Sample usage:
bio-ctfeatures parse -pileups-dir pileups -lists-dir pileup_lists -metadata meta.csv
bio-ctfeatures matrix -lists-dir pileup_lists -out-dir output
bio-ctfeatures conform -num-features 177882 -out row.npy new.pileup.gz
*/
package main
