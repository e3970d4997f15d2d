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
// Package predict fits one new pileup to a trained model's feature layout
// and queries the model.  Training happens elsewhere; the model is reached
// through the Regressor interface.
package predict

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/ctfeatures/matrix"
	"github.com/grailbio/ctfeatures/pileup"
	"github.com/grailbio/ctfeatures/pileup/vector"
)

// Regressor is a trained Ct model.
type Regressor interface {
	// NumFeatures is the number of columns the model was trained on.
	NumFeatures() int
	// Predict returns the Ct estimate for one row of NumFeatures() columns.
	Predict(row []float64) (float64, error)
}

// Row parses the pileup at path and returns its feature row evened to
// numFeatures columns.  It goes through the same builder and assembler as
// training, so the columns line up with the training matrix.
func Row(ctx context.Context, path string, numFeatures int, layout *pileup.Layout) ([]float64, error) {
	if numFeatures <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("predict.Row: numFeatures must be positive, got %d", numFeatures))
	}
	v, stats, err := vector.BuildPath(ctx, path, nil, layout)
	if err != nil {
		return nil, err
	}
	if stats.Retained == 0 {
		log.Printf("predict.Row: %s has no retained positions; row is all sentinels", path)
		return matrix.Conform(nil, numFeatures), nil
	}
	m, err := matrix.Assemble([]*vector.Vector{v})
	if err != nil {
		return nil, err
	}
	if _, nCol := m.Dims(); nCol != numFeatures {
		log.Debug.Printf("predict.Row: evening %s from %d to %d columns", path, nCol, numFeatures)
	}
	return matrix.Conform(m.Row(0), numFeatures), nil
}

// Sample predicts the Ct value of the pileup at path.
func Sample(ctx context.Context, path string, model Regressor, layout *pileup.Layout) (float64, error) {
	row, err := Row(ctx, path, model.NumFeatures(), layout)
	if err != nil {
		return 0, err
	}
	ct, err := model.Predict(row)
	if err != nil {
		return 0, errors.E(err, "predict", path)
	}
	return ct, nil
}
