// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nlpmodel

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector or index slice does not have the length
	// required by the model dimensions.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidBounds is returned when a lower bound exceeds its upper bound or a bound is NaN.
	ErrInvalidBounds = errors.New("invalid bounds")
	// ErrInvalidStructure is returned when a sparsity structure refers to entries outside of
	// the matrix or when a required callable is missing.
	ErrInvalidStructure = errors.New("invalid structure")
	// ErrUnsupportedModel is returned when a constructor is handed a model representation it
	// was not written for.
	ErrUnsupportedModel = errors.New("unsupported model representation")
	// ErrUnknownOp is returned by ParseOp for names that do not match any operation.
	ErrUnknownOp = errors.New("unknown operation")
)

// CheckLen returns an error wrapping ErrDimensionMismatch if `len(v) != want`.
func CheckLen(name string, v []float64, want int) error {
	if len(v) != want {
		return fmt.Errorf("%s has length %d, want %d: %w", name, len(v), want, ErrDimensionMismatch)
	}
	return nil
}

// CheckIndexLen is the []int counterpart of CheckLen.
func CheckIndexLen(name string, v []int, want int) error {
	if len(v) != want {
		return fmt.Errorf("%s has length %d, want %d: %w", name, len(v), want, ErrDimensionMismatch)
	}
	return nil
}

// CheckMultipliers validates an optional multiplier vector. A nil `y` stands for zero
// multipliers and is accepted for any number of constraints.
func CheckMultipliers(y []float64, ncon int) error {
	if y == nil {
		return nil
	}
	return CheckLen("y", y, ncon)
}

// Multipliers returns `y`, or a zero vector of length `ncon` when `y` is nil.
func Multipliers(y []float64, ncon int) []float64 {
	if y == nil {
		return make([]float64, ncon)
	}
	return y
}
