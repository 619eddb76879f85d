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
	"fmt"
	"math"
	"slices"
)

// MetaParams holds the caller supplied description of a problem. Nil vectors take their
// default values in NewMeta: zeros for X0 and Y0, -Inf for lower and +Inf for upper bounds.
type MetaParams struct {
	Name string

	NVar int
	X0   []float64
	LVar []float64
	UVar []float64

	NCon int
	Y0   []float64
	LCon []float64
	UCon []float64
	// Lin lists the linear constraints. Every other constraint is nonlinear.
	Lin []int

	// Number of entries in the Jacobian and in the lower triangle of the Hessian structures.
	NNZJ int
	NNZH int
}

// Meta describes the dimensions, bounds and sparsity of a model. A Meta is immutable: models
// share it by pointer and derived models always compute a new one.
type Meta struct {
	Name string

	NVar int
	X0   []float64
	LVar []float64
	UVar []float64

	NCon int
	Y0   []float64
	LCon []float64
	UCon []float64

	// JLow, JUpp, JRng and JFix partition the constraint indices by the kind of their bounds,
	// see Interval.Kind. Each list is sorted.
	JLow []int
	JUpp []int
	JRng []int
	JFix []int

	// Lin and Nln partition the constraint indices into linear and nonlinear constraints.
	Lin []int
	Nln []int

	NNZJ int
	NNZH int
}

// NewMeta validates `p` and returns the complete Meta it describes. The slices of `p` are
// copied.
func NewMeta(p MetaParams) (*Meta, error) {
	if p.NVar <= 0 {
		return nil, fmt.Errorf("nvar = %d must be positive: %w", p.NVar, ErrDimensionMismatch)
	}
	if p.NCon < 0 {
		return nil, fmt.Errorf("ncon = %d must not be negative: %w", p.NCon, ErrDimensionMismatch)
	}
	if p.NNZJ < 0 || p.NNZH < 0 {
		return nil, fmt.Errorf("nnzj = %d and nnzh = %d must not be negative: %w", p.NNZJ, p.NNZH, ErrInvalidStructure)
	}
	m := &Meta{Name: p.Name, NVar: p.NVar, NCon: p.NCon, NNZJ: p.NNZJ, NNZH: p.NNZH}
	var err error
	if m.X0, err = vectorOrFill("x0", p.X0, p.NVar, 0); err != nil {
		return nil, err
	}
	if m.LVar, err = vectorOrFill("lvar", p.LVar, p.NVar, math.Inf(-1)); err != nil {
		return nil, err
	}
	if m.UVar, err = vectorOrFill("uvar", p.UVar, p.NVar, math.Inf(1)); err != nil {
		return nil, err
	}
	if m.Y0, err = vectorOrFill("y0", p.Y0, p.NCon, 0); err != nil {
		return nil, err
	}
	if m.LCon, err = vectorOrFill("lcon", p.LCon, p.NCon, math.Inf(-1)); err != nil {
		return nil, err
	}
	if m.UCon, err = vectorOrFill("ucon", p.UCon, p.NCon, math.Inf(1)); err != nil {
		return nil, err
	}
	for i := range m.LVar {
		if err := (Interval{m.LVar[i], m.UVar[i]}).Validate(); err != nil {
			return nil, fmt.Errorf("variable %d: %w", i, err)
		}
	}
	part, err := classify(m.LCon, m.UCon)
	if err != nil {
		return nil, err
	}
	m.JLow, m.JUpp, m.JRng, m.JFix = part.low, part.upp, part.rng, part.fix

	isLin := make([]bool, p.NCon)
	for _, j := range p.Lin {
		if j < 0 || j >= p.NCon {
			return nil, fmt.Errorf("linear constraint index %d out of range [0,%d): %w", j, p.NCon, ErrInvalidStructure)
		}
		if isLin[j] {
			return nil, fmt.Errorf("linear constraint index %d listed twice: %w", j, ErrInvalidStructure)
		}
		isLin[j] = true
	}
	for j, lin := range isLin {
		if lin {
			m.Lin = append(m.Lin, j)
		} else {
			m.Nln = append(m.Nln, j)
		}
	}
	return m, nil
}

func vectorOrFill(name string, v []float64, n int, fill float64) ([]float64, error) {
	if v == nil {
		out := make([]float64, n)
		if fill != 0 {
			for i := range out {
				out[i] = fill
			}
		}
		return out, nil
	}
	if err := CheckLen(name, v, n); err != nil {
		return nil, err
	}
	return slices.Clone(v), nil
}

// Params returns the MetaParams that rebuild `m`. Derived models start from it.
func (m *Meta) Params() MetaParams {
	return MetaParams{
		Name: m.Name,
		NVar: m.NVar,
		X0:   slices.Clone(m.X0),
		LVar: slices.Clone(m.LVar),
		UVar: slices.Clone(m.UVar),
		NCon: m.NCon,
		Y0:   slices.Clone(m.Y0),
		LCon: slices.Clone(m.LCon),
		UCon: slices.Clone(m.UCon),
		Lin:  slices.Clone(m.Lin),
		NNZJ: m.NNZJ,
		NNZH: m.NNZH,
	}
}

// Unconstrained returns whether the model has no general constraints.
func (m *Meta) Unconstrained() bool {
	return m.NCon == 0
}

// EqualityConstrained returns whether every constraint is an equality.
func (m *Meta) EqualityConstrained() bool {
	return m.NCon == len(m.JFix)
}

// NLSMeta describes the residual map `F : R^NVar -> R^NEqu` of a least-squares model.
type NLSMeta struct {
	NEqu int
	NVar int
	X0   []float64
	// Number of entries in the residual Jacobian structure and in the union of the lower
	// triangles of the residual Hessians.
	NNZJ int
	NNZH int
}

// NewNLSMeta validates the residual dimensions and returns the NLSMeta. A nil `x0` is
// replaced by zeros.
func NewNLSMeta(nequ, nvar int, x0 []float64, nnzj, nnzh int) (*NLSMeta, error) {
	if nequ <= 0 || nvar <= 0 {
		return nil, fmt.Errorf("nequ = %d and nvar = %d must be positive: %w", nequ, nvar, ErrDimensionMismatch)
	}
	if nnzj < 0 || nnzh < 0 {
		return nil, fmt.Errorf("nnzj = %d and nnzh = %d must not be negative: %w", nnzj, nnzh, ErrInvalidStructure)
	}
	x, err := vectorOrFill("x0", x0, nvar, 0)
	if err != nil {
		return nil, err
	}
	return &NLSMeta{NEqu: nequ, NVar: nvar, X0: x, NNZJ: nnzj, NNZH: nnzh}, nil
}
