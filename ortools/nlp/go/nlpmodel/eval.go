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
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Jac returns the constraint Jacobian of `m` at `x` in coordinate format.
func Jac(m Model, x []float64) (*Coord, error) {
	meta := m.Meta()
	j := &Coord{NRows: meta.NCon, NCols: meta.NVar, Rows: make([]int, meta.NNZJ), Cols: make([]int, meta.NNZJ), Vals: make([]float64, meta.NNZJ)}
	if err := m.JacStructure(j.Rows, j.Cols); err != nil {
		return nil, err
	}
	if err := m.JacCoord(x, j.Vals); err != nil {
		return nil, err
	}
	return j, nil
}

// JacDense returns the constraint Jacobian of `m` at `x` as a dense matrix.
func JacDense(m Model, x []float64) (*mat.Dense, error) {
	j, err := Jac(m, x)
	if err != nil {
		return nil, err
	}
	return j.Dense(), nil
}

// JacOp returns the constraint Jacobian of `m` at `x` as an operator backed by JProd and
// JTProd. `x` is copied.
func JacOp(m Model, x []float64) Operator {
	meta := m.Meta()
	x = slices.Clone(x)
	return &FuncOperator{
		NRows: meta.NCon,
		NCols: meta.NVar,
		Prod:  func(dst, v []float64) error { return m.JProd(x, v, dst) },
		TProd: func(dst, v []float64) error { return m.JTProd(x, v, dst) },
	}
}

// Hess returns the lower triangle of the Hessian of the Lagrangian of `m` at `(x, y)`.
func Hess(m Model, x, y []float64, objWeight float64) (*Coord, error) {
	meta := m.Meta()
	h := &Coord{NRows: meta.NVar, NCols: meta.NVar, Rows: make([]int, meta.NNZH), Cols: make([]int, meta.NNZH), Vals: make([]float64, meta.NNZH)}
	if err := m.HessStructure(h.Rows, h.Cols); err != nil {
		return nil, err
	}
	if err := m.HessCoord(x, y, objWeight, h.Vals); err != nil {
		return nil, err
	}
	return h, nil
}

// HessDense returns the Hessian of the Lagrangian of `m` at `(x, y)` as a dense symmetric
// matrix.
func HessDense(m Model, x, y []float64, objWeight float64) (*mat.SymDense, error) {
	h, err := Hess(m, x, y, objWeight)
	if err != nil {
		return nil, err
	}
	return h.SymDense(), nil
}

// HessOp returns the Hessian of the Lagrangian of `m` at `(x, y)` as an operator backed by
// HProd. The arguments are copied.
func HessOp(m Model, x, y []float64, objWeight float64) Operator {
	n := m.Meta().NVar
	x, y = slices.Clone(x), slices.Clone(y)
	prod := func(dst, v []float64) error { return m.HProd(x, y, v, objWeight, dst) }
	return &FuncOperator{NRows: n, NCols: n, Prod: prod, TProd: prod}
}

// JacResidual returns the residual Jacobian of `nls` at `x` in coordinate format.
func JacResidual(nls NLSModel, x []float64) (*Coord, error) {
	meta := nls.NLSMeta()
	j := &Coord{NRows: meta.NEqu, NCols: meta.NVar, Rows: make([]int, meta.NNZJ), Cols: make([]int, meta.NNZJ), Vals: make([]float64, meta.NNZJ)}
	if err := nls.JacStructureResidual(j.Rows, j.Cols); err != nil {
		return nil, err
	}
	if err := nls.JacCoordResidual(x, j.Vals); err != nil {
		return nil, err
	}
	return j, nil
}

// JacResidualOp returns the residual Jacobian of `nls` at `x` as an operator.
func JacResidualOp(nls NLSModel, x []float64) Operator {
	meta := nls.NLSMeta()
	x = slices.Clone(x)
	return &FuncOperator{
		NRows: meta.NEqu,
		NCols: meta.NVar,
		Prod:  func(dst, v []float64) error { return nls.JProdResidual(x, v, dst) },
		TProd: func(dst, v []float64) error { return nls.JTProdResidual(x, v, dst) },
	}
}

// HessResidualOp returns the Hessian of the i-th residual of `nls` at `x` as an operator.
func HessResidualOp(nls NLSModel, x []float64, i int) Operator {
	n := nls.NLSMeta().NVar
	x = slices.Clone(x)
	prod := func(dst, v []float64) error { return nls.HProdResidual(x, i, v, dst) }
	return &FuncOperator{NRows: n, NCols: n, Prod: prod, TProd: prod}
}
