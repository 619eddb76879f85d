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

// Package nlptest provides small reference models for testing code built on nlpmodel.
package nlptest

import (
	"math"
	"math/rand"

	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
)

// Inequality returns a closed-form model with two variables and one constraint of each bound
// kind, listed out of kind order:
//
//	min  x0² + x0·x1 + 2·x1²
//	s.t. x0² + x1²  ≤ 4        (upper)
//	     x0 - x1    = 0        (fixed, linear)
//	     x0 + x1    ≥ 1        (lower, linear)
//	-1 ≤ x0·x1      ≤ 1        (range)
//	-10 ≤ x0 ≤ 10
func Inequality() *nlpmodel.FuncModel {
	inf := math.Inf(1)
	p := nlpmodel.MetaParams{
		Name: "inequality",
		NVar: 2,
		X0:   []float64{0.5, 1.5},
		LVar: []float64{-10, -inf},
		UVar: []float64{10, inf},
		NCon: 4,
		Y0:   []float64{1, 2, 3, 4},
		LCon: []float64{-inf, 0, 1, -1},
		UCon: []float64{4, 0, inf, 1},
		Lin:  []int{1, 2},
	}
	fns := nlpmodel.Funcs{
		Obj: func(x []float64) float64 {
			return x[0]*x[0] + x[0]*x[1] + 2*x[1]*x[1]
		},
		Grad: func(x, g []float64) {
			g[0] = 2*x[0] + x[1]
			g[1] = x[0] + 4*x[1]
		},
		Cons: func(x, c []float64) {
			c[0] = x[0]*x[0] + x[1]*x[1]
			c[1] = x[0] - x[1]
			c[2] = x[0] + x[1]
			c[3] = x[0] * x[1]
		},
		JacRows: []int{0, 0, 1, 1, 2, 2, 3, 3},
		JacCols: []int{0, 1, 0, 1, 0, 1, 0, 1},
		JacVals: func(x, vals []float64) {
			copy(vals, []float64{2 * x[0], 2 * x[1], 1, -1, 1, 1, x[1], x[0]})
		},
		HessRows: []int{0, 1, 1},
		HessCols: []int{0, 0, 1},
		HessVals: func(x, y []float64, w float64, vals []float64) {
			vals[0] = 2*w + 2*y[0]
			vals[1] = w + y[3]
			vals[2] = 4*w + 2*y[0]
		},
	}
	return must(nlpmodel.NewFuncModel(p, fns))
}

// EqualityOnly returns a closed-form model whose only constraint is the equality
// x0 + x1 = 1.
func EqualityOnly() *nlpmodel.FuncModel {
	p := nlpmodel.MetaParams{
		Name: "equality",
		NVar: 2,
		NCon: 1,
		LCon: []float64{1},
		UCon: []float64{1},
		Lin:  []int{0},
	}
	fns := nlpmodel.Funcs{
		Obj:      func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] },
		Grad:     func(x, g []float64) { g[0], g[1] = 2*x[0], 2*x[1] },
		Cons:     func(x, c []float64) { c[0] = x[0] + x[1] },
		JacRows:  []int{0, 0},
		JacCols:  []int{0, 1},
		JacVals:  func(_, vals []float64) { vals[0], vals[1] = 1, 1 },
		HessRows: []int{0, 1},
		HessCols: []int{0, 1},
		HessVals: func(_, _ []float64, w float64, vals []float64) { vals[0], vals[1] = 2*w, 2*w },
	}
	return must(nlpmodel.NewFuncModel(p, fns))
}

// residualFuncs fills the residual callables shared by the least-squares models:
//
//	F0 = x0·x1 - 1
//	F1 = x1 + x2²
func residualFuncs(fns *nlpmodel.NLSFuncs) {
	fns.Residual = func(x, fx []float64) {
		fx[0] = x[0]*x[1] - 1
		fx[1] = x[1] + x[2]*x[2]
	}
	fns.ResJacRows = []int{0, 0, 1, 1}
	fns.ResJacCols = []int{0, 1, 1, 2}
	fns.ResJacVals = func(x, vals []float64) {
		copy(vals, []float64{x[1], x[0], 1, 2 * x[2]})
	}
	fns.ResHessRows = []int{1, 2}
	fns.ResHessCols = []int{0, 2}
	fns.ResHessVals = func(_, w, vals []float64) {
		vals[0] = w[0]
		vals[1] = 2 * w[1]
	}
}

// NLS returns an unconstrained closed-form least-squares model with three variables and the
// two residuals F0 = x0·x1 - 1 and F1 = x1 + x2².
func NLS() *nlpmodel.FuncNLSModel {
	var fns nlpmodel.NLSFuncs
	residualFuncs(&fns)
	p := nlpmodel.MetaParams{Name: "nls", NVar: 3, X0: []float64{1, 1, 1}}
	return must(nlpmodel.NewFuncNLSModel(2, p, fns))
}

// ConstrainedNLS returns the residuals of NLS subject to
//
//	x0 + x1 + x2 ≥ 1        (lower, linear)
//	x0² - x2     = 0        (fixed)
//	-2 ≤ x1·x2   ≤ 2        (range)
func ConstrainedNLS() *nlpmodel.FuncNLSModel {
	var fns nlpmodel.NLSFuncs
	residualFuncs(&fns)
	fns.Cons = func(x, c []float64) {
		c[0] = x[0] + x[1] + x[2]
		c[1] = x[0]*x[0] - x[2]
		c[2] = x[1] * x[2]
	}
	fns.JacRows = []int{0, 0, 0, 1, 1, 2, 2}
	fns.JacCols = []int{0, 1, 2, 0, 2, 1, 2}
	fns.JacVals = func(x, vals []float64) {
		copy(vals, []float64{1, 1, 1, 2 * x[0], -1, x[2], x[1]})
	}
	fns.ConsHessRows = []int{0, 2}
	fns.ConsHessCols = []int{0, 1}
	fns.ConsHessVals = func(_, y, vals []float64) {
		vals[0] = 2 * y[1]
		vals[1] = y[2]
	}
	inf := math.Inf(1)
	p := nlpmodel.MetaParams{
		Name: "constrained-nls",
		NVar: 3,
		X0:   []float64{1, 1, 1},
		NCon: 3,
		LCon: []float64{1, 0, -2},
		UCon: []float64{inf, 0, 2},
		Lin:  []int{0},
	}
	return must(nlpmodel.NewFuncNLSModel(2, p, fns))
}

// MatrixKind selects the representation of the operators of LLS.
type MatrixKind int

const (
	// DenseMatrix stores the operators as *nlpmodel.Dense.
	DenseMatrix MatrixKind = iota
	// SparseMatrix stores the operators as *nlpmodel.Coord.
	SparseMatrix
	// ImplicitMatrix stores the operators as *nlpmodel.FuncOperator.
	ImplicitMatrix
)

var (
	llsA = []float64{1, 2, 3, 4, 5, 6}
	llsB = []float64{1, 1, 1}
	llsC = []float64{1, 1, 1, -1}
)

// LLS returns the linear least-squares model
//
//	min ½‖Ax - b‖²,  A = [1 2; 3 4; 5 6],  b = [1; 1; 1]
//	s.t. x0 + x1 ≥ 0,  -1 ≤ x0 - x1 ≤ 1
//
// with operators of the given kind.
func LLS(kind MatrixKind) *nlpmodel.LLSModel {
	a, c := operator(kind, 3, 2, llsA), operator(kind, 2, 2, llsC)
	inf := math.Inf(1)
	p := nlpmodel.MetaParams{
		Name: "lls",
		X0:   []float64{1, -1},
		LCon: []float64{0, -1},
		UCon: []float64{inf, 1},
	}
	return must(nlpmodel.NewLLSModel(a, llsB, c, p))
}

func operator(kind MatrixKind, r, c int, data []float64) nlpmodel.Operator {
	switch kind {
	case SparseMatrix:
		coord := &nlpmodel.Coord{NRows: r, NCols: c}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if v := data[i*c+j]; v != 0 {
					coord.Rows = append(coord.Rows, i)
					coord.Cols = append(coord.Cols, j)
					coord.Vals = append(coord.Vals, v)
				}
			}
		}
		return coord
	case ImplicitMatrix:
		d := nlpmodel.NewDense(r, c, append([]float64(nil), data...))
		return &nlpmodel.FuncOperator{NRows: r, NCols: c, Prod: d.MulVec, TProd: d.MulVecTrans}
	default:
		return nlpmodel.NewDense(r, c, append([]float64(nil), data...))
	}
}

type opaque struct {
	nlpmodel.Model
}

type opaqueNLS struct {
	nlpmodel.NLSModel
}

// Opaque hides the representation of `m`, leaving only the evaluation contract.
func Opaque(m nlpmodel.Model) nlpmodel.Model {
	return opaque{m}
}

// OpaqueNLS hides the representation of `nls`, leaving only the evaluation contract.
func OpaqueNLS(nls nlpmodel.NLSModel) nlpmodel.NLSModel {
	return opaqueNLS{nls}
}

// Vector returns a vector of `n` uniform values in [-1, 1).
func Vector(rng *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 2*rng.Float64() - 1
	}
	return v
}

func must[M any](m M, err error) M {
	if err != nil {
		panic(err)
	}
	return m
}
