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

// Package nlpmodel defines the evaluation contract of nonlinear optimization models (NLP) and
// nonlinear least-squares models (NLS), together with concrete models built from closed-form
// callables or from linear operators.
//
// An NLP reads
//
//	minimize f(x)  subject to  lvar ≤ x ≤ uvar,  lcon ≤ c(x) ≤ ucon
//
// and an NLS is an NLP whose objective is ½‖F(x)‖² for a residual map F.
//
// Evaluation methods write into caller allocated slices and return an error wrapping
// ErrDimensionMismatch when a slice does not have the length implied by the Meta. Hessians
// are given by the lower triangle of the Hessian of the Lagrangian
//
//	objWeight·∇²f(x) + Σ y_j ∇²c_j(x)
//
// in coordinate format. A nil multiplier vector stands for zero multipliers.
package nlpmodel

// Model is the evaluation contract of a nonlinear optimization problem.
type Model interface {
	Meta() *Meta
	// Counters returns the evaluation counters that the model reports.
	Counters() *Counters

	Obj(x []float64) (float64, error)
	Grad(x, g []float64) error
	ObjGrad(x, g []float64) (float64, error)

	Cons(x, c []float64) error
	JacStructure(rows, cols []int) error
	JacCoord(x, vals []float64) error
	JProd(x, v, jv []float64) error
	JTProd(x, v, jtv []float64) error

	HessStructure(rows, cols []int) error
	HessCoord(x, y []float64, objWeight float64, vals []float64) error
	HProd(x, y, v []float64, objWeight float64, hv []float64) error

	// Close releases the resources held by the model. Calling it more than once has no
	// effect.
	Close() error
}

// NLSModel is a Model whose objective is half the squared norm of a residual map.
type NLSModel interface {
	Model
	NLSMeta() *NLSMeta

	Residual(x, fx []float64) error
	JacStructureResidual(rows, cols []int) error
	JacCoordResidual(x, vals []float64) error
	JProdResidual(x, v, jv []float64) error
	JTProdResidual(x, v, jtv []float64) error

	// HessStructureResidual and HessCoordResidual give the lower triangle of Σ v_i ∇²F_i(x).
	HessStructureResidual(rows, cols []int) error
	HessCoordResidual(x, v, vals []float64) error
	// HessResidual returns the lower triangle of the Hessian of the i-th residual.
	HessResidual(x []float64, i int) (*Coord, error)
	// HProdResidual stores ∇²F_i(x) v in hv.
	HProdResidual(x []float64, i int, v, hv []float64) error
}

// Representation tells how a model evaluates its functions. Transformations use it to pick a
// construction strategy.
type Representation int

const (
	// Opaque models only offer the evaluation contract.
	Opaque Representation = iota
	// ClosedForm models are *FuncModel values.
	ClosedForm
	// ClosedFormNLS models are *FuncNLSModel values.
	ClosedFormNLS
	// LinearLeastSquares models are *LLSModel values.
	LinearLeastSquares
)

func (r Representation) String() string {
	switch r {
	case ClosedForm:
		return "closed-form"
	case ClosedFormNLS:
		return "closed-form-nls"
	case LinearLeastSquares:
		return "linear-least-squares"
	default:
		return "opaque"
	}
}

// Representer is implemented by models that declare their Representation.
type Representer interface {
	Representation() Representation
}

// RepresentationOf returns the representation declared by `m`, or Opaque.
func RepresentationOf(m Model) Representation {
	if r, ok := m.(Representer); ok {
		return r.Representation()
	}
	return Opaque
}
