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

package modifiers

import (
	"fmt"
	"slices"

	log "github.com/golang/glog"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
	"gonum.org/v1/gonum/mat"
)

// The functions below rebuild a primary model with its slack variables folded in. The
// rebuilt model evaluates the source callables or operators directly, counts its own
// evaluations and closes the source model from its own Close.

func unsupported(want nlpmodel.Representation, m nlpmodel.Model) error {
	return fmt.Errorf("%q is %v, want %v: %w", m.Meta().Name, nlpmodel.RepresentationOf(m), want, nlpmodel.ErrUnsupportedModel)
}

// slackJacobian appends the -I block of the slacks to a constraint Jacobian structure.
func slackJacobian(rows, cols []int, idx slackIndex) ([]int, []int) {
	rows, cols = slices.Clone(rows), slices.Clone(cols)
	idx.each(func(row, col int) {
		rows = append(rows, row)
		cols = append(cols, col)
	})
	return rows, cols
}

func fillSlackValues(vals []float64, nnz int) {
	for k := nnz; k < len(vals); k++ {
		vals[k] = -1
	}
}

// SlackClosedForm returns the slack reformulation of a *nlpmodel.FuncModel as a new
// FuncModel.
func SlackClosedForm(m nlpmodel.Model) (*nlpmodel.FuncModel, error) {
	src, ok := m.(*nlpmodel.FuncModel)
	if !ok {
		return nil, unsupported(nlpmodel.ClosedForm, m)
	}
	meta, fns := src.Meta(), src.Funcs()
	p, idx := slackParams(meta)
	n, nnzj := meta.NVar, meta.NNZJ

	out := nlpmodel.Funcs{
		Obj: func(x []float64) float64 { return fns.Obj(x[:n]) },
		Grad: func(x, g []float64) {
			fns.Grad(x[:n], g[:n])
			clear(g[n:])
		},
		HessRows: fns.HessRows,
		HessCols: fns.HessCols,
		HessVals: func(x, y []float64, objWeight float64, vals []float64) {
			fns.HessVals(x[:n], y, objWeight, vals)
		},
		Release: src.Close,
	}
	if fns.Cons != nil {
		out.Cons = func(x, c []float64) {
			fns.Cons(x[:n], c)
			idx.subtract(c, x)
		}
	}
	if fns.JacVals != nil {
		out.JacVals = func(x, vals []float64) {
			fns.JacVals(x[:n], vals[:nnzj])
			fillSlackValues(vals, nnzj)
		}
	}
	out.JacRows, out.JacCols = slackJacobian(fns.JacRows, fns.JacCols, idx)
	rebuilt, err := nlpmodel.NewFuncModel(p, out)
	if err != nil {
		return nil, fmt.Errorf("slack reformulation of %q: %w", meta.Name, err)
	}
	return rebuilt, nil
}

// SlackClosedFormNLS returns the slack reformulation of a *nlpmodel.FuncNLSModel as a new
// FuncNLSModel with the same residuals.
func SlackClosedFormNLS(m nlpmodel.Model) (*nlpmodel.FuncNLSModel, error) {
	src, ok := m.(*nlpmodel.FuncNLSModel)
	if !ok {
		return nil, unsupported(nlpmodel.ClosedFormNLS, m)
	}
	meta, fns := src.Meta(), src.Funcs()
	p, idx := slackParams(meta)
	n, nnzj := meta.NVar, meta.NNZJ

	out := nlpmodel.NLSFuncs{
		Residual:     func(x, fx []float64) { fns.Residual(x[:n], fx) },
		ResJacRows:   fns.ResJacRows,
		ResJacCols:   fns.ResJacCols,
		ResJacVals:   func(x, vals []float64) { fns.ResJacVals(x[:n], vals) },
		ResHessRows:  fns.ResHessRows,
		ResHessCols:  fns.ResHessCols,
		ResHessVals:  func(x, w, vals []float64) { fns.ResHessVals(x[:n], w, vals) },
		ConsHessRows: fns.ConsHessRows,
		ConsHessCols: fns.ConsHessCols,
		Release:      src.Close,
	}
	if fns.Cons != nil {
		out.Cons = func(x, c []float64) {
			fns.Cons(x[:n], c)
			idx.subtract(c, x)
		}
	}
	if fns.JacVals != nil {
		out.JacVals = func(x, vals []float64) {
			fns.JacVals(x[:n], vals[:nnzj])
			fillSlackValues(vals, nnzj)
		}
	}
	if fns.ConsHessVals != nil {
		out.ConsHessVals = func(x, y, vals []float64) { fns.ConsHessVals(x[:n], y, vals) }
	}
	out.JacRows, out.JacCols = slackJacobian(fns.JacRows, fns.JacCols, idx)
	rebuilt, err := nlpmodel.NewFuncNLSModel(src.NLSMeta().NEqu, p, out)
	if err != nil {
		return nil, fmt.Errorf("slack reformulation of %q: %w", meta.Name, err)
	}
	return rebuilt, nil
}

// SlackLinearLeastSquares returns the slack reformulation of a *nlpmodel.LLSModel: the
// residual operator gains zero columns and the constraint operator gains -I on the relaxed
// rows. Sparse and dense operators stay sparse and dense; other operators are wrapped.
func SlackLinearLeastSquares(m nlpmodel.Model) (*nlpmodel.LLSModel, error) {
	src, ok := m.(*nlpmodel.LLSModel)
	if !ok {
		return nil, unsupported(nlpmodel.LinearLeastSquares, m)
	}
	meta := src.Meta()
	p, idx := slackParams(meta)
	a, b, c := src.Operators()

	a, err := extend(a, idx.ns(), nil)
	if err != nil {
		return nil, err
	}
	if c != nil {
		if c, err = extend(c, idx.ns(), idx.each); err != nil {
			return nil, err
		}
	}
	rebuilt, err := nlpmodel.NewLLSModel(a, b, c, p)
	if err != nil {
		return nil, fmt.Errorf("slack reformulation of %q: %w", meta.Name, err)
	}
	rebuilt.SetRelease(src.Close)
	return rebuilt, nil
}

// extend appends `ns` columns to `op`. The new columns are zero, except for -1 at every
// (row, col) reported by `slacks` when it is not nil.
func extend(op nlpmodel.Operator, ns int, slacks func(fn func(row, col int))) (nlpmodel.Operator, error) {
	r, c := op.Dims()
	switch a := op.(type) {
	case *nlpmodel.Coord:
		rows, cols := slices.Clone(a.Rows), slices.Clone(a.Cols)
		vals := slices.Clone(a.Vals)
		if slacks != nil {
			slacks(func(row, col int) {
				rows = append(rows, row)
				cols = append(cols, col)
				vals = append(vals, -1)
			})
		}
		return nlpmodel.NewCoord(r, c+ns, rows, cols, vals)
	case *nlpmodel.Dense:
		d := mat.NewDense(r, c+ns, nil)
		if c > 0 {
			d.Slice(0, r, 0, c).(*mat.Dense).Copy(a.Dense)
		}
		if slacks != nil {
			slacks(func(row, col int) { d.Set(row, col, -1) })
		}
		return &nlpmodel.Dense{Dense: d}, nil
	}
	var entries [][2]int
	if slacks != nil {
		slacks(func(row, col int) { entries = append(entries, [2]int{row, col}) })
	}
	return &nlpmodel.FuncOperator{
		NRows: r,
		NCols: c + ns,
		Prod: func(dst, v []float64) error {
			if err := op.MulVec(dst, v[:c]); err != nil {
				return err
			}
			for _, e := range entries {
				dst[e[0]] -= v[e[1]]
			}
			return nil
		},
		TProd: func(dst, v []float64) error {
			if err := op.MulVecTrans(dst[:c], v); err != nil {
				return err
			}
			clear(dst[c:])
			for _, e := range entries {
				dst[e[1]] = -v[e[0]]
			}
			return nil
		},
	}, nil
}

// Outcome tells what Slack did with its input.
type Outcome int

const (
	// PassThrough means the input has no inequality constraints and was returned as is.
	PassThrough Outcome = iota
	// Wrapped means the input is viewed through a SlackModel or SlackNLSModel.
	Wrapped
	// Rebuilt means a primary model of the input's representation was built with the slacks
	// folded in.
	Rebuilt
)

func (o Outcome) String() string {
	switch o {
	case PassThrough:
		return "pass-through"
	case Wrapped:
		return "wrapped"
	case Rebuilt:
		return "rebuilt"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Slack returns the slack reformulation of `m`, in which every constraint is an equality.
//
// When `m` is already equality constrained (or unconstrained) it is returned unchanged.
// Closed-form and linear least-squares models are rebuilt in their own representation, and
// any other model is wrapped. In the last two cases the returned model owns `m`: closing it
// closes `m`.
func Slack(m nlpmodel.Model) (nlpmodel.Model, Outcome, error) {
	meta := m.Meta()
	if meta.EqualityConstrained() {
		log.V(2).Infof("modifiers: %q has no inequality constraints, slack reformulation skipped", meta.Name)
		return m, PassThrough, nil
	}
	var (
		out nlpmodel.Model
		err error
	)
	switch rep := nlpmodel.RepresentationOf(m); rep {
	case nlpmodel.ClosedForm:
		out, err = asModel(SlackClosedForm(m))
	case nlpmodel.ClosedFormNLS:
		out, err = asModel(SlackClosedFormNLS(m))
	case nlpmodel.LinearLeastSquares:
		out, err = asModel(SlackLinearLeastSquares(m))
	default:
		if nls, ok := m.(nlpmodel.NLSModel); ok {
			out, err = asModel(NewSlackNLSModel(nls))
		} else {
			out, err = asModel(NewSlackModel(m))
		}
		if err != nil {
			return nil, Wrapped, err
		}
		return out, Wrapped, nil
	}
	if err != nil {
		return nil, Rebuilt, err
	}
	log.V(1).Infof("modifiers: %q rebuilt as %v model %q", meta.Name, nlpmodel.RepresentationOf(out), out.Meta().Name)
	return out, Rebuilt, nil
}

// asModel converts a typed constructor result into a Model without keeping typed nil
// pointers.
func asModel[M nlpmodel.Model](m M, err error) (nlpmodel.Model, error) {
	if err != nil {
		return nil, err
	}
	return m, nil
}
