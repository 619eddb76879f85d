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

	log "github.com/golang/glog"
)

// Funcs holds the closed-form callables of an NLP. Jacobian and Hessian values are written in
// the order of the corresponding structure. HessVals fills the lower triangle of
// `objWeight·∇²f(x) + Σ y_j ∇²c_j(x)`; it always receives a non-nil `y`.
type Funcs struct {
	Obj  func(x []float64) float64
	Grad func(x, g []float64)
	Cons func(x, c []float64)

	JacRows, JacCols []int
	JacVals          func(x, vals []float64)

	HessRows, HessCols []int
	HessVals           func(x, y []float64, objWeight float64, vals []float64)

	// Release is called once by Close.
	Release func() error
}

// releaser runs a release hook at most once.
type releaser struct {
	fn     func() error
	closed bool
}

func (r *releaser) close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.fn == nil {
		return nil
	}
	return r.fn()
}

// FuncModel is an NLP evaluated through closed-form callables. Products with the Jacobian and
// the Hessian are computed from the coordinate values.
type FuncModel struct {
	meta     *Meta
	counters Counters
	fns      Funcs
	rel      releaser
}

// NewFuncModel returns the model described by `p` and `fns`. NNZJ and NNZH are taken from
// the structures in `fns`.
func NewFuncModel(p MetaParams, fns Funcs) (*FuncModel, error) {
	p.NNZJ, p.NNZH = len(fns.JacRows), len(fns.HessRows)
	meta, err := NewMeta(p)
	if err != nil {
		return nil, err
	}
	if err := fns.validate(meta); err != nil {
		return nil, err
	}
	log.V(2).Infof("nlpmodel: closed-form model %q with nvar=%d ncon=%d nnzj=%d nnzh=%d", meta.Name, meta.NVar, meta.NCon, meta.NNZJ, meta.NNZH)
	return &FuncModel{meta: meta, fns: fns, rel: releaser{fn: fns.Release}}, nil
}

func (f *Funcs) validate(meta *Meta) error {
	switch {
	case f.Obj == nil || f.Grad == nil:
		return fmt.Errorf("objective and gradient are required: %w", ErrInvalidStructure)
	case f.HessVals == nil:
		return fmt.Errorf("hessian values are required: %w", ErrInvalidStructure)
	case meta.NCon > 0 && (f.Cons == nil || f.JacVals == nil):
		return fmt.Errorf("constraints and jacobian values are required when ncon = %d: %w", meta.NCon, ErrInvalidStructure)
	}
	if err := checkStructure(f.JacRows, f.JacCols, meta.NCon, meta.NVar); err != nil {
		return fmt.Errorf("jacobian: %w", err)
	}
	if err := checkLowerStructure(f.HessRows, f.HessCols, meta.NVar); err != nil {
		return fmt.Errorf("hessian: %w", err)
	}
	return nil
}

func checkLowerStructure(rows, cols []int, n int) error {
	if err := checkStructure(rows, cols, n, n); err != nil {
		return err
	}
	for k := range rows {
		if cols[k] > rows[k] {
			return fmt.Errorf("entry %d at (%d,%d) is above the diagonal: %w", k, rows[k], cols[k], ErrInvalidStructure)
		}
	}
	return nil
}

// Funcs returns the callables of the model.
func (m *FuncModel) Funcs() Funcs {
	return m.fns
}

// Representation implements Representer.
func (m *FuncModel) Representation() Representation { return ClosedForm }

// Meta implements Model.
func (m *FuncModel) Meta() *Meta { return m.meta }

// Counters implements Model.
func (m *FuncModel) Counters() *Counters { return &m.counters }

// Obj implements Model.
func (m *FuncModel) Obj(x []float64) (float64, error) {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return 0, err
	}
	m.counters.Increment(OpObj)
	return m.fns.Obj(x), nil
}

// Grad implements Model.
func (m *FuncModel) Grad(x, g []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("g", g, m.meta.NVar)); err != nil {
		return err
	}
	m.counters.Increment(OpGrad)
	m.fns.Grad(x, g)
	return nil
}

// ObjGrad implements Model.
func (m *FuncModel) ObjGrad(x, g []float64) (float64, error) {
	if err := m.Grad(x, g); err != nil {
		return 0, err
	}
	return m.Obj(x)
}

// Cons implements Model.
func (m *FuncModel) Cons(x, c []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("c", c, m.meta.NCon)); err != nil {
		return err
	}
	m.counters.Increment(OpCons)
	if m.meta.NCon > 0 {
		m.fns.Cons(x, c)
	}
	return nil
}

// JacStructure implements Model.
func (m *FuncModel) JacStructure(rows, cols []int) error {
	if err := errors.Join(CheckIndexLen("rows", rows, m.meta.NNZJ), CheckIndexLen("cols", cols, m.meta.NNZJ)); err != nil {
		return err
	}
	copy(rows, m.fns.JacRows)
	copy(cols, m.fns.JacCols)
	return nil
}

// JacCoord implements Model.
func (m *FuncModel) JacCoord(x, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("vals", vals, m.meta.NNZJ)); err != nil {
		return err
	}
	m.counters.Increment(OpJac)
	if m.meta.NNZJ > 0 {
		m.fns.JacVals(x, vals)
	}
	return nil
}

func (m *FuncModel) jac(x []float64) *Coord {
	vals := make([]float64, m.meta.NNZJ)
	if m.meta.NNZJ > 0 {
		m.fns.JacVals(x, vals)
	}
	return &Coord{NRows: m.meta.NCon, NCols: m.meta.NVar, Rows: m.fns.JacRows, Cols: m.fns.JacCols, Vals: vals}
}

// JProd implements Model.
func (m *FuncModel) JProd(x, v, jv []float64) error {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return err
	}
	if err := m.jac(x).MulVec(jv, v); err != nil {
		return err
	}
	m.counters.Increment(OpJProd)
	return nil
}

// JTProd implements Model.
func (m *FuncModel) JTProd(x, v, jtv []float64) error {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return err
	}
	if err := m.jac(x).MulVecTrans(jtv, v); err != nil {
		return err
	}
	m.counters.Increment(OpJTProd)
	return nil
}

// HessStructure implements Model.
func (m *FuncModel) HessStructure(rows, cols []int) error {
	if err := errors.Join(CheckIndexLen("rows", rows, m.meta.NNZH), CheckIndexLen("cols", cols, m.meta.NNZH)); err != nil {
		return err
	}
	copy(rows, m.fns.HessRows)
	copy(cols, m.fns.HessCols)
	return nil
}

// HessCoord implements Model.
func (m *FuncModel) HessCoord(x, y []float64, objWeight float64, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckMultipliers(y, m.meta.NCon), CheckLen("vals", vals, m.meta.NNZH)); err != nil {
		return err
	}
	m.counters.Increment(OpHess)
	m.fns.HessVals(x, Multipliers(y, m.meta.NCon), objWeight, vals)
	return nil
}

// HProd implements Model.
func (m *FuncModel) HProd(x, y, v []float64, objWeight float64, hv []float64) error {
	n := m.meta.NVar
	if err := errors.Join(CheckLen("x", x, n), CheckMultipliers(y, m.meta.NCon), CheckLen("v", v, n), CheckLen("hv", hv, n)); err != nil {
		return err
	}
	m.counters.Increment(OpHProd)
	vals := make([]float64, m.meta.NNZH)
	m.fns.HessVals(x, Multipliers(y, m.meta.NCon), objWeight, vals)
	clear(hv)
	symAddMulVec(hv, m.fns.HessRows, m.fns.HessCols, vals, v, 1)
	return nil
}

// Close implements Model.
func (m *FuncModel) Close() error {
	return m.rel.close()
}
