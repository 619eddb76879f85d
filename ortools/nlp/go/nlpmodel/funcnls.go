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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NLSFuncs holds the closed-form callables of a least-squares model. Residual Hessians are
// described by the union of their lower triangles; ResHessVals fills
// `Σ w_i ∇²F_i(x)` on that structure. ConsHessVals fills `Σ y_j ∇²c_j(x)` on the
// constraint Hessian structure.
type NLSFuncs struct {
	Residual func(x, fx []float64)

	ResJacRows, ResJacCols []int
	ResJacVals             func(x, vals []float64)

	ResHessRows, ResHessCols []int
	ResHessVals              func(x, w, vals []float64)

	Cons func(x, c []float64)

	JacRows, JacCols []int
	JacVals          func(x, vals []float64)

	ConsHessRows, ConsHessCols []int
	ConsHessVals               func(x, y, vals []float64)

	// Release is called once by Close.
	Release func() error
}

// FuncNLSModel is a least-squares model evaluated through closed-form callables. Its NLP view
// minimizes ½‖F(x)‖² and reports a dense lower triangular Hessian of the Lagrangian.
type FuncNLSModel struct {
	meta     *Meta
	nlsMeta  *NLSMeta
	counters Counters
	fns      NLSFuncs
	rel      releaser
	// Lower triangle of the NLP Hessian, row-major.
	hessRows, hessCols []int
}

// NewFuncNLSModel returns the model with `nequ` residuals described by `p` and `fns`.
func NewFuncNLSModel(nequ int, p MetaParams, fns NLSFuncs) (*FuncNLSModel, error) {
	p.NNZJ = len(fns.JacRows)
	p.NNZH = p.NVar * (p.NVar + 1) / 2
	meta, err := NewMeta(p)
	if err != nil {
		return nil, err
	}
	nlsMeta, err := NewNLSMeta(nequ, meta.NVar, meta.X0, len(fns.ResJacRows), len(fns.ResHessRows))
	if err != nil {
		return nil, err
	}
	if err := fns.validate(meta, nlsMeta); err != nil {
		return nil, err
	}
	m := &FuncNLSModel{meta: meta, nlsMeta: nlsMeta, fns: fns, rel: releaser{fn: fns.Release}}
	m.hessRows, m.hessCols = lowerPattern(meta.NVar)
	log.V(2).Infof("nlpmodel: closed-form least-squares model %q with nvar=%d nequ=%d ncon=%d", meta.Name, meta.NVar, nequ, meta.NCon)
	return m, nil
}

func (f *NLSFuncs) validate(meta *Meta, nlsMeta *NLSMeta) error {
	switch {
	case f.Residual == nil || f.ResJacVals == nil || f.ResHessVals == nil:
		return fmt.Errorf("residual, residual jacobian and residual hessian values are required: %w", ErrInvalidStructure)
	case meta.NCon > 0 && (f.Cons == nil || f.JacVals == nil || f.ConsHessVals == nil):
		return fmt.Errorf("constraint callables are required when ncon = %d: %w", meta.NCon, ErrInvalidStructure)
	}
	if err := checkStructure(f.ResJacRows, f.ResJacCols, nlsMeta.NEqu, meta.NVar); err != nil {
		return fmt.Errorf("residual jacobian: %w", err)
	}
	if err := checkLowerStructure(f.ResHessRows, f.ResHessCols, meta.NVar); err != nil {
		return fmt.Errorf("residual hessian: %w", err)
	}
	if err := checkStructure(f.JacRows, f.JacCols, meta.NCon, meta.NVar); err != nil {
		return fmt.Errorf("jacobian: %w", err)
	}
	if err := checkLowerStructure(f.ConsHessRows, f.ConsHessCols, meta.NVar); err != nil {
		return fmt.Errorf("constraint hessian: %w", err)
	}
	return nil
}

// Funcs returns the callables of the model.
func (m *FuncNLSModel) Funcs() NLSFuncs {
	return m.fns
}

// Representation implements Representer.
func (m *FuncNLSModel) Representation() Representation { return ClosedFormNLS }

// Meta implements Model.
func (m *FuncNLSModel) Meta() *Meta { return m.meta }

// NLSMeta implements NLSModel.
func (m *FuncNLSModel) NLSMeta() *NLSMeta { return m.nlsMeta }

// Counters implements Model.
func (m *FuncNLSModel) Counters() *Counters { return &m.counters }

func (m *FuncNLSModel) residual(x []float64) []float64 {
	fx := make([]float64, m.nlsMeta.NEqu)
	m.fns.Residual(x, fx)
	return fx
}

func (m *FuncNLSModel) resJac(x []float64) *Coord {
	vals := make([]float64, m.nlsMeta.NNZJ)
	m.fns.ResJacVals(x, vals)
	return &Coord{NRows: m.nlsMeta.NEqu, NCols: m.meta.NVar, Rows: m.fns.ResJacRows, Cols: m.fns.ResJacCols, Vals: vals}
}

func (m *FuncNLSModel) consJac(x []float64) *Coord {
	vals := make([]float64, m.meta.NNZJ)
	if m.meta.NNZJ > 0 {
		m.fns.JacVals(x, vals)
	}
	return &Coord{NRows: m.meta.NCon, NCols: m.meta.NVar, Rows: m.fns.JacRows, Cols: m.fns.JacCols, Vals: vals}
}

// Obj implements Model.
func (m *FuncNLSModel) Obj(x []float64) (float64, error) {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return 0, err
	}
	m.counters.Increment(OpObj)
	fx := m.residual(x)
	return floats.Dot(fx, fx) / 2, nil
}

// Grad implements Model.
func (m *FuncNLSModel) Grad(x, g []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("g", g, m.meta.NVar)); err != nil {
		return err
	}
	m.counters.Increment(OpGrad)
	return m.resJac(x).MulVecTrans(g, m.residual(x))
}

// ObjGrad implements Model.
func (m *FuncNLSModel) ObjGrad(x, g []float64) (float64, error) {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("g", g, m.meta.NVar)); err != nil {
		return 0, err
	}
	m.counters.Increment(OpObj)
	m.counters.Increment(OpGrad)
	fx := m.residual(x)
	if err := m.resJac(x).MulVecTrans(g, fx); err != nil {
		return 0, err
	}
	return floats.Dot(fx, fx) / 2, nil
}

// Cons implements Model.
func (m *FuncNLSModel) Cons(x, c []float64) error {
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
func (m *FuncNLSModel) JacStructure(rows, cols []int) error {
	if err := errors.Join(CheckIndexLen("rows", rows, m.meta.NNZJ), CheckIndexLen("cols", cols, m.meta.NNZJ)); err != nil {
		return err
	}
	copy(rows, m.fns.JacRows)
	copy(cols, m.fns.JacCols)
	return nil
}

// JacCoord implements Model.
func (m *FuncNLSModel) JacCoord(x, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("vals", vals, m.meta.NNZJ)); err != nil {
		return err
	}
	m.counters.Increment(OpJac)
	copy(vals, m.consJac(x).Vals)
	return nil
}

// JProd implements Model.
func (m *FuncNLSModel) JProd(x, v, jv []float64) error {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return err
	}
	if err := m.consJac(x).MulVec(jv, v); err != nil {
		return err
	}
	m.counters.Increment(OpJProd)
	return nil
}

// JTProd implements Model.
func (m *FuncNLSModel) JTProd(x, v, jtv []float64) error {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return err
	}
	if err := m.consJac(x).MulVecTrans(jtv, v); err != nil {
		return err
	}
	m.counters.Increment(OpJTProd)
	return nil
}

// HessStructure implements Model.
func (m *FuncNLSModel) HessStructure(rows, cols []int) error {
	if err := errors.Join(CheckIndexLen("rows", rows, m.meta.NNZH), CheckIndexLen("cols", cols, m.meta.NNZH)); err != nil {
		return err
	}
	copy(rows, m.hessRows)
	copy(cols, m.hessCols)
	return nil
}

// lagrangianHess returns objWeight·(JᵀJ + Σ F_i ∇²F_i) + Σ y_j ∇²c_j as a dense matrix.
func (m *FuncNLSModel) lagrangianHess(x, y []float64, objWeight float64) *mat.Dense {
	n := m.meta.NVar
	h := mat.NewDense(n, n, nil)
	if objWeight != 0 {
		j := m.resJac(x).Dense()
		h.Mul(j.T(), j)
		fx := m.residual(x)
		vals := make([]float64, m.nlsMeta.NNZH)
		m.fns.ResHessVals(x, fx, vals)
		addSym(h, m.fns.ResHessRows, m.fns.ResHessCols, vals)
		h.Scale(objWeight, h)
	}
	if m.meta.NCon > 0 {
		vals := make([]float64, len(m.fns.ConsHessRows))
		m.fns.ConsHessVals(x, y, vals)
		addSym(h, m.fns.ConsHessRows, m.fns.ConsHessCols, vals)
	}
	return h
}

func addSym(h *mat.Dense, rows, cols []int, vals []float64) {
	for k, v := range vals {
		i, j := rows[k], cols[k]
		h.Set(i, j, h.At(i, j)+v)
		if i != j {
			h.Set(j, i, h.At(j, i)+v)
		}
	}
}

// HessCoord implements Model.
func (m *FuncNLSModel) HessCoord(x, y []float64, objWeight float64, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckMultipliers(y, m.meta.NCon), CheckLen("vals", vals, m.meta.NNZH)); err != nil {
		return err
	}
	m.counters.Increment(OpHess)
	h := m.lagrangianHess(x, Multipliers(y, m.meta.NCon), objWeight)
	for k := range vals {
		vals[k] = h.At(m.hessRows[k], m.hessCols[k])
	}
	return nil
}

// HProd implements Model.
func (m *FuncNLSModel) HProd(x, y, v []float64, objWeight float64, hv []float64) error {
	n := m.meta.NVar
	if err := errors.Join(CheckLen("x", x, n), CheckMultipliers(y, m.meta.NCon), CheckLen("v", v, n), CheckLen("hv", hv, n)); err != nil {
		return err
	}
	m.counters.Increment(OpHProd)
	clear(hv)
	if objWeight != 0 {
		j := m.resJac(x)
		jv := make([]float64, m.nlsMeta.NEqu)
		if err := j.MulVec(jv, v); err != nil {
			return err
		}
		if err := j.MulVecTrans(hv, jv); err != nil {
			return err
		}
		vals := make([]float64, m.nlsMeta.NNZH)
		m.fns.ResHessVals(x, m.residual(x), vals)
		symAddMulVec(hv, m.fns.ResHessRows, m.fns.ResHessCols, vals, v, 1)
		floats.Scale(objWeight, hv)
	}
	if m.meta.NCon > 0 {
		vals := make([]float64, len(m.fns.ConsHessRows))
		m.fns.ConsHessVals(x, Multipliers(y, m.meta.NCon), vals)
		symAddMulVec(hv, m.fns.ConsHessRows, m.fns.ConsHessCols, vals, v, 1)
	}
	return nil
}

// Residual implements NLSModel.
func (m *FuncNLSModel) Residual(x, fx []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("fx", fx, m.nlsMeta.NEqu)); err != nil {
		return err
	}
	m.counters.Increment(OpResidual)
	m.fns.Residual(x, fx)
	return nil
}

// JacStructureResidual implements NLSModel.
func (m *FuncNLSModel) JacStructureResidual(rows, cols []int) error {
	if err := errors.Join(CheckIndexLen("rows", rows, m.nlsMeta.NNZJ), CheckIndexLen("cols", cols, m.nlsMeta.NNZJ)); err != nil {
		return err
	}
	copy(rows, m.fns.ResJacRows)
	copy(cols, m.fns.ResJacCols)
	return nil
}

// JacCoordResidual implements NLSModel.
func (m *FuncNLSModel) JacCoordResidual(x, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("vals", vals, m.nlsMeta.NNZJ)); err != nil {
		return err
	}
	m.counters.Increment(OpJacResidual)
	m.fns.ResJacVals(x, vals)
	return nil
}

// JProdResidual implements NLSModel.
func (m *FuncNLSModel) JProdResidual(x, v, jv []float64) error {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return err
	}
	if err := m.resJac(x).MulVec(jv, v); err != nil {
		return err
	}
	m.counters.Increment(OpJProdResidual)
	return nil
}

// JTProdResidual implements NLSModel.
func (m *FuncNLSModel) JTProdResidual(x, v, jtv []float64) error {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return err
	}
	if err := m.resJac(x).MulVecTrans(jtv, v); err != nil {
		return err
	}
	m.counters.Increment(OpJTProdResidual)
	return nil
}

// HessStructureResidual implements NLSModel.
func (m *FuncNLSModel) HessStructureResidual(rows, cols []int) error {
	if err := errors.Join(CheckIndexLen("rows", rows, m.nlsMeta.NNZH), CheckIndexLen("cols", cols, m.nlsMeta.NNZH)); err != nil {
		return err
	}
	copy(rows, m.fns.ResHessRows)
	copy(cols, m.fns.ResHessCols)
	return nil
}

// HessCoordResidual implements NLSModel.
func (m *FuncNLSModel) HessCoordResidual(x, v, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("v", v, m.nlsMeta.NEqu), CheckLen("vals", vals, m.nlsMeta.NNZH)); err != nil {
		return err
	}
	m.counters.Increment(OpHessResidual)
	m.fns.ResHessVals(x, v, vals)
	return nil
}

func (m *FuncNLSModel) jthHess(x []float64, i int) (*Coord, error) {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return nil, err
	}
	if i < 0 || i >= m.nlsMeta.NEqu {
		return nil, fmt.Errorf("residual index %d out of range [0,%d): %w", i, m.nlsMeta.NEqu, ErrDimensionMismatch)
	}
	w := make([]float64, m.nlsMeta.NEqu)
	w[i] = 1
	vals := make([]float64, m.nlsMeta.NNZH)
	m.fns.ResHessVals(x, w, vals)
	n := m.meta.NVar
	return &Coord{NRows: n, NCols: n, Rows: append([]int(nil), m.fns.ResHessRows...), Cols: append([]int(nil), m.fns.ResHessCols...), Vals: vals}, nil
}

// HessResidual implements NLSModel.
func (m *FuncNLSModel) HessResidual(x []float64, i int) (*Coord, error) {
	h, err := m.jthHess(x, i)
	if err != nil {
		return nil, err
	}
	m.counters.Increment(OpHessResidual)
	return h, nil
}

// HProdResidual implements NLSModel.
func (m *FuncNLSModel) HProdResidual(x []float64, i int, v, hv []float64) error {
	h, err := m.jthHess(x, i)
	if err != nil {
		return err
	}
	if err := h.SymMulVec(hv, v); err != nil {
		return err
	}
	m.counters.Increment(OpHProdResidual)
	return nil
}

// Close implements Model.
func (m *FuncNLSModel) Close() error {
	return m.rel.close()
}
