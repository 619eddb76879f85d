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
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
	"gonum.org/v1/gonum/floats"
)

// ResidualAsConstraints is the feasibility form of a least-squares model:
//
//	min ½‖r‖²  s.t.  F(x) - r = 0,  lcon ≤ c(x) ≤ ucon,  lvar ≤ x ≤ uvar
//
// over the variables [x; r]. The residual constraints come first. The model counts its own
// evaluations; the wrapped model's counters move as delegated calls reach it.
type ResidualAsConstraints struct {
	ownCounters
	closeOnce
	nls     nlpmodel.NLSModel
	meta    *nlpmodel.Meta
	nlsMeta *nlpmodel.NLSMeta
	n, nequ int
}

// NewResidualAsConstraints wraps `nls` into its feasibility form. The returned model closes
// `nls` on Close.
func NewResidualAsConstraints(nls nlpmodel.NLSModel) (*ResidualAsConstraints, error) {
	inner, innerNLS := nls.Meta(), nls.NLSMeta()
	n, m, nequ := inner.NVar, inner.NCon, innerNLS.NEqu
	if innerNLS.NVar != n {
		return nil, fmt.Errorf("residual of %q has %d variables, model has %d: %w", inner.Name, innerNLS.NVar, n, nlpmodel.ErrDimensionMismatch)
	}

	p := inner.Params()
	p.Name = inner.Name + "-ffnls"
	p.NVar = n + nequ
	p.X0 = append(p.X0, make([]float64, nequ)...)
	for range nequ {
		p.LVar = append(p.LVar, math.Inf(-1))
		p.UVar = append(p.UVar, math.Inf(1))
	}
	p.NCon = m + nequ
	p.Y0 = append(make([]float64, nequ), p.Y0...)
	p.LCon = append(make([]float64, nequ), p.LCon...)
	p.UCon = append(make([]float64, nequ), p.UCon...)
	for k := range p.Lin {
		p.Lin[k] += nequ
	}
	p.NNZJ = innerNLS.NNZJ + nequ + inner.NNZJ
	p.NNZH = innerNLS.NNZH + nequ
	if m > 0 {
		p.NNZH += inner.NNZH
	}
	meta, err := nlpmodel.NewMeta(p)
	if err != nil {
		return nil, fmt.Errorf("feasibility form of %q: %w", inner.Name, err)
	}
	nlsMeta, err := nlpmodel.NewNLSMeta(nequ, n+nequ, meta.X0, nequ, 0)
	if err != nil {
		return nil, fmt.Errorf("feasibility form of %q: %w", inner.Name, err)
	}
	log.V(1).Infof("modifiers: %q moves %d residuals into the constraints (nvar %d -> %d, ncon %d -> %d)", inner.Name, nequ, n, meta.NVar, m, meta.NCon)
	return &ResidualAsConstraints{
		closeOnce: closeOnce{inner: nls},
		nls:       nls,
		meta:      meta,
		nlsMeta:   nlsMeta,
		n:         n,
		nequ:      nequ,
	}, nil
}

// Inner returns the wrapped model.
func (m *ResidualAsConstraints) Inner() nlpmodel.NLSModel { return m.nls }

// Meta implements nlpmodel.Model.
func (m *ResidualAsConstraints) Meta() *nlpmodel.Meta { return m.meta }

// NLSMeta implements nlpmodel.NLSModel.
func (m *ResidualAsConstraints) NLSMeta() *nlpmodel.NLSMeta { return m.nlsMeta }

func (m *ResidualAsConstraints) ncon() int { return m.meta.NCon - m.nequ }

func (m *ResidualAsConstraints) checkX(x []float64) error {
	return nlpmodel.CheckLen("x", x, m.meta.NVar)
}

// split returns the original variables and the residual variables of x.
func (m *ResidualAsConstraints) split(x []float64) (xs, r []float64) {
	return x[:m.n], x[m.n:]
}

// Obj implements nlpmodel.Model.
func (m *ResidualAsConstraints) Obj(x []float64) (float64, error) {
	if err := m.checkX(x); err != nil {
		return 0, err
	}
	_, r := m.split(x)
	m.increment(nlpmodel.OpObj)
	return floats.Dot(r, r) / 2, nil
}

// Grad implements nlpmodel.Model.
func (m *ResidualAsConstraints) Grad(x, g []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("g", g, m.meta.NVar)); err != nil {
		return err
	}
	_, r := m.split(x)
	clear(g[:m.n])
	copy(g[m.n:], r)
	m.increment(nlpmodel.OpGrad)
	return nil
}

// ObjGrad implements nlpmodel.Model.
func (m *ResidualAsConstraints) ObjGrad(x, g []float64) (float64, error) {
	f, err := m.Obj(x)
	if err != nil {
		return 0, err
	}
	if err := m.Grad(x, g); err != nil {
		return 0, err
	}
	return f, nil
}

// Cons implements nlpmodel.Model.
func (m *ResidualAsConstraints) Cons(x, c []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("c", c, m.meta.NCon)); err != nil {
		return err
	}
	xs, r := m.split(x)
	if err := m.nls.Residual(xs, c[:m.nequ]); err != nil {
		return err
	}
	floats.Sub(c[:m.nequ], r)
	if m.ncon() > 0 {
		if err := m.nls.Cons(xs, c[m.nequ:]); err != nil {
			return err
		}
	}
	m.increment(nlpmodel.OpCons)
	return nil
}

// JacStructure implements nlpmodel.Model. Entries are ordered as the residual Jacobian, the
// -I block of the residual variables and the shifted constraint Jacobian.
func (m *ResidualAsConstraints) JacStructure(rows, cols []int) error {
	if err := errors.Join(nlpmodel.CheckIndexLen("rows", rows, m.meta.NNZJ), nlpmodel.CheckIndexLen("cols", cols, m.meta.NNZJ)); err != nil {
		return err
	}
	nf := m.nls.NLSMeta().NNZJ
	if err := m.nls.JacStructureResidual(rows[:nf], cols[:nf]); err != nil {
		return err
	}
	for i := range m.nequ {
		rows[nf+i], cols[nf+i] = i, m.n+i
	}
	if m.ncon() == 0 {
		return nil
	}
	off := nf + m.nequ
	if err := m.nls.JacStructure(rows[off:], cols[off:]); err != nil {
		return err
	}
	for k := off; k < len(rows); k++ {
		rows[k] += m.nequ
	}
	return nil
}

// JacCoord implements nlpmodel.Model.
func (m *ResidualAsConstraints) JacCoord(x, vals []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("vals", vals, m.meta.NNZJ)); err != nil {
		return err
	}
	xs, _ := m.split(x)
	nf := m.nls.NLSMeta().NNZJ
	if err := m.nls.JacCoordResidual(xs, vals[:nf]); err != nil {
		return err
	}
	for k := nf; k < nf+m.nequ; k++ {
		vals[k] = -1
	}
	if m.ncon() > 0 {
		if err := m.nls.JacCoord(xs, vals[nf+m.nequ:]); err != nil {
			return err
		}
	}
	m.increment(nlpmodel.OpJac)
	return nil
}

// JProd implements nlpmodel.Model.
func (m *ResidualAsConstraints) JProd(x, v, jv []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.meta.NVar), nlpmodel.CheckLen("jv", jv, m.meta.NCon)); err != nil {
		return err
	}
	xs, _ := m.split(x)
	vx, vr := m.split(v)
	if err := m.nls.JProdResidual(xs, vx, jv[:m.nequ]); err != nil {
		return err
	}
	floats.Sub(jv[:m.nequ], vr)
	if m.ncon() > 0 {
		if err := m.nls.JProd(xs, vx, jv[m.nequ:]); err != nil {
			return err
		}
	}
	m.increment(nlpmodel.OpJProd)
	return nil
}

// JTProd implements nlpmodel.Model.
func (m *ResidualAsConstraints) JTProd(x, v, jtv []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.meta.NCon), nlpmodel.CheckLen("jtv", jtv, m.meta.NVar)); err != nil {
		return err
	}
	xs, _ := m.split(x)
	vf, vc := v[:m.nequ], v[m.nequ:]
	if err := m.nls.JTProdResidual(xs, vf, jtv[:m.n]); err != nil {
		return err
	}
	if m.ncon() > 0 {
		tmp := make([]float64, m.n)
		if err := m.nls.JTProd(xs, vc, tmp); err != nil {
			return err
		}
		floats.Add(jtv[:m.n], tmp)
	}
	floats.ScaleTo(jtv[m.n:], -1, vf)
	m.increment(nlpmodel.OpJTProd)
	return nil
}

// HessStructure implements nlpmodel.Model. Entries are ordered as the constraint part of the
// wrapped Lagrangian Hessian (only when the wrapped model has constraints), the residual
// Hessians and the diagonal of the residual variables.
func (m *ResidualAsConstraints) HessStructure(rows, cols []int) error {
	if err := errors.Join(nlpmodel.CheckIndexLen("rows", rows, m.meta.NNZH), nlpmodel.CheckIndexLen("cols", cols, m.meta.NNZH)); err != nil {
		return err
	}
	off := 0
	if m.ncon() > 0 {
		off = m.nls.Meta().NNZH
		if err := m.nls.HessStructure(rows[:off], cols[:off]); err != nil {
			return err
		}
	}
	nf := m.nls.NLSMeta().NNZH
	if err := m.nls.HessStructureResidual(rows[off:off+nf], cols[off:off+nf]); err != nil {
		return err
	}
	off += nf
	for i := range m.nequ {
		rows[off+i], cols[off+i] = m.n+i, m.n+i
	}
	return nil
}

// HessCoord implements nlpmodel.Model. The multipliers of the residual constraints weight
// the residual Hessians; the wrapped objective does not contribute.
func (m *ResidualAsConstraints) HessCoord(x, y []float64, objWeight float64, vals []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckMultipliers(y, m.meta.NCon), nlpmodel.CheckLen("vals", vals, m.meta.NNZH)); err != nil {
		return err
	}
	xs, _ := m.split(x)
	y = nlpmodel.Multipliers(y, m.meta.NCon)
	yf, yc := y[:m.nequ], y[m.nequ:]
	off := 0
	if m.ncon() > 0 {
		off = m.nls.Meta().NNZH
		if err := m.nls.HessCoord(xs, yc, 0, vals[:off]); err != nil {
			return err
		}
	}
	nf := m.nls.NLSMeta().NNZH
	if err := m.nls.HessCoordResidual(xs, yf, vals[off:off+nf]); err != nil {
		return err
	}
	for k := off + nf; k < len(vals); k++ {
		vals[k] = objWeight
	}
	m.increment(nlpmodel.OpHess)
	return nil
}

// HProd implements nlpmodel.Model.
func (m *ResidualAsConstraints) HProd(x, y, v []float64, objWeight float64, hv []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckMultipliers(y, m.meta.NCon), nlpmodel.CheckLen("v", v, m.meta.NVar), nlpmodel.CheckLen("hv", hv, m.meta.NVar)); err != nil {
		return err
	}
	xs, _ := m.split(x)
	vx, vr := m.split(v)
	y = nlpmodel.Multipliers(y, m.meta.NCon)
	yf, yc := y[:m.nequ], y[m.nequ:]
	hx := hv[:m.n]
	clear(hx)
	if m.ncon() > 0 {
		if err := m.nls.HProd(xs, yc, vx, 0, hx); err != nil {
			return err
		}
	}
	tmp := make([]float64, m.n)
	for i, w := range yf {
		if w == 0 {
			continue
		}
		if err := m.nls.HProdResidual(xs, i, vx, tmp); err != nil {
			return err
		}
		floats.AddScaled(hx, w, tmp)
	}
	floats.ScaleTo(hv[m.n:], objWeight, vr)
	m.increment(nlpmodel.OpHProd)
	return nil
}

// Residual implements nlpmodel.NLSModel. The residual of the feasibility form is r.
func (m *ResidualAsConstraints) Residual(x, fx []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("fx", fx, m.nequ)); err != nil {
		return err
	}
	_, r := m.split(x)
	copy(fx, r)
	m.increment(nlpmodel.OpResidual)
	return nil
}

// JacStructureResidual implements nlpmodel.NLSModel. The residual Jacobian is [0 I].
func (m *ResidualAsConstraints) JacStructureResidual(rows, cols []int) error {
	if err := errors.Join(nlpmodel.CheckIndexLen("rows", rows, m.nequ), nlpmodel.CheckIndexLen("cols", cols, m.nequ)); err != nil {
		return err
	}
	for i := range m.nequ {
		rows[i], cols[i] = i, m.n+i
	}
	return nil
}

// JacCoordResidual implements nlpmodel.NLSModel.
func (m *ResidualAsConstraints) JacCoordResidual(x, vals []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("vals", vals, m.nequ)); err != nil {
		return err
	}
	for k := range vals {
		vals[k] = 1
	}
	m.increment(nlpmodel.OpJacResidual)
	return nil
}

// JProdResidual implements nlpmodel.NLSModel.
func (m *ResidualAsConstraints) JProdResidual(x, v, jv []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.meta.NVar), nlpmodel.CheckLen("jv", jv, m.nequ)); err != nil {
		return err
	}
	_, vr := m.split(v)
	copy(jv, vr)
	m.increment(nlpmodel.OpJProdResidual)
	return nil
}

// JTProdResidual implements nlpmodel.NLSModel.
func (m *ResidualAsConstraints) JTProdResidual(x, v, jtv []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.nequ), nlpmodel.CheckLen("jtv", jtv, m.meta.NVar)); err != nil {
		return err
	}
	clear(jtv[:m.n])
	copy(jtv[m.n:], v)
	m.increment(nlpmodel.OpJTProdResidual)
	return nil
}

// HessStructureResidual implements nlpmodel.NLSModel. The residual is linear, so the
// structure is empty.
func (m *ResidualAsConstraints) HessStructureResidual(rows, cols []int) error {
	return errors.Join(nlpmodel.CheckIndexLen("rows", rows, 0), nlpmodel.CheckIndexLen("cols", cols, 0))
}

// HessCoordResidual implements nlpmodel.NLSModel.
func (m *ResidualAsConstraints) HessCoordResidual(x, v, vals []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.nequ), nlpmodel.CheckLen("vals", vals, 0)); err != nil {
		return err
	}
	m.increment(nlpmodel.OpHessResidual)
	return nil
}

// HessResidual implements nlpmodel.NLSModel.
func (m *ResidualAsConstraints) HessResidual(x []float64, i int) (*nlpmodel.Coord, error) {
	if err := errors.Join(m.checkX(x), checkResidualIndex(i, m.nequ)); err != nil {
		return nil, err
	}
	m.increment(nlpmodel.OpHessResidual)
	return nlpmodel.NewCoord(m.meta.NVar, m.meta.NVar, nil, nil, nil)
}

// HProdResidual implements nlpmodel.NLSModel.
func (m *ResidualAsConstraints) HProdResidual(x []float64, i int, v, hv []float64) error {
	if err := errors.Join(m.checkX(x), checkResidualIndex(i, m.nequ), nlpmodel.CheckLen("v", v, m.meta.NVar), nlpmodel.CheckLen("hv", hv, m.meta.NVar)); err != nil {
		return err
	}
	clear(hv)
	m.increment(nlpmodel.OpHProdResidual)
	return nil
}

func checkResidualIndex(i, nequ int) error {
	if i < 0 || i >= nequ {
		return fmt.Errorf("residual index %d out of [0, %d): %w", i, nequ, nlpmodel.ErrDimensionMismatch)
	}
	return nil
}
