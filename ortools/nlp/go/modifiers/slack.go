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

	log "github.com/golang/glog"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
)

// SlackModel presents the model
//
//	min f(x)  s.t.  c(x) - s = 0,  lvar ≤ x ≤ uvar,  lcon ≤ s ≤ ucon
//
// over the variables [x; s], where a slack is introduced for every constraint that is not
// fixed. Fixed constraints keep their value. Evaluations are delegated to the wrapped model,
// whose counters the SlackModel reports.
type SlackModel struct {
	forwardCounters
	closeOnce
	inner nlpmodel.Model
	meta  *nlpmodel.Meta
	idx   slackIndex
}

// NewSlackModel wraps `m` into a SlackModel, even when `m` has no inequality constraints.
// Use Slack to skip the wrapper in that case. The SlackModel closes `m` on Close.
func NewSlackModel(m nlpmodel.Model) (*SlackModel, error) {
	meta, idx, err := slackMeta(m.Meta())
	if err != nil {
		return nil, err
	}
	log.V(1).Infof("modifiers: %q gets %d slack variables (%d lower, %d upper, %d range)", m.Meta().Name, idx.ns(), len(idx.low), len(idx.upp), len(idx.rng))
	return &SlackModel{
		forwardCounters: forwardCounters{inner: m},
		closeOnce:       closeOnce{inner: m},
		inner:           m,
		meta:            meta,
		idx:             idx,
	}, nil
}

// Inner returns the wrapped model.
func (m *SlackModel) Inner() nlpmodel.Model { return m.inner }

// Meta implements nlpmodel.Model.
func (m *SlackModel) Meta() *nlpmodel.Meta { return m.meta }

func (m *SlackModel) checkX(x []float64) error {
	return nlpmodel.CheckLen("x", x, m.meta.NVar)
}

// Obj implements nlpmodel.Model.
func (m *SlackModel) Obj(x []float64) (float64, error) {
	if err := m.checkX(x); err != nil {
		return 0, err
	}
	return m.inner.Obj(x[:m.idx.n])
}

// Grad implements nlpmodel.Model.
func (m *SlackModel) Grad(x, g []float64) error {
	n := m.idx.n
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("g", g, m.meta.NVar)); err != nil {
		return err
	}
	if err := m.inner.Grad(x[:n], g[:n]); err != nil {
		return err
	}
	clear(g[n:])
	return nil
}

// ObjGrad implements nlpmodel.Model.
func (m *SlackModel) ObjGrad(x, g []float64) (float64, error) {
	n := m.idx.n
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("g", g, m.meta.NVar)); err != nil {
		return 0, err
	}
	f, err := m.inner.ObjGrad(x[:n], g[:n])
	if err != nil {
		return 0, err
	}
	clear(g[n:])
	return f, nil
}

// Cons implements nlpmodel.Model.
func (m *SlackModel) Cons(x, c []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("c", c, m.meta.NCon)); err != nil {
		return err
	}
	if err := m.inner.Cons(x[:m.idx.n], c); err != nil {
		return err
	}
	m.idx.subtract(c, x)
	return nil
}

// JacStructure implements nlpmodel.Model.
func (m *SlackModel) JacStructure(rows, cols []int) error {
	if err := errors.Join(nlpmodel.CheckIndexLen("rows", rows, m.meta.NNZJ), nlpmodel.CheckIndexLen("cols", cols, m.meta.NNZJ)); err != nil {
		return err
	}
	nnz := m.inner.Meta().NNZJ
	if err := m.inner.JacStructure(rows[:nnz], cols[:nnz]); err != nil {
		return err
	}
	m.idx.appendStructure(rows[nnz:], cols[nnz:])
	return nil
}

// JacCoord implements nlpmodel.Model.
func (m *SlackModel) JacCoord(x, vals []float64) error {
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("vals", vals, m.meta.NNZJ)); err != nil {
		return err
	}
	nnz := m.inner.Meta().NNZJ
	if err := m.inner.JacCoord(x[:m.idx.n], vals[:nnz]); err != nil {
		return err
	}
	for k := nnz; k < len(vals); k++ {
		vals[k] = -1
	}
	return nil
}

// JProd implements nlpmodel.Model.
func (m *SlackModel) JProd(x, v, jv []float64) error {
	n := m.idx.n
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.meta.NVar), nlpmodel.CheckLen("jv", jv, m.meta.NCon)); err != nil {
		return err
	}
	if err := m.inner.JProd(x[:n], v[:n], jv); err != nil {
		return err
	}
	m.idx.subtract(jv, v)
	return nil
}

// JTProd implements nlpmodel.Model.
func (m *SlackModel) JTProd(x, v, jtv []float64) error {
	n := m.idx.n
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.meta.NCon), nlpmodel.CheckLen("jtv", jtv, m.meta.NVar)); err != nil {
		return err
	}
	if err := m.inner.JTProd(x[:n], v, jtv[:n]); err != nil {
		return err
	}
	m.idx.scatterTrans(jtv, v)
	return nil
}

// HessStructure implements nlpmodel.Model. The slack block of the Hessian is zero, so the
// structure is the wrapped model's.
func (m *SlackModel) HessStructure(rows, cols []int) error {
	return m.inner.HessStructure(rows, cols)
}

// HessCoord implements nlpmodel.Model.
func (m *SlackModel) HessCoord(x, y []float64, objWeight float64, vals []float64) error {
	if err := m.checkX(x); err != nil {
		return err
	}
	return m.inner.HessCoord(x[:m.idx.n], y, objWeight, vals)
}

// HProd implements nlpmodel.Model.
func (m *SlackModel) HProd(x, y, v []float64, objWeight float64, hv []float64) error {
	n := m.idx.n
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.meta.NVar), nlpmodel.CheckLen("hv", hv, m.meta.NVar)); err != nil {
		return err
	}
	if err := m.inner.HProd(x[:n], y, v[:n], objWeight, hv[:n]); err != nil {
		return err
	}
	clear(hv[n:])
	return nil
}

// SlackNLSModel is the SlackModel of a least-squares model. The residual does not depend on
// the slack variables, so residual derivatives are zero on the slack block.
type SlackNLSModel struct {
	*SlackModel
	nls     nlpmodel.NLSModel
	nlsMeta *nlpmodel.NLSMeta
}

// NewSlackNLSModel wraps `nls` into a SlackNLSModel.
func NewSlackNLSModel(nls nlpmodel.NLSModel) (*SlackNLSModel, error) {
	sm, err := NewSlackModel(nls)
	if err != nil {
		return nil, err
	}
	inner := nls.NLSMeta()
	nlsMeta, err := nlpmodel.NewNLSMeta(inner.NEqu, sm.meta.NVar, sm.meta.X0, inner.NNZJ, inner.NNZH)
	if err != nil {
		return nil, fmt.Errorf("slack reformulation of %q: %w", nls.Meta().Name, err)
	}
	return &SlackNLSModel{SlackModel: sm, nls: nls, nlsMeta: nlsMeta}, nil
}

// NLSMeta implements nlpmodel.NLSModel.
func (m *SlackNLSModel) NLSMeta() *nlpmodel.NLSMeta { return m.nlsMeta }

// Residual implements nlpmodel.NLSModel.
func (m *SlackNLSModel) Residual(x, fx []float64) error {
	if err := m.checkX(x); err != nil {
		return err
	}
	return m.nls.Residual(x[:m.idx.n], fx)
}

// JacStructureResidual implements nlpmodel.NLSModel.
func (m *SlackNLSModel) JacStructureResidual(rows, cols []int) error {
	return m.nls.JacStructureResidual(rows, cols)
}

// JacCoordResidual implements nlpmodel.NLSModel.
func (m *SlackNLSModel) JacCoordResidual(x, vals []float64) error {
	if err := m.checkX(x); err != nil {
		return err
	}
	return m.nls.JacCoordResidual(x[:m.idx.n], vals)
}

// JProdResidual implements nlpmodel.NLSModel.
func (m *SlackNLSModel) JProdResidual(x, v, jv []float64) error {
	n := m.idx.n
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.meta.NVar)); err != nil {
		return err
	}
	return m.nls.JProdResidual(x[:n], v[:n], jv)
}

// JTProdResidual implements nlpmodel.NLSModel.
func (m *SlackNLSModel) JTProdResidual(x, v, jtv []float64) error {
	n := m.idx.n
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("jtv", jtv, m.meta.NVar)); err != nil {
		return err
	}
	if err := m.nls.JTProdResidual(x[:n], v, jtv[:n]); err != nil {
		return err
	}
	clear(jtv[n:])
	return nil
}

// HessStructureResidual implements nlpmodel.NLSModel.
func (m *SlackNLSModel) HessStructureResidual(rows, cols []int) error {
	return m.nls.HessStructureResidual(rows, cols)
}

// HessCoordResidual implements nlpmodel.NLSModel.
func (m *SlackNLSModel) HessCoordResidual(x, v, vals []float64) error {
	if err := m.checkX(x); err != nil {
		return err
	}
	return m.nls.HessCoordResidual(x[:m.idx.n], v, vals)
}

// HessResidual implements nlpmodel.NLSModel. The returned matrix has the dimensions of the
// slack model.
func (m *SlackNLSModel) HessResidual(x []float64, i int) (*nlpmodel.Coord, error) {
	if err := m.checkX(x); err != nil {
		return nil, err
	}
	h, err := m.nls.HessResidual(x[:m.idx.n], i)
	if err != nil {
		return nil, err
	}
	return &nlpmodel.Coord{NRows: m.meta.NVar, NCols: m.meta.NVar, Rows: h.Rows, Cols: h.Cols, Vals: h.Vals}, nil
}

// HProdResidual implements nlpmodel.NLSModel.
func (m *SlackNLSModel) HProdResidual(x []float64, i int, v, hv []float64) error {
	n := m.idx.n
	if err := errors.Join(m.checkX(x), nlpmodel.CheckLen("v", v, m.meta.NVar), nlpmodel.CheckLen("hv", hv, m.meta.NVar)); err != nil {
		return err
	}
	if err := m.nls.HProdResidual(x[:n], i, v[:n], hv[:n]); err != nil {
		return err
	}
	clear(hv[n:])
	return nil
}
