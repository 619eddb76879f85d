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

// LLSModel is the linear least-squares problem
//
//	minimize ½‖Ax - b‖²  subject to  lvar ≤ x ≤ uvar,  lcon ≤ Cx ≤ ucon.
//
// A and C may be *Coord, *Dense or any other Operator. Coordinates of operators that are
// neither are computed on first use from products with the identity.
type LLSModel struct {
	meta     *Meta
	nlsMeta  *NLSMeta
	counters Counters
	a        Operator
	b        []float64
	c        Operator
	rel      releaser

	// Lazily materialized coordinates of A, C and AᵀA.
	aCoord, cCoord *Coord
	ata            []float64
	hessRows       []int
	hessCols       []int
}

// NewLLSModel returns the linear least-squares model with residual `Ax - b` and constraint
// operator `c`, which may be nil when there are no constraints. NVar, NCon, Lin, NNZJ and
// NNZH of `p` are derived from the operators.
func NewLLSModel(a Operator, b []float64, c Operator, p MetaParams) (*LLSModel, error) {
	if a == nil {
		return nil, fmt.Errorf("residual operator is required: %w", ErrInvalidStructure)
	}
	nequ, nvar := a.Dims()
	if err := CheckLen("b", b, nequ); err != nil {
		return nil, err
	}
	p.NVar, p.NCon = nvar, 0
	if c != nil {
		ncon, cvar := c.Dims()
		if cvar != nvar {
			return nil, fmt.Errorf("constraint operator has %d columns, want %d: %w", cvar, nvar, ErrDimensionMismatch)
		}
		p.NCon = ncon
	}
	p.Lin = make([]int, p.NCon)
	for j := range p.Lin {
		p.Lin[j] = j
	}
	p.NNZJ = nnz(c)
	p.NNZH = nvar * (nvar + 1) / 2
	meta, err := NewMeta(p)
	if err != nil {
		return nil, err
	}
	nlsMeta, err := NewNLSMeta(nequ, nvar, meta.X0, nnz(a), 0)
	if err != nil {
		return nil, err
	}
	m := &LLSModel{meta: meta, nlsMeta: nlsMeta, a: a, b: append([]float64(nil), b...), c: c}
	m.hessRows, m.hessCols = lowerPattern(nvar)
	log.V(2).Infof("nlpmodel: linear least-squares model %q with A %T (%dx%d), ncon=%d", meta.Name, a, nequ, nvar, meta.NCon)
	return m, nil
}

// nnz returns the number of structural entries Triplets reports for `op`.
func nnz(op Operator) int {
	if op == nil {
		return 0
	}
	if c, ok := op.(*Coord); ok {
		return len(c.Rows)
	}
	r, c := op.Dims()
	return r * c
}

// SetRelease registers a hook that Close runs once.
func (m *LLSModel) SetRelease(fn func() error) {
	m.rel.fn = fn
}

// Operators returns the residual operator, the right-hand side and the constraint operator
// of the model. The constraint operator is nil when the model has no constraints.
func (m *LLSModel) Operators() (a Operator, b []float64, c Operator) {
	return m.a, m.b, m.c
}

// Representation implements Representer.
func (m *LLSModel) Representation() Representation { return LinearLeastSquares }

// Meta implements Model.
func (m *LLSModel) Meta() *Meta { return m.meta }

// NLSMeta implements NLSModel.
func (m *LLSModel) NLSMeta() *NLSMeta { return m.nlsMeta }

// Counters implements Model.
func (m *LLSModel) Counters() *Counters { return &m.counters }

func (m *LLSModel) residual(x, fx []float64) error {
	if err := m.a.MulVec(fx, x); err != nil {
		return err
	}
	floats.Sub(fx, m.b)
	return nil
}

func (m *LLSModel) aTriplets() (*Coord, error) {
	if m.aCoord == nil {
		a, err := Triplets(m.a)
		if err != nil {
			return nil, err
		}
		m.aCoord = a
	}
	return m.aCoord, nil
}

func (m *LLSModel) cTriplets() (*Coord, error) {
	if m.cCoord == nil {
		if m.c == nil {
			m.cCoord = &Coord{NCols: m.meta.NVar}
			return m.cCoord, nil
		}
		c, err := Triplets(m.c)
		if err != nil {
			return nil, err
		}
		m.cCoord = c
	}
	return m.cCoord, nil
}

// normal returns the lower triangle of AᵀA in the order of the Hessian structure.
func (m *LLSModel) normal() ([]float64, error) {
	if m.ata != nil {
		return m.ata, nil
	}
	a, err := m.aTriplets()
	if err != nil {
		return nil, err
	}
	ad := a.Dense()
	var ata mat.Dense
	ata.Mul(ad.T(), ad)
	m.ata = make([]float64, len(m.hessRows))
	for k := range m.ata {
		m.ata[k] = ata.At(m.hessRows[k], m.hessCols[k])
	}
	return m.ata, nil
}

// Obj implements Model.
func (m *LLSModel) Obj(x []float64) (float64, error) {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return 0, err
	}
	fx := make([]float64, m.nlsMeta.NEqu)
	if err := m.residual(x, fx); err != nil {
		return 0, err
	}
	m.counters.Increment(OpObj)
	return floats.Dot(fx, fx) / 2, nil
}

// Grad implements Model.
func (m *LLSModel) Grad(x, g []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("g", g, m.meta.NVar)); err != nil {
		return err
	}
	fx := make([]float64, m.nlsMeta.NEqu)
	if err := m.residual(x, fx); err != nil {
		return err
	}
	if err := m.a.MulVecTrans(g, fx); err != nil {
		return err
	}
	m.counters.Increment(OpGrad)
	return nil
}

// ObjGrad implements Model.
func (m *LLSModel) ObjGrad(x, g []float64) (float64, error) {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("g", g, m.meta.NVar)); err != nil {
		return 0, err
	}
	fx := make([]float64, m.nlsMeta.NEqu)
	if err := m.residual(x, fx); err != nil {
		return 0, err
	}
	if err := m.a.MulVecTrans(g, fx); err != nil {
		return 0, err
	}
	m.counters.Increment(OpObj)
	m.counters.Increment(OpGrad)
	return floats.Dot(fx, fx) / 2, nil
}

// Cons implements Model.
func (m *LLSModel) Cons(x, c []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("c", c, m.meta.NCon)); err != nil {
		return err
	}
	if m.c != nil {
		if err := m.c.MulVec(c, x); err != nil {
			return err
		}
	}
	m.counters.Increment(OpCons)
	return nil
}

// JacStructure implements Model.
func (m *LLSModel) JacStructure(rows, cols []int) error {
	if err := errors.Join(CheckIndexLen("rows", rows, m.meta.NNZJ), CheckIndexLen("cols", cols, m.meta.NNZJ)); err != nil {
		return err
	}
	c, err := m.cTriplets()
	if err != nil {
		return err
	}
	copy(rows, c.Rows)
	copy(cols, c.Cols)
	return nil
}

// JacCoord implements Model.
func (m *LLSModel) JacCoord(x, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("vals", vals, m.meta.NNZJ)); err != nil {
		return err
	}
	c, err := m.cTriplets()
	if err != nil {
		return err
	}
	m.counters.Increment(OpJac)
	copy(vals, c.Vals)
	return nil
}

// JProd implements Model.
func (m *LLSModel) JProd(x, v, jv []float64) error {
	n := m.meta.NVar
	if err := errors.Join(CheckLen("x", x, n), CheckLen("v", v, n), CheckLen("jv", jv, m.meta.NCon)); err != nil {
		return err
	}
	if m.c != nil {
		if err := m.c.MulVec(jv, v); err != nil {
			return err
		}
	}
	m.counters.Increment(OpJProd)
	return nil
}

// JTProd implements Model.
func (m *LLSModel) JTProd(x, v, jtv []float64) error {
	n := m.meta.NVar
	if err := errors.Join(CheckLen("x", x, n), CheckLen("v", v, m.meta.NCon), CheckLen("jtv", jtv, n)); err != nil {
		return err
	}
	if m.c == nil {
		clear(jtv)
	} else if err := m.c.MulVecTrans(jtv, v); err != nil {
		return err
	}
	m.counters.Increment(OpJTProd)
	return nil
}

// HessStructure implements Model.
func (m *LLSModel) HessStructure(rows, cols []int) error {
	if err := errors.Join(CheckIndexLen("rows", rows, m.meta.NNZH), CheckIndexLen("cols", cols, m.meta.NNZH)); err != nil {
		return err
	}
	copy(rows, m.hessRows)
	copy(cols, m.hessCols)
	return nil
}

// HessCoord implements Model. Constraints are linear, so the multipliers do not contribute.
func (m *LLSModel) HessCoord(x, y []float64, objWeight float64, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckMultipliers(y, m.meta.NCon), CheckLen("vals", vals, m.meta.NNZH)); err != nil {
		return err
	}
	ata, err := m.normal()
	if err != nil {
		return err
	}
	m.counters.Increment(OpHess)
	for k, v := range ata {
		vals[k] = objWeight * v
	}
	return nil
}

// HProd implements Model.
func (m *LLSModel) HProd(x, y, v []float64, objWeight float64, hv []float64) error {
	n := m.meta.NVar
	if err := errors.Join(CheckLen("x", x, n), CheckMultipliers(y, m.meta.NCon), CheckLen("v", v, n), CheckLen("hv", hv, n)); err != nil {
		return err
	}
	av := make([]float64, m.nlsMeta.NEqu)
	if err := m.a.MulVec(av, v); err != nil {
		return err
	}
	if err := m.a.MulVecTrans(hv, av); err != nil {
		return err
	}
	floats.Scale(objWeight, hv)
	m.counters.Increment(OpHProd)
	return nil
}

// Residual implements NLSModel.
func (m *LLSModel) Residual(x, fx []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("fx", fx, m.nlsMeta.NEqu)); err != nil {
		return err
	}
	if err := m.residual(x, fx); err != nil {
		return err
	}
	m.counters.Increment(OpResidual)
	return nil
}

// JacStructureResidual implements NLSModel.
func (m *LLSModel) JacStructureResidual(rows, cols []int) error {
	if err := errors.Join(CheckIndexLen("rows", rows, m.nlsMeta.NNZJ), CheckIndexLen("cols", cols, m.nlsMeta.NNZJ)); err != nil {
		return err
	}
	a, err := m.aTriplets()
	if err != nil {
		return err
	}
	copy(rows, a.Rows)
	copy(cols, a.Cols)
	return nil
}

// JacCoordResidual implements NLSModel.
func (m *LLSModel) JacCoordResidual(x, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("vals", vals, m.nlsMeta.NNZJ)); err != nil {
		return err
	}
	a, err := m.aTriplets()
	if err != nil {
		return err
	}
	m.counters.Increment(OpJacResidual)
	copy(vals, a.Vals)
	return nil
}

// JProdResidual implements NLSModel.
func (m *LLSModel) JProdResidual(x, v, jv []float64) error {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return err
	}
	if err := m.a.MulVec(jv, v); err != nil {
		return err
	}
	m.counters.Increment(OpJProdResidual)
	return nil
}

// JTProdResidual implements NLSModel.
func (m *LLSModel) JTProdResidual(x, v, jtv []float64) error {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return err
	}
	if err := m.a.MulVecTrans(jtv, v); err != nil {
		return err
	}
	m.counters.Increment(OpJTProdResidual)
	return nil
}

// HessStructureResidual implements NLSModel. Residuals are linear, so the structure is empty.
func (m *LLSModel) HessStructureResidual(rows, cols []int) error {
	return errors.Join(CheckIndexLen("rows", rows, 0), CheckIndexLen("cols", cols, 0))
}

// HessCoordResidual implements NLSModel.
func (m *LLSModel) HessCoordResidual(x, v, vals []float64) error {
	if err := errors.Join(CheckLen("x", x, m.meta.NVar), CheckLen("v", v, m.nlsMeta.NEqu), CheckLen("vals", vals, 0)); err != nil {
		return err
	}
	m.counters.Increment(OpHessResidual)
	return nil
}

// HessResidual implements NLSModel.
func (m *LLSModel) HessResidual(x []float64, i int) (*Coord, error) {
	if err := CheckLen("x", x, m.meta.NVar); err != nil {
		return nil, err
	}
	if i < 0 || i >= m.nlsMeta.NEqu {
		return nil, fmt.Errorf("residual index %d out of range [0,%d): %w", i, m.nlsMeta.NEqu, ErrDimensionMismatch)
	}
	m.counters.Increment(OpHessResidual)
	return &Coord{NRows: m.meta.NVar, NCols: m.meta.NVar}, nil
}

// HProdResidual implements NLSModel.
func (m *LLSModel) HProdResidual(x []float64, i int, v, hv []float64) error {
	n := m.meta.NVar
	if err := errors.Join(CheckLen("x", x, n), CheckLen("v", v, n), CheckLen("hv", hv, n)); err != nil {
		return err
	}
	if i < 0 || i >= m.nlsMeta.NEqu {
		return fmt.Errorf("residual index %d out of range [0,%d): %w", i, m.nlsMeta.NEqu, ErrDimensionMismatch)
	}
	m.counters.Increment(OpHProdResidual)
	clear(hv)
	return nil
}

// Close implements Model.
func (m *LLSModel) Close() error {
	return m.rel.close()
}
