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
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlptest"
	"gonum.org/v1/gonum/mat"
)

var approx = cmpopts.EquateApprox(0, 1e-12)

func mustResidualAsConstraints(t *testing.T, nls nlpmodel.NLSModel) *ResidualAsConstraints {
	t.Helper()
	m, err := NewResidualAsConstraints(nls)
	if err != nil {
		t.Fatalf("NewResidualAsConstraints(%q) returned with unexpected error: %v", nls.Meta().Name, err)
	}
	return m
}

func TestResidualAsConstraints_Meta(t *testing.T) {
	inf := math.Inf(1)
	testCases := []struct {
		name        string
		nls         nlpmodel.NLSModel
		want        *nlpmodel.Meta
		wantNLSMeta *nlpmodel.NLSMeta
	}{
		{
			name: "unconstrained",
			nls:  nlptest.NLS(),
			want: &nlpmodel.Meta{
				Name: "nls-ffnls",
				NVar: 5,
				X0:   []float64{1, 1, 1, 0, 0},
				LVar: []float64{-inf, -inf, -inf, -inf, -inf},
				UVar: []float64{inf, inf, inf, inf, inf},
				NCon: 2,
				Y0:   []float64{0, 0},
				LCon: []float64{0, 0},
				UCon: []float64{0, 0},
				JFix: []int{0, 1},
				Nln:  []int{0, 1},
				NNZJ: 6,
				NNZH: 4,
			},
			wantNLSMeta: &nlpmodel.NLSMeta{NEqu: 2, NVar: 5, X0: []float64{1, 1, 1, 0, 0}, NNZJ: 2},
		},
		{
			name: "constrained",
			nls:  nlptest.ConstrainedNLS(),
			want: &nlpmodel.Meta{
				Name: "constrained-nls-ffnls",
				NVar: 5,
				X0:   []float64{1, 1, 1, 0, 0},
				LVar: []float64{-inf, -inf, -inf, -inf, -inf},
				UVar: []float64{inf, inf, inf, inf, inf},
				NCon: 5,
				Y0:   []float64{0, 0, 0, 0, 0},
				LCon: []float64{0, 0, 1, 0, -2},
				UCon: []float64{0, 0, inf, 0, 2},
				JLow: []int{2},
				JRng: []int{4},
				JFix: []int{0, 1, 3},
				Lin:  []int{2},
				Nln:  []int{0, 1, 3, 4},
				NNZJ: 13,
				NNZH: 10,
			},
			wantNLSMeta: &nlpmodel.NLSMeta{NEqu: 2, NVar: 5, X0: []float64{1, 1, 1, 0, 0}, NNZJ: 2},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			m := mustResidualAsConstraints(t, test.nls)
			if diff := cmp.Diff(test.want, m.Meta(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Meta() returned with unexpected diff (-want+got);\n%s", diff)
			}
			if diff := cmp.Diff(test.wantNLSMeta, m.NLSMeta(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("NLSMeta() returned with unexpected diff (-want+got);\n%s", diff)
			}
		})
	}
}

func TestResidualAsConstraints_ObjAndCons(t *testing.T) {
	m := mustResidualAsConstraints(t, nlptest.NLS())
	x := []float64{1, 1, 1, 0.5, -0.5}

	f, err := m.Obj(x)
	if err != nil {
		t.Fatalf("Obj(%v) returned with unexpected error: %v", x, err)
	}
	if f != 0.25 {
		t.Errorf("Obj(%v) = %v, want 0.25", x, f)
	}

	c := make([]float64, 2)
	if err := m.Cons(x, c); err != nil {
		t.Fatalf("Cons(%v) returned with unexpected error: %v", x, err)
	}
	if diff := cmp.Diff([]float64{-0.5, 2.5}, c, approx); diff != "" {
		t.Errorf("Cons(%v) returned with unexpected diff (-want+got);\n%s", x, diff)
	}

	g := make([]float64, 5)
	fg, err := m.ObjGrad(x, g)
	if err != nil {
		t.Fatalf("ObjGrad(%v) returned with unexpected error: %v", x, err)
	}
	if fg != f {
		t.Errorf("ObjGrad(%v) = %v, want %v", x, fg, f)
	}
	if diff := cmp.Diff([]float64{0, 0, 0, 0.5, -0.5}, g, approx); diff != "" {
		t.Errorf("ObjGrad(%v) gradient returned with unexpected diff (-want+got);\n%s", x, diff)
	}
}

func TestResidualAsConstraints_ConsWithConstraints(t *testing.T) {
	m := mustResidualAsConstraints(t, nlptest.ConstrainedNLS())
	x := []float64{1, 2, 3, 0.5, 0.25}
	c := make([]float64, 5)
	if err := m.Cons(x, c); err != nil {
		t.Fatalf("Cons(%v) returned with unexpected error: %v", x, err)
	}
	want := []float64{0.5, 10.75, 6, -2, 6}
	if diff := cmp.Diff(want, c, approx); diff != "" {
		t.Errorf("Cons(%v) returned with unexpected diff (-want+got);\n%s", x, diff)
	}
}

func TestResidualAsConstraints_Jacobian(t *testing.T) {
	testCases := []struct {
		name string
		nls  nlpmodel.NLSModel
		x    []float64
		want []float64
	}{
		{
			name: "unconstrained",
			nls:  nlptest.NLS(),
			x:    []float64{1, 1, 1, 0.5, -0.5},
			want: []float64{
				1, 1, 0, -1, 0,
				0, 1, 2, 0, -1,
			},
		},
		{
			name: "constrained",
			nls:  nlptest.ConstrainedNLS(),
			x:    []float64{1, 2, 3, 0.5, 0.25},
			want: []float64{
				2, 1, 0, -1, 0,
				0, 1, 6, 0, -1,
				1, 1, 1, 0, 0,
				2, 0, -1, 0, 0,
				0, 3, 2, 0, 0,
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			m := mustResidualAsConstraints(t, test.nls)
			got, err := nlpmodel.JacDense(m, test.x)
			if err != nil {
				t.Fatalf("JacDense(%v) returned with unexpected error: %v", test.x, err)
			}
			want := mat.NewDense(m.Meta().NCon, m.Meta().NVar, test.want)
			if !mat.EqualApprox(want, got, 1e-12) {
				t.Errorf("JacDense(%v) = %v, want %v", test.x, mat.Formatted(got), mat.Formatted(want))
			}
		})
	}
}

func TestResidualAsConstraints_Products(t *testing.T) {
	m := mustResidualAsConstraints(t, nlptest.NLS())
	x := []float64{1, 1, 1, 0.5, -0.5}

	jv := make([]float64, 2)
	if err := m.JProd(x, []float64{1, 2, 3, 4, 5}, jv); err != nil {
		t.Fatalf("JProd() returned with unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float64{-1, 3}, jv, approx); diff != "" {
		t.Errorf("JProd() returned with unexpected diff (-want+got);\n%s", diff)
	}

	jtv := make([]float64, 5)
	if err := m.JTProd(x, []float64{1, 2}, jtv); err != nil {
		t.Fatalf("JTProd() returned with unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 3, 4, -1, -2}, jtv, approx); diff != "" {
		t.Errorf("JTProd() returned with unexpected diff (-want+got);\n%s", diff)
	}
}

func TestResidualAsConstraints_Hessian(t *testing.T) {
	m := mustResidualAsConstraints(t, nlptest.NLS())
	x := []float64{1, 1, 1, 0.5, -0.5}
	y := []float64{2, 3}

	h, err := nlpmodel.Hess(m, x, y, 1.5)
	if err != nil {
		t.Fatalf("Hess() returned with unexpected error: %v", err)
	}
	want := &nlpmodel.Coord{
		NRows: 5,
		NCols: 5,
		Rows:  []int{1, 2, 3, 4},
		Cols:  []int{0, 2, 3, 4},
		Vals:  []float64{2, 6, 1.5, 1.5},
	}
	if diff := cmp.Diff(want, h, approx); diff != "" {
		t.Errorf("Hess() returned with unexpected diff (-want+got);\n%s", diff)
	}

	hv := make([]float64, 5)
	if err := m.HProd(x, y, []float64{1, 2, 3, 4, 5}, 1.5, hv); err != nil {
		t.Fatalf("HProd() returned with unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float64{4, 2, 18, 6, 7.5}, hv, approx); diff != "" {
		t.Errorf("HProd() returned with unexpected diff (-want+got);\n%s", diff)
	}
}

func TestResidualAsConstraints_HessianWithConstraints(t *testing.T) {
	m := mustResidualAsConstraints(t, nlptest.ConstrainedNLS())
	x := []float64{1, 2, 3, 0.5, 0.25}
	y := []float64{1, 2, 3, 4, 5}

	got, err := nlpmodel.HessDense(m, x, y, 2)
	if err != nil {
		t.Fatalf("HessDense() returned with unexpected error: %v", err)
	}
	want := mat.NewSymDense(5, []float64{
		8, 1, 0, 0, 0,
		1, 0, 5, 0, 0,
		0, 5, 4, 0, 0,
		0, 0, 0, 2, 0,
		0, 0, 0, 0, 2,
	})
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Errorf("HessDense() = %v, want %v", mat.Formatted(got), mat.Formatted(want))
	}
}

func TestResidualAsConstraints_ProductsMatchCoordinates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	checkProductsMatchCoordinates(t, rng, mustResidualAsConstraints(t, nlptest.ConstrainedNLS()))
}

// checkProductsMatchCoordinates checks the operator path of `m` against its coordinate path at
// random points.
func checkProductsMatchCoordinates(t *testing.T, rng *rand.Rand, m nlpmodel.Model) {
	t.Helper()
	n, ncon := m.Meta().NVar, m.Meta().NCon

	for range 5 {
		x, y, v, w := nlptest.Vector(rng, n), nlptest.Vector(rng, ncon), nlptest.Vector(rng, n), nlptest.Vector(rng, ncon)
		objWeight := rng.Float64()

		j, err := nlpmodel.Jac(m, x)
		if err != nil {
			t.Fatalf("Jac() returned with unexpected error: %v", err)
		}
		want, got := make([]float64, ncon), make([]float64, ncon)
		if err := j.MulVec(want, v); err != nil {
			t.Fatal(err)
		}
		if err := m.JProd(x, v, got); err != nil {
			t.Fatalf("JProd() returned with unexpected error: %v", err)
		}
		if diff := cmp.Diff(want, got, approx); diff != "" {
			t.Errorf("JProd() returned with unexpected diff (-want+got);\n%s", diff)
		}
		if err := nlpmodel.JacOp(m, x).MulVec(got, v); err != nil {
			t.Fatalf("JacOp().MulVec() returned with unexpected error: %v", err)
		}
		if diff := cmp.Diff(want, got, approx); diff != "" {
			t.Errorf("JacOp().MulVec() returned with unexpected diff (-want+got);\n%s", diff)
		}

		wantT, gotT := make([]float64, n), make([]float64, n)
		if err := j.MulVecTrans(wantT, w); err != nil {
			t.Fatal(err)
		}
		if err := m.JTProd(x, w, gotT); err != nil {
			t.Fatalf("JTProd() returned with unexpected error: %v", err)
		}
		if diff := cmp.Diff(wantT, gotT, approx); diff != "" {
			t.Errorf("JTProd() returned with unexpected diff (-want+got);\n%s", diff)
		}

		h, err := nlpmodel.Hess(m, x, y, objWeight)
		if err != nil {
			t.Fatalf("Hess() returned with unexpected error: %v", err)
		}
		wantH, gotH := make([]float64, n), make([]float64, n)
		if err := h.SymMulVec(wantH, v); err != nil {
			t.Fatal(err)
		}
		if err := nlpmodel.HessOp(m, x, y, objWeight).MulVec(gotH, v); err != nil {
			t.Fatalf("HessOp().MulVec() returned with unexpected error: %v", err)
		}
		if diff := cmp.Diff(wantH, gotH, cmpopts.EquateApprox(0, 1e-10)); diff != "" {
			t.Errorf("HessOp().MulVec() returned with unexpected diff (-want+got);\n%s", diff)
		}
	}
}

func TestResidualAsConstraints_ResidualAPI(t *testing.T) {
	m := mustResidualAsConstraints(t, nlptest.ConstrainedNLS())
	x := []float64{1, 2, 3, 0.5, 0.25}

	fx := make([]float64, 2)
	if err := m.Residual(x, fx); err != nil {
		t.Fatalf("Residual() returned with unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float64{0.5, 0.25}, fx); diff != "" {
		t.Errorf("Residual() returned with unexpected diff (-want+got);\n%s", diff)
	}

	jac, err := nlpmodel.JacResidual(m, x)
	if err != nil {
		t.Fatalf("JacResidual() returned with unexpected error: %v", err)
	}
	wantJac := &nlpmodel.Coord{NRows: 2, NCols: 5, Rows: []int{0, 1}, Cols: []int{3, 4}, Vals: []float64{1, 1}}
	if diff := cmp.Diff(wantJac, jac); diff != "" {
		t.Errorf("JacResidual() returned with unexpected diff (-want+got);\n%s", diff)
	}

	jv := make([]float64, 2)
	if err := m.JProdResidual(x, []float64{1, 2, 3, 4, 5}, jv); err != nil {
		t.Fatalf("JProdResidual() returned with unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float64{4, 5}, jv); diff != "" {
		t.Errorf("JProdResidual() returned with unexpected diff (-want+got);\n%s", diff)
	}

	jtv := []float64{9, 9, 9, 9, 9}
	if err := m.JTProdResidual(x, []float64{1, 2}, jtv); err != nil {
		t.Fatalf("JTProdResidual() returned with unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 0, 0, 1, 2}, jtv); diff != "" {
		t.Errorf("JTProdResidual() returned with unexpected diff (-want+got);\n%s", diff)
	}

	h, err := m.HessResidual(x, 1)
	if err != nil {
		t.Fatalf("HessResidual() returned with unexpected error: %v", err)
	}
	if len(h.Vals) != 0 || h.NRows != 5 {
		t.Errorf("HessResidual() = %+v, want an empty 5x5 matrix", h)
	}
	if _, err := m.HessResidual(x, 2); !errors.Is(err, nlpmodel.ErrDimensionMismatch) {
		t.Errorf("HessResidual(x, 2) returned error %v, want %v", err, nlpmodel.ErrDimensionMismatch)
	}

	hv := []float64{9, 9, 9, 9, 9}
	if err := m.HProdResidual(x, 0, []float64{1, 2, 3, 4, 5}, hv); err != nil {
		t.Fatalf("HProdResidual() returned with unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 0, 0, 0, 0}, hv); diff != "" {
		t.Errorf("HProdResidual() returned with unexpected diff (-want+got);\n%s", diff)
	}
}

func TestResidualAsConstraints_Counters(t *testing.T) {
	inner := nlptest.ConstrainedNLS()
	m := mustResidualAsConstraints(t, inner)
	x := []float64{1, 2, 3, 0.5, 0.25}

	if _, err := m.Obj(x); err != nil {
		t.Fatal(err)
	}
	if err := m.Cons(x, make([]float64, 5)); err != nil {
		t.Fatal(err)
	}
	if err := m.JTProd(x, make([]float64, 5), make([]float64, 5)); err != nil {
		t.Fatal(err)
	}
	if err := m.Residual(x, make([]float64, 2)); err != nil {
		t.Fatal(err)
	}
	if _, err := inner.Obj(x[:3]); err != nil {
		t.Fatal(err)
	}

	want := nlpmodel.Counters{Obj: 1, Cons: 1, JTProd: 1, Residual: 1}
	if diff := cmp.Diff(want, *m.Counters()); diff != "" {
		t.Errorf("Counters() returned with unexpected diff (-want+got);\n%s", diff)
	}
	wantInner := nlpmodel.Counters{Obj: 1, Cons: 1, Residual: 1, JTProd: 1, JTProdResidual: 1}
	if diff := cmp.Diff(wantInner, *inner.Counters()); diff != "" {
		t.Errorf("inner Counters() returned with unexpected diff (-want+got);\n%s", diff)
	}

	m.Counters().Reset()
	if got := inner.Counters().Sum(); got != 5 {
		t.Errorf("inner Counters().Sum() = %d after resetting the derived counters, want 5", got)
	}
}

func TestResidualAsConstraints_DimensionMismatch(t *testing.T) {
	m := mustResidualAsConstraints(t, nlptest.NLS())
	testCases := []struct {
		name string
		call func() error
	}{
		{"Obj", func() error { _, err := m.Obj(make([]float64, 3)); return err }},
		{"Cons", func() error { return m.Cons(make([]float64, 5), make([]float64, 1)) }},
		{"JacCoord", func() error { return m.JacCoord(make([]float64, 5), make([]float64, 5)) }},
		{"JProd", func() error { return m.JProd(make([]float64, 5), make([]float64, 3), make([]float64, 2)) }},
		{"HessCoord", func() error { return m.HessCoord(make([]float64, 5), make([]float64, 1), 1, make([]float64, 4)) }},
		{"Residual", func() error { return m.Residual(make([]float64, 5), make([]float64, 5)) }},
	}

	for _, test := range testCases {
		if err := test.call(); !errors.Is(err, nlpmodel.ErrDimensionMismatch) {
			t.Errorf("%s returned error %v, want %v", test.name, err, nlpmodel.ErrDimensionMismatch)
		}
	}
	if got := m.Counters().Sum(); got != 0 {
		t.Errorf("Counters().Sum() = %d after failed evaluations, want 0", got)
	}
}

func TestResidualAsConstraints_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	m := mustResidualAsConstraints(t, &failingNLS{NLSModel: nlptest.ConstrainedNLS(), err: boom})
	x := make([]float64, 5)

	if err := m.Cons(x, make([]float64, 5)); !errors.Is(err, boom) {
		t.Errorf("Cons() returned error %v, want %v", err, boom)
	}
	if err := m.JProd(x, x, make([]float64, 5)); !errors.Is(err, boom) {
		t.Errorf("JProd() returned error %v, want %v", err, boom)
	}
	if got := m.Counters().Sum(); got != 0 {
		t.Errorf("Counters().Sum() = %d after failed evaluations, want 0", got)
	}
}

func TestResidualAsConstraints_Close(t *testing.T) {
	released := 0
	fns := nlptest.NLS().Funcs()
	fns.Release = func() error {
		released++
		return nil
	}
	nls, err := nlpmodel.NewFuncNLSModel(2, nlpmodel.MetaParams{Name: "released", NVar: 3}, fns)
	if err != nil {
		t.Fatal(err)
	}
	m := mustResidualAsConstraints(t, nls)
	for range 2 {
		if err := m.Close(); err != nil {
			t.Errorf("Close() returned with unexpected error: %v", err)
		}
	}
	if released != 1 {
		t.Errorf("wrapped model released %d times, want 1", released)
	}
}

// failingNLS fails every residual and constraint evaluation.
type failingNLS struct {
	nlpmodel.NLSModel
	err error
}

func (f *failingNLS) Residual(x, fx []float64) error         { return f.err }
func (f *failingNLS) Cons(x, c []float64) error              { return f.err }
func (f *failingNLS) JProdResidual(x, v, jv []float64) error { return f.err }
func (f *failingNLS) JProd(x, v, jv []float64) error         { return f.err }
