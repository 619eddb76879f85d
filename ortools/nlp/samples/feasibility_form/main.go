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

// The feasibility_form command moves the residuals of a small least-squares problem into
// its constraints and evaluates the resulting model.
package main

import (
	"flag"
	"fmt"

	log "github.com/golang/glog"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/modifiers"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
	"google.golang.org/protobuf/encoding/protojson"
)

var (
	r0 = flag.Float64("r0", 0.5, "value of the first residual variable")
	r1 = flag.Float64("r1", -0.5, "value of the second residual variable")
)

// newProblem returns the residuals F0 = x0·x1 - 1 and F1 = x1 + x2² over three free
// variables.
func newProblem() (*nlpmodel.FuncNLSModel, error) {
	fns := nlpmodel.NLSFuncs{
		Residual: func(x, fx []float64) {
			fx[0] = x[0]*x[1] - 1
			fx[1] = x[1] + x[2]*x[2]
		},
		ResJacRows: []int{0, 0, 1, 1},
		ResJacCols: []int{0, 1, 1, 2},
		ResJacVals: func(x, vals []float64) {
			copy(vals, []float64{x[1], x[0], 1, 2 * x[2]})
		},
		ResHessRows: []int{1, 2},
		ResHessCols: []int{0, 2},
		ResHessVals: func(_, w, vals []float64) {
			vals[0] = w[0]
			vals[1] = 2 * w[1]
		},
	}
	p := nlpmodel.MetaParams{Name: "two-residuals", NVar: 3, X0: []float64{1, 1, 1}}
	return nlpmodel.NewFuncNLSModel(2, p, fns)
}

func feasibilityForm() error {
	nls, err := newProblem()
	if err != nil {
		return fmt.Errorf("failed to build the least-squares model: %w", err)
	}
	m, err := modifiers.NewResidualAsConstraints(nls)
	if err != nil {
		return fmt.Errorf("failed to build the feasibility form: %w", err)
	}
	defer m.Close()

	meta := m.Meta()
	x := append(append([]float64(nil), nls.Meta().X0...), *r0, *r1)
	f, err := m.Obj(x)
	if err != nil {
		return fmt.Errorf("failed to evaluate the objective: %w", err)
	}
	c := make([]float64, meta.NCon)
	if err := m.Cons(x, c); err != nil {
		return fmt.Errorf("failed to evaluate the constraints: %w", err)
	}
	jac, err := nlpmodel.Jac(m, x)
	if err != nil {
		return fmt.Errorf("failed to evaluate the jacobian: %w", err)
	}

	fmt.Printf("Model: %s (nvar=%d, ncon=%d, nnzj=%d, nnzh=%d)\n", meta.Name, meta.NVar, meta.NCon, meta.NNZJ, meta.NNZH)
	fmt.Printf("x: %v\n", x)
	fmt.Printf("Objective: %v\n", f)
	fmt.Printf("Constraints: %v\n", c)
	fmt.Println("Jacobian:")
	for k := range jac.Vals {
		fmt.Printf("  (%d,%d) %v\n", jac.Rows[k], jac.Cols[k], jac.Vals[k])
	}

	for _, model := range []nlpmodel.Model{m, nls} {
		name := model.Meta().Name
		b, err := protojson.Marshal(model.Counters().Proto())
		if err != nil {
			return fmt.Errorf("failed to format the counters of %q: %w", name, err)
		}
		fmt.Printf("Counters of %s: %s\n", name, b)
	}
	return nil
}

func main() {
	flag.Parse()
	if err := feasibilityForm(); err != nil {
		log.Exitf("feasibilityForm returned with error: %v", err)
	}
}
