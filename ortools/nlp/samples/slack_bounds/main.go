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

// The slack_bounds command turns the inequalities of a small model into equalities with
// bounded slack variables.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	log "github.com/golang/glog"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/modifiers"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmetrics"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	radius    = flag.Float64("radius", 2, "radius of the disk constraint")
	opaque    = flag.Bool("opaque", false, "hide the closed form so that the model is wrapped instead of rebuilt")
	namespace = flag.String("metrics_namespace", "nlp", "namespace of the exported evaluation counters")
)

// hidden only exposes the evaluation contract of a model.
type hidden struct {
	nlpmodel.Model
}

// newProblem declares
//
//	min  (x0 - 1)² + (x1 - 2)²
//	s.t. x0² + x1² ≤ radius²
//	     x0 - x1   = 0
//	-1 ≤ x0 + x1   ≤ 3
func newProblem() (*nlpmodel.FuncModel, error) {
	r := *radius
	b := nlpmodel.NewBuilder("disk")
	b.NewVar(nlpmodel.Interval{Lower: 0, Upper: 10}, 0.5).WithName("x0")
	b.NewVar(nlpmodel.Unbounded(), 0.5).WithName("x1")
	b.AddConstraint(nlpmodel.AtMost(r*r), false).WithName("disk")
	b.AddConstraint(nlpmodel.EqualTo(0), true).WithName("diagonal")
	b.AddConstraint(nlpmodel.Interval{Lower: -1, Upper: 3}, true).WithName("band")
	p, err := b.Params()
	if err != nil {
		return nil, err
	}
	fns := nlpmodel.Funcs{
		Obj: func(x []float64) float64 {
			return (x[0]-1)*(x[0]-1) + (x[1]-2)*(x[1]-2)
		},
		Grad: func(x, g []float64) {
			g[0], g[1] = 2*(x[0]-1), 2*(x[1]-2)
		},
		Cons: func(x, c []float64) {
			c[0] = x[0]*x[0] + x[1]*x[1]
			c[1] = x[0] - x[1]
			c[2] = x[0] + x[1]
		},
		JacRows: []int{0, 0, 1, 1, 2, 2},
		JacCols: []int{0, 1, 0, 1, 0, 1},
		JacVals: func(x, vals []float64) {
			copy(vals, []float64{2 * x[0], 2 * x[1], 1, -1, 1, 1})
		},
		HessRows: []int{0, 1},
		HessCols: []int{0, 1},
		HessVals: func(_, y []float64, w float64, vals []float64) {
			vals[0] = 2*w + 2*y[0]
			vals[1] = 2*w + 2*y[0]
		},
	}
	return nlpmodel.NewFuncModel(p, fns)
}

func printBounds(name string, lower, upper []float64) {
	for i := range lower {
		kind := nlpmodel.Interval{Lower: lower[i], Upper: upper[i]}.Kind()
		fmt.Printf("  %s[%d] in [%v, %v] (%v)\n", name, i, lower[i], upper[i], kind)
	}
}

func slackBounds() error {
	if math.IsNaN(*radius) || *radius < 0 {
		return fmt.Errorf("radius = %v must be a non-negative number", *radius)
	}
	fm, err := newProblem()
	if err != nil {
		return fmt.Errorf("failed to build the model: %w", err)
	}
	var src nlpmodel.Model = fm
	if *opaque {
		src = hidden{fm}
	}

	m, outcome, err := modifiers.Slack(src)
	if err != nil {
		return fmt.Errorf("failed to add the slack variables: %w", err)
	}
	defer m.Close()

	meta := m.Meta()
	fmt.Printf("Outcome: %v\n", outcome)
	fmt.Printf("Model: %s (nvar=%d, ncon=%d, nnzj=%d)\n", meta.Name, meta.NVar, meta.NCon, meta.NNZJ)
	fmt.Println("Variables:")
	printBounds("x", meta.LVar, meta.UVar)
	fmt.Println("Constraints:")
	printBounds("c", meta.LCon, meta.UCon)

	c := make([]float64, meta.NCon)
	if err := m.Cons(meta.X0, c); err != nil {
		return fmt.Errorf("failed to evaluate the constraints: %w", err)
	}
	fmt.Printf("Constraints at x0: %v\n", c)

	collector, err := nlpmetrics.NewCollector(nlpmetrics.Config{Namespace: *namespace, Subsystem: "models"})
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return fmt.Errorf("failed to register the collector: %w", err)
	}
	collector.RecordModel(m)
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather the counters: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	flag.Parse()
	if err := slackBounds(); err != nil {
		log.Exitf("slackBounds returned with error: %v", err)
	}
}
