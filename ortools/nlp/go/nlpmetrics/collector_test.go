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

package nlpmetrics

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlptest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		cfg     Config
		wantErr error
	}{
		{DefaultConfig(), nil},
		{Config{Namespace: "solver"}, nil},
		{Config{}, ErrInvalidConfig},
		{Config{Namespace: "nlp", Subsystem: "bad-name"}, ErrInvalidConfig},
		{Config{Namespace: "0nlp"}, ErrInvalidConfig},
	}

	for _, test := range testCases {
		if err := test.cfg.Validate(); !errors.Is(err, test.wantErr) {
			t.Errorf("%+v.Validate() returned error %v, want %v", test.cfg, err, test.wantErr)
		}
	}
}

func expected(metric string, models map[string]nlpmodel.Counters, names ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# HELP %s Number of evaluations per model and operation.\n", metric)
	fmt.Fprintf(&b, "# TYPE %s counter\n", metric)
	for _, name := range names {
		c := models[name]
		for _, op := range nlpmodel.Ops() {
			fmt.Fprintf(&b, "%s{model=%q,op=%q} %d\n", metric, name, op.String(), c.Get(op))
		}
	}
	return b.String()
}

func TestCollector(t *testing.T) {
	c, err := NewCollector(DefaultConfig())
	if err != nil {
		t.Fatalf("NewCollector() returned with unexpected error: %v", err)
	}
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() returned with unexpected error: %v", err)
	}

	m := nlptest.Inequality()
	if _, err := m.Obj(m.Meta().X0); err != nil {
		t.Fatal(err)
	}
	if err := m.Cons(m.Meta().X0, make([]float64, m.Meta().NCon)); err != nil {
		t.Fatal(err)
	}
	c.RecordModel(m)
	other := nlpmodel.Counters{Residual: 3}
	c.Record("other", &other)

	// Later evaluations are not visible until the next snapshot.
	if _, err := m.Obj(m.Meta().X0); err != nil {
		t.Fatal(err)
	}
	other.Residual++

	const metric = "nlp_models_evaluations_total"
	want := expected(metric, map[string]nlpmodel.Counters{
		"inequality": {Obj: 1, Cons: 1},
		"other":      {Residual: 3},
	}, "inequality", "other")
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), metric); err != nil {
		t.Errorf("GatherAndCompare() returned with unexpected error: %v", err)
	}

	c.Forget("other")
	if got, want := testutil.CollectAndCount(c), len(nlpmodel.Ops()); got != want {
		t.Errorf("CollectAndCount() = %d after Forget, want %d", got, want)
	}
}

func TestNewCollector_InvalidConfig(t *testing.T) {
	if _, err := NewCollector(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewCollector(Config{}) returned error %v, want %v", err, ErrInvalidConfig)
	}
}
