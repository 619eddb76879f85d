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
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/testing/protocmp"
	spb "google.golang.org/protobuf/types/known/structpb"
)

func TestOp_String(t *testing.T) {
	testCases := []struct {
		op   Op
		want string
	}{
		{OpObj, "neval_obj"},
		{OpJTProd, "neval_jtprod"},
		{OpHProdResidual, "neval_hprod_residual"},
		{Op(-1), "Op(-1)"},
		{numOps, "Op(14)"},
	}

	for _, test := range testCases {
		if got := test.op.String(); got != test.want {
			t.Errorf("Op(%d).String() = %q, want %q", int(test.op), got, test.want)
		}
	}
}

func TestParseOp(t *testing.T) {
	for _, op := range Ops() {
		got, err := ParseOp(op.String())
		if err != nil {
			t.Errorf("ParseOp(%q) returned with unexpected error: %v", op, err)
		}
		if got != op {
			t.Errorf("ParseOp(%q) = %v, want %v", op, got, op)
		}
	}
	if _, err := ParseOp("neval_everything"); !errors.Is(err, ErrUnknownOp) {
		t.Errorf("ParseOp(%q) returned error %v, want %v", "neval_everything", err, ErrUnknownOp)
	}
}

func TestCounters(t *testing.T) {
	var c Counters
	c.Increment(OpObj)
	c.Increment(OpObj)
	c.Increment(OpJacResidual)
	c.Increment(numOps)
	if err := c.IncrementByName("neval_hess"); err != nil {
		t.Fatalf("IncrementByName() returned with unexpected error: %v", err)
	}
	if err := c.IncrementByName("neval_nothing"); err == nil {
		t.Errorf("IncrementByName(%q) returned no error", "neval_nothing")
	}

	want := Counters{Obj: 2, JacResidual: 1, Hess: 1}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Counters returned with unexpected diff (-want+got);\n%s", diff)
	}
	if got := c.Get(OpObj); got != 2 {
		t.Errorf("Get(OpObj) = %d, want 2", got)
	}
	if got := c.Sum(); got != 4 {
		t.Errorf("Sum() = %d, want 4", got)
	}

	c.Reset()
	if diff := cmp.Diff(Counters{}, c); diff != "" {
		t.Errorf("Reset() returned with unexpected diff (-want+got);\n%s", diff)
	}
}

func TestCounters_Proto(t *testing.T) {
	c := Counters{Cons: 3, HProdResidual: 1}
	want := &spb.Struct{Fields: map[string]*spb.Value{}}
	for _, op := range Ops() {
		want.Fields[op.String()] = spb.NewNumberValue(0)
	}
	want.Fields["neval_cons"] = spb.NewNumberValue(3)
	want.Fields["neval_hprod_residual"] = spb.NewNumberValue(1)

	if diff := cmp.Diff(want, c.Proto(), protocmp.Transform()); diff != "" {
		t.Errorf("Proto() returned with unexpected diff (-want+got);\n%s", diff)
	}
}
