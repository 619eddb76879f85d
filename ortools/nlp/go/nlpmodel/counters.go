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
	"fmt"

	spb "google.golang.org/protobuf/types/known/structpb"
)

// Op identifies an evaluation operation of a model.
type Op int

// The operations counted by Counters.
const (
	OpObj Op = iota
	OpGrad
	OpCons
	OpJac
	OpJProd
	OpJTProd
	OpHess
	OpHProd
	OpResidual
	OpJacResidual
	OpJProdResidual
	OpJTProdResidual
	OpHessResidual
	OpHProdResidual
	numOps
)

var opNames = [numOps]string{
	"neval_obj",
	"neval_grad",
	"neval_cons",
	"neval_jac",
	"neval_jprod",
	"neval_jtprod",
	"neval_hess",
	"neval_hprod",
	"neval_residual",
	"neval_jac_residual",
	"neval_jprod_residual",
	"neval_jtprod_residual",
	"neval_hess_residual",
	"neval_hprod_residual",
}

func (o Op) String() string {
	if o < 0 || o >= numOps {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// Ops returns every counted operation in declaration order.
func Ops() []Op {
	ops := make([]Op, numOps)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

// ParseOp returns the operation named `name`, e.g. "neval_obj".
func ParseOp(name string) (Op, error) {
	for i, n := range opNames {
		if n == name {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownOp, name)
}

// Counters records how many times each operation of a model was evaluated.
//
// Counters is not safe for concurrent use.
type Counters struct {
	Obj            int
	Grad           int
	Cons           int
	Jac            int
	JProd          int
	JTProd         int
	Hess           int
	HProd          int
	Residual       int
	JacResidual    int
	JProdResidual  int
	JTProdResidual int
	HessResidual   int
	HProdResidual  int
}

func (c *Counters) field(op Op) *int {
	switch op {
	case OpObj:
		return &c.Obj
	case OpGrad:
		return &c.Grad
	case OpCons:
		return &c.Cons
	case OpJac:
		return &c.Jac
	case OpJProd:
		return &c.JProd
	case OpJTProd:
		return &c.JTProd
	case OpHess:
		return &c.Hess
	case OpHProd:
		return &c.HProd
	case OpResidual:
		return &c.Residual
	case OpJacResidual:
		return &c.JacResidual
	case OpJProdResidual:
		return &c.JProdResidual
	case OpJTProdResidual:
		return &c.JTProdResidual
	case OpHessResidual:
		return &c.HessResidual
	case OpHProdResidual:
		return &c.HProdResidual
	}
	return nil
}

// Increment adds one to the counter of `op`. Unknown operations are ignored.
func (c *Counters) Increment(op Op) {
	if f := c.field(op); f != nil {
		*f++
	}
}

// IncrementByName adds one to the counter named `name`.
func (c *Counters) IncrementByName(name string) error {
	op, err := ParseOp(name)
	if err != nil {
		return err
	}
	c.Increment(op)
	return nil
}

// Get returns the counter of `op`.
func (c *Counters) Get(op Op) int {
	if f := c.field(op); f != nil {
		return *f
	}
	return 0
}

// Sum returns the total number of evaluations over all operations.
func (c *Counters) Sum() int {
	total := 0
	for _, op := range Ops() {
		total += c.Get(op)
	}
	return total
}

// Reset sets every counter to zero.
func (c *Counters) Reset() {
	*c = Counters{}
}

// Proto returns a snapshot of the counters keyed by operation name.
func (c *Counters) Proto() *spb.Struct {
	s := &spb.Struct{Fields: make(map[string]*spb.Value, numOps)}
	for _, op := range Ops() {
		s.Fields[op.String()] = spb.NewNumberValue(float64(c.Get(op)))
	}
	return s
}
