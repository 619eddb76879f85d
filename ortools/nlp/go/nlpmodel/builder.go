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
	"slices"

	log "github.com/golang/glog"
)

// ErrMixedModels holds the error when elements added to a builder come from another builder.
var ErrMixedModels = errors.New("elements are not part of the same model")

type (
	// VarIndex is the index of a variable in the model.
	VarIndex int
	// ConstrIndex is the index of a constraint in the model.
	ConstrIndex int
)

// Var is a reference to a variable declared in a Builder.
type Var struct {
	ind VarIndex
	b   *Builder
}

// Index returns the index of the variable.
func (v Var) Index() VarIndex {
	return v.ind
}

// Name returns the name of the variable.
func (v Var) Name() string {
	return v.b.varNames[v.ind]
}

// WithName sets the name of the variable.
func (v Var) WithName(s string) Var {
	v.b.varNames[v.ind] = s
	return v
}

// Bounds returns the bounds of the variable.
func (v Var) Bounds() Interval {
	return Interval{v.b.params.LVar[v.ind], v.b.params.UVar[v.ind]}
}

// Constraint is a reference to a constraint declared in a Builder.
type Constraint struct {
	ind ConstrIndex
	b   *Builder
}

// Index returns the index of the constraint.
func (c Constraint) Index() ConstrIndex {
	return c.ind
}

// Name returns the name of the constraint.
func (c Constraint) Name() string {
	return c.b.conNames[c.ind]
}

// WithName sets the name of the constraint.
func (c Constraint) WithName(s string) Constraint {
	c.b.conNames[c.ind] = s
	return c
}

// Kind returns the classification of the constraint bounds.
func (c Constraint) Kind() BoundKind {
	return Interval{c.b.params.LCon[c.ind], c.b.params.UCon[c.ind]}.Kind()
}

// Builder declares the variables and constraints of a model one at a time and produces the
// corresponding Meta. The evaluation callables are supplied separately, see NewFuncModel.
type Builder struct {
	params   MetaParams
	varNames []string
	conNames []string
	// The first and only the first error is reported by Params and Meta.
	err error
}

// NewBuilder creates a builder for a model named `name`.
func NewBuilder(name string) *Builder {
	return &Builder{params: MetaParams{Name: name, X0: []float64{}, LVar: []float64{}, UVar: []float64{}, Y0: []float64{}, LCon: []float64{}, UCon: []float64{}}}
}

func (b *Builder) setErrorf(format string, a ...any) {
	err := fmt.Errorf(format, a...)
	log.Errorf("%v; use `-log_backtrace_at` flag to get the error stack", err)
	if b.err == nil {
		b.err = err
	}
}

// NewVar adds a variable with the given bounds and starting value.
func (b *Builder) NewVar(bounds Interval, x0 float64) Var {
	v := Var{ind: VarIndex(b.params.NVar), b: b}
	if err := bounds.Validate(); err != nil {
		b.setErrorf("variable %d: %w", v.ind, err)
	}
	b.params.NVar++
	b.params.X0 = append(b.params.X0, x0)
	b.params.LVar = append(b.params.LVar, bounds.Lower)
	b.params.UVar = append(b.params.UVar, bounds.Upper)
	b.varNames = append(b.varNames, "")
	return v
}

// NewVars adds `n` variables sharing the same bounds and starting value.
func (b *Builder) NewVars(n int, bounds Interval, x0 float64) []Var {
	vars := make([]Var, n)
	for i := range vars {
		vars[i] = b.NewVar(bounds, x0)
	}
	return vars
}

// AddConstraint adds a constraint `bounds.Lower ≤ c_j(x) ≤ bounds.Upper`. Linear constraints
// are reported in Meta.Lin.
func (b *Builder) AddConstraint(bounds Interval, linear bool) Constraint {
	c := Constraint{ind: ConstrIndex(b.params.NCon), b: b}
	if err := bounds.Validate(); err != nil {
		b.setErrorf("constraint %d: %w", c.ind, err)
	}
	if linear {
		b.params.Lin = append(b.params.Lin, int(c.ind))
	}
	b.params.NCon++
	b.params.Y0 = append(b.params.Y0, 0)
	b.params.LCon = append(b.params.LCon, bounds.Lower)
	b.params.UCon = append(b.params.UCon, bounds.Upper)
	b.conNames = append(b.conNames, "")
	return c
}

// SetStart sets the starting value of `v`.
func (b *Builder) SetStart(v Var, x0 float64) {
	if v.b != b {
		b.setErrorf("variable %v used in SetStart: %w", v.Index(), ErrMixedModels)
		return
	}
	b.params.X0[v.ind] = x0
}

// SetMultiplier sets the initial multiplier estimate of `c`.
func (b *Builder) SetMultiplier(c Constraint, y0 float64) {
	if c.b != b {
		b.setErrorf("constraint %v used in SetMultiplier: %w", c.Index(), ErrMixedModels)
		return
	}
	b.params.Y0[c.ind] = y0
}

// VarNames returns the variable names, empty for unnamed variables.
func (b *Builder) VarNames() []string {
	return append([]string(nil), b.varNames...)
}

// ConstraintNames returns the constraint names, empty for unnamed constraints.
func (b *Builder) ConstraintNames() []string {
	return append([]string(nil), b.conNames...)
}

// Params returns the MetaParams declared so far, or the first error met while building.
func (b *Builder) Params() (MetaParams, error) {
	if b.err != nil {
		return MetaParams{}, b.err
	}
	p := b.params
	p.X0, p.LVar, p.UVar = slices.Clone(p.X0), slices.Clone(p.LVar), slices.Clone(p.UVar)
	p.Y0, p.LCon, p.UCon = slices.Clone(p.Y0), slices.Clone(p.LCon), slices.Clone(p.UCon)
	p.Lin = slices.Clone(p.Lin)
	if p.NCon == 0 {
		p.Y0, p.LCon, p.UCon = nil, nil, nil
	}
	return p, nil
}

// Meta returns the Meta of the declared model with the given sparsity counts.
func (b *Builder) Meta(nnzj, nnzh int) (*Meta, error) {
	p, err := b.Params()
	if err != nil {
		return nil, err
	}
	p.NNZJ, p.NNZH = nnzj, nnzh
	return NewMeta(p)
}
