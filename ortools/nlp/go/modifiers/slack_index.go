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
	"fmt"

	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
)

// slackIndex maps slack variables to the constraints they relax. Slack k of each block sits
// at column `n + offset + k` of the slack model, blocks ordered [low; upp; rng].
type slackIndex struct {
	n             int
	low, upp, rng []int
}

func newSlackIndex(meta *nlpmodel.Meta) slackIndex {
	return slackIndex{n: meta.NVar, low: meta.JLow, upp: meta.JUpp, rng: meta.JRng}
}

// ns returns the number of slack variables.
func (s slackIndex) ns() int {
	return len(s.low) + len(s.upp) + len(s.rng)
}

// each calls fn(row, col) for every slack, in block order.
func (s slackIndex) each(fn func(row, col int)) {
	col := s.n
	for _, block := range [][]int{s.low, s.upp, s.rng} {
		for _, j := range block {
			fn(j, col)
			col++
		}
	}
}

// subtract computes `c[j] -= x[col]` for every slack. It also serves Jacobian products since
// the slack columns of the Jacobian are -I on the relaxed rows.
func (s slackIndex) subtract(c, x []float64) {
	s.each(func(row, col int) { c[row] -= x[col] })
}

// scatterTrans stores `-v[row]` at the slack columns of jtv.
func (s slackIndex) scatterTrans(jtv, v []float64) {
	s.each(func(row, col int) { jtv[col] = -v[row] })
}

// appendStructure appends the coordinates of the -I block to a Jacobian structure.
func (s slackIndex) appendStructure(rows, cols []int) {
	k := 0
	s.each(func(row, col int) {
		rows[k], cols[k] = row, col
		k++
	})
}

// slackParams returns the MetaParams of the slack reformulation of `meta`: slack bounds are
// the constraint bounds copied verbatim, and every constraint becomes an equality with zero
// right-hand side except the fixed ones, which keep their value.
func slackParams(meta *nlpmodel.Meta) (nlpmodel.MetaParams, slackIndex) {
	idx := newSlackIndex(meta)
	p := meta.Params()
	p.Name = meta.Name + "-slack"
	p.NVar = meta.NVar + idx.ns()
	p.NNZJ = meta.NNZJ + idx.ns()
	p.X0 = append(p.X0, make([]float64, idx.ns())...)
	for _, block := range [][]int{idx.low, idx.upp, idx.rng} {
		for _, j := range block {
			p.LVar = append(p.LVar, meta.LCon[j])
			p.UVar = append(p.UVar, meta.UCon[j])
		}
	}
	p.LCon = make([]float64, meta.NCon)
	p.UCon = make([]float64, meta.NCon)
	for _, j := range meta.JFix {
		p.LCon[j] = meta.LCon[j]
		p.UCon[j] = meta.UCon[j]
	}
	return p, idx
}

func slackMeta(meta *nlpmodel.Meta) (*nlpmodel.Meta, slackIndex, error) {
	p, idx := slackParams(meta)
	m, err := nlpmodel.NewMeta(p)
	if err != nil {
		return nil, slackIndex{}, fmt.Errorf("slack reformulation of %q: %w", meta.Name, err)
	}
	return m, idx, nil
}
