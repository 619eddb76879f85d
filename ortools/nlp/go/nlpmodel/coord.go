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

	"gonum.org/v1/gonum/mat"
)

// Operator is a linear map that can be applied without materializing its matrix.
type Operator interface {
	// Dims returns the number of rows and columns of the map.
	Dims() (r, c int)
	// MulVec stores `A v` in `dst`, len(dst) = r and len(v) = c.
	MulVec(dst, v []float64) error
	// MulVecTrans stores `Aᵀ v` in `dst`, len(dst) = c and len(v) = r.
	MulVecTrans(dst, v []float64) error
}

func checkProduct(op Operator, dst, v []float64, trans bool) error {
	r, c := op.Dims()
	if trans {
		r, c = c, r
	}
	return errors.Join(CheckLen("dst", dst, r), CheckLen("v", v, c))
}

// Coord is a sparse matrix in coordinate format. Duplicate entries are summed.
type Coord struct {
	NRows, NCols int
	Rows, Cols   []int
	Vals         []float64
}

// NewCoord returns a coordinate matrix after checking that the triples are consistent.
func NewCoord(nrows, ncols int, rows, cols []int, vals []float64) (*Coord, error) {
	c := &Coord{NRows: nrows, NCols: ncols, Rows: rows, Cols: cols, Vals: vals}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Coord) validate() error {
	if err := errors.Join(CheckIndexLen("cols", c.Cols, len(c.Rows)), CheckLen("vals", c.Vals, len(c.Rows))); err != nil {
		return err
	}
	return checkStructure(c.Rows, c.Cols, c.NRows, c.NCols)
}

func checkStructure(rows, cols []int, nrows, ncols int) error {
	if err := CheckIndexLen("cols", cols, len(rows)); err != nil {
		return err
	}
	for k := range rows {
		if rows[k] < 0 || rows[k] >= nrows || cols[k] < 0 || cols[k] >= ncols {
			return fmt.Errorf("entry %d at (%d,%d) outside of a %dx%d matrix: %w", k, rows[k], cols[k], nrows, ncols, ErrInvalidStructure)
		}
	}
	return nil
}

// Dims implements Operator.
func (c *Coord) Dims() (int, int) {
	return c.NRows, c.NCols
}

// MulVec implements Operator.
func (c *Coord) MulVec(dst, v []float64) error {
	if err := checkProduct(c, dst, v, false); err != nil {
		return err
	}
	clear(dst)
	for k, val := range c.Vals {
		dst[c.Rows[k]] += val * v[c.Cols[k]]
	}
	return nil
}

// MulVecTrans implements Operator.
func (c *Coord) MulVecTrans(dst, v []float64) error {
	if err := checkProduct(c, dst, v, true); err != nil {
		return err
	}
	clear(dst)
	for k, val := range c.Vals {
		dst[c.Cols[k]] += val * v[c.Rows[k]]
	}
	return nil
}

// SymMulVec stores `H v` in `dst`, where `c` holds the lower triangle of the symmetric
// matrix H.
func (c *Coord) SymMulVec(dst, v []float64) error {
	if c.NRows != c.NCols {
		return fmt.Errorf("symmetric product of a %dx%d matrix: %w", c.NRows, c.NCols, ErrDimensionMismatch)
	}
	if err := checkProduct(c, dst, v, false); err != nil {
		return err
	}
	clear(dst)
	symAddMulVec(dst, c.Rows, c.Cols, c.Vals, v, 1)
	return nil
}

// symAddMulVec adds `alpha H v` to dst for the lower triangle triples of H.
func symAddMulVec(dst []float64, rows, cols []int, vals, v []float64, alpha float64) {
	for k, val := range vals {
		i, j := rows[k], cols[k]
		dst[i] += alpha * val * v[j]
		if i != j {
			dst[j] += alpha * val * v[i]
		}
	}
}

// Dense returns the matrix as a gonum dense matrix. An empty matrix is returned when one of
// the dimensions is zero.
func (c *Coord) Dense() *mat.Dense {
	if c.NRows == 0 || c.NCols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(c.NRows, c.NCols, nil)
	for k, val := range c.Vals {
		d.Set(c.Rows[k], c.Cols[k], d.At(c.Rows[k], c.Cols[k])+val)
	}
	return d
}

// SymDense returns the symmetric matrix whose lower triangle is stored in `c`.
func (c *Coord) SymDense() *mat.SymDense {
	if c.NRows == 0 {
		return &mat.SymDense{}
	}
	s := mat.NewSymDense(c.NRows, nil)
	for k, val := range c.Vals {
		i, j := c.Rows[k], c.Cols[k]
		s.SetSym(i, j, s.At(i, j)+val)
	}
	return s
}

// Dense is an Operator backed by a gonum dense matrix.
type Dense struct {
	*mat.Dense
}

// NewDense returns a dense r×c operator over the row-major `data`, which is used directly.
func NewDense(r, c int, data []float64) *Dense {
	return &Dense{mat.NewDense(r, c, data)}
}

// Dims implements Operator.
func (d *Dense) Dims() (int, int) {
	if d.Dense == nil || d.Dense.IsEmpty() {
		return 0, 0
	}
	return d.Dense.Dims()
}

// MulVec implements Operator.
func (d *Dense) MulVec(dst, v []float64) error {
	if err := checkProduct(d, dst, v, false); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	mat.NewVecDense(len(dst), dst).MulVec(d.Dense, mat.NewVecDense(len(v), v))
	return nil
}

// MulVecTrans implements Operator.
func (d *Dense) MulVecTrans(dst, v []float64) error {
	if err := checkProduct(d, dst, v, true); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	mat.NewVecDense(len(dst), dst).MulVec(d.Dense.T(), mat.NewVecDense(len(v), v))
	return nil
}

// FuncOperator is an Operator defined by its products.
type FuncOperator struct {
	NRows, NCols int
	Prod         func(dst, v []float64) error
	TProd        func(dst, v []float64) error
}

// Dims implements Operator.
func (f *FuncOperator) Dims() (int, int) {
	return f.NRows, f.NCols
}

// MulVec implements Operator.
func (f *FuncOperator) MulVec(dst, v []float64) error {
	if err := checkProduct(f, dst, v, false); err != nil {
		return err
	}
	return f.Prod(dst, v)
}

// MulVecTrans implements Operator.
func (f *FuncOperator) MulVecTrans(dst, v []float64) error {
	if err := checkProduct(f, dst, v, true); err != nil {
		return err
	}
	return f.TProd(dst, v)
}

// Triplets returns the entries of `op` in coordinate format. A *Coord is copied, a *Dense
// yields every entry in row-major order and any other operator is applied to the columns of
// the identity, which also yields a dense row-major pattern.
func Triplets(op Operator) (*Coord, error) {
	switch a := op.(type) {
	case *Coord:
		return &Coord{
			NRows: a.NRows,
			NCols: a.NCols,
			Rows:  append([]int(nil), a.Rows...),
			Cols:  append([]int(nil), a.Cols...),
			Vals:  append([]float64(nil), a.Vals...),
		}, nil
	case *Dense:
		r, c := a.Dims()
		out := densePattern(r, c)
		for k := range out.Vals {
			out.Vals[k] = a.At(out.Rows[k], out.Cols[k])
		}
		return out, nil
	}
	r, c := op.Dims()
	out := densePattern(r, c)
	e := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		e[j] = 1
		if err := op.MulVec(col, e); err != nil {
			return nil, err
		}
		e[j] = 0
		for i := 0; i < r; i++ {
			out.Vals[i*c+j] = col[i]
		}
	}
	return out, nil
}

// densePattern returns a zero r×c Coord listing every entry in row-major order.
func densePattern(r, c int) *Coord {
	out := &Coord{NRows: r, NCols: c, Rows: make([]int, r*c), Cols: make([]int, r*c), Vals: make([]float64, r*c)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Rows[i*c+j], out.Cols[i*c+j] = i, j
		}
	}
	return out
}

// lowerPattern returns the row-major structure of the lower triangle of an n×n matrix.
func lowerPattern(n int) (rows, cols []int) {
	rows = make([]int, 0, n*(n+1)/2)
	cols = make([]int, 0, n*(n+1)/2)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			rows = append(rows, i)
			cols = append(cols, j)
		}
	}
	return rows, cols
}
