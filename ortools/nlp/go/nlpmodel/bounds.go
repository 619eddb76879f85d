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
	"math"
)

// BoundKind tells which sides of an Interval are finite.
type BoundKind int

const (
	// Range intervals are bounded on both sides, or on neither side.
	Range BoundKind = iota
	// Lower intervals have a finite lower bound only.
	Lower
	// Upper intervals have a finite upper bound only.
	Upper
	// Fixed intervals have equal lower and upper bounds.
	Fixed
)

func (k BoundKind) String() string {
	switch k {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	case Fixed:
		return "fixed"
	default:
		return "range"
	}
}

// Interval stores the closed interval `[Lower,Upper]`. Infinite values represent a missing
// bound.
type Interval struct {
	Lower float64
	Upper float64
}

// Unbounded returns the interval `(-Inf,+Inf)`.
func Unbounded() Interval {
	return Interval{math.Inf(-1), math.Inf(1)}
}

// AtLeast returns the interval `[l,+Inf)`.
func AtLeast(l float64) Interval {
	return Interval{l, math.Inf(1)}
}

// AtMost returns the interval `(-Inf,u]`.
func AtMost(u float64) Interval {
	return Interval{math.Inf(-1), u}
}

// EqualTo returns the singleton interval `[v,v]`.
func EqualTo(v float64) Interval {
	return Interval{v, v}
}

// Validate returns an error wrapping ErrInvalidBounds if a bound is NaN or if `Lower > Upper`.
func (i Interval) Validate() error {
	if math.IsNaN(i.Lower) || math.IsNaN(i.Upper) {
		return fmt.Errorf("interval [%v,%v] has a NaN bound: %w", i.Lower, i.Upper, ErrInvalidBounds)
	}
	if i.Lower > i.Upper {
		return fmt.Errorf("interval [%v,%v] is empty: %w", i.Lower, i.Upper, ErrInvalidBounds)
	}
	return nil
}

// Kind classifies the interval. Both an interval with two finite bounds and the free interval
// `(-Inf,+Inf)` are reported as Range, so the four kinds partition every valid interval.
func (i Interval) Kind() BoundKind {
	lowFinite, uppFinite := !math.IsInf(i.Lower, -1), !math.IsInf(i.Upper, 1)
	switch {
	case i.Lower == i.Upper:
		return Fixed
	case lowFinite && !uppFinite:
		return Lower
	case !lowFinite && uppFinite:
		return Upper
	default:
		return Range
	}
}

// Contains returns whether `v` lies in the interval.
func (i Interval) Contains(v float64) bool {
	return i.Lower <= v && v <= i.Upper
}

// Offset shifts both bounds by `delta`. Infinite bounds stay infinite.
func (i Interval) Offset(delta float64) Interval {
	return Interval{i.Lower + delta, i.Upper + delta}
}

// partition holds the indices of a bound vector pair grouped by BoundKind.
type partition struct {
	low, upp, rng, fix []int
}

func classify(lower, upper []float64) (partition, error) {
	var p partition
	for j := range lower {
		itv := Interval{lower[j], upper[j]}
		if err := itv.Validate(); err != nil {
			return partition{}, fmt.Errorf("constraint %d: %w", j, err)
		}
		switch itv.Kind() {
		case Lower:
			p.low = append(p.low, j)
		case Upper:
			p.upp = append(p.upp, j)
		case Fixed:
			p.fix = append(p.fix, j)
		default:
			p.rng = append(p.rng, j)
		}
	}
	return p, nil
}
