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

import "github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"

// ownCounters keeps evaluation counters local to the derived model. The wrapped model's
// counters only move as a side effect of delegated calls.
type ownCounters struct {
	counters nlpmodel.Counters
}

// Counters implements nlpmodel.Model.
func (o *ownCounters) Counters() *nlpmodel.Counters { return &o.counters }

func (o *ownCounters) increment(op nlpmodel.Op) { o.counters.Increment(op) }

// forwardCounters reports the wrapped model's counters. Nothing is counted locally since
// every evaluation reaches the wrapped model.
type forwardCounters struct {
	inner nlpmodel.Model
}

// Counters implements nlpmodel.Model.
func (f forwardCounters) Counters() *nlpmodel.Counters { return f.inner.Counters() }

// closeOnce closes the wrapped model the first time it is called.
type closeOnce struct {
	inner  nlpmodel.Model
	closed bool
}

// Close implements nlpmodel.Model.
func (c *closeOnce) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.inner.Close()
}
