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

// Package nlpmetrics exports the evaluation counters of nonlinear models to Prometheus.
//
// Models are evaluated on a single goroutine and their Counters are not synchronized, so the
// evaluating goroutine records snapshots with Record and scrapes only read the snapshots.
package nlpmetrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/golang/glog"
	"github.com/ortools-nlp/nlpmodels/ortools/nlp/go/nlpmodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid metrics configuration")

// Config names the exported series `<Namespace>_<Subsystem>_evaluations_total`.
type Config struct {
	Namespace string
	// Subsystem may be empty.
	Subsystem string
}

// DefaultConfig returns the configuration used by the samples.
func DefaultConfig() Config {
	return Config{Namespace: "nlp", Subsystem: "models"}
}

// Validate checks that the configuration yields a valid metric name.
func (c Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("empty namespace: %w", ErrInvalidConfig)
	}
	if name := c.metricName(); !model.IsValidMetricName(model.LabelValue(name)) {
		return fmt.Errorf("%q is not a valid metric name: %w", name, ErrInvalidConfig)
	}
	return nil
}

func (c Config) metricName() string {
	return prometheus.BuildFQName(c.Namespace, c.Subsystem, "evaluations_total")
}

// Collector is a prometheus.Collector reporting one counter per model and operation.
type Collector struct {
	desc *prometheus.Desc

	mu        sync.Mutex
	snapshots map[string]nlpmodel.Counters
}

// NewCollector returns an empty Collector for `cfg`.
func NewCollector(cfg Config) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{
		desc: prometheus.NewDesc(
			cfg.metricName(),
			"Number of evaluations per model and operation.",
			[]string{"model", "op"},
			nil,
		),
		snapshots: make(map[string]nlpmodel.Counters),
	}, nil
}

// Record stores a copy of `counters` under the model name `name`, replacing any earlier
// snapshot. It must be called on the goroutine that evaluates the model.
func (c *Collector) Record(name string, counters *nlpmodel.Counters) {
	snapshot := *counters
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[name] = snapshot
	log.V(2).Infof("nlpmetrics: recorded %d evaluations of %q", snapshot.Sum(), name)
}

// RecordModel records the counters of `m` under its name.
func (c *Collector) RecordModel(m nlpmodel.Model) {
	c.Record(m.Meta().Name, m.Counters())
}

// Forget drops the snapshot of `name`.
func (c *Collector) Forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, name)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	names := make([]string, 0, len(c.snapshots))
	for name := range c.snapshots {
		names = append(names, name)
	}
	snapshots := make(map[string]nlpmodel.Counters, len(c.snapshots))
	for name, s := range c.snapshots {
		snapshots[name] = s
	}
	c.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		s := snapshots[name]
		for _, op := range nlpmodel.Ops() {
			ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(s.Get(op)), name, op.String())
		}
	}
}
