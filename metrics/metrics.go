/*
Copyright © 2025 Jayson Grace <jayson.e.grace@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

// Package metrics records per-step counters and durations of a run and
// exports them in the Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/khulnasoft/ml-workspace-build/errors"
)

const namespace = "ml_workspace_build"

// Step names used as label values.
const (
	StepBuild = "build"
	StepTest  = "test"
	StepPush  = "push"
)

// Recorder collects run metrics. A nil Recorder ignores every observation.
type Recorder struct {
	registry *prometheus.Registry
	steps    *prometheus.CounterVec
	duration *prometheus.GaugeVec
	runs     *prometheus.CounterVec
	lastRun  prometheus.Gauge
}

// New returns a Recorder backed by its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Steps executed by step, flavor and result.",
		}, []string{"step", "flavor", "result"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of the last execution of a step.",
		}, []string{"step", "flavor"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by result.",
		}, []string{"result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	r.registry.MustRegister(r.steps, r.duration, r.runs, r.lastRun)
	return r
}

// Registry returns the registry holding the run metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveStep records one step execution.
func (r *Recorder) ObserveStep(step, flavor string, succeeded bool, d time.Duration) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(step, flavor, result(succeeded)).Inc()
	r.duration.WithLabelValues(step, flavor).Set(d.Seconds())
}

// ObserveRun records the end of a run at t.
func (r *Recorder) ObserveRun(succeeded bool, t time.Time) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(result(succeeded)).Inc()
	r.lastRun.Set(float64(t.Unix()))
}

// WriteToTextfile writes the metrics to path for the node exporter textfile
// collector.
func (r *Recorder) WriteToTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrap("write metrics", path, err)
	}
	return nil
}

func result(succeeded bool) string {
	if succeeded {
		return "success"
	}
	return "failure"
}
