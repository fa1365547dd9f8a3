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

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStep(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveStep(StepBuild, "full", true, 90*time.Second)
	r.ObserveStep(StepBuild, "full", true, 30*time.Second)
	r.ObserveStep(StepTest, "full", false, 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.steps.WithLabelValues(StepBuild, "full", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues(StepTest, "full", "failure")))
	assert.Equal(t, 30.0, testutil.ToFloat64(r.duration.WithLabelValues(StepBuild, "full")))
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	r := New()
	finished := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.ObserveRun(true, finished)

	expected := `
# HELP ml_workspace_build_runs_total Runs by result.
# TYPE ml_workspace_build_runs_total counter
ml_workspace_build_runs_total{result="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "ml_workspace_build_runs_total"))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(r.lastRun))
}

func TestWriteToTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveStep(StepPush, "gpu", true, time.Second)

	path := filepath.Join(t.TempDir(), "ml_workspace_build.prom")
	require.NoError(t, r.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ml_workspace_build_steps_total{flavor="gpu",result="success",step="push"} 1`)

	err = r.WriteToTextfile(filepath.Join(t.TempDir(), "missing", "dir", "out.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write metrics")
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()

	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveStep(StepBuild, "full", true, time.Second)
		r.ObserveRun(false, time.Now())
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteToTextfile("/nonexistent/out.prom"))
}
