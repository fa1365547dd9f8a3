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

// Package orchestrator drives a run: it expands the flavor selector, builds
// and smoke-tests each flavor in order, and releases the images once every
// flavor succeeded.
//
// A run is fail-fast. The first failing build or test ends it, later flavors
// are never processed and nothing is released.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/khulnasoft/ml-workspace-build/builder"
	"github.com/khulnasoft/ml-workspace-build/errors"
	"github.com/khulnasoft/ml-workspace-build/logging"
	"github.com/khulnasoft/ml-workspace-build/metrics"
	"github.com/khulnasoft/ml-workspace-build/release"
	"github.com/khulnasoft/ml-workspace-build/workspace"
)

// Builder builds the image of one flavor.
type Builder interface {
	Build(ctx context.Context, req workspace.BuildRequest) builder.Outcome
}

// Tester smoke-tests the image of one flavor.
type Tester interface {
	Run(ctx context.Context, flavor workspace.Flavor, version string) builder.Outcome
}

// Releaser bumps version files and publishes images.
type Releaser interface {
	BumpVersions(ctx context.Context, previous, next string, files []string) error
	Push(ctx context.Context, targets []release.Target) ([]release.PushResult, error)
}

// VersionSource reports the latest released version.
type VersionSource interface {
	LatestReleasedVersion() (string, error)
}

// RunConfig holds the options of a single run.
type RunConfig struct {
	// Selector is the --flavor value. Empty selects the entry point default.
	Selector string
	// Version is the version being built. It must not be empty.
	Version string
	// Test runs the smoke tests after each build.
	Test bool
	// Release bumps version files and pushes the images.
	Release bool
	// Make builds the images on entry points that do not always build.
	Make bool
}

// FlavorOutcome holds the step outcomes of one flavor. A nil outcome means
// the step was not run.
type FlavorOutcome struct {
	Flavor workspace.Flavor `yaml:"flavor" json:"flavor"`
	Build  *builder.Outcome `yaml:"build,omitempty" json:"build,omitempty"`
	Test   *builder.Outcome `yaml:"test,omitempty" json:"test,omitempty"`
}

// RunResult is the record of a run.
type RunResult struct {
	RunID      string               `yaml:"run_id" json:"run_id"`
	Entrypoint string               `yaml:"entrypoint" json:"entrypoint"`
	Version    string               `yaml:"version" json:"version"`
	Revision   string               `yaml:"revision" json:"revision"`
	Started    time.Time            `yaml:"started" json:"started"`
	Finished   time.Time            `yaml:"finished" json:"finished"`
	Flavors    []FlavorOutcome      `yaml:"flavors" json:"flavors"`
	Pushed     []release.PushResult `yaml:"pushed,omitempty" json:"pushed,omitempty"`
	Released   bool                 `yaml:"released" json:"released"`
	Succeeded  bool                 `yaml:"succeeded" json:"succeeded"`
	Error      string               `yaml:"error,omitempty" json:"error,omitempty"`
}

// Orchestrator runs the steps of one entry point.
type Orchestrator struct {
	entry    workspace.Entrypoint
	resolver workspace.Resolver
	builder  Builder
	tester   Tester
	releaser Releaser
	versions VersionSource

	metrics  *metrics.Recorder
	revision string
	runID    string
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records step metrics in m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRevision sets the revision id passed to builds.
func WithRevision(revision string) Option {
	return func(o *Orchestrator) { o.revision = revision }
}

// WithRunID sets the run id. A random id is used otherwise.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an Orchestrator for entry.
func New(entry workspace.Entrypoint, resolver workspace.Resolver, b Builder, t Tester, r Releaser, versions VersionSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		entry:    entry,
		resolver: resolver,
		builder:  b,
		tester:   t,
		releaser: r,
		versions: versions,
		revision: "unknown",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	return o
}

// RunID returns the id attached to the run's result and test containers.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes cfg. The result is returned even when the run fails; the
// error is then a *errors.StepError.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (result *RunResult, err error) {
	started := o.now()
	result = &RunResult{
		RunID:      o.runID,
		Entrypoint: o.entry.Name,
		Version:    cfg.Version,
		Revision:   o.revision,
		Started:    started.UTC(),
		Flavors:    []FlavorOutcome{},
	}

	defer func() {
		finished := o.now()
		result.Finished = finished.UTC()
		result.Succeeded = err == nil
		if err != nil {
			result.Error = err.Error()
		}
		o.metrics.ObserveRun(result.Succeeded, finished)
		o.logSummary(ctx, result)
	}()

	if cfg.Version == "" {
		return result, errors.NewStepError(errors.ErrBuildFailure, "", "no version to build", nil)
	}

	flavors, err := o.entry.Expand(cfg.Selector)
	if err != nil {
		return result, err
	}

	build := cfg.Make || o.entry.AlwaysBuild
	if !build && !cfg.Test && !cfg.Release {
		logging.WarnContext(ctx, "Nothing to do for %v: pass --make, --test or --release", flavors)
	}

	timestamp := started.UTC().Format(workspace.BuildTimestampLayout)
	for _, flavor := range flavors {
		fctx := logging.WithLogger(ctx, logging.FromContext(ctx).WithPrefix(flavor.String()))
		outcome := FlavorOutcome{Flavor: flavor}

		if build {
			logging.InfoContext(fctx, "Building %s:%s", o.resolver.ImageName(flavor), cfg.Version)
			begin := o.now()
			out := o.builder.Build(fctx, workspace.BuildRequest{
				Flavor:         flavor,
				Version:        cfg.Version,
				RevisionID:     o.revision,
				BuildTimestamp: timestamp,
			})
			o.metrics.ObserveStep(metrics.StepBuild, flavor.String(), out.Succeeded, o.now().Sub(begin))
			outcome.Build = &out
			if !out.Succeeded {
				result.Flavors = append(result.Flavors, outcome)
				return result, errors.NewStepError(errors.ErrBuildFailure, flavor.String(), out.Detail, nil)
			}
		}

		if cfg.Test {
			logging.InfoContext(fctx, "Testing %s:%s", o.resolver.ImageName(flavor), cfg.Version)
			begin := o.now()
			out := o.tester.Run(fctx, flavor, cfg.Version)
			o.metrics.ObserveStep(metrics.StepTest, flavor.String(), out.Succeeded, o.now().Sub(begin))
			outcome.Test = &out
			if !out.Succeeded {
				result.Flavors = append(result.Flavors, outcome)
				return result, errors.NewStepError(errors.ErrTestFailure, flavor.String(), out.Detail, nil)
			}
		}

		result.Flavors = append(result.Flavors, outcome)
	}

	if !cfg.Release {
		return result, nil
	}

	if err := o.release(ctx, cfg.Version, flavors, result); err != nil {
		return result, err
	}
	result.Released = true
	return result, nil
}

// release bumps the version files, when the entry point tracks any, and
// then pushes the image of every flavor.
func (o *Orchestrator) release(ctx context.Context, version string, flavors []workspace.Flavor, result *RunResult) error {
	if len(o.entry.VersionFiles) > 0 {
		previous, err := o.versions.LatestReleasedVersion()
		if err != nil {
			return errors.NewStepError(errors.ErrReleaseFailure, "", "could not determine the previous release", err)
		}
		if err := o.releaser.BumpVersions(ctx, previous, version, o.entry.VersionFiles); err != nil {
			return errors.NewStepError(errors.ErrReleaseFailure, "", "version bump failed", err)
		}
	}

	targets := make([]release.Target, 0, len(flavors))
	for _, flavor := range flavors {
		targets = append(targets, release.Target{
			Flavor:    flavor,
			ImageName: o.resolver.ImageName(flavor),
			Version:   version,
		})
	}

	begin := o.now()
	pushed, err := o.releaser.Push(ctx, targets)
	result.Pushed = pushed
	elapsed := o.now().Sub(begin)
	for _, p := range pushed {
		o.metrics.ObserveStep(metrics.StepPush, p.Flavor.String(), true, elapsed)
	}
	if err != nil {
		return errors.NewStepError(errors.ErrReleaseFailure, "", "push failed", err)
	}
	return nil
}

func (o *Orchestrator) logSummary(ctx context.Context, result *RunResult) {
	for _, f := range result.Flavors {
		logging.InfoContext(ctx, "%-8s build: %s  test: %s", f.Flavor, describe(f.Build), describe(f.Test))
	}
	for _, p := range result.Pushed {
		logging.InfoContext(ctx, "Pushed %s %s", p.ImageRef, p.Digest)
	}
	if result.Succeeded {
		logging.InfoContext(ctx, "Run %s finished in %s", result.RunID, result.Finished.Sub(result.Started).Round(time.Millisecond))
		return
	}
	logging.ErrorfContext(ctx, "Run %s failed: %s", result.RunID, result.Error)
}

func describe(o *builder.Outcome) string {
	switch {
	case o == nil:
		return "skipped"
	case o.Succeeded:
		return "ok"
	default:
		return "failed"
	}
}
