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

package cli

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/khulnasoft/ml-workspace-build/builder"
	"github.com/khulnasoft/ml-workspace-build/config"
	"github.com/khulnasoft/ml-workspace-build/errors"
	"github.com/khulnasoft/ml-workspace-build/logging"
	"github.com/khulnasoft/ml-workspace-build/metrics"
	"github.com/khulnasoft/ml-workspace-build/orchestrator"
	"github.com/khulnasoft/ml-workspace-build/release"
	"github.com/khulnasoft/ml-workspace-build/smoketest"
	"github.com/khulnasoft/ml-workspace-build/vcs"
	"github.com/khulnasoft/ml-workspace-build/version"
	"github.com/khulnasoft/ml-workspace-build/workspace"
)

// runBuild wires the collaborators for one run and executes it.
func runBuild(ctx context.Context, entry workspace.Entrypoint, deps Dependencies, opts Options) error {
	if err := NewValidator(entry).ValidateOptions(opts); err != nil {
		return err
	}

	cfg := configFromContext(ctx)
	if cfg == nil {
		cfg = config.Default()
	}

	root, err := filepath.Abs(cfg.Build.Context)
	if err != nil {
		return errors.Wrap("resolve build context", cfg.Build.Context, err)
	}

	revision := vcs.ShortRevisionID(ctx, root)
	var tags version.TagLister
	if repo, err := vcs.Open(root); err == nil {
		tags = repo
	}
	versions := version.NewResolver(tags)

	buildVersion, err := versions.CurrentTargetVersion(opts.Version)
	if err != nil {
		return errors.Wrap("resolve version", "", err)
	}
	logging.InfoContext(ctx, "%s %s (revision %s)", workspace.ProductName, buildVersion, revision)

	resolver := workspace.NewResolver(entry, opts.RegistryPrefix, cfg.Build.BaseImageFromRegistry)
	service := builder.NewBuildService(resolver, deps.NewBuilder(cfg))
	pusher := builder.NewPushService(deps.NewPusher(cfg))
	releaser := release.NewReleaser(afero.NewBasePathFs(deps.Fs, root), pusher, resolver.RegistryPrefix, cfg.Release.Concurrency)

	var recorder *metrics.Recorder
	if opts.MetricsFile != "" {
		recorder = metrics.New()
	}

	runID := uuid.NewString()
	runOpts := []orchestrator.Option{
		orchestrator.WithRevision(revision),
		orchestrator.WithMetrics(recorder),
		orchestrator.WithRunID(runID),
	}
	if deps.Now != nil {
		runOpts = append(runOpts, orchestrator.WithClock(deps.Now))
	}

	var tester orchestrator.Tester
	if opts.Test {
		runtime, closeRuntime, err := deps.NewRuntime(ctx)
		if err != nil {
			return errors.NewStepError(errors.ErrTestFailure, "", "container runtime unavailable", err)
		}
		defer func() {
			if cerr := closeRuntime(); cerr != nil {
				logging.WarnContext(ctx, "Failed to close container runtime: %v", cerr)
			}
		}()
		tester = smoketest.NewStep(runtime, resolver, runID)
	}

	o := orchestrator.New(entry, resolver, service, tester, releaser, versions, runOpts...)
	result, runErr := o.Run(ctx, orchestrator.RunConfig{
		Selector: opts.Flavor,
		Version:  buildVersion,
		Test:     opts.Test,
		Release:  opts.Release,
		Make:     opts.Make,
	})

	var outputErrs []error
	if opts.ReportFile != "" {
		if err := writeReport(deps.Fs, opts.ReportFile, result); err != nil {
			outputErrs = append(outputErrs, err)
		}
	}
	if err := recorder.WriteToTextfile(opts.MetricsFile); err != nil {
		outputErrs = append(outputErrs, err)
	}

	if runErr != nil {
		for _, e := range outputErrs {
			logging.WarnContext(ctx, "%v", e)
		}
		return runErr
	}
	return errors.Join(outputErrs...)
}

// writeReport writes result as YAML to path.
func writeReport(fs afero.Fs, path string, result *orchestrator.RunResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return errors.Wrap("marshal run report", "", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap("create report directory", dir, err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return errors.Wrap("write run report", path, err)
	}
	return nil
}
