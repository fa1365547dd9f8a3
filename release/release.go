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

// Package release bumps recorded version strings and publishes built
// workspace images to the registry.
package release

import (
	"context"
	"fmt"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/khulnasoft/ml-workspace-build/errors"
	"github.com/khulnasoft/ml-workspace-build/logging"
	"github.com/khulnasoft/ml-workspace-build/workspace"
)

// DefaultConcurrency is the number of pushes run at once when none is set.
const DefaultConcurrency = 1

// Pusher publishes a local image under a registry prefix and returns its
// digest, which may be empty when the registry did not report one.
type Pusher interface {
	Push(ctx context.Context, imageRef, prefix string) (string, error)
}

// Target is one image to publish.
type Target struct {
	Flavor    workspace.Flavor
	ImageName string
	Version   string
}

// ImageRef returns the local reference of the image.
func (t Target) ImageRef() string {
	return t.ImageName + ":" + t.Version
}

// PushResult records a published image.
type PushResult struct {
	Flavor   workspace.Flavor `yaml:"flavor" json:"flavor"`
	ImageRef string           `yaml:"image_ref" json:"image_ref"`
	Digest   string           `yaml:"digest,omitempty" json:"digest,omitempty"`
}

// Releaser performs the release step of a run.
type Releaser struct {
	fs          afero.Fs
	pusher      Pusher
	prefix      string
	concurrency int
}

// NewReleaser returns a Releaser that rewrites files on fs and pushes images
// as <prefix><image>:<version>. A concurrency below 1 means DefaultConcurrency.
func NewReleaser(fs afero.Fs, pusher Pusher, prefix string, concurrency int) *Releaser {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Releaser{
		fs:          fs,
		pusher:      pusher,
		prefix:      prefix,
		concurrency: concurrency,
	}
}

// BumpVersions replaces every literal occurrence of previous with next in
// each file. It does nothing when previous is empty or equal to next.
func (r *Releaser) BumpVersions(ctx context.Context, previous, next string, files []string) error {
	if previous == "" || previous == next {
		logging.DebugContext(ctx, "Skipping version bump (%q -> %q)", previous, next)
		return nil
	}

	for _, path := range files {
		info, err := r.fs.Stat(path)
		if err != nil {
			return errors.Wrap("stat version file", path, err)
		}
		content, err := afero.ReadFile(r.fs, path)
		if err != nil {
			return errors.Wrap("read version file", path, err)
		}

		updated := strings.ReplaceAll(string(content), previous, next)
		if updated == string(content) {
			logging.DebugContext(ctx, "No occurrence of %s in %s", previous, path)
			continue
		}

		if err := afero.WriteFile(r.fs, path, []byte(updated), info.Mode().Perm()); err != nil {
			return errors.Wrap("write version file", path, err)
		}
		logging.InfoContext(ctx, "Bumped %s -> %s in %s (%d occurrences)",
			previous, next, path, strings.Count(string(content), previous))
	}
	return nil
}

// Push publishes every target. Pushes run with the configured concurrency and
// the first failure cancels the pushes that have not started yet. Results are
// returned in target order; on failure only completed pushes are included.
func (r *Releaser) Push(ctx context.Context, targets []Target) ([]PushResult, error) {
	logging.InfoContext(ctx, "Pushing %d image(s) to %s", len(targets), r.registryName())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	results := make([]PushResult, len(targets))
	done := make([]bool, len(targets))

	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			ref := target.ImageRef()
			pushed, err := r.pusher.Push(gctx, ref, r.prefix)
			if err != nil {
				return errors.Wrap("push image", r.prefix+ref, err)
			}
			if pushed != "" {
				if _, err := digest.Parse(pushed); err != nil {
					return errors.Wrap("validate digest", r.prefix+ref, fmt.Errorf("%q: %w", pushed, err))
				}
			}

			results[i] = PushResult{Flavor: target.Flavor, ImageRef: r.prefix + ref, Digest: pushed}
			done[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		completed := make([]PushResult, 0, len(targets))
		for i, ok := range done {
			if ok {
				completed = append(completed, results[i])
			}
		}
		return completed, err
	}

	logging.InfoContext(ctx, "Pushed %d image(s)", len(results))
	return results, nil
}

func (r *Releaser) registryName() string {
	if r.prefix == "" {
		return "the default registry"
	}
	return strings.TrimSuffix(r.prefix, "/")
}
