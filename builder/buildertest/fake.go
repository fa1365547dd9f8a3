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

// Package buildertest provides an in-memory builder.ImageBuilder and
// builder.ImagePusher for tests.
package buildertest

import (
	"context"
	"sync"

	"github.com/khulnasoft/ml-workspace-build/builder"
)

// Push records one Push call.
type Push struct {
	ImageRef string
	Prefix   string
}

// Fake records builds and pushes and fails the ones configured to fail.
// It is safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	// BuildErrors maps an image name to the error its build returns.
	BuildErrors map[string]error
	// PushErrors maps an image ref to the error its push returns.
	PushErrors map[string]error
	// Digest is returned by successful pushes.
	Digest string
	// CreateErr is returned by the builder creator.
	CreateErr error
	// PusherCreateErr is returned by the pusher creator.
	PusherCreateErr error

	builds []builder.ImageBuildRequest
	pushes []Push
	closed int
}

var _ builder.ImageBuilder = (*Fake)(nil)

// New returns a Fake whose pushes report a fixed sha256 digest.
func New() *Fake {
	return &Fake{
		BuildErrors: map[string]error{},
		PushErrors:  map[string]error{},
		Digest:      "sha256:4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945",
	}
}

// Creator returns a builder.BuilderCreatorFunc that hands out f.
func (f *Fake) Creator() builder.BuilderCreatorFunc {
	return func(context.Context) (builder.ImageBuilder, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.CreateErr != nil {
			return nil, f.CreateErr
		}
		return f, nil
	}
}

// PusherCreator returns a builder.PusherCreatorFunc that hands out f.
// It ignores CreateErr.
func (f *Fake) PusherCreator() builder.PusherCreatorFunc {
	return func(context.Context) (builder.ImagePusher, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.PusherCreateErr != nil {
			return nil, f.PusherCreateErr
		}
		return f, nil
	}
}

// Build implements builder.ImageBuilder.
func (f *Fake) Build(ctx context.Context, req builder.ImageBuildRequest) (*builder.BuildResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.builds = append(f.builds, req)
	if err := f.BuildErrors[req.Name]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &builder.BuildResult{ImageRef: req.ImageRef(), Duration: "0s"}, nil
}

// Push implements builder.ImageBuilder.
func (f *Fake) Push(ctx context.Context, imageRef, prefix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pushes = append(f.pushes, Push{ImageRef: imageRef, Prefix: prefix})
	if err := f.PushErrors[imageRef]; err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.Digest, nil
}

// Close implements builder.ImageBuilder.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// Builds returns the recorded build requests in call order.
func (f *Fake) Builds() []builder.ImageBuildRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]builder.ImageBuildRequest(nil), f.builds...)
}

// BuiltNames returns the image names of the recorded builds.
func (f *Fake) BuiltNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.builds))
	for _, b := range f.builds {
		names = append(names, b.Name)
	}
	return names
}

// Pushes returns the recorded pushes in call order.
func (f *Fake) Pushes() []Push {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Push(nil), f.pushes...)
}

// Closed returns how many times Close was called.
func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
