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

// Package builder provides the image build abstractions and the build step
// of an ml-workspace run.
//
// # Architecture
//
//   - Interfaces (builder.go): the ImageBuilder collaborator and its result types
//   - Service Layer (service.go): BuildService, which resolves per-flavor
//     build arguments, drives a build and reports an Outcome, and
//     PushService, which publishes images without a build backend
//   - Backends: buildkit.BuildKitBuilder builds with BuildKit;
//     buildkit.DockerPusher pushes through the Docker Engine API
//
// Builders are injected through BuilderCreatorFunc so the service layer never
// imports a concrete backend:
//
//	service := builder.NewBuildService(resolver, buildkitCreator)
//	outcome := service.Build(ctx, req)
//	if !outcome.Succeeded {
//	    return outcome.Detail
//	}
package builder

import (
	"context"
)

// BuilderCreatorFunc creates an ImageBuilder instance.
// The context can be used for initialization and resource cleanup.
type BuilderCreatorFunc func(ctx context.Context) (ImageBuilder, error)

// PusherCreatorFunc creates an ImagePusher instance.
type PusherCreatorFunc func(ctx context.Context) (ImagePusher, error)

// ImagePusher publishes local images to a registry.
//
// Callers must call Close() when done with the pusher to release resources.
type ImagePusher interface {
	// Push pushes imageRef ("name:version") as <prefix><imageRef> and returns
	// the pushed digest, if the registry reported one.
	Push(ctx context.Context, imageRef, prefix string) (string, error)

	// Close releases any resources held by the pusher.
	Close() error
}

// ImageBuilder builds images and pushes them to a registry.
//
// Callers must call Close() when done with the builder to release resources.
type ImageBuilder interface {
	ImagePusher

	// Build builds name:version from the configured Dockerfile with the given
	// build arguments and labels, and loads the result into the local image
	// store. A non-nil error means the build did not complete successfully.
	Build(ctx context.Context, req ImageBuildRequest) (*BuildResult, error)
}

// ImageBuildRequest describes one image build.
type ImageBuildRequest struct {
	Name    string
	Version string
	Args    map[string]string
	Labels  map[string]string
}

// ImageRef returns name:version.
func (r ImageBuildRequest) ImageRef() string {
	return r.Name + ":" + r.Version
}

// BuildResult contains the result of a successful build.
type BuildResult struct {
	ImageRef string
	Digest   string
	Duration string
}

// Outcome is the terminal result of a build or smoke test. It is never
// retried.
type Outcome struct {
	Succeeded bool   `yaml:"succeeded" json:"succeeded"`
	Detail    string `yaml:"detail,omitempty" json:"detail,omitempty"`
}

// Succeeded returns a successful Outcome.
func Succeeded(detail string) Outcome {
	return Outcome{Succeeded: true, Detail: detail}
}

// Failed returns a failed Outcome.
func Failed(detail string) Outcome {
	return Outcome{Succeeded: false, Detail: detail}
}
