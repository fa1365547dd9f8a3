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

package builder

import (
	"context"
	"fmt"
	"time"

	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/khulnasoft/ml-workspace-build/errors"
	"github.com/khulnasoft/ml-workspace-build/logging"
	"github.com/khulnasoft/ml-workspace-build/workspace"
)

// SourceURL is recorded in the org.opencontainers.image.source label.
const SourceURL = "https://github.com/khulnasoft/ml-workspace"

// BuildService builds flavor images through a builder created per build.
type BuildService struct {
	resolver workspace.Resolver

	// Builder creation function
	creator BuilderCreatorFunc
}

// NewBuildService creates a new build service.
func NewBuildService(resolver workspace.Resolver, creator BuilderCreatorFunc) *BuildService {
	return &BuildService{
		resolver: resolver,
		creator:  creator,
	}
}

// Build builds the image for one flavor and reports the outcome. Failures of
// any kind become a failed Outcome; Build never retries.
func (s *BuildService) Build(ctx context.Context, req workspace.BuildRequest) Outcome {
	imageName := s.resolver.ImageName(req.Flavor)
	args := s.resolver.BuildArgs(req)

	for _, k := range args.Keys() {
		logging.DebugContext(ctx, "  %s=%s", k, args[k])
	}

	bldr, err := s.creator(ctx)
	if err != nil {
		return Failed(errors.Wrap("create builder", "", err).Error())
	}
	defer func() {
		if err := bldr.Close(); err != nil {
			logging.WarnContext(ctx, "Failed to close builder: %v", err)
		}
	}()

	result, err := bldr.Build(ctx, ImageBuildRequest{
		Name:    imageName,
		Version: req.Version,
		Args:    args,
		Labels:  imageLabels(imageName, req),
	})
	if err != nil {
		return Failed(errors.Wrap("build image", fmt.Sprintf("%s:%s", imageName, req.Version), err).Error())
	}

	detail := result.ImageRef
	if result.Digest != "" {
		detail = fmt.Sprintf("%s@%s", result.ImageRef, result.Digest)
	}
	logging.InfoContext(ctx, "Built %s in %s", detail, result.Duration)
	return Succeeded(detail)
}

// PushService pushes images through a pusher created per push.
type PushService struct {
	creator PusherCreatorFunc
}

// NewPushService creates a new push service.
func NewPushService(creator PusherCreatorFunc) *PushService {
	return &PushService{creator: creator}
}

// Push pushes imageRef under prefix and returns the pushed digest.
func (s *PushService) Push(ctx context.Context, imageRef, prefix string) (string, error) {
	pusher, err := s.creator(ctx)
	if err != nil {
		return "", errors.Wrap("create pusher", "", err)
	}
	defer func() {
		if closeErr := pusher.Close(); closeErr != nil {
			logging.WarnContext(ctx, "Failed to close pusher after push: %v", closeErr)
		}
	}()

	return pusher.Push(ctx, imageRef, prefix)
}

// imageLabels returns the OCI annotations recorded on every built image.
func imageLabels(imageName string, req workspace.BuildRequest) map[string]string {
	labels := map[string]string{
		specs.AnnotationTitle:    imageName,
		specs.AnnotationVersion:  req.Version,
		specs.AnnotationRevision: req.RevisionID,
		specs.AnnotationSource:   SourceURL,
	}
	if _, err := time.Parse(workspace.BuildTimestampLayout, req.BuildTimestamp); err == nil {
		labels[specs.AnnotationCreated] = req.BuildTimestamp
	}
	return labels
}
