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

package buildkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	dockerimage "github.com/docker/docker/api/types/image"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/google/go-containerregistry/pkg/name"

	"github.com/khulnasoft/ml-workspace-build/builder"
	"github.com/khulnasoft/ml-workspace-build/errors"
	"github.com/khulnasoft/ml-workspace-build/logging"
)

// DockerPusher tags and pushes local images through the Docker Engine API.
// It needs no BuildKit daemon.
type DockerPusher struct {
	docker DockerClient
}

// Verify that DockerPusher implements builder.ImagePusher at compile time
var _ builder.ImagePusher = (*DockerPusher)(nil)

// NewDockerPusher connects to the local Docker daemon.
func NewDockerPusher(ctx context.Context) (*DockerPusher, error) {
	docker, err := connectDocker(ctx)
	if err != nil {
		return nil, err
	}
	return &DockerPusher{docker: docker}, nil
}

// connectDocker creates a Docker client from the environment and pings it.
func connectDocker(ctx context.Context) (DockerClient, error) {
	dockerCli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap("create Docker client", "install Docker Desktop or Docker Engine", err)
	}
	docker := newDockerClientAdapter(dockerCli)

	if _, err := docker.Ping(ctx); err != nil {
		_ = docker.Close()
		return nil, errors.Wrap("verify Docker connection", "ensure Docker is running", err)
	}
	return docker, nil
}

// pushAux is the aux payload the daemon reports at the end of a push.
type pushAux struct {
	Tag    string `json:"Tag"`
	Digest string `json:"Digest"`
	Size   int64  `json:"Size"`
}

// Push tags imageRef as prefix+imageRef and pushes it with the Docker SDK.
func (p *DockerPusher) Push(ctx context.Context, imageRef, prefix string) (string, error) {
	fullImageRef := prefix + imageRef
	if prefix != "" {
		if err := p.Tag(ctx, imageRef, fullImageRef); err != nil {
			return "", fmt.Errorf("failed to tag image with registry prefix: %w", err)
		}
	}

	registryHostname := registryFromImageRef(fullImageRef)
	logging.DebugContext(ctx, "Using registry hostname for auth: %s", registryHostname)

	registryAuth, err := ToDockerSDKAuth(ctx, registryHostname)
	if err != nil {
		logging.WarnContext(ctx, "Failed to get registry credentials: %v (attempting push anyway)", err)
		registryAuth = ""
	}

	logging.InfoContext(ctx, "Pushing to: %s", fullImageRef)
	resp, err := p.docker.ImagePush(ctx, fullImageRef, dockerimage.PushOptions{
		RegistryAuth: registryAuth,
	})
	if err != nil {
		return "", fmt.Errorf("failed to push %s: %w", fullImageRef, err)
	}
	defer func() {
		if err := resp.Close(); err != nil {
			logging.WarnContext(ctx, "Failed to close response: %v", err)
		}
	}()

	var pushed string
	auxCallback := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}
		var aux pushAux
		if err := json.Unmarshal(*msg.Aux, &aux); err == nil && aux.Digest != "" {
			pushed = aux.Digest
		}
	}

	progress := logging.FromContext(ctx).Writer(logging.DebugLevel)
	err = jsonmessage.DisplayJSONMessagesStream(resp, progress, 0, false, auxCallback)
	progress.Flush()
	if err != nil {
		return "", fmt.Errorf("push failed: %w", err)
	}

	if pushed == "" {
		inspect, err := p.docker.ImageInspect(ctx, fullImageRef)
		if err != nil {
			logging.WarnContext(ctx, "Failed to inspect image after push: %v", err)
			return "", nil
		}
		pushed = repoDigest(inspect.RepoDigests, repositoryOf(fullImageRef))
	}

	if pushed == "" {
		logging.WarnContext(ctx, "No digest found for %s", fullImageRef)
		return "", nil
	}

	logging.InfoContext(ctx, "Image digest: %s", pushed)
	return pushed, nil
}

// Tag creates an additional tag for an existing image using the Docker SDK.
func (p *DockerPusher) Tag(ctx context.Context, imageRef, newTag string) error {
	if err := p.docker.ImageTag(ctx, imageRef, newTag); err != nil {
		return fmt.Errorf("docker tag failed: %w", err)
	}

	logging.DebugContext(ctx, "Tagged %s as %s", imageRef, newTag)
	return nil
}

// Close closes the Docker connection.
func (p *DockerPusher) Close() error {
	if p.docker == nil {
		return nil
	}
	if err := p.docker.Close(); err != nil {
		return fmt.Errorf("failed to close Docker client: %w", err)
	}
	return nil
}

// repositoryOf returns the normalized repository of ref, e.g.
// "index.docker.io/khulnasoft/ml-workspace", or "" when ref does not parse.
func repositoryOf(ref string) string {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return ""
	}
	return parsed.Context().Name()
}

// repoDigest returns the digest of the first "repo@digest" entry whose
// repository normalizes to repository. An empty repository matches any entry.
func repoDigest(repoDigests []string, repository string) string {
	for _, rd := range repoDigests {
		repo, d, ok := strings.Cut(rd, "@")
		if !ok || d == "" {
			continue
		}
		if repository == "" || repositoryOf(repo) == repository {
			return d
		}
	}
	return ""
}
