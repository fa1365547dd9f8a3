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

package container

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/khulnasoft/ml-workspace-build/errors"
	"github.com/khulnasoft/ml-workspace-build/logging"
)

// dockerAPI is the subset of the Docker Engine client used by DockerRuntime.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *dockercontainer.Config, hostConfig *dockercontainer.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (dockercontainer.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options dockercontainer.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (dockercontainer.InspectResponse, error)
	ContainerExecCreate(ctx context.Context, containerID string, options dockercontainer.ExecOptions) (dockercontainer.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config dockercontainer.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (dockercontainer.ExecInspect, error)
	ContainerRemove(ctx context.Context, containerID string, options dockercontainer.RemoveOptions) error
	Close() error
}

// DockerRuntime runs containers on the local Docker Engine.
type DockerRuntime struct {
	api dockerAPI
}

// NewDockerRuntime connects to the Docker Engine configured by the
// environment (DOCKER_HOST and friends).
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap("create Docker client", "", err)
	}
	return &DockerRuntime{api: cli}, nil
}

// Run starts a detached container. A leftover container with the same name
// from an earlier run is removed first. If the container cannot be started it
// is removed before Run returns.
func (r *DockerRuntime) Run(ctx context.Context, spec RunSpec) (Handle, error) {
	if spec.Name != "" {
		if err := r.remove(ctx, spec.Name); err != nil {
			return Handle{}, errors.Wrap("remove stale container", spec.Name, err)
		}
	}

	created, err := r.api.ContainerCreate(ctx, &dockercontainer.Config{
		Image:  spec.Image,
		Env:    EnvList(spec.Env),
		Labels: spec.Labels,
	}, &dockercontainer.HostConfig{}, nil, nil, spec.Name)
	if err != nil {
		return Handle{}, errors.Wrap("create container", spec.Image, err)
	}
	for _, w := range created.Warnings {
		logging.WarnContext(ctx, "Docker: %s", w)
	}

	h := Handle{ID: created.ID, Name: spec.Name}
	if err := r.api.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
		if rmErr := r.remove(context.WithoutCancel(ctx), created.ID); rmErr != nil {
			logging.WarnContext(ctx, "Failed to remove container %s after start failure: %v", created.ID, rmErr)
		}
		return Handle{}, errors.Wrap("start container", spec.Name, err)
	}

	logging.DebugContext(ctx, "Started container %s (%s)", spec.Name, shortID(created.ID))
	return h, nil
}

// Inspect returns the container's address on every attached network.
func (r *DockerRuntime) Inspect(ctx context.Context, h Handle) (NetworkInfo, error) {
	resp, err := r.api.ContainerInspect(ctx, h.ID)
	if err != nil {
		return NetworkInfo{}, errors.Wrap("inspect container", h.Name, err)
	}

	info := NetworkInfo{Networks: map[string]string{}}
	if resp.NetworkSettings == nil {
		return info, nil
	}
	for name, endpoint := range resp.NetworkSettings.Networks {
		if endpoint == nil {
			continue
		}
		info.Networks[name] = endpoint.IPAddress
	}
	return info, nil
}

// Exec runs spec.Cmd in the container, streams its output and returns the
// exit code.
func (r *DockerRuntime) Exec(ctx context.Context, h Handle, spec ExecSpec) (ExecResult, error) {
	created, err := r.api.ContainerExecCreate(ctx, h.ID, dockercontainer.ExecOptions{
		Cmd:          spec.Cmd,
		Env:          EnvList(spec.Env),
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, errors.Wrap("create exec", h.Name, err)
	}

	resp, err := r.api.ContainerExecAttach(ctx, created.ID, dockercontainer.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, errors.Wrap("attach to exec", h.Name, err)
	}
	defer resp.Close()

	out := spec.Output
	if out == nil {
		out = io.Discard
	}
	if _, err := stdcopy.StdCopy(out, out, resp.Reader); err != nil {
		return ExecResult{}, errors.Wrap("read exec output", h.Name, err)
	}

	inspect, err := r.api.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, errors.Wrap("inspect exec", h.Name, err)
	}
	return ExecResult{ExitCode: inspect.ExitCode}, nil
}

// Remove force-removes the container and its anonymous volumes. Removing a
// container that no longer exists is not an error.
func (r *DockerRuntime) Remove(ctx context.Context, h Handle) error {
	id := h.ID
	if id == "" {
		id = h.Name
	}
	if err := r.remove(ctx, id); err != nil {
		return errors.Wrap("remove container", h.Name, err)
	}
	logging.DebugContext(ctx, "Removed container %s", h.Name)
	return nil
}

func (r *DockerRuntime) remove(ctx context.Context, id string) error {
	err := r.api.ContainerRemove(ctx, id, dockercontainer.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return err
	}
	return nil
}

// Close releases the Docker client.
func (r *DockerRuntime) Close() error {
	return r.api.Close()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
