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
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/moby/buildkit/client"
	"github.com/moby/buildkit/client/llb"
)

// MockDockerClient is a mock implementation of DockerClient for testing.
type MockDockerClient struct {
	ImagePushFunc     func(ctx context.Context, image string, options dockerimage.PushOptions) (io.ReadCloser, error)
	ImageTagFunc      func(ctx context.Context, source, target string) error
	ImageLoadFunc     func(ctx context.Context, input io.Reader) (dockerimage.LoadResponse, error)
	ImageInspectFunc  func(ctx context.Context, imageID string) (dockerimage.InspectResponse, error)
	ContainerListFunc func(ctx context.Context, options dockercontainer.ListOptions) ([]dockercontainer.Summary, error)
	PingFunc          func(ctx context.Context) (types.Ping, error)
	CloseFunc         func() error
}

func (m *MockDockerClient) ImagePush(ctx context.Context, image string, options dockerimage.PushOptions) (io.ReadCloser, error) {
	if m.ImagePushFunc != nil {
		return m.ImagePushFunc(ctx, image, options)
	}
	return io.NopCloser(strings.NewReader("{}")), nil
}

func (m *MockDockerClient) ImageTag(ctx context.Context, source, target string) error {
	if m.ImageTagFunc != nil {
		return m.ImageTagFunc(ctx, source, target)
	}
	return nil
}

func (m *MockDockerClient) ImageLoad(ctx context.Context, input io.Reader) (dockerimage.LoadResponse, error) {
	if m.ImageLoadFunc != nil {
		return m.ImageLoadFunc(ctx, input)
	}
	return dockerimage.LoadResponse{Body: io.NopCloser(strings.NewReader(""))}, nil
}

func (m *MockDockerClient) ImageInspect(ctx context.Context, imageID string) (dockerimage.InspectResponse, error) {
	if m.ImageInspectFunc != nil {
		return m.ImageInspectFunc(ctx, imageID)
	}
	return dockerimage.InspectResponse{}, nil
}

func (m *MockDockerClient) ContainerList(ctx context.Context, options dockercontainer.ListOptions) ([]dockercontainer.Summary, error) {
	if m.ContainerListFunc != nil {
		return m.ContainerListFunc(ctx, options)
	}
	return []dockercontainer.Summary{}, nil
}

func (m *MockDockerClient) Ping(ctx context.Context) (types.Ping, error) {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return types.Ping{APIVersion: "1.47"}, nil
}

func (m *MockDockerClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// mockSolver records the solve options and writes a fake image tarball to
// the first exporter output.
type mockSolver struct {
	SolveFunc func(ctx context.Context, opt client.SolveOpt) error
	CloseFunc func() error

	opts []client.SolveOpt
}

func (m *mockSolver) Solve(ctx context.Context, _ *llb.Definition, opt client.SolveOpt, statusChan chan *client.SolveStatus) (*client.SolveResponse, error) {
	defer close(statusChan)
	m.opts = append(m.opts, opt)

	statusChan <- &client.SolveStatus{
		Logs: []*client.VertexLog{{Data: []byte("#1 building\n")}},
	}

	if m.SolveFunc != nil {
		if err := m.SolveFunc(ctx, opt); err != nil {
			return nil, err
		}
	}

	if len(opt.Exports) > 0 && opt.Exports[0].Output != nil {
		w, err := opt.Exports[0].Output(nil)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte("image tar")); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}
	return &client.SolveResponse{}, nil
}

func (m *mockSolver) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
