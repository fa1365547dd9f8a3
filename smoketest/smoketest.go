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

// Package smoketest runs the in-image test suite of a freshly built
// workspace image inside a transient container.
package smoketest

import (
	"context"
	"fmt"

	"github.com/khulnasoft/ml-workspace-build/builder"
	"github.com/khulnasoft/ml-workspace-build/container"
	"github.com/khulnasoft/ml-workspace-build/errors"
	"github.com/khulnasoft/ml-workspace-build/logging"
	"github.com/khulnasoft/ml-workspace-build/workspace"
)

const (
	// ContainerNamePrefix is prepended to the flavor to name the test container.
	ContainerNamePrefix = "workspace-test-"
	// AccessPort is the port the workspace listens on inside the container.
	AccessPort = "8080"

	EnvWorkspaceName       = "WORKSPACE_NAME"
	EnvWorkspaceAccessPort = "WORKSPACE_ACCESS_PORT"
	EnvWorkspaceIP         = "WORKSPACE_IP"

	// RunIDLabel tags test containers with the run that started them.
	RunIDLabel = "io.khulnasoft.ml-workspace-build.run-id"
)

// TestCommand is executed inside the test container.
var TestCommand = []string{"pytest", "/resources/tests"}

// Session describes one test container.
type Session struct {
	Handle        container.Handle
	WorkspaceName string
	AccessPort    string
	ContainerIP   string
}

// Step runs smoke tests against built images.
type Step struct {
	runtime  container.Runtime
	resolver workspace.Resolver
	runID    string
}

// NewStep returns a Step that starts test containers on runtime. runID is
// attached to every container as RunIDLabel when non-empty.
func NewStep(runtime container.Runtime, resolver workspace.Resolver, runID string) *Step {
	return &Step{runtime: runtime, resolver: resolver, runID: runID}
}

// Run tests the image of flavor at version and reports the verdict.
func (s *Step) Run(ctx context.Context, flavor workspace.Flavor, version string) builder.Outcome {
	_, outcome := s.RunSession(ctx, flavor, version)
	return outcome
}

// RunSession is Run that also returns the test session. The container is
// removed before RunSession returns, on every path where it was started.
func (s *Step) RunSession(ctx context.Context, flavor workspace.Flavor, version string) (session Session, outcome builder.Outcome) {
	session = Session{
		WorkspaceName: ContainerNamePrefix + flavor.String(),
		AccessPort:    AccessPort,
	}
	image := s.resolver.ImageName(flavor) + ":" + version

	spec := container.RunSpec{
		Image: image,
		Name:  session.WorkspaceName,
		Env: map[string]string{
			EnvWorkspaceName:       session.WorkspaceName,
			EnvWorkspaceAccessPort: session.AccessPort,
		},
	}
	if s.runID != "" {
		spec.Labels = map[string]string{RunIDLabel: s.runID}
	}

	logging.DebugContext(ctx, "Starting test container %s from %s", session.WorkspaceName, image)
	h, err := s.runtime.Run(ctx, spec)
	if err != nil {
		return session, builder.Failed(errors.Wrap("start test container", session.WorkspaceName, err).Error())
	}
	session.Handle = h

	defer func() {
		if err := s.runtime.Remove(context.WithoutCancel(ctx), h); err != nil {
			detail := errors.Wrap("remove test container", session.WorkspaceName, err).Error()
			if outcome.Succeeded {
				outcome = builder.Failed(detail)
				return
			}
			outcome.Detail += "; " + detail
		}
	}()

	info, err := s.runtime.Inspect(ctx, h)
	if err != nil {
		return session, builder.Failed(err.Error())
	}
	ip, ok := info.IP(container.BridgeNetwork)
	if !ok {
		return session, builder.Failed(fmt.Sprintf("test container %s has no address on the %s network", session.WorkspaceName, container.BridgeNetwork))
	}
	session.ContainerIP = ip

	logging.InfoContext(ctx, "Running smoke tests in %s (%s:%s)", session.WorkspaceName, ip, session.AccessPort)
	out := logging.FromContext(ctx).Writer(logging.InfoLevel)
	res, err := s.runtime.Exec(ctx, h, container.ExecSpec{
		Cmd:    TestCommand,
		Env:    map[string]string{EnvWorkspaceIP: ip},
		Output: out,
	})
	out.Flush()
	if err != nil {
		return session, builder.Failed(errors.Wrap("run smoke tests", session.WorkspaceName, err).Error())
	}
	if res.ExitCode != 0 {
		return session, builder.Failed(fmt.Sprintf("smoke tests failed in %s (exit code %d)", session.WorkspaceName, res.ExitCode))
	}

	return session, builder.Succeeded(fmt.Sprintf("smoke tests passed in %s", session.WorkspaceName))
}
