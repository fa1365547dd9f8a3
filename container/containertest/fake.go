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

// Package containertest provides an in-memory container.Runtime for tests.
package containertest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/khulnasoft/ml-workspace-build/container"
)

// Exec records one exec call.
type Exec struct {
	Handle container.Handle
	Cmd    []string
	Env    map[string]string
}

// Fake is a container.Runtime that records every call. The zero value starts
// containers on the bridge network at 172.17.0.2 and runs execs that exit 0.
type Fake struct {
	// RunErr, InspectErr, ExecErr and RemoveErr make the matching call fail.
	RunErr     error
	InspectErr error
	ExecErr    error
	RemoveErr  error
	// Networks overrides the networks returned by Inspect.
	Networks map[string]string
	// ExitCode is the exit code returned by Exec.
	ExitCode int
	// Output is written to ExecSpec.Output by Exec.
	Output string
	// BeforeExec and BeforeRemove, if set, run at the start of the matching
	// call and can fail it.
	BeforeExec   func(ctx context.Context) error
	BeforeRemove func(ctx context.Context) error

	mu      sync.Mutex
	runs    []container.RunSpec
	execs   []Exec
	removed []container.Handle
	live    map[string]bool
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{}
}

// Run implements container.Runtime.
func (f *Fake) Run(_ context.Context, spec container.RunSpec) (container.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.runs = append(f.runs, spec)
	if f.RunErr != nil {
		return container.Handle{}, f.RunErr
	}
	if f.live == nil {
		f.live = map[string]bool{}
	}
	h := container.Handle{ID: fmt.Sprintf("fake-%d", len(f.runs)), Name: spec.Name}
	f.live[h.ID] = true
	return h, nil
}

// Inspect implements container.Runtime.
func (f *Fake) Inspect(_ context.Context, _ container.Handle) (container.NetworkInfo, error) {
	if f.InspectErr != nil {
		return container.NetworkInfo{}, f.InspectErr
	}
	networks := f.Networks
	if networks == nil {
		networks = map[string]string{container.BridgeNetwork: "172.17.0.2"}
	}
	return container.NetworkInfo{Networks: networks}, nil
}

// Exec implements container.Runtime.
func (f *Fake) Exec(ctx context.Context, h container.Handle, spec container.ExecSpec) (container.ExecResult, error) {
	f.mu.Lock()
	f.execs = append(f.execs, Exec{Handle: h, Cmd: spec.Cmd, Env: spec.Env})
	f.mu.Unlock()

	if f.BeforeExec != nil {
		if err := f.BeforeExec(ctx); err != nil {
			return container.ExecResult{}, err
		}
	}
	if f.ExecErr != nil {
		return container.ExecResult{}, f.ExecErr
	}
	if spec.Output != nil && f.Output != "" {
		if _, err := io.WriteString(spec.Output, f.Output); err != nil {
			return container.ExecResult{}, err
		}
	}
	return container.ExecResult{ExitCode: f.ExitCode}, nil
}

// Remove implements container.Runtime.
func (f *Fake) Remove(ctx context.Context, h container.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removed = append(f.removed, h)
	if f.BeforeRemove != nil {
		if err := f.BeforeRemove(ctx); err != nil {
			return err
		}
	}
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	delete(f.live, h.ID)
	return nil
}

// Runs returns the specs passed to Run.
func (f *Fake) Runs() []container.RunSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]container.RunSpec(nil), f.runs...)
}

// Execs returns the recorded exec calls.
func (f *Fake) Execs() []Exec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Exec(nil), f.execs...)
}

// Removed returns the handles passed to Remove, in call order.
func (f *Fake) Removed() []container.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]container.Handle(nil), f.removed...)
}

// Live returns the number of started containers not yet removed.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}
