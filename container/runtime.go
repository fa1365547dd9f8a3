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

// Package container defines the container runtime used to host smoke tests
// and its Docker Engine implementation.
package container

import (
	"context"
	"io"
	"sort"
)

// BridgeNetwork is the name of Docker's default network.
const BridgeNetwork = "bridge"

// Handle identifies a started container.
type Handle struct {
	ID   string
	Name string
}

// RunSpec describes a detached container to start.
type RunSpec struct {
	Image  string
	Name   string
	Env    map[string]string
	Labels map[string]string
}

// NetworkInfo maps network names to the container's address on them.
type NetworkInfo struct {
	Networks map[string]string
}

// IP returns the container address on network.
func (n NetworkInfo) IP(network string) (string, bool) {
	ip, ok := n.Networks[network]
	return ip, ok && ip != ""
}

// ExecSpec describes a command executed inside a running container.
// Combined stdout and stderr is written to Output when it is set.
type ExecSpec struct {
	Cmd    []string
	Env    map[string]string
	Output io.Writer
}

// ExecResult is the result of a finished exec.
type ExecResult struct {
	ExitCode int
}

// Runtime is the container runtime the smoke test drives.
type Runtime interface {
	// Run starts a detached container.
	Run(ctx context.Context, spec RunSpec) (Handle, error)
	// Inspect returns the container's network addresses.
	Inspect(ctx context.Context, h Handle) (NetworkInfo, error)
	// Exec runs a command in the container and waits for it to exit.
	Exec(ctx context.Context, h Handle, spec ExecSpec) (ExecResult, error)
	// Remove force-removes the container.
	Remove(ctx context.Context, h Handle) error
}

// EnvList converts env to sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
