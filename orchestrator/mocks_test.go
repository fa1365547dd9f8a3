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

package orchestrator_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/khulnasoft/ml-workspace-build/builder"
	"github.com/khulnasoft/ml-workspace-build/release"
	"github.com/khulnasoft/ml-workspace-build/workspace"
)

// MockBuilder is a mock implementation of orchestrator.Builder.
type MockBuilder struct {
	mock.Mock
}

func (m *MockBuilder) Build(ctx context.Context, req workspace.BuildRequest) builder.Outcome {
	args := m.Called(ctx, req)
	return args.Get(0).(builder.Outcome)
}

// MockTester is a mock implementation of orchestrator.Tester.
type MockTester struct {
	mock.Mock
}

func (m *MockTester) Run(ctx context.Context, flavor workspace.Flavor, version string) builder.Outcome {
	args := m.Called(ctx, flavor, version)
	return args.Get(0).(builder.Outcome)
}

// MockReleaser is a mock implementation of orchestrator.Releaser.
type MockReleaser struct {
	mock.Mock
}

func (m *MockReleaser) BumpVersions(ctx context.Context, previous, next string, files []string) error {
	args := m.Called(ctx, previous, next, files)
	return args.Error(0)
}

func (m *MockReleaser) Push(ctx context.Context, targets []release.Target) ([]release.PushResult, error) {
	args := m.Called(ctx, targets)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]release.PushResult), args.Error(1)
}

// MockVersions is a mock implementation of orchestrator.VersionSource.
type MockVersions struct {
	mock.Mock
}

func (m *MockVersions) LatestReleasedVersion() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}
