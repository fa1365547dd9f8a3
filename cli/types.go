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

package cli

// Options defines the command-line options of a build run.
//
// Options captures what the user passed via flags. They are validated
// before being turned into an orchestrator run.
type Options struct {
	// Flavor is the flavor selector, e.g. "all" or "gpu".
	Flavor string

	// Version is the version to build. Empty derives a dev version from
	// the repository tags.
	Version string

	// Test runs the smoke tests after each build.
	Test bool

	// Release bumps version files and pushes the images.
	Release bool

	// Make builds the images on entry points that only build on request.
	Make bool

	// RegistryPrefix is prepended to image names when pushing.
	RegistryPrefix string

	// ReportFile receives the YAML run report when set.
	ReportFile string

	// MetricsFile receives the Prometheus metrics when set.
	MetricsFile string
}
