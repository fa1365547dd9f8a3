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

// Package workspace describes the ml-workspace product: its flavors, the
// entry points that select them, and the build parameters derived for each.
package workspace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/khulnasoft/ml-workspace-build/errors"
)

// Flavor is a named product variant built from the shared Dockerfile.
type Flavor string

// Known flavors.
const (
	Minimal Flavor = "minimal"
	Light   Flavor = "light"
	Full    Flavor = "full"
	GPU     Flavor = "gpu"
)

// SelectorAll expands to every flavor on the umbrella entry point.
const SelectorAll = "all"

// AllFlavors is the build and publish order used for the "all" selector.
// The cheapest image comes first so a broken base fails fast.
var AllFlavors = []Flavor{Minimal, Light, Full, GPU}

// String returns the flavor name.
func (f Flavor) String() string {
	return string(f)
}

// Entrypoint describes one command line entry point and the flavors it may
// process.
type Entrypoint struct {
	// Name is the binary name, used in help text and reports.
	Name string
	// DefaultSelector is used when --flavor is not given.
	DefaultSelector string
	// Selectors lists the accepted --flavor values in help order.
	Selectors []string
	// PinBaseImage adds ARG_WORKSPACE_BASE_IMAGE to the build arguments.
	PinBaseImage bool
	// AlwaysBuild builds even when --make is not set.
	AlwaysBuild bool
	// VersionFiles are rewritten with the new version on release,
	// relative to the repository root.
	VersionFiles []string
}

// Umbrella builds any flavor, or all of them in order.
var Umbrella = Entrypoint{
	Name:            "ml-workspace-build",
	DefaultSelector: SelectorAll,
	Selectors:       []string{SelectorAll, string(Full), string(Light), string(Minimal), string(GPU)},
	AlwaysBuild:     true,
	VersionFiles: []string{
		"README.md",
		"deployment/google-cloud-run/Dockerfile",
	},
}

// GPUOnly builds the gpu flavor on top of a pinned ml-workspace base image.
var GPUOnly = Entrypoint{
	Name:            "ml-workspace-gpu-build",
	DefaultSelector: string(GPU),
	Selectors:       []string{string(GPU)},
	PinBaseImage:    true,
}

// Expand maps a selector to the ordered flavors to process. An empty
// selector means the entry point default. Unknown selectors fail with
// errors.ErrInvalidFlavor.
func (e Entrypoint) Expand(selector string) ([]Flavor, error) {
	s := strings.ToLower(strings.TrimSpace(selector))
	if s == "" {
		s = e.DefaultSelector
	}

	if !e.accepts(s) {
		detail := fmt.Sprintf("%q is not one of %s", selector, strings.Join(e.Selectors, ", "))
		if suggestion := e.suggest(s); suggestion != "" {
			detail += fmt.Sprintf("; did you mean %q?", suggestion)
		}
		return nil, errors.NewStepError(errors.ErrInvalidFlavor, "", detail, nil)
	}

	if s == SelectorAll {
		flavors := make([]Flavor, len(AllFlavors))
		copy(flavors, AllFlavors)
		return flavors, nil
	}
	return []Flavor{Flavor(s)}, nil
}

func (e Entrypoint) accepts(selector string) bool {
	for _, s := range e.Selectors {
		if s == selector {
			return true
		}
	}
	return false
}

// suggest returns the closest accepted selector, or "" when nothing is close.
func (e Entrypoint) suggest(selector string) string {
	if selector == "" {
		return ""
	}

	ranks := fuzzy.RankFindNormalizedFold(selector, e.Selectors)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDistance := "", 3
	for _, s := range e.Selectors {
		if d := fuzzy.LevenshteinDistance(selector, s); d < bestDistance {
			best, bestDistance = s, d
		}
	}
	return best
}
