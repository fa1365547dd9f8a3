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

package workspace

import (
	"sort"
)

// ProductName is the image name shared by every flavor.
const ProductName = "ml-workspace"

// DefaultRegistryPrefix is prepended to image names on push.
const DefaultRegistryPrefix = "khulnasoft/"

// Build argument keys passed to the Dockerfile.
const (
	ArgVCSRef           = "ARG_VCS_REF"
	ArgBuildDate        = "ARG_BUILD_DATE"
	ArgWorkspaceFlavor  = "ARG_WORKSPACE_FLAVOR"
	ArgWorkspaceVersion = "ARG_WORKSPACE_VERSION"
	ArgBaseImage        = "ARG_WORKSPACE_BASE_IMAGE"
)

// BuildTimestampLayout formats ARG_BUILD_DATE.
const BuildTimestampLayout = "2006-01-02T15:04:05Z"

// BuildRequest holds the inputs of one flavor build.
type BuildRequest struct {
	Flavor         Flavor
	Version        string
	RevisionID     string
	BuildTimestamp string
}

// BuildArgs maps build argument keys to values.
type BuildArgs map[string]string

// Keys returns the argument keys in sorted order.
func (a BuildArgs) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolver derives image names, base image references and build arguments.
// It has no side effects.
type Resolver struct {
	// RegistryPrefix is prepended to release references, e.g. "khulnasoft/".
	RegistryPrefix string
	// PinBaseImage adds ARG_WORKSPACE_BASE_IMAGE to the build arguments.
	PinBaseImage bool
	// BaseFromRegistry makes the pinned base image a registry reference
	// instead of the locally built image.
	BaseFromRegistry bool
}

// NewResolver returns a Resolver for the entry point. An empty prefix falls
// back to DefaultRegistryPrefix.
func NewResolver(entry Entrypoint, prefix string, baseFromRegistry bool) Resolver {
	if prefix == "" {
		prefix = DefaultRegistryPrefix
	}
	return Resolver{
		RegistryPrefix:   prefix,
		PinBaseImage:     entry.PinBaseImage,
		BaseFromRegistry: baseFromRegistry,
	}
}

// ImageName returns the image name for a flavor, or the bare product name
// for the "all" selector.
func (r Resolver) ImageName(flavor Flavor) string {
	if flavor == "" || string(flavor) == SelectorAll {
		return ProductName
	}
	return ProductName + "-" + string(flavor)
}

// BaseImageRef returns the parent image the gpu flavor is built on. The
// registry prefix is only added for release references.
func (r Resolver) BaseImageRef(_ Flavor, version string, forRelease bool) string {
	ref := ProductName + ":" + version
	if forRelease {
		return r.RegistryPrefix + ref
	}
	return ref
}

// BuildArgs derives the build arguments for req. Identical requests always
// yield identical arguments.
func (r Resolver) BuildArgs(req BuildRequest) BuildArgs {
	args := BuildArgs{
		ArgVCSRef:           req.RevisionID,
		ArgBuildDate:        req.BuildTimestamp,
		ArgWorkspaceFlavor:  string(req.Flavor),
		ArgWorkspaceVersion: req.Version,
	}
	if r.PinBaseImage {
		args[ArgBaseImage] = r.BaseImageRef(req.Flavor, req.Version, r.BaseFromRegistry)
	}
	return args
}
