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

// Package version resolves the version a run builds and the latest released
// version recorded in the repository's tags.
package version

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/khulnasoft/ml-workspace-build/errors"
)

// DevPrerelease marks versions derived when no explicit version is given.
const DevPrerelease = "dev"

// TagLister lists tag names.
type TagLister interface {
	Tags() ([]string, error)
}

// Resolver derives versions from tags.
type Resolver struct {
	tags TagLister
}

// NewResolver returns a Resolver over tags. A nil lister behaves as a
// repository without tags.
func NewResolver(tags TagLister) *Resolver {
	return &Resolver{tags: tags}
}

// LatestReleasedVersion returns the highest tag that is a valid semantic
// version without a prerelease, or "" when there is none.
func (r *Resolver) LatestReleasedVersion() (string, error) {
	latest, err := r.latest()
	if err != nil || latest == nil {
		return "", err
	}
	return latest.String(), nil
}

// CurrentTargetVersion returns explicit when it is set. Otherwise it returns
// the next patch of the latest release with the dev prerelease, or 0.0.1-dev
// when nothing was released yet.
func (r *Resolver) CurrentTargetVersion(explicit string) (string, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, nil
	}

	latest, err := r.latest()
	if err != nil {
		return "", err
	}
	if latest == nil {
		latest = semver.New(0, 0, 0, "", "")
	}

	next := latest.IncPatch()
	dev, err := next.SetPrerelease(DevPrerelease)
	if err != nil {
		return "", errors.Wrap("derive target version", next.String(), err)
	}
	return dev.String(), nil
}

func (r *Resolver) latest() (*semver.Version, error) {
	if r.tags == nil {
		return nil, nil
	}
	tags, err := r.tags.Tags()
	if err != nil {
		return nil, errors.Wrap("read release tags", "", err)
	}
	released := Released(tags)
	if len(released) == 0 {
		return nil, nil
	}
	return released[len(released)-1], nil
}

// Released parses tags as semantic versions and returns the ones without a
// prerelease in ascending order. Tags that are not versions are skipped.
func Released(tags []string) []*semver.Version {
	out := make([]*semver.Version, 0, len(tags))
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		out = append(out, v)
	}
	sort.Sort(semver.Collection(out))
	return out
}
