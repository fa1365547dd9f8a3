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

// Package vcs reads revision and tag information from the workspace's git
// repository.
package vcs

import (
	"context"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/khulnasoft/ml-workspace-build/errors"
	"github.com/khulnasoft/ml-workspace-build/logging"
)

const (
	// ShortRevisionLength is the length of an abbreviated commit id.
	ShortRevisionLength = 7
	// UnknownRevision is reported when no revision can be determined.
	UnknownRevision = "unknown"
)

// Repository is a git repository on disk.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens the repository containing path, searching parent directories
// for the .git directory.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrap("open git repository", path, err)
	}
	return &Repository{repo: repo, path: path}, nil
}

// ShortRevisionID returns the abbreviated id of the HEAD commit.
func (r *Repository) ShortRevisionID() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errors.Wrap("resolve HEAD", r.path, err)
	}
	id := head.Hash().String()
	if len(id) > ShortRevisionLength {
		id = id[:ShortRevisionLength]
	}
	return id, nil
}

// Tags returns the short names of every tag, sorted.
func (r *Repository) Tags() ([]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, errors.Wrap("list tags", r.path, err)
	}
	defer iter.Close()

	var tags []string
	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	}); err != nil {
		return nil, errors.Wrap("list tags", r.path, err)
	}
	sort.Strings(tags)
	return tags, nil
}

// ShortRevisionID returns the abbreviated HEAD commit of the repository at
// path, or UnknownRevision when it cannot be read.
func ShortRevisionID(ctx context.Context, path string) string {
	repo, err := Open(path)
	if err != nil {
		logging.DebugContext(ctx, "No git repository: %v", err)
		return UnknownRevision
	}
	id, err := repo.ShortRevisionID()
	if err != nil {
		logging.DebugContext(ctx, "No revision: %v", err)
		return UnknownRevision
	}
	return id
}
