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

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/khulnasoft/ml-workspace-build/workspace"
)

// Validator validates CLI input before passing it to the orchestrator.
type Validator struct {
	entry workspace.Entrypoint
}

// NewValidator creates a validator for the options of entry.
func NewValidator(entry workspace.Entrypoint) *Validator {
	return &Validator{entry: entry}
}

// ValidateOptions validates options for correctness and consistency.
func (v *Validator) ValidateOptions(opts Options) error {
	if err := v.validateOptionDependencies(opts); err != nil {
		return err
	}

	if err := v.validateVersion(opts.Version); err != nil {
		return err
	}

	return v.validateRegistryPrefix(opts.RegistryPrefix)
}

// validateOptionDependencies validates that dependent options are correctly specified.
func (v *Validator) validateOptionDependencies(opts Options) error {
	if opts.Release && strings.TrimSpace(opts.Version) == "" {
		return fmt.Errorf("--release requires --version to be specified")
	}

	return nil
}

// validateVersion checks that version can be used as an image tag.
func (v *Validator) validateVersion(version string) error {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil
	}
	if _, err := name.NewTag(workspace.ProductName+":"+version, name.StrictValidation); err != nil {
		return fmt.Errorf("invalid --version %q: not a valid image tag", version)
	}
	return nil
}

// validateRegistryPrefix checks that prefix followed by an image name forms
// a valid repository.
func (v *Validator) validateRegistryPrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	if !strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("invalid --docker-image-prefix %q: must end with /", prefix)
	}
	if _, err := name.NewRepository(prefix + workspace.ProductName); err != nil {
		return fmt.Errorf("invalid --docker-image-prefix %q: %w", prefix, err)
	}
	return nil
}
