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

// Package errors provides error wrapping utilities and the failure taxonomy
// used by the build, smoke-test and release steps.
//
// Every failure that ends a run is reported as a [*StepError] whose Kind is
// one of the sentinel errors below, so callers can branch with errors.Is:
//
//	if errors.Is(err, errors.ErrBuildFailure) {
//	    // remaining flavors and the release were skipped
//	}
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Failure kinds reported by a run.
var (
	// ErrInvalidFlavor reports an unrecognized flavor selector. Nothing is built.
	ErrInvalidFlavor = stderrors.New("invalid flavor")
	// ErrBuildFailure reports a non-successful image build.
	ErrBuildFailure = stderrors.New("build failure")
	// ErrTestFailure reports a failing smoke test or a test container that
	// never became inspectable.
	ErrTestFailure = stderrors.New("test failure")
	// ErrReleaseFailure reports a failed version-file rewrite or registry push.
	ErrReleaseFailure = stderrors.New("release failure")
)

// Wrap wraps an error with a descriptive action and optional detail.
// It returns a formatted error in the form "failed to <action> [(<detail>)]: <error>".
//
// Example usage:
//
//	if err := doSomething(); err != nil {
//	    return errors.Wrap("create builder", "", err)
//	}
//
//	if err := parseFile(path); err != nil {
//	    return errors.Wrap("parse config", path, err)
//	}
func Wrap(action, detail string, err error) error {
	if err == nil {
		return nil
	}

	if detail != "" {
		return fmt.Errorf("failed to %s (%s): %w", action, detail, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// StepError is the error returned when a step ends the run.
type StepError struct {
	// Kind is one of ErrInvalidFlavor, ErrBuildFailure, ErrTestFailure or
	// ErrReleaseFailure.
	Kind error
	// Flavor is the flavor being processed, empty for run-level failures.
	Flavor string
	// Detail is a human readable description of what went wrong.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

// NewStepError returns a StepError of the given kind.
func NewStepError(kind error, flavor, detail string, err error) *StepError {
	return &StepError{
		Kind:   kind,
		Flavor: flavor,
		Detail: detail,
		Err:    err,
	}
}

// Error implements the error interface.
func (e *StepError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Flavor != "" {
		fmt.Fprintf(&b, " (%s)", e.Flavor)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil && !strings.Contains(e.Detail, e.Err.Error()) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the failure kind and the underlying cause to errors.Is
// and errors.As.
func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is reports whether err matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return stderrors.New(text)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// ExitCode maps a run error to a process exit status: 0 on success, 1 on any
// failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
