// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/LexLattice/true-modules/internal/issue"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE
// handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// planAuthoringExit maps failures the plan author can fix in the input
// documents to exit status 2; everything else keeps the default status 1.
func planAuthoringExit(err error) error {
	if err == nil {
		return nil
	}
	switch issue.CodeOf(err) {
	case issue.CodeInput, issue.CodePreferUnsat:
		return &ExitError{Code: 2, Err: err}
	}
	return err
}
