// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
)

// Code identifies a failure class in the compose pipeline. Codes are part of
// the process contract: the CLI prints them verbatim on the error stream and
// external callers match on them, so values must stay stable.
type Code string

const (
	// CodeManifestNotFound means a catalog entry's module.json is missing or unreadable.
	CodeManifestNotFound Code = "E_MANIFEST_NOT_FOUND"
	// CodeCompose means a structurally invalid port identifier or a wiring edge
	// naming an ambiguous or unprovided port.
	CodeCompose Code = "E_COMPOSE"
	// CodePreferUnsat means a preference constraint conflicts with another
	// preference or names a module/port combination that does not exist.
	CodePreferUnsat Code = "E_PREFER_UNSAT"
	// CodeDupProvider means a port major has multiple providers and nothing
	// disambiguates them, or wiring itself produced two different winners.
	CodeDupProvider Code = "E_DUP_PROVIDER"
	// CodeRequireUnsat means one or more selected modules declare a requirement
	// with no resolved provider.
	CodeRequireUnsat Code = "E_REQUIRE_UNSAT"
	// CodeInput means a malformed plan, overrides, or flag value.
	CodeInput Code = "E_INPUT"
	// CodeModulesRoot means the module catalog root is missing or not a directory.
	CodeModulesRoot Code = "E_MODULES_ROOT"
	// CodeIO is the generic code for filesystem failures during sync or materialization.
	CodeIO Code = "E_IO"
)

// ComposeError is the typed error carried through the whole pipeline. Every
// failure path in the core wraps into one of these so the CLI layer can emit
// the single `tm error: <code> <message>` contract line.
type ComposeError struct {
	Code    Code
	Message string
	Err     error
}

// New creates a ComposeError with a formatted message.
func New(code Code, format string, args ...any) *ComposeError {
	return &ComposeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a ComposeError that records an underlying cause.
func Wrap(code Code, err error, format string, args ...any) *ComposeError {
	return &ComposeError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Error implements the error interface.
func (e *ComposeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *ComposeError) Unwrap() error { return e.Err }

// Is matches two ComposeErrors by code, so callers can write
// errors.Is(err, &ComposeError{Code: CodeDupProvider}).
func (e *ComposeError) Is(target error) bool {
	var other *ComposeError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// CodeOf extracts the failure code from an error chain. Errors that never
// passed through the pipeline's taxonomy map to CodeIO.
func CodeOf(err error) Code {
	var ce *ComposeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeIO
}
