// Package rune ties the Scribe and Retriever pipelines together behind a
// single App: the closed error-kind taxonomy every tool response uses and
// the reload/state-gate logic that swaps pipelines atomically.
package rune

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of error tags surfaced to the MCP client in
// tool responses. It is a string type, not an int enum, because it is
// serialized directly into JSON as the "error" field.
type ErrorKind string

const (
	ErrDormant          ErrorKind = "dormant"
	ErrEmpty            ErrorKind = "empty"
	ErrBadArgument      ErrorKind = "bad_argument"
	ErrStoreUnavailable ErrorKind = "store_unavailable"
	ErrVaultUnavailable ErrorKind = "vault_unavailable"
	ErrPolicyDenied     ErrorKind = "policy_denied"
	ErrLLMUnavailable   ErrorKind = "llm_unavailable"
	ErrTimeout          ErrorKind = "timeout"
	ErrInternal         ErrorKind = "internal"
)

// RuneError wraps an ErrorKind with operation context, mirroring the
// teacher's MemoryError: a tagged error with an Op and an underlying
// cause, unwrappable via errors.Is/errors.As.
type RuneError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *RuneError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rune: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("rune: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RuneError) Unwrap() error {
	return e.Err
}

// NewError constructs a RuneError. If err is nil, the error message omits
// the cause but the Kind is still present.
func NewError(op string, kind ErrorKind, err error) *RuneError {
	return &RuneError{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from err if it is (or wraps) a
// *RuneError, defaulting to ErrInternal for anything else — every
// unclassified failure still surfaces as a closed tag, never a raw Go
// error string.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var re *RuneError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ErrInternal
}
