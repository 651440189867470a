// Package fault defines the error taxonomy shared across the orchestration
// layers. Every boundary (gate, registry, confirmation vault, ledger) returns
// a *Fault so callers can branch on the machine code with errors.As while the
// user-visible message stays short and free of internal detail.
package fault

import (
	"errors"
	"fmt"
)

// Code classifies a failure for machine handling.
type Code string

const (
	// CodeValidation marks missing or malformed input, recovered locally
	// as an Ask step.
	CodeValidation Code = "validation"
	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodePolicyDenied marks a gate rejection.
	CodePolicyDenied Code = "policy_denied"
	// CodeStateConflict marks a precondition failure, e.g. refunding an
	// unpaid invoice or double-booking a held slot.
	CodeStateConflict Code = "state_conflict"
	// CodeExpired marks a confirmation token redeemed after its window.
	CodeExpired Code = "expired"
	// CodeReplayed marks a second redemption of a consumed token.
	CodeReplayed Code = "replayed"
	// CodeTamperDetected marks a ledger verification failure. Fatal: new
	// executions halt pending manual review.
	CodeTamperDetected Code = "tamper_detected"
	// CodeUnavailable marks a category disabled by kill switch.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks an unexpected failure; detail stays internal.
	CodeInternal Code = "internal"
)

// Fault is a typed error carrying a machine code and a short user-safe
// message. Details are internal and never rendered to callers.
type Fault struct {
	Code    Code
	Message string
	Details map[string]any
	err     error
}

func (f *Fault) Error() string {
	if f.err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Code, f.Message, f.err)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *Fault) Unwrap() error { return f.err }

// New creates a Fault with the given code and user-safe message.
func New(code Code, message string) *Fault {
	return &Fault{Code: code, Message: message}
}

// Wrap creates a Fault wrapping an underlying error.
func Wrap(code Code, message string, err error) *Fault {
	return &Fault{Code: code, Message: message, err: err}
}

// WithDetail attaches an internal key/value to the fault and returns it.
func (f *Fault) WithDetail(key string, value any) *Fault {
	if f.Details == nil {
		f.Details = make(map[string]any)
	}
	f.Details[key] = value
	return f
}

// CodeOf extracts the Code from err, or CodeInternal when err is not a Fault.
// A nil err yields the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
