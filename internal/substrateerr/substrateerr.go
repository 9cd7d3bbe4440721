// Package substrateerr defines the error taxonomy every engine classifies
// failures into before deciding whether to retry, skip, or halt a worker.
package substrateerr

import (
	"errors"
	"fmt"
)

// Kind is one bucket of the error taxonomy.
type Kind int

const (
	// KindTransientExternal marks a timed-out or malformed external call or
	// embedding request. Callers retry with backoff, then fall back.
	KindTransientExternal Kind = iota
	// KindResourceExhausted marks insufficient energy to apply an action.
	// The action is skipped; the heartbeat is not aborted.
	KindResourceExhausted
	// KindConsentRequired marks a heartbeat attempted before consent.
	KindConsentRequired
	// KindStateViolation marks an invariant breach, e.g. a duplicate
	// in-flight heartbeat. Fatal to the current operation, not the worker.
	KindStateViolation
	// KindCorruption marks a dimension mismatch, orphaned graph node, or
	// unparseable configuration value.
	KindCorruption
	// KindFatal marks an unreachable persistent store. The owning worker
	// exits nonzero.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransientExternal:
		return "transient_external"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindConsentRequired:
		return "consent_required"
	case KindStateViolation:
		return "state_violation"
	case KindCorruption:
		return "corruption"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a taxonomy Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}

func TransientExternal(op string, err error) *Error { return New(KindTransientExternal, op, err) }
func ResourceExhausted(op string, err error) *Error { return New(KindResourceExhausted, op, err) }
func ConsentRequired(op string, err error) *Error   { return New(KindConsentRequired, op, err) }
func StateViolation(op string, err error) *Error    { return New(KindStateViolation, op, err) }
func Corruption(op string, err error) *Error        { return New(KindCorruption, op, err) }
func Fatal(op string, err error) *Error             { return New(KindFatal, op, err) }
