package warrant

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable class of an engine error.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindUnsupportedStrategy Kind = "unsupported_strategy"
)

var (
	// ErrValidation matches malformed input: blank justification or group
	// name, unknown permission key, inverted validity window.
	ErrValidation = errors.New("warrant: validation failed")

	// ErrNotFound matches references to unknown groups, grants, requests or
	// conflicts.
	ErrNotFound = errors.New("warrant: not found")

	// ErrInvalidState matches state-machine transitions from a state that
	// does not permit them. Callers should re-fetch before retrying.
	ErrInvalidState = errors.New("warrant: invalid state transition")

	// ErrUnsupportedStrategy matches conflict resolution with a strategy
	// other than revoke_direct.
	ErrUnsupportedStrategy = errors.New("warrant: unsupported conflict resolution strategy")
)

// Error carries a Kind and a message suitable for direct display.
// errors.Is matches both the sentinel of its Kind and the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindInvalidState:
		return ErrInvalidState
	case KindUnsupportedStrategy:
		return ErrUnsupportedStrategy
	}
	return nil
}

// KindOf returns the Kind of err, or "" when err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFound(cause error, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Err: cause}
}

func invalidStatef(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}
