// Error kinds for the moderation engine.
//
// Every error surfaced by the engine carries one Kind, so callers (HTTP handlers, CLI) can tell a rejected request
// apart from a failed collaborator or a broken configuration without matching on error strings.
package moderr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// request was rejected before any external call (eg, empty content)
	KindValidation
	// thresholds or other configuration are missing or inconsistent. not recoverable per-request
	KindConfiguration
	// oracle or store call failed
	KindDependency
	// oracle answered, but the response can't be trusted (eg, missing scores)
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindDependency:
		return "dependency"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	// short name of the operation which failed, eg "oracle.classify"
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

func Configuration(op, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: fmt.Errorf(format, args...)}
}

func Dependency(op string, err error) error {
	return &Error{Kind: KindDependency, Op: op, Err: err}
}

func Malformed(op, format string, args ...any) error {
	return &Error{Kind: KindMalformed, Op: op, Err: fmt.Errorf(format, args...)}
}

// Returns the Kind of the outermost *Error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
