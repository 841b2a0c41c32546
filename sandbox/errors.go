package sandbox

import (
	"errors"
	"fmt"
)

// Kind classifies why an execution did not produce a result.
type Kind string

// Failure kinds
const (
	KindValidation    Kind = "validation"
	KindTimeout       Kind = "timeout"
	KindSpawn         Kind = "spawn"
	KindSerialization Kind = "serialization"
	KindScript        Kind = "script"
	KindExtraction    Kind = "extraction"
	KindOutputLimit   Kind = "output_limit"
	KindInternal      Kind = "internal"
)

// Sentinels for errors.Is matching, one per Kind.
var (
	ErrValidation    = errors.New("validation error")
	ErrTimeout       = errors.New("execution timed out")
	ErrSpawn         = errors.New("spawn error")
	ErrSerialization = errors.New("serialization error")
	ErrScript        = errors.New("script error")
	ErrExtraction    = errors.New("extraction error")
	ErrOutputLimit   = errors.New("output limit exceeded")
	ErrInternal      = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindValidation:    ErrValidation,
	KindTimeout:       ErrTimeout,
	KindSpawn:         ErrSpawn,
	KindSerialization: ErrSerialization,
	KindScript:        ErrScript,
	KindExtraction:    ErrExtraction,
	KindOutputLimit:   ErrOutputLimit,
	KindInternal:      ErrInternal,
}

// Reason narrows a validation failure.
type Reason string

// Validation reasons
const (
	ReasonEmptyScript       Reason = "EmptyScript"
	ReasonScriptTooLarge    Reason = "ScriptTooLarge"
	ReasonMissingEntryPoint Reason = "MissingEntryPoint"
	ReasonDeniedConstruct   Reason = "DeniedConstruct"
)

// Error is a classified execution failure. Message is safe to return to the
// caller; Err holds the underlying cause for logs.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func validationFailed(reason Reason, message string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: message}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
