// Package matcherr defines the typed error surface shared by the shape
// matching pipeline. Lower-level helpers within a single package still
// return plain %w-wrapped errors; these kinds are for the Detector's
// public, caller-facing failures.
package matcherr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error categories from the error handling design.
type Kind int

const (
	// InvalidInput covers empty images, mismatched mask size/type, and
	// pyramid level counts below 1.
	InvalidInput Kind = iota
	// InsufficientFeatures means the template extractor could not reach
	// num_features even at the scatter-distance feasibility floor.
	InsufficientFeatures
	// ShapeInfoExhausted means a shape-info producer emitted zero
	// (angle, scale) pairs.
	ShapeInfoExhausted
	// IdNotFound means a requested source/template/match id was never added.
	IdNotFound
	// Cancelled means cooperative cancellation fired mid-match.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case InsufficientFeatures:
		return "insufficient features"
	case ShapeInfoExhausted:
		return "shape info exhausted"
	case IdNotFound:
		return "id not found"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across package boundaries.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Cause satisfies github.com/pkg/errors' Causer interface.
func (e *Error) Cause() error { return e.err }

// New creates a Kind error carrying a message, with no wrapped cause.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, err: errors.New(msg)}
}

// Wrap attaches a Kind to an existing error. Returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.WithStack(err)}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
