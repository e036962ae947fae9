// Package errs defines the failure kinds a training run can abort with.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Match with errors.Is.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrDataQuality         = errors.New("data quality error")
	ErrShapeMismatch       = errors.New("shape mismatch")
	ErrResourceUnavailable = errors.New("resource unavailable")
)

// NoIndex marks an Error that is not tied to a specific example or batch.
const NoIndex = -1

// Error carries the kind of failure plus where it happened.
type Error struct {
	Kind  error
	Op    string
	Phase string
	Index int
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Phase != "" {
		fmt.Fprintf(&b, " [phase=%s", e.Phase)
		if e.Index >= 0 {
			fmt.Fprintf(&b, " index=%d", e.Index)
		}
		b.WriteString("]")
	} else if e.Index >= 0 {
		fmt.Fprintf(&b, " [index=%d]", e.Index)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches the failure kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Configuration builds an ErrConfiguration failure.
func Configuration(op, format string, a ...any) *Error {
	return &Error{Kind: ErrConfiguration, Op: op, Index: NoIndex, Msg: fmt.Sprintf(format, a...)}
}

// DataQuality builds an ErrDataQuality failure for the row or example at index.
func DataQuality(op string, index int, format string, a ...any) *Error {
	return &Error{Kind: ErrDataQuality, Op: op, Index: index, Msg: fmt.Sprintf(format, a...)}
}

// ShapeMismatch builds an ErrShapeMismatch failure.
func ShapeMismatch(op, format string, a ...any) *Error {
	return &Error{Kind: ErrShapeMismatch, Op: op, Index: NoIndex, Msg: fmt.Sprintf(format, a...)}
}

// ResourceUnavailable builds an ErrResourceUnavailable failure.
func ResourceUnavailable(op, format string, a ...any) *Error {
	return &Error{Kind: ErrResourceUnavailable, Op: op, Index: NoIndex, Msg: fmt.Sprintf(format, a...)}
}

// InPhase annotates err with the phase and batch index it surfaced in. A bare
// *Error gets the fields filled in; anything else, including already wrapped
// errors, is wrapped with the phase and batch as a prefix.
func InPhase(err error, phase string, index int) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		out := *e
		if out.Phase == "" {
			out.Phase = phase
		}
		if out.Index < 0 {
			out.Index = index
		}
		return &out
	}
	if index < 0 {
		return fmt.Errorf("phase %s: %w", phase, err)
	}
	return fmt.Errorf("phase %s batch %d: %w", phase, index, err)
}

// KindOf returns a short label for err's kind, used as a metrics label.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrDataQuality):
		return "data_quality"
	case errors.Is(err, ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, ErrResourceUnavailable):
		return "resource_unavailable"
	default:
		return "internal"
	}
}
