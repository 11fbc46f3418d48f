// Package qerr defines the error kinds reported while resolving a query.
//
// Every validation failure in the query core is an *Error carrying a Kind.
// Callers classify failures with Is or KindOf, both of which see through
// fmt.Errorf("%w") wrapping.
package qerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind categorizes query resolution errors.
type Kind string

const (
	// KindInvalidSelect indicates a $select token that is not a property of
	// the entity type, or a sub-path on a property without sub-properties.
	KindInvalidSelect Kind = "INVALID_SELECT"

	// KindUnknownPath indicates an $expand segment that does not resolve to a
	// navigation property visible to the caller.
	KindUnknownPath Kind = "UNKNOWN_PATH"

	// KindInvalidFilterExpression indicates a $filter that fails to type-check.
	KindInvalidFilterExpression Kind = "INVALID_FILTER_EXPRESSION"

	// KindInvalidOrderExpression indicates an $orderby expression that fails
	// to type-check.
	KindInvalidOrderExpression Kind = "INVALID_ORDER_EXPRESSION"

	// KindUnsupportedTemporalOperation indicates a temporal comparison or
	// arithmetic operator applied to an operand-kind pair without semantics.
	KindUnsupportedTemporalOperation Kind = "UNSUPPORTED_TEMPORAL_OPERATION"

	// KindPropertyPlaceholderConflict indicates raw select tokens and
	// resolved select properties were mixed on the same query.
	KindPropertyPlaceholderConflict Kind = "PROPERTY_PLACEHOLDER_CONFLICT"
)

// Error is a query resolution failure.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Path is the offending token or path, if any (e.g. "Things/Locations").
	Path string

	// Details contains additional context (e.g. operand kinds).
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (path=%s)", e.Path)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, e.Details[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithPath returns e with Path set.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// Wrap creates an Error of the given kind around cause.
//
// If cause is already an *Error of an unsupported-temporal kind it is
// returned unchanged, so operand-kind failures keep their classification
// when they bubble up through filter or order validation.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	var qe *Error
	if errors.As(cause, &qe) && qe.Kind == KindUnsupportedTemporalOperation {
		return cause
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Is reports whether err is an *Error of the given kind.
// Uses errors.As to handle wrapped errors.
func Is(err error, kind Kind) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

// NewInvalidSelect creates an Error for an unusable $select token.
func NewInvalidSelect(token, entityType string) *Error {
	return &Error{
		Kind:    KindInvalidSelect,
		Message: fmt.Sprintf("%q is not a selectable property of %s", token, entityType),
		Path:    token,
	}
}

// NewUnknownPath creates an Error for an unresolvable $expand segment.
func NewUnknownPath(segment, entityType string) *Error {
	return &Error{
		Kind:    KindUnknownPath,
		Message: fmt.Sprintf("%q is not a navigation property of %s", segment, entityType),
		Path:    segment,
	}
}

// NewUnsupportedTemporal creates an Error for an operator applied to an
// operand-kind pair without defined semantics.
func NewUnsupportedTemporal(op, left, right string) *Error {
	return &Error{
		Kind:    KindUnsupportedTemporalOperation,
		Message: fmt.Sprintf("operator %q is not supported between %s and %s", op, left, right),
		Details: map[string]string{
			"op":    op,
			"left":  left,
			"right": right,
		},
	}
}

// NewPlaceholderConflict creates an Error for mixing raw and resolved
// select entries on one query.
func NewPlaceholderConflict() *Error {
	return &Error{
		Kind:    KindPropertyPlaceholderConflict,
		Message: "raw select tokens and resolved select properties cannot be mixed",
	}
}
