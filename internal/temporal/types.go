// Package temporal implements the temporal expression algebra used by
// filters and orderings over date-time, duration and interval values.
//
// Expressions wrap queryir operands (columns, literals or arithmetic) and
// combine into new expressions (Add, Sub, Mul, Div) or into queryir
// predicates (Eq ... Finishes). Both families dispatch on the kinds of the
// two operands through a table; a pair without an entry fails with a
// qerr.KindUnsupportedTemporalOperation error naming both kinds. There is
// no implicit widening between kinds.
package temporal

import "github.com/roach88/staquery/internal/queryir"

// Kind identifies an expression variant.
type Kind string

const (
	KindPointInTime  Kind = "PointInTime"
	KindDuration     Kind = "Duration"
	KindTimeInterval Kind = "TimeInterval"

	// KindScalar is a plain number. It only appears as the right operand of
	// Duration multiplication and division.
	KindScalar Kind = "Scalar"
)

// Expression is a typed temporal value.
//
// This is a sealed interface - only types in this package implement it.
type Expression interface {
	Kind() Kind
	UTC() bool
	temporalNode()
}

// PointInTime is an instant, stored as Unix milliseconds.
type PointInTime struct {
	Field queryir.Operand
	IsUTC bool
}

func (PointInTime) Kind() Kind    { return KindPointInTime }
func (p PointInTime) UTC() bool   { return p.IsUTC }
func (PointInTime) temporalNode() {}

// Duration is a signed length of time in milliseconds.
type Duration struct {
	Field queryir.Operand
	IsUTC bool
}

func (Duration) Kind() Kind    { return KindDuration }
func (d Duration) UTC() bool   { return d.IsUTC }
func (Duration) temporalNode() {}

// TimeInterval is a half-open range [Start, End) of instants.
type TimeInterval struct {
	Start queryir.Operand
	End   queryir.Operand
	IsUTC bool
}

func (TimeInterval) Kind() Kind    { return KindTimeInterval }
func (i TimeInterval) UTC() bool   { return i.IsUTC }
func (TimeInterval) temporalNode() {}

// Scalar is a dimensionless number used to scale durations.
type Scalar struct {
	Field queryir.Operand
}

func (Scalar) Kind() Kind    { return KindScalar }
func (Scalar) UTC() bool     { return false }
func (Scalar) temporalNode() {}

// withUTC returns e with its UTC flag replaced.
func withUTC(e Expression, utc bool) Expression {
	switch v := e.(type) {
	case PointInTime:
		v.IsUTC = utc
		return v
	case Duration:
		v.IsUTC = utc
		return v
	case TimeInterval:
		v.IsUTC = utc
		return v
	}
	return e
}

// placeholder builds an expression of kind k over dummy columns. It lets
// type checking run the real handlers without concrete operands.
func placeholder(k Kind) Expression {
	c := &queryir.Column{Name: "_"}
	switch k {
	case KindPointInTime:
		return PointInTime{Field: c}
	case KindDuration:
		return Duration{Field: c}
	case KindTimeInterval:
		return TimeInterval{Start: c, End: c}
	case KindScalar:
		return Scalar{Field: c}
	}
	return nil
}
