// Package expr implements the $filter and $orderby expression trees.
//
// The textual OData grammar is parsed elsewhere; this package receives the
// tokenized tree (built directly or decoded from Raw), type-checks it
// against an entity type with Check, renders it back to URL syntax with
// ToURL and lowers it to a queryir predicate or operands with Compile.
package expr

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"

	"github.com/roach88/staquery/internal/model"
)

// Expression is a node of a filter or order expression.
//
// This is a sealed interface - only types in this package implement it.
type Expression interface {
	// ToURL renders the expression in OData URL syntax.
	ToURL() string
	exprNode()
}

// Path references a property, optionally through to-one navigation and
// into JSON documents, e.g. Datastream/Thing/Properties/owner.
type Path struct {
	Segments []string

	// Set by Check.
	navs    []*model.NavigationProperty
	prop    *model.EntityProperty
	subPath []string
}

// NewPath creates a Path from its slash-separated form.
func NewPath(path string) *Path {
	return &Path{Segments: strings.Split(path, "/")}
}

func (p *Path) ToURL() string { return strings.Join(p.Segments, "/") }
func (*Path) exprNode()       {}

// StringConstant is a quoted string literal.
type StringConstant struct{ Value string }

// IntegerConstant is an integer literal.
type IntegerConstant struct{ Value int64 }

// DoubleConstant is a floating-point literal.
type DoubleConstant struct{ Value float64 }

// BooleanConstant is true or false.
type BooleanConstant struct{ Value bool }

// NullConstant is the null literal.
type NullConstant struct{}

// DateTimeConstant is an instant literal.
type DateTimeConstant struct{ Value time.Time }

// DurationConstant is an ISO-8601 duration literal, e.g. duration'P1DT2H'.
type DurationConstant struct{ Value *duration.Duration }

// IntervalConstant is an interval literal start/end.
type IntervalConstant struct{ Start, End time.Time }

func (c *StringConstant) ToURL() string {
	return "'" + strings.ReplaceAll(c.Value, "'", "''") + "'"
}

func (c *IntegerConstant) ToURL() string { return strconv.FormatInt(c.Value, 10) }

func (c *DoubleConstant) ToURL() string {
	s := strconv.FormatFloat(c.Value, 'g', -1, 64)
	if !math.IsInf(c.Value, 0) && !math.IsNaN(c.Value) && !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func (c *BooleanConstant) ToURL() string { return strconv.FormatBool(c.Value) }
func (*NullConstant) ToURL() string      { return "null" }

func (c *DateTimeConstant) ToURL() string { return c.Value.Format(time.RFC3339Nano) }

func (c *DurationConstant) ToURL() string { return "duration'" + c.Value.String() + "'" }

func (c *IntervalConstant) ToURL() string {
	return c.Start.Format(time.RFC3339Nano) + "/" + c.End.Format(time.RFC3339Nano)
}

func (*StringConstant) exprNode()   {}
func (*IntegerConstant) exprNode()  {}
func (*DoubleConstant) exprNode()   {}
func (*BooleanConstant) exprNode()  {}
func (*NullConstant) exprNode()     {}
func (*DateTimeConstant) exprNode() {}
func (*DurationConstant) exprNode() {}
func (*IntervalConstant) exprNode() {}

// Function is an operator or function application.
type Function struct {
	Name string
	Args []Expression
}

// Fn creates a Function node.
func Fn(name string, args ...Expression) *Function {
	return &Function{Name: strings.ToLower(name), Args: args}
}

func (*Function) exprNode() {}

// ToURL renders comparisons and logical operators infix, arithmetic infix in
// parentheses and everything else in call syntax.
func (f *Function) ToURL() string {
	sig, known := functions[f.Name]
	switch {
	case known && sig.infix && len(f.Args) == 2:
		left, right := f.Args[0].ToURL(), f.Args[1].ToURL()
		if f.Name == "and" {
			left, right = parenIfOr(f.Args[0], left), parenIfOr(f.Args[1], right)
		}
		if sig.arith {
			return "(" + left + " " + f.Name + " " + right + ")"
		}
		return left + " " + f.Name + " " + right
	case f.Name == "not" && len(f.Args) == 1:
		if inner, ok := f.Args[0].(*Function); ok && functions[inner.Name].infix && !functions[inner.Name].arith {
			return "not (" + inner.ToURL() + ")"
		}
		return "not " + f.Args[0].ToURL()
	}

	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.ToURL()
	}
	return f.Name + "(" + strings.Join(args, ",") + ")"
}

func parenIfOr(e Expression, s string) string {
	if f, ok := e.(*Function); ok && f.Name == "or" {
		return "(" + s + ")"
	}
	return s
}

// Equal reports whether two expressions render identically.
func Equal(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ToURL() == b.ToURL()
}

// String wraps a string constant.
func String(v string) *StringConstant { return &StringConstant{Value: v} }

// Int wraps an integer constant.
func Int(v int64) *IntegerConstant { return &IntegerConstant{Value: v} }

// Double wraps a floating-point constant.
func Double(v float64) *DoubleConstant { return &DoubleConstant{Value: v} }

// Bool wraps a boolean constant.
func Bool(v bool) *BooleanConstant { return &BooleanConstant{Value: v} }

// Null is the null constant.
func Null() *NullConstant { return &NullConstant{} }

// DateTime wraps an instant constant.
func DateTime(v time.Time) *DateTimeConstant { return &DateTimeConstant{Value: v} }

// Interval wraps an interval constant.
func Interval(start, end time.Time) *IntervalConstant {
	return &IntervalConstant{Start: start, End: end}
}

// ParseDuration parses an ISO-8601 duration such as P1DT2H30M.
func ParseDuration(s string) (*DurationConstant, error) {
	d, err := duration.Parse(s)
	if err != nil {
		return nil, err
	}
	return &DurationConstant{Value: d}, nil
}

// DurationOf wraps a Go duration.
func DurationOf(d time.Duration) *DurationConstant {
	return &DurationConstant{Value: duration.FromTimeDuration(d)}
}
