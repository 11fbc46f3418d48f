package query

import (
	"strings"

	"github.com/roach88/staquery/internal/expr"
)

// Direction is the sort direction of an OrderBy.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// OrderBy is one $orderby entry.
type OrderBy struct {
	Expression expr.Expression
	Direction  Direction
}

// Asc orders by e ascending.
func Asc(e expr.Expression) OrderBy { return OrderBy{Expression: e, Direction: Ascending} }

// Desc orders by e descending.
func Desc(e expr.Expression) OrderBy { return OrderBy{Expression: e, Direction: Descending} }

// ToURL renders the entry as "<expression> asc|desc".
func (o OrderBy) ToURL() string {
	if o.Expression == nil {
		return o.Direction.String()
	}
	return o.Expression.ToURL() + " " + o.Direction.String()
}

func (o OrderBy) Equal(other OrderBy) bool {
	return o.Direction == other.Direction && expr.Equal(o.Expression, other.Expression)
}

// Compare orders entries by expression text, then direction.
func (o OrderBy) Compare(other OrderBy) int {
	var a, b string
	if o.Expression != nil {
		a = o.Expression.ToURL()
	}
	if other.Expression != nil {
		b = other.Expression.ToURL()
	}
	if c := strings.Compare(a, b); c != 0 {
		return c
	}
	return int(o.Direction) - int(other.Direction)
}
