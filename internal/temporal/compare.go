package temporal

import (
	"github.com/roach88/staquery/internal/qerr"
	"github.com/roach88/staquery/internal/queryir"
)

// Op is a comparison operator code.
type Op string

const (
	OpEq       Op = "="
	OpNe       Op = "!="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpAfter    Op = "a"
	OpBefore   Op = "b"
	OpMeets    Op = "m"
	OpContains Op = "c"
	OpOverlaps Op = "o"
	OpStarts   Op = "s"
	OpFinishes Op = "f"
)

type kindPair struct {
	left, right Kind
}

type compareFunc func(l, r Expression) queryir.Predicate

// compareTable holds every supported (left kind, right kind, op)
// combination. Anything missing is an unsupported operation.
var compareTable = map[kindPair]map[Op]compareFunc{
	{KindPointInTime, KindPointInTime}: {
		OpEq:       fieldCmp(queryir.OpEq),
		OpNe:       fieldCmp(queryir.OpNe),
		OpGt:       fieldCmp(queryir.OpGt),
		OpGe:       fieldCmp(queryir.OpGe),
		OpLt:       fieldCmp(queryir.OpLt),
		OpLe:       fieldCmp(queryir.OpLe),
		OpAfter:    fieldCmp(queryir.OpGt),
		OpBefore:   fieldCmp(queryir.OpLt),
		OpMeets:    fieldCmp(queryir.OpEq),
		OpContains: fieldCmp(queryir.OpEq),
		OpOverlaps: fieldCmp(queryir.OpEq),
		OpStarts:   fieldCmp(queryir.OpEq),
		OpFinishes: fieldCmp(queryir.OpEq),
	},

	{KindPointInTime, KindTimeInterval}: {
		OpEq: func(l, r Expression) queryir.Predicate {
			p, s, e := point(l), start(r), end(r)
			return queryir.AllOf(eq(p, s), eq(p, e))
		},
		OpNe: func(l, r Expression) queryir.Predicate {
			p, s, e := point(l), start(r), end(r)
			return queryir.AnyOf(ne(p, s), ne(p, e))
		},
		OpGt:     pointAfterInterval,
		OpAfter:  pointAfterInterval,
		OpGe:     func(l, r Expression) queryir.Predicate { return ge(point(l), end(r)) },
		OpLt:     func(l, r Expression) queryir.Predicate { return lt(point(l), start(r)) },
		OpBefore: func(l, r Expression) queryir.Predicate { return lt(point(l), start(r)) },
		OpLe:     func(l, r Expression) queryir.Predicate { return le(point(l), start(r)) },
		OpMeets: func(l, r Expression) queryir.Predicate {
			p, s, e := point(l), start(r), end(r)
			return queryir.AnyOf(eq(p, s), eq(p, e))
		},
		OpOverlaps: func(l, r Expression) queryir.Predicate {
			p, s, e := point(l), start(r), end(r)
			return queryir.AnyOf(eq(p, s), queryir.AllOf(gt(p, s), lt(p, e)))
		},
		OpStarts:   func(l, r Expression) queryir.Predicate { return eq(point(l), start(r)) },
		OpFinishes: func(l, r Expression) queryir.Predicate { return eq(point(l), end(r)) },
	},

	{KindTimeInterval, KindPointInTime}: {
		OpEq: func(l, r Expression) queryir.Predicate {
			s, e, p := start(l), end(l), point(r)
			return queryir.AllOf(eq(s, p), eq(e, p))
		},
		OpNe: func(l, r Expression) queryir.Predicate {
			s, e, p := start(l), end(l), point(r)
			return queryir.AnyOf(ne(s, p), ne(e, p))
		},
		OpGt:     func(l, r Expression) queryir.Predicate { return gt(start(l), point(r)) },
		OpAfter:  func(l, r Expression) queryir.Predicate { return gt(start(l), point(r)) },
		OpGe:     func(l, r Expression) queryir.Predicate { return ge(start(l), point(r)) },
		OpLt:     intervalBeforePoint,
		OpBefore: intervalBeforePoint,
		OpLe:     func(l, r Expression) queryir.Predicate { return le(end(l), point(r)) },
		OpContains: func(l, r Expression) queryir.Predicate {
			s, e, p := start(l), end(l), point(r)
			return queryir.AllOf(le(s, p), gt(e, p))
		},
		OpMeets: func(l, r Expression) queryir.Predicate {
			s, e, p := start(l), end(l), point(r)
			return queryir.AnyOf(eq(s, p), eq(e, p))
		},
		OpOverlaps: func(l, r Expression) queryir.Predicate {
			s, e, p := start(l), end(l), point(r)
			return queryir.AnyOf(eq(s, p), queryir.AllOf(lt(s, p), gt(e, p)))
		},
		OpStarts:   func(l, r Expression) queryir.Predicate { return eq(start(l), point(r)) },
		OpFinishes: func(l, r Expression) queryir.Predicate { return eq(end(l), point(r)) },
	},

	{KindTimeInterval, KindTimeInterval}: {
		OpEq: func(l, r Expression) queryir.Predicate {
			return queryir.AllOf(eq(start(l), start(r)), eq(end(l), end(r)))
		},
		OpNe: func(l, r Expression) queryir.Predicate {
			return queryir.AnyOf(ne(start(l), start(r)), ne(end(l), end(r)))
		},
		OpLt:     intervalBeforeInterval,
		OpBefore: intervalBeforeInterval,
		OpLe:     func(l, r Expression) queryir.Predicate { return le(end(l), start(r)) },
		OpGt:     intervalAfterInterval,
		OpAfter:  intervalAfterInterval,
		OpGe:     func(l, r Expression) queryir.Predicate { return ge(start(l), end(r)) },
		OpMeets: func(l, r Expression) queryir.Predicate {
			return queryir.AnyOf(eq(start(l), end(r)), eq(end(l), start(r)))
		},
		OpContains: func(l, r Expression) queryir.Predicate {
			return queryir.AllOf(le(start(l), start(r)), ge(end(l), end(r)))
		},
		OpOverlaps: func(l, r Expression) queryir.Predicate {
			s1, e1, s2, e2 := start(l), end(l), start(r), end(r)
			return queryir.AnyOf(
				&queryir.Not{Predicate: queryir.AnyOf(ge(s1, e2), ge(s2, e1))},
				eq(s1, s2),
			)
		},
		OpStarts:   func(l, r Expression) queryir.Predicate { return eq(start(l), start(r)) },
		OpFinishes: func(l, r Expression) queryir.Predicate { return eq(end(l), end(r)) },
	},

	// Durations only order against durations.
	{KindDuration, KindDuration}: {
		OpEq: fieldCmp(queryir.OpEq),
		OpNe: fieldCmp(queryir.OpNe),
		OpGt: fieldCmp(queryir.OpGt),
		OpGe: fieldCmp(queryir.OpGe),
		OpLt: fieldCmp(queryir.OpLt),
		OpLe: fieldCmp(queryir.OpLe),
	},
}

func pointAfterInterval(l, r Expression) queryir.Predicate {
	p, s, e := point(l), start(r), end(r)
	return queryir.AllOf(ge(p, e), gt(p, s))
}

func intervalBeforePoint(l, r Expression) queryir.Predicate {
	s, e, p := start(l), end(l), point(r)
	return queryir.AllOf(le(e, p), lt(s, p))
}

func intervalBeforeInterval(l, r Expression) queryir.Predicate {
	return queryir.AllOf(le(end(l), start(r)), lt(start(l), start(r)))
}

func intervalAfterInterval(l, r Expression) queryir.Predicate {
	return queryir.AllOf(ge(start(l), end(r)), gt(start(l), start(r)))
}

// Compare builds the predicate for l <op> r.
func Compare(op Op, l, r Expression) (queryir.Predicate, error) {
	fn, err := lookupCompare(op, l, r)
	if err != nil {
		return nil, err
	}
	return fn(l, r), nil
}

// CheckCompare reports whether op is defined between the two kinds.
func CheckCompare(op Op, left, right Kind) error {
	_, err := lookupCompare(op, placeholder(left), placeholder(right))
	return err
}

func lookupCompare(op Op, l, r Expression) (compareFunc, error) {
	if l == nil || r == nil {
		return nil, qerr.NewUnsupportedTemporal(string(op), kindName(l), kindName(r))
	}
	fn := compareTable[kindPair{l.Kind(), r.Kind()}][op]
	if fn == nil {
		return nil, qerr.NewUnsupportedTemporal(string(op), string(l.Kind()), string(r.Kind()))
	}
	return fn, nil
}

func kindName(e Expression) string {
	if e == nil {
		return "<nil>"
	}
	return string(e.Kind())
}

// Named comparisons. Each routes through Compare.
func Eq(l, r Expression) (queryir.Predicate, error)       { return Compare(OpEq, l, r) }
func Neq(l, r Expression) (queryir.Predicate, error)      { return Compare(OpNe, l, r) }
func Gt(l, r Expression) (queryir.Predicate, error)       { return Compare(OpGt, l, r) }
func Goe(l, r Expression) (queryir.Predicate, error)      { return Compare(OpGe, l, r) }
func Lt(l, r Expression) (queryir.Predicate, error)       { return Compare(OpLt, l, r) }
func Loe(l, r Expression) (queryir.Predicate, error)      { return Compare(OpLe, l, r) }
func After(l, r Expression) (queryir.Predicate, error)    { return Compare(OpAfter, l, r) }
func Before(l, r Expression) (queryir.Predicate, error)   { return Compare(OpBefore, l, r) }
func Meets(l, r Expression) (queryir.Predicate, error)    { return Compare(OpMeets, l, r) }
func Contains(l, r Expression) (queryir.Predicate, error) { return Compare(OpContains, l, r) }
func Overlaps(l, r Expression) (queryir.Predicate, error) { return Compare(OpOverlaps, l, r) }
func Starts(l, r Expression) (queryir.Predicate, error)   { return Compare(OpStarts, l, r) }
func Finishes(l, r Expression) (queryir.Predicate, error) { return Compare(OpFinishes, l, r) }

func fieldCmp(op queryir.CompareOp) compareFunc {
	return func(l, r Expression) queryir.Predicate {
		return queryir.Cmp(op, point(l), point(r))
	}
}

// point returns the single operand of a PointInTime or Duration.
func point(e Expression) queryir.Operand {
	switch v := e.(type) {
	case PointInTime:
		return v.Field
	case Duration:
		return v.Field
	case Scalar:
		return v.Field
	}
	return nil
}

func start(e Expression) queryir.Operand { return e.(TimeInterval).Start }
func end(e Expression) queryir.Operand   { return e.(TimeInterval).End }

func eq(a, b queryir.Operand) queryir.Predicate { return queryir.Cmp(queryir.OpEq, a, b) }
func ne(a, b queryir.Operand) queryir.Predicate { return queryir.Cmp(queryir.OpNe, a, b) }
func gt(a, b queryir.Operand) queryir.Predicate { return queryir.Cmp(queryir.OpGt, a, b) }
func ge(a, b queryir.Operand) queryir.Predicate { return queryir.Cmp(queryir.OpGe, a, b) }
func lt(a, b queryir.Operand) queryir.Predicate { return queryir.Cmp(queryir.OpLt, a, b) }
func le(a, b queryir.Operand) queryir.Predicate { return queryir.Cmp(queryir.OpLe, a, b) }
