package temporal

import (
	"github.com/roach88/staquery/internal/qerr"
	"github.com/roach88/staquery/internal/queryir"
)

type arithFunc func(op queryir.ArithOp, l, r Expression) Expression

func arith(op queryir.ArithOp, a, b queryir.Operand) queryir.Operand {
	return &queryir.Arith{Op: op, Left: a, Right: b}
}

// arithTable holds every supported (left kind, right kind, op) combination.
var arithTable = map[kindPair]map[queryir.ArithOp]arithFunc{
	// Sum and difference of durations are typed as a point in time. Callers
	// comparing the result against a Duration will get an unsupported
	// operation error.
	{KindDuration, KindDuration}: {
		queryir.ArithAdd: toPoint,
		queryir.ArithSub: toPoint,
	},
	{KindDuration, KindPointInTime}: {
		queryir.ArithAdd: toPoint,
		queryir.ArithSub: toPoint,
	},
	{KindPointInTime, KindDuration}: {
		queryir.ArithAdd: toPoint,
		queryir.ArithSub: toPoint,
	},
	{KindDuration, KindTimeInterval}: {
		queryir.ArithAdd: durationWithInterval,
		queryir.ArithSub: durationWithInterval,
	},
	{KindTimeInterval, KindDuration}: {
		queryir.ArithAdd: intervalWithDuration,
		queryir.ArithSub: intervalWithDuration,
	},
	{KindTimeInterval, KindTimeInterval}: {
		// Only start times take part.
		queryir.ArithSub: func(op queryir.ArithOp, l, r Expression) Expression {
			return Duration{Field: arith(op, start(l), start(r))}
		},
	},
	{KindDuration, KindScalar}: {
		queryir.ArithMul: toDuration,
		queryir.ArithDiv: toDuration,
	},
}

func toPoint(op queryir.ArithOp, l, r Expression) Expression {
	return PointInTime{Field: arith(op, point(l), point(r))}
}

func toDuration(op queryir.ArithOp, l, r Expression) Expression {
	return Duration{Field: arith(op, point(l), point(r))}
}

func durationWithInterval(op queryir.ArithOp, l, r Expression) Expression {
	d := point(l)
	return TimeInterval{Start: arith(op, d, start(r)), End: arith(op, d, end(r))}
}

func intervalWithDuration(op queryir.ArithOp, l, r Expression) Expression {
	d := point(r)
	return TimeInterval{Start: arith(op, start(l), d), End: arith(op, end(l), d)}
}

// Arithmetic combines l and r. The result carries the UTC flag of l.
func Arithmetic(op queryir.ArithOp, l, r Expression) (Expression, error) {
	fn, err := lookupArith(op, l, r)
	if err != nil {
		return nil, err
	}
	return withUTC(fn(op, l, r), l.UTC()), nil
}

// ResultKind returns the kind produced by l <op> r, or an error if the
// combination is unsupported.
func ResultKind(op queryir.ArithOp, left, right Kind) (Kind, error) {
	l, r := placeholder(left), placeholder(right)
	fn, err := lookupArith(op, l, r)
	if err != nil {
		return "", err
	}
	return fn(op, l, r).Kind(), nil
}

func lookupArith(op queryir.ArithOp, l, r Expression) (arithFunc, error) {
	if l == nil || r == nil {
		return nil, qerr.NewUnsupportedTemporal(string(op), kindName(l), kindName(r))
	}
	fn := arithTable[kindPair{l.Kind(), r.Kind()}][op]
	if fn == nil {
		return nil, qerr.NewUnsupportedTemporal(string(op), string(l.Kind()), string(r.Kind()))
	}
	return fn, nil
}

func Add(l, r Expression) (Expression, error) { return Arithmetic(queryir.ArithAdd, l, r) }
func Sub(l, r Expression) (Expression, error) { return Arithmetic(queryir.ArithSub, l, r) }
func Mul(l, r Expression) (Expression, error) { return Arithmetic(queryir.ArithMul, l, r) }
func Div(l, r Expression) (Expression, error) { return Arithmetic(queryir.ArithDiv, l, r) }
