package expr

import (
	"fmt"
	"time"

	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/queryir"
	"github.com/roach88/staquery/internal/temporal"
)

// value is an expression lowered to the IR. Exactly one of op, temp and
// pred is set.
type value struct {
	typ  Type
	op   queryir.Operand
	temp temporal.Expression
	pred queryir.Predicate
}

// Compile type-checks a boolean expression and lowers it to a predicate.
func Compile(e Expression, env Env) (queryir.Predicate, error) {
	t, err := Check(e, env)
	if err != nil {
		return nil, err
	}
	if !IsBoolean(t) {
		return nil, fmt.Errorf("expression %s is %s, want Boolean", e.ToURL(), t)
	}
	v, err := compileValue(e)
	if err != nil {
		return nil, err
	}
	return asPredicate(v)
}

// CompileOrder type-checks an $orderby expression and lowers it to the
// operands to sort by. Intervals sort by start, then end.
func CompileOrder(e Expression, env Env) ([]queryir.Operand, error) {
	t, err := Check(e, env)
	if err != nil {
		return nil, err
	}
	if t == TypeGeometry {
		return nil, fmt.Errorf("cannot order by geometry %s", e.ToURL())
	}
	v, err := compileValue(e)
	if err != nil {
		return nil, err
	}

	switch {
	case v.pred != nil:
		return nil, fmt.Errorf("cannot order by predicate %s", e.ToURL())
	case v.temp != nil:
		if iv, ok := v.temp.(temporal.TimeInterval); ok {
			return []queryir.Operand{iv.Start, iv.End}, nil
		}
		return []queryir.Operand{scalarOf(v)}, nil
	}
	return []queryir.Operand{v.op}, nil
}

func compileValue(e Expression) (value, error) {
	switch n := e.(type) {
	case *Path:
		return compilePath(n)
	case *StringConstant:
		return value{typ: TypeString, op: &queryir.Literal{Value: n.Value}}, nil
	case *IntegerConstant:
		return value{typ: TypeInteger, op: &queryir.Literal{Value: n.Value}}, nil
	case *DoubleConstant:
		return value{typ: TypeDouble, op: &queryir.Literal{Value: n.Value}}, nil
	case *BooleanConstant:
		return value{typ: TypeBoolean, op: &queryir.Literal{Value: n.Value}}, nil
	case *NullConstant:
		return value{typ: TypeNull, op: &queryir.Literal{Value: nil}}, nil
	case *DateTimeConstant:
		return value{typ: TypeDateTime, temp: temporal.PointInTime{
			Field: &queryir.Literal{Value: n.Value},
			IsUTC: n.Value.Location() == time.UTC,
		}}, nil
	case *DurationConstant:
		return value{typ: TypeDuration, temp: temporal.Duration{
			Field: &queryir.Literal{Value: n.Value.ToTimeDuration()},
		}}, nil
	case *IntervalConstant:
		return value{typ: TypeInterval, temp: temporal.TimeInterval{
			Start: &queryir.Literal{Value: n.Start},
			End:   &queryir.Literal{Value: n.End},
			IsUTC: n.Start.Location() == time.UTC,
		}}, nil
	case *Function:
		return compileFunction(n)
	default:
		return value{}, fmt.Errorf("unsupported expression type: %T", e)
	}
}

// compilePath lowers a resolved path. Navigation segments become
// correlated lookups through their foreign keys. JSON documents are always
// read through JSONPath so their members compare as typed values.
func compilePath(p *Path) (value, error) {
	if p.prop == nil {
		return value{}, fmt.Errorf("path %s is not resolved", p.ToURL())
	}

	var ops []queryir.Operand
	if len(p.subPath) > 0 || p.prop.Type == model.TypeObject {
		ops = []queryir.Operand{&queryir.JSONPath{Column: p.prop.Column(), Path: p.subPath}}
	} else {
		for _, c := range p.prop.Columns {
			ops = append(ops, &queryir.Column{Name: c})
		}
	}
	if len(ops) == 0 {
		return value{}, fmt.Errorf("property %s has no storage", p.prop.Name)
	}

	for i := len(p.navs) - 1; i >= 0; i-- {
		nav := p.navs[i]
		for j, op := range ops {
			ops[j] = &queryir.Related{
				Table: nav.Target.Table,
				Key:   nav.Target.PrimaryKey.Column(),
				Ref:   &queryir.Column{Name: nav.ForeignKey},
				Value: op,
			}
		}
	}

	if len(p.subPath) > 0 {
		return value{typ: TypeJSON, op: ops[0]}, nil
	}
	t := typeOfProperty(p.prop.Type)
	switch t {
	case TypeDateTime:
		return value{typ: t, temp: temporal.PointInTime{Field: ops[0], IsUTC: true}}, nil
	case TypeInterval:
		if len(ops) != 2 {
			return value{}, fmt.Errorf("interval property %s needs two columns", p.prop.Name)
		}
		return value{typ: t, temp: temporal.TimeInterval{Start: ops[0], End: ops[1], IsUTC: true}}, nil
	}
	return value{typ: t, op: ops[0]}, nil
}

func compileFunction(f *Function) (value, error) {
	args := make([]value, len(f.Args))
	for i, a := range f.Args {
		v, err := compileValue(a)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}

	switch f.Name {
	case "and", "or":
		l, err := asPredicate(args[0])
		if err != nil {
			return value{}, err
		}
		r, err := asPredicate(args[1])
		if err != nil {
			return value{}, err
		}
		if f.Name == "and" {
			return boolean(queryir.AllOf(l, r)), nil
		}
		return boolean(queryir.AnyOf(l, r)), nil

	case "not":
		p, err := asPredicate(args[0])
		if err != nil {
			return value{}, err
		}
		return boolean(&queryir.Not{Predicate: p}), nil

	case "eq", "ne", "gt", "ge", "lt", "le":
		p, err := compileComparison(f.Name, args[0], args[1])
		if err != nil {
			return value{}, err
		}
		return boolean(p), nil

	case "after", "before", "meets", "during", "overlaps", "starts", "finishes":
		l, r := args[0], args[1]
		if f.Name == "during" {
			l, r = r, l
		}
		if l.temp == nil || r.temp == nil {
			return value{}, fmt.Errorf("%s needs temporal arguments", f.Name)
		}
		p, err := temporal.Compare(relationOps[f.Name], l.temp, r.temp)
		if err != nil {
			return value{}, err
		}
		return boolean(p), nil

	case "add", "sub", "mul", "div":
		return compileArith(f.Name, args[0], args[1])

	case "startswith", "endswith", "substringof":
		kind := map[string]queryir.MatchKind{
			"startswith":  queryir.MatchPrefix,
			"endswith":    queryir.MatchSuffix,
			"substringof": queryir.MatchSubstring,
		}[f.Name]
		subject, needle := args[0].op, args[1].op
		if f.Name == "substringof" {
			subject, needle = needle, subject
		}
		return boolean(&queryir.Match{Kind: kind, Operand: subject, Value: needle}), nil

	case "tolower", "toupper", "length":
		name := map[string]string{"tolower": "lower", "toupper": "upper", "length": "length"}[f.Name]
		t := TypeString
		if f.Name == "length" {
			t = TypeInteger
		}
		return value{typ: t, op: &queryir.Func{Name: name, Args: []queryir.Operand{args[0].op}}}, nil
	}

	return value{}, fmt.Errorf("unknown function %q", f.Name)
}

func compileComparison(name string, l, r value) (queryir.Predicate, error) {
	op := comparisonOps[name]

	if l.typ == TypeNull {
		l, r = r, l
	}
	if r.typ == TypeNull {
		subject := scalarOf(l)
		if subject == nil {
			return nil, fmt.Errorf("%s: cannot compare a condition with null", name)
		}
		return queryir.Cmp(queryir.CompareOp(op), subject, r.op), nil
	}

	if l.temp != nil && r.temp != nil {
		return temporal.Compare(op, l.temp, r.temp)
	}
	if l.pred != nil || r.pred != nil {
		return nil, fmt.Errorf("%s: cannot compare boolean expressions", name)
	}
	return queryir.Cmp(queryir.CompareOp(op), l.op, r.op), nil
}

func compileArith(name string, l, r value) (value, error) {
	op := arithOps[name]
	if l.temp != nil || r.temp != nil {
		lt, rt := asTemporal(l), asTemporal(r)
		if lt == nil || rt == nil {
			return value{}, fmt.Errorf("%s: mixing temporal and non-temporal operands", name)
		}
		res, err := temporal.Arithmetic(op, lt, rt)
		if err != nil {
			return value{}, err
		}
		return value{typ: typeOfKind(res.Kind()), temp: res}, nil
	}

	t, err := arithType(name, l.typ, r.typ)
	if err != nil {
		return value{}, err
	}
	return value{typ: t, op: &queryir.Arith{Op: op, Left: l.op, Right: r.op}}, nil
}

// asTemporal returns the temporal form of v; numbers become scalars.
func asTemporal(v value) temporal.Expression {
	if v.temp != nil {
		return v.temp
	}
	if isNumeric(v.typ) {
		return temporal.Scalar{Field: v.op}
	}
	return nil
}

// scalarOf returns a single operand for v. Intervals are represented by
// their start.
func scalarOf(v value) queryir.Operand {
	switch t := v.temp.(type) {
	case temporal.PointInTime:
		return t.Field
	case temporal.Duration:
		return t.Field
	case temporal.TimeInterval:
		return t.Start
	}
	return v.op
}

func boolean(p queryir.Predicate) value {
	return value{typ: TypeBoolean, pred: p}
}

func asPredicate(v value) (queryir.Predicate, error) {
	if v.pred != nil {
		return v.pred, nil
	}
	if (v.typ == TypeBoolean || v.typ == TypeJSON) && v.op != nil {
		return queryir.Cmp(queryir.OpEq, v.op, &queryir.Literal{Value: true}), nil
	}
	return nil, fmt.Errorf("%s value cannot be used as a condition", v.typ)
}
