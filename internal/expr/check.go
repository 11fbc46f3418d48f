package expr

import (
	"fmt"

	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/qerr"
	"github.com/roach88/staquery/internal/queryir"
	"github.com/roach88/staquery/internal/temporal"
)

// Type is the static type of an expression.
type Type string

const (
	TypeString   Type = "String"
	TypeInteger  Type = "Integer"
	TypeDouble   Type = "Double"
	TypeBoolean  Type = "Boolean"
	TypeDateTime Type = "DateTime"
	TypeDuration Type = "Duration"
	TypeInterval Type = "TimeInterval"
	TypeGeometry Type = "Geometry"
	TypeNull     Type = "Null"

	// TypeJSON is a member of a JSON document. Its type is only known at
	// run time, so it is accepted wherever a scalar is.
	TypeJSON Type = "JSON"
)

// Env is the context an expression is checked and compiled in.
type Env struct {
	Type     *model.EntityType
	Resolver model.PropertyResolver
	Admin    bool
}

type funcSig struct {
	arity int
	infix bool
	arith bool
}

var functions = map[string]funcSig{
	"eq":          {arity: 2, infix: true},
	"ne":          {arity: 2, infix: true},
	"gt":          {arity: 2, infix: true},
	"ge":          {arity: 2, infix: true},
	"lt":          {arity: 2, infix: true},
	"le":          {arity: 2, infix: true},
	"and":         {arity: 2, infix: true},
	"or":          {arity: 2, infix: true},
	"add":         {arity: 2, infix: true, arith: true},
	"sub":         {arity: 2, infix: true, arith: true},
	"mul":         {arity: 2, infix: true, arith: true},
	"div":         {arity: 2, infix: true, arith: true},
	"not":         {arity: 1},
	"after":       {arity: 2},
	"before":      {arity: 2},
	"meets":       {arity: 2},
	"during":      {arity: 2},
	"overlaps":    {arity: 2},
	"starts":      {arity: 2},
	"finishes":    {arity: 2},
	"startswith":  {arity: 2},
	"endswith":    {arity: 2},
	"substringof": {arity: 2},
	"tolower":     {arity: 1},
	"toupper":     {arity: 1},
	"length":      {arity: 1},
}

var comparisonOps = map[string]temporal.Op{
	"eq": temporal.OpEq,
	"ne": temporal.OpNe,
	"gt": temporal.OpGt,
	"ge": temporal.OpGe,
	"lt": temporal.OpLt,
	"le": temporal.OpLe,
}

// relationOps maps temporal functions to operator codes. during(a, b) is
// checked and compiled as contains(b, a).
var relationOps = map[string]temporal.Op{
	"after":    temporal.OpAfter,
	"before":   temporal.OpBefore,
	"meets":    temporal.OpMeets,
	"during":   temporal.OpContains,
	"overlaps": temporal.OpOverlaps,
	"starts":   temporal.OpStarts,
	"finishes": temporal.OpFinishes,
}

var arithOps = map[string]queryir.ArithOp{
	"add": queryir.ArithAdd,
	"sub": queryir.ArithSub,
	"mul": queryir.ArithMul,
	"div": queryir.ArithDiv,
}

// Check type-checks e against env and resolves the paths it contains.
// It may be called repeatedly; each call re-resolves.
//
// Temporal operand mismatches are reported as qerr errors of kind
// KindUnsupportedTemporalOperation; everything else is a plain error the
// caller classifies.
func Check(e Expression, env Env) (Type, error) {
	switch n := e.(type) {
	case nil:
		return "", fmt.Errorf("missing expression")
	case *Path:
		return n.resolve(env)
	case *StringConstant:
		return TypeString, nil
	case *IntegerConstant:
		return TypeInteger, nil
	case *DoubleConstant:
		return TypeDouble, nil
	case *BooleanConstant:
		return TypeBoolean, nil
	case *NullConstant:
		return TypeNull, nil
	case *DateTimeConstant:
		return TypeDateTime, nil
	case *DurationConstant:
		if n.Value == nil {
			return "", fmt.Errorf("empty duration constant")
		}
		return TypeDuration, nil
	case *IntervalConstant:
		if n.End.Before(n.Start) {
			return "", fmt.Errorf("interval %s ends before it starts", n.ToURL())
		}
		return TypeInterval, nil
	case *Function:
		return checkFunction(n, env)
	default:
		return "", fmt.Errorf("unsupported expression type: %T", e)
	}
}

// IsBoolean reports whether t can be used as a filter.
func IsBoolean(t Type) bool {
	return t == TypeBoolean || t == TypeJSON
}

func checkFunction(f *Function, env Env) (Type, error) {
	sig, ok := functions[f.Name]
	if !ok {
		return "", fmt.Errorf("unknown function %q", f.Name)
	}
	if len(f.Args) != sig.arity {
		return "", fmt.Errorf("%s expects %d arguments, got %d", f.Name, sig.arity, len(f.Args))
	}

	types := make([]Type, len(f.Args))
	for i, arg := range f.Args {
		t, err := Check(arg, env)
		if err != nil {
			return "", err
		}
		types[i] = t
	}

	switch f.Name {
	case "and", "or", "not":
		for i, t := range types {
			if !IsBoolean(t) {
				return "", fmt.Errorf("%s: argument %d is %s, want Boolean", f.Name, i+1, t)
			}
		}
		return TypeBoolean, nil

	case "eq", "ne", "gt", "ge", "lt", "le":
		if err := checkComparable(f.Name, types[0], types[1]); err != nil {
			return "", err
		}
		return TypeBoolean, nil

	case "after", "before", "meets", "during", "overlaps", "starts", "finishes":
		l, r := types[0], types[1]
		if f.Name == "during" {
			l, r = r, l
		}
		lk, lok := temporalKind(l)
		rk, rok := temporalKind(r)
		if !lok || !rok || lk == temporal.KindScalar || rk == temporal.KindScalar {
			return "", qerr.NewUnsupportedTemporal(f.Name, string(l), string(r))
		}
		if err := temporal.CheckCompare(relationOps[f.Name], lk, rk); err != nil {
			return "", err
		}
		return TypeBoolean, nil

	case "add", "sub", "mul", "div":
		return arithType(f.Name, types[0], types[1])

	case "startswith", "endswith", "substringof":
		for i, t := range types {
			if t != TypeString && t != TypeJSON {
				return "", fmt.Errorf("%s: argument %d is %s, want String", f.Name, i+1, t)
			}
		}
		return TypeBoolean, nil

	case "tolower", "toupper":
		if types[0] != TypeString && types[0] != TypeJSON {
			return "", fmt.Errorf("%s: argument is %s, want String", f.Name, types[0])
		}
		return TypeString, nil

	case "length":
		if types[0] != TypeString && types[0] != TypeJSON {
			return "", fmt.Errorf("length: argument is %s, want String", types[0])
		}
		return TypeInteger, nil
	}

	return "", fmt.Errorf("unknown function %q", f.Name)
}

func checkComparable(name string, l, r Type) error {
	if l == TypeNull || r == TypeNull {
		if name != "eq" && name != "ne" {
			return fmt.Errorf("%s: null only supports eq and ne", name)
		}
		return nil
	}

	lk, lTemporal := temporalKind(l)
	rk, rTemporal := temporalKind(r)
	lTemporal = lTemporal && lk != temporal.KindScalar
	rTemporal = rTemporal && rk != temporal.KindScalar
	switch {
	case lTemporal && rTemporal:
		return temporal.CheckCompare(comparisonOps[name], lk, rk)
	case lTemporal || rTemporal:
		return fmt.Errorf("%s: cannot compare %s with %s", name, l, r)
	}

	switch {
	case l == TypeJSON || r == TypeJSON:
		if l == TypeGeometry || r == TypeGeometry {
			return fmt.Errorf("%s: geometries are not comparable", name)
		}
		return nil
	case isNumeric(l) && isNumeric(r):
		return nil
	case l == r && (l == TypeString || l == TypeBoolean):
		return nil
	}
	return fmt.Errorf("%s: cannot compare %s with %s", name, l, r)
}

func arithType(name string, l, r Type) (Type, error) {
	lk, lTemporal := temporalKind(l)
	rk, rTemporal := temporalKind(r)
	if (lTemporal && lk != temporal.KindScalar) || (rTemporal && rk != temporal.KindScalar) {
		if !lTemporal || !rTemporal {
			return "", qerr.NewUnsupportedTemporal(name, string(l), string(r))
		}
		k, err := temporal.ResultKind(arithOps[name], lk, rk)
		if err != nil {
			return "", err
		}
		return typeOfKind(k), nil
	}

	switch {
	case l == TypeInteger && r == TypeInteger:
		return TypeInteger, nil
	case isNumeric(l) && isNumeric(r):
		return TypeDouble, nil
	case (l == TypeJSON || isNumeric(l)) && (r == TypeJSON || isNumeric(r)):
		return TypeJSON, nil
	}
	return "", fmt.Errorf("%s: arithmetic on %s and %s", name, l, r)
}

func isNumeric(t Type) bool {
	return t == TypeInteger || t == TypeDouble
}

// temporalKind maps a type to its temporal algebra kind. Numbers map to
// Scalar so they can scale durations.
func temporalKind(t Type) (temporal.Kind, bool) {
	switch t {
	case TypeDateTime:
		return temporal.KindPointInTime, true
	case TypeDuration:
		return temporal.KindDuration, true
	case TypeInterval:
		return temporal.KindTimeInterval, true
	case TypeInteger, TypeDouble:
		return temporal.KindScalar, true
	}
	return "", false
}

func typeOfKind(k temporal.Kind) Type {
	switch k {
	case temporal.KindPointInTime:
		return TypeDateTime
	case temporal.KindDuration:
		return TypeDuration
	case temporal.KindTimeInterval:
		return TypeInterval
	}
	return TypeDouble
}

func typeOfProperty(t model.Type) Type {
	switch t {
	case model.TypeID, model.TypeInteger:
		return TypeInteger
	case model.TypeDouble:
		return TypeDouble
	case model.TypeBoolean:
		return TypeBoolean
	case model.TypeDateTime:
		return TypeDateTime
	case model.TypeTimeInterval:
		return TypeInterval
	case model.TypeObject:
		return TypeJSON
	case model.TypeGeometry:
		return TypeGeometry
	}
	return TypeString
}

// resolve binds the path to properties of env.Type.
func (p *Path) resolve(env Env) (Type, error) {
	p.navs, p.prop, p.subPath = nil, nil, nil
	if len(p.Segments) == 0 || env.Type == nil || env.Resolver == nil {
		return "", fmt.Errorf("cannot resolve path %q", p.ToURL())
	}

	et := env.Type
	last := len(p.Segments) - 1
	for i, seg := range p.Segments {
		prop, ok := env.Resolver.Property(et, seg)
		if !ok || (model.IsAdminOnly(prop) && !env.Admin) {
			return "", fmt.Errorf("unknown property %q of %s in path %s", seg, et.Name, p.ToURL())
		}

		switch pr := prop.(type) {
		case *model.NavigationProperty:
			if pr.IsSet {
				return "", fmt.Errorf("path %s crosses to-many navigation %s", p.ToURL(), pr.Name)
			}
			if i == last {
				return "", fmt.Errorf("path %s ends in navigation property %s", p.ToURL(), pr.Name)
			}
			p.navs = append(p.navs, pr)
			et = pr.Target

		case *model.EntityProperty:
			p.prop = pr
			if i < last {
				if !pr.HasCustomProperties() {
					return "", fmt.Errorf("property %s of %s has no sub-properties", pr.Name, et.Name)
				}
				p.subPath = p.Segments[i+1:]
				return TypeJSON, nil
			}
			return typeOfProperty(pr.Type), nil

		default:
			return "", fmt.Errorf("unsupported property %T in path %s", prop, p.ToURL())
		}
	}
	return "", fmt.Errorf("cannot resolve path %q", p.ToURL())
}
