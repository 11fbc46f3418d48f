package queryir

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Row maps column names to values for in-memory evaluation.
type Row map[string]any

// tri is a three-valued truth value following SQL NULL semantics.
type tri int

const (
	triFalse tri = iota
	triTrue
	triUnknown
)

// Eval evaluates a predicate against a single row.
//
// Eval follows SQL three-valued logic: comparisons involving NULL are
// unknown, and a row matches only when the predicate is definitely true.
// A nil predicate matches every row. In and Related are not supported since
// they need a data source.
func Eval(p Predicate, row Row) (bool, error) {
	if p == nil {
		return true, nil
	}
	t, err := evalPredicate(p, row)
	if err != nil {
		return false, err
	}
	return t == triTrue, nil
}

func evalPredicate(p Predicate, row Row) (tri, error) {
	switch pred := p.(type) {
	case *Compare:
		return evalCompare(*pred, row)
	case Compare:
		return evalCompare(pred, row)
	case *And:
		return evalAnd(pred.Predicates, row)
	case And:
		return evalAnd(pred.Predicates, row)
	case *Or:
		return evalOr(pred.Predicates, row)
	case Or:
		return evalOr(pred.Predicates, row)
	case *Not:
		return evalNot(pred.Predicate, row)
	case Not:
		return evalNot(pred.Predicate, row)
	case *Truth:
		return boolTri(pred.Value), nil
	case Truth:
		return boolTri(pred.Value), nil
	case *Match:
		return evalMatch(*pred, row)
	case Match:
		return evalMatch(pred, row)
	default:
		return triFalse, fmt.Errorf("unsupported predicate type for evaluation: %T", p)
	}
}

func boolTri(b bool) tri {
	if b {
		return triTrue
	}
	return triFalse
}

func evalAnd(preds []Predicate, row Row) (tri, error) {
	result := triTrue
	for _, p := range preds {
		t, err := evalPredicate(p, row)
		if err != nil {
			return triFalse, err
		}
		if t == triFalse {
			return triFalse, nil
		}
		if t == triUnknown {
			result = triUnknown
		}
	}
	return result, nil
}

func evalOr(preds []Predicate, row Row) (tri, error) {
	result := triFalse
	for _, p := range preds {
		t, err := evalPredicate(p, row)
		if err != nil {
			return triFalse, err
		}
		if t == triTrue {
			return triTrue, nil
		}
		if t == triUnknown {
			result = triUnknown
		}
	}
	return result, nil
}

func evalNot(p Predicate, row Row) (tri, error) {
	t, err := evalPredicate(p, row)
	if err != nil {
		return triFalse, err
	}
	switch t {
	case triTrue:
		return triFalse, nil
	case triFalse:
		return triTrue, nil
	}
	return triUnknown, nil
}

func evalCompare(c Compare, row Row) (tri, error) {
	left, err := evalOperand(c.Left, row)
	if err != nil {
		return triFalse, err
	}
	right, err := evalOperand(c.Right, row)
	if err != nil {
		return triFalse, err
	}

	// IS NULL / IS NOT NULL against a nil literal.
	if isNilLiteral(c.Right) && (c.Op == OpEq || c.Op == OpNe) {
		return boolTri((left == nil) == (c.Op == OpEq)), nil
	}
	if left == nil || right == nil {
		return triUnknown, nil
	}

	cmp, ok := compareValues(left, right)
	if !ok {
		return triUnknown, nil
	}
	switch c.Op {
	case OpEq:
		return boolTri(cmp == 0), nil
	case OpNe:
		return boolTri(cmp != 0), nil
	case OpGt:
		return boolTri(cmp > 0), nil
	case OpGe:
		return boolTri(cmp >= 0), nil
	case OpLt:
		return boolTri(cmp < 0), nil
	case OpLe:
		return boolTri(cmp <= 0), nil
	default:
		return triFalse, fmt.Errorf("unknown comparison operator %q", c.Op)
	}
}

func evalMatch(m Match, row Row) (tri, error) {
	left, err := evalOperand(m.Operand, row)
	if err != nil {
		return triFalse, err
	}
	right, err := evalOperand(m.Value, row)
	if err != nil {
		return triFalse, err
	}
	s, ok1 := left.(string)
	sub, ok2 := right.(string)
	if !ok1 || !ok2 {
		return triUnknown, nil
	}
	switch m.Kind {
	case MatchPrefix:
		return boolTri(strings.HasPrefix(s, sub)), nil
	case MatchSuffix:
		return boolTri(strings.HasSuffix(s, sub)), nil
	case MatchSubstring:
		return boolTri(strings.Contains(s, sub)), nil
	default:
		return triFalse, fmt.Errorf("unknown match kind %q", m.Kind)
	}
}

func isNilLiteral(o Operand) bool {
	switch l := o.(type) {
	case *Literal:
		return l.Value == nil
	case Literal:
		return l.Value == nil
	}
	return false
}

func evalOperand(o Operand, row Row) (any, error) {
	switch op := o.(type) {
	case *Column:
		return Normalize(row[op.Name]), nil
	case Column:
		return Normalize(row[op.Name]), nil
	case *Literal:
		return Normalize(op.Value), nil
	case Literal:
		return Normalize(op.Value), nil
	case *JSONPath:
		return evalJSONPath(*op, row)
	case JSONPath:
		return evalJSONPath(op, row)
	case *Arith:
		return evalArith(*op, row)
	case Arith:
		return evalArith(op, row)
	case *Func:
		return evalFunc(*op, row)
	case Func:
		return evalFunc(op, row)
	default:
		return nil, fmt.Errorf("unsupported operand type for evaluation: %T", o)
	}
}

func evalJSONPath(p JSONPath, row Row) (any, error) {
	doc := row[p.Column]
	if s, ok := doc.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("column %s: %w", p.Column, err)
		}
		doc = decoded
	}
	for _, key := range p.Path {
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, nil
		}
		doc = m[key]
	}
	return Normalize(doc), nil
}

func evalArith(a Arith, row Row) (any, error) {
	left, err := evalOperand(a.Left, row)
	if err != nil {
		return nil, err
	}
	right, err := evalOperand(a.Right, row)
	if err != nil {
		return nil, err
	}
	if left == nil || right == nil {
		return nil, nil
	}

	li, lInt := left.(int64)
	ri, rInt := right.(int64)
	if lInt && rInt {
		switch a.Op {
		case ArithAdd:
			return li + ri, nil
		case ArithSub:
			return li - ri, nil
		case ArithMul:
			return li * ri, nil
		case ArithDiv:
			if ri == 0 {
				return nil, nil
			}
			return li / ri, nil
		}
		return nil, fmt.Errorf("unknown arithmetic operator %q", a.Op)
	}

	lf, ok1 := toFloat(left)
	rf, ok2 := toFloat(right)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("arithmetic on non-numeric values %T and %T", left, right)
	}
	switch a.Op {
	case ArithAdd:
		return lf + rf, nil
	case ArithSub:
		return lf - rf, nil
	case ArithMul:
		return lf * rf, nil
	case ArithDiv:
		if rf == 0 {
			return nil, nil
		}
		return lf / rf, nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %q", a.Op)
}

func evalFunc(f Func, row Row) (any, error) {
	if len(f.Args) != 1 {
		return nil, fmt.Errorf("function %s expects 1 argument, got %d", f.Name, len(f.Args))
	}
	arg, err := evalOperand(f.Args[0], row)
	if err != nil {
		return nil, err
	}
	s, ok := arg.(string)
	if !ok {
		return nil, nil
	}
	switch f.Name {
	case "lower":
		return strings.ToLower(s), nil
	case "upper":
		return strings.ToUpper(s), nil
	case "length":
		return int64(len([]rune(s))), nil
	default:
		return nil, fmt.Errorf("unknown function %q", f.Name)
	}
}

// Normalize converts Go values to the canonical IR representation:
// integers to int64, floats to float64, time.Time to Unix milliseconds and
// time.Duration to milliseconds. Other values are returned unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UnixMilli()
	case time.Duration:
		return x.Milliseconds()
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func compareValues(a, b any) (int, bool) {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		}
		return 0, true
	}
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}
