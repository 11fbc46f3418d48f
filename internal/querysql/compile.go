package querysql

import (
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/staquery/internal/queryir"
)

// Compiler compiles queryir plans to parameterized SQLite SQL.
//
// All literal values are bound as parameters, never interpolated. Times and
// durations are bound as Unix milliseconds, which is how the store keeps
// them.
type Compiler struct {
	// aliases counts the correlated sub-selects of the current statement.
	aliases int
}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// scope is the table that unqualified columns of an operand belong to.
type scope struct {
	// qualifier prefixes column names. Empty for the outermost table,
	// whose columns are never ambiguous outside a sub-select.
	qualifier string
	// name is how sub-selects refer to the table.
	name string
}

func (s scope) column(name string) string {
	if s.qualifier == "" {
		return name
	}
	return s.qualifier + "." + name
}

// qualified returns s with its columns always qualified.
func (s scope) qualified() scope {
	return scope{qualifier: s.name, name: s.name}
}

// Compile converts a queryir query to SQL and its bound parameters.
func (c *Compiler) Compile(q queryir.Query) (string, []any, error) {
	sel, err := asSelect(q)
	if err != nil {
		return "", nil, err
	}
	c.aliases = 0
	return c.compileSelect(sel)
}

// CompileCount compiles the number of rows q matches, ignoring its
// projection, order and paging.
func (c *Compiler) CompileCount(q queryir.Query) (string, []any, error) {
	sel, err := asSelect(q)
	if err != nil {
		return "", nil, err
	}
	c.aliases = 0

	if sel.Distinct {
		inner := sel
		inner.OrderBy, inner.Limit, inner.Offset = nil, -1, 0
		sql, args, err := c.compileSelect(inner)
		if err != nil {
			return "", nil, err
		}
		count, _, err := sq.Select("COUNT(*)").From("(" + sql + ") d").ToSql()
		return count, args, err
	}

	b := sq.Select("COUNT(*)").From(sel.From)
	if sel.Filter != nil {
		where, args, err := c.compilePredicate(sel.Filter, scope{name: sel.From})
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b = b.Where(where, args...)
	}
	return b.ToSql()
}

func asSelect(q queryir.Query) (queryir.Select, error) {
	switch query := q.(type) {
	case nil:
		return queryir.Select{}, fmt.Errorf("cannot compile nil query")
	case queryir.Select:
		return query, nil
	case *queryir.Select:
		if query == nil {
			return queryir.Select{}, fmt.Errorf("cannot compile nil query")
		}
		return *query, nil
	default:
		return queryir.Select{}, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *Compiler) compileSelect(q queryir.Select) (string, []any, error) {
	if q.From == "" {
		return "", nil, fmt.Errorf("select has no table")
	}
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("select from %s has no columns", q.From)
	}
	top := scope{name: q.From}

	b := sq.Select(q.Columns...).From(q.From)
	if q.Distinct {
		b = b.Distinct()
	}
	if q.Filter != nil {
		where, args, err := c.compilePredicate(q.Filter, top)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b = b.Where(where, args...)
	}
	for _, o := range q.OrderBy {
		term, args, err := c.compileOperand(o.Operand, top)
		if err != nil {
			return "", nil, fmt.Errorf("compile order: %w", err)
		}
		if o.Descending {
			term += " DESC"
		} else {
			term += " ASC"
		}
		b = b.OrderByClause(term, args...)
	}
	switch {
	case q.Limit >= 0:
		b = b.Limit(uint64(q.Limit))
		if q.Offset > 0 {
			b = b.Offset(uint64(q.Offset))
		}
	case q.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT.
		b = b.Suffix("LIMIT -1 OFFSET ?", q.Offset)
	}
	return b.ToSql()
}

// compilePredicate compiles a predicate evaluated against the rows of s.
func (c *Compiler) compilePredicate(p queryir.Predicate, s scope) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		return c.compileCompare(pred, s)
	case *queryir.Compare:
		return c.compileCompare(*pred, s)
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1", s)
	case *queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1", s)
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0", s)
	case *queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0", s)
	case queryir.Not:
		return c.compileNot(pred, s)
	case *queryir.Not:
		return c.compileNot(*pred, s)
	case queryir.Truth:
		return truth(pred.Value), nil, nil
	case *queryir.Truth:
		return truth(pred.Value), nil, nil
	case queryir.Match:
		return c.compileMatch(pred, s)
	case *queryir.Match:
		return c.compileMatch(*pred, s)
	case queryir.In:
		return c.compileIn(pred, s)
	case *queryir.In:
		return c.compileIn(*pred, s)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func truth(v bool) string {
	if v {
		return "1 = 1"
	}
	return "1 = 0"
}

func (c *Compiler) compileCompare(p queryir.Compare, s scope) (string, []any, error) {
	left, args, err := c.compileOperand(p.Left, s)
	if err != nil {
		return "", nil, err
	}
	if isNullLiteral(p.Right) {
		switch p.Op {
		case queryir.OpEq:
			return left + " IS NULL", args, nil
		case queryir.OpNe:
			return left + " IS NOT NULL", args, nil
		}
	}
	right, rargs, err := c.compileOperand(p.Right, s)
	if err != nil {
		return "", nil, err
	}
	switch p.Op {
	case queryir.OpEq, queryir.OpNe, queryir.OpGt, queryir.OpGe, queryir.OpLt, queryir.OpLe:
	default:
		return "", nil, fmt.Errorf("unsupported comparison operator %q", p.Op)
	}
	return left + " " + string(p.Op) + " " + right, append(args, rargs...), nil
}

func isNullLiteral(o queryir.Operand) bool {
	switch lit := o.(type) {
	case queryir.Literal:
		return lit.Value == nil
	case *queryir.Literal:
		return lit != nil && lit.Value == nil
	}
	return false
}

func (c *Compiler) compileJunction(preds []queryir.Predicate, sep, empty string, s scope) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	if len(preds) == 1 {
		return c.compilePredicate(preds[0], s)
	}
	parts := make([]string, len(preds))
	var args []any
	for i, p := range preds {
		sql, pargs, err := c.compilePredicate(p, s)
		if err != nil {
			return "", nil, err
		}
		parts[i] = "(" + sql + ")"
		args = append(args, pargs...)
	}
	return strings.Join(parts, sep), args, nil
}

func (c *Compiler) compileNot(p queryir.Not, s scope) (string, []any, error) {
	if p.Predicate == nil {
		return "", nil, fmt.Errorf("NOT without predicate")
	}
	sql, args, err := c.compilePredicate(p.Predicate, s)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

func (c *Compiler) compileMatch(p queryir.Match, s scope) (string, []any, error) {
	op, args, err := c.compileOperand(p.Operand, s)
	if err != nil {
		return "", nil, err
	}
	val, vargs, err := c.compileOperand(p.Value, s)
	if err != nil {
		return "", nil, err
	}
	switch p.Kind {
	case queryir.MatchPrefix:
		return fmt.Sprintf("instr(%s, %s) = 1", op, val), append(args, vargs...), nil
	case queryir.MatchSubstring:
		return fmt.Sprintf("instr(%s, %s) > 0", op, val), append(args, vargs...), nil
	case queryir.MatchSuffix:
		// The operand is repeated, so are its parameters.
		sql := fmt.Sprintf("substr(%s, length(%s) - length(%s) + 1) = %s", op, op, val, val)
		out := append(append(append(append([]any{}, args...), args...), vargs...), vargs...)
		return sql, out, nil
	}
	return "", nil, fmt.Errorf("unsupported match kind %q", p.Kind)
}

func (c *Compiler) compileIn(p queryir.In, s scope) (string, []any, error) {
	op, args, err := c.compileOperand(p.Operand, s)
	if err != nil {
		return "", nil, err
	}
	sub, subArgs, err := c.compileSelect(p.Query)
	if err != nil {
		return "", nil, fmt.Errorf("compile IN sub-select: %w", err)
	}
	return op + " IN (" + sub + ")", append(args, subArgs...), nil
}

// compileOperand compiles an operand evaluated against the rows of s.
func (c *Compiler) compileOperand(o queryir.Operand, s scope) (string, []any, error) {
	switch op := o.(type) {
	case queryir.Column:
		return s.column(op.Name), nil, nil
	case *queryir.Column:
		return s.column(op.Name), nil, nil
	case queryir.Literal:
		return literal(op.Value)
	case *queryir.Literal:
		return literal(op.Value)
	case queryir.JSONPath:
		return jsonExtract(op, s), []any{jsonPathArg(op.Path)}, nil
	case *queryir.JSONPath:
		return jsonExtract(*op, s), []any{jsonPathArg(op.Path)}, nil
	case queryir.Related:
		return c.compileRelated(op, s)
	case *queryir.Related:
		return c.compileRelated(*op, s)
	case queryir.Arith:
		return c.compileArith(op, s)
	case *queryir.Arith:
		return c.compileArith(*op, s)
	case queryir.Func:
		return c.compileFunc(op, s)
	case *queryir.Func:
		return c.compileFunc(*op, s)
	case nil:
		return "", nil, fmt.Errorf("missing operand")
	default:
		return "", nil, fmt.Errorf("unsupported operand type: %T", o)
	}
}

func literal(v any) (string, []any, error) {
	if v == nil {
		return "NULL", nil, nil
	}
	return "?", []any{queryir.Normalize(v)}, nil
}

func jsonExtract(p queryir.JSONPath, s scope) string {
	return "json_extract(" + s.column(p.Column) + ", ?)"
}

// jsonPathArg renders a member path in SQLite JSON path syntax.
func jsonPathArg(path []string) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, key := range path {
		sb.WriteByte('.')
		if isPlainKey(key) {
			sb.WriteString(key)
		} else {
			sb.WriteString(strconv.Quote(key))
		}
	}
	return sb.String()
}

func isPlainKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		ch := key[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_':
		case ch >= '0' && ch <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// compileRelated renders a correlated sub-select. Ref belongs to the
// enclosing scope and is always qualified, since the related table may have
// a column of the same name.
func (c *Compiler) compileRelated(r queryir.Related, s scope) (string, []any, error) {
	c.aliases++
	alias := "r" + strconv.Itoa(c.aliases)
	inner := scope{qualifier: alias, name: alias}

	value, args, err := c.compileOperand(r.Value, inner)
	if err != nil {
		return "", nil, err
	}
	ref, refArgs, err := c.compileOperand(r.Ref, s.qualified())
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("(SELECT %s FROM %s %s WHERE %s = %s)", value, r.Table, alias, inner.column(r.Key), ref)
	return sql, append(args, refArgs...), nil
}

func (c *Compiler) compileArith(a queryir.Arith, s scope) (string, []any, error) {
	switch a.Op {
	case queryir.ArithAdd, queryir.ArithSub, queryir.ArithMul, queryir.ArithDiv:
	default:
		return "", nil, fmt.Errorf("unsupported arithmetic operator %q", a.Op)
	}
	left, args, err := c.compileOperand(a.Left, s)
	if err != nil {
		return "", nil, err
	}
	right, rargs, err := c.compileOperand(a.Right, s)
	if err != nil {
		return "", nil, err
	}
	return "(" + left + " " + string(a.Op) + " " + right + ")", append(args, rargs...), nil
}

var sqlFuncs = map[string]int{
	"lower":  1,
	"upper":  1,
	"length": 1,
}

func (c *Compiler) compileFunc(f queryir.Func, s scope) (string, []any, error) {
	arity, ok := sqlFuncs[f.Name]
	if !ok {
		return "", nil, fmt.Errorf("unsupported function %q", f.Name)
	}
	if len(f.Args) != arity {
		return "", nil, fmt.Errorf("%s takes %d argument(s), got %d", f.Name, arity, len(f.Args))
	}
	parts := make([]string, len(f.Args))
	var args []any
	for i, a := range f.Args {
		sql, aargs, err := c.compileOperand(a, s)
		if err != nil {
			return "", nil, err
		}
		parts[i] = sql
		args = append(args, aargs...)
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")", args, nil
}
