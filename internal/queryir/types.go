package queryir

// Query represents an abstract query in the IR.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a boolean condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Operand represents a value-producing expression.
//
// This is a sealed interface - only types in this package implement it.
type Operand interface {
	operandNode() // Marker method - seals interface to this package
}

// Select represents table access with filtering, ordering and paging.
//
// Semantics:
//
//	SELECT [DISTINCT] <columns> FROM <from> WHERE <filter>
//	ORDER BY <orderBy> LIMIT <limit> OFFSET <offset>
//
// Example:
//
//	Select{
//	  From:    "observations",
//	  Columns: []string{"id", "result"},
//	  Filter:  &Compare{Op: OpGt, Left: &Column{Name: "result"}, Right: &Literal{Value: int64(5)}},
//	  OrderBy: []Order{{Operand: &Column{Name: "id"}}},
//	  Limit:   100,
//	}
//
// A negative Limit means no limit. Columns must not be empty.
type Select struct {
	From     string    // Table name
	Columns  []string  // Projected columns, in order
	Filter   Predicate // WHERE conditions (nil = no filter)
	OrderBy  []Order   // ORDER BY terms, in order
	Limit    int       // Maximum rows (<0 = unlimited)
	Offset   int       // Rows to skip
	Distinct bool      // SELECT DISTINCT
}

func (Select) queryNode() {}

// Order is one ORDER BY term.
type Order struct {
	Operand    Operand
	Descending bool
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
)

// Compare represents a binary comparison.
//
// Comparing against a nil Literal means IS NULL / IS NOT NULL for = and !=.
type Compare struct {
	Op    CompareOp
	Left  Operand
	Right Operand
}

func (Compare) predicateNode() {}

// And represents a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. An empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Truth is a constant predicate.
type Truth struct {
	Value bool
}

func (Truth) predicateNode() {}

// MatchKind selects the string test performed by Match.
type MatchKind string

const (
	MatchPrefix    MatchKind = "prefix"
	MatchSuffix    MatchKind = "suffix"
	MatchSubstring MatchKind = "substring"
)

// Match tests whether Operand starts with, ends with or contains Value.
type Match struct {
	Kind    MatchKind
	Operand Operand
	Value   Operand
}

func (Match) predicateNode() {}

// In tests membership of Operand in the single-column result of Query.
//
// Used for parent/child restrictions through link tables:
//
//	id IN (SELECT location_id FROM things_locations WHERE thing_id = ?)
type In struct {
	Operand Operand
	Query   Select
}

func (In) predicateNode() {}

// Column references a column of the current source.
type Column struct {
	Name string
}

func (Column) operandNode() {}

// Literal is a constant value.
type Literal struct {
	Value any
}

func (Literal) operandNode() {}

// JSONPath references a member of a JSON document column.
type JSONPath struct {
	Column string
	Path   []string
}

func (JSONPath) operandNode() {}

// Related reads a value from the single row of another table referenced by
// a foreign key.
//
// Semantics:
//
//	(SELECT <value> FROM <table> WHERE <table>.<key> = <ref>)
//
// Ref is evaluated in the enclosing scope and Value in the scope of Table.
// Value may itself be a Related, which chains to-one navigation
// (Observation → Datastream → Thing).
type Related struct {
	Table string
	Key   string
	Ref   Operand
	Value Operand
}

func (Related) operandNode() {}

// ArithOp is a binary arithmetic operator.
type ArithOp string

const (
	ArithAdd ArithOp = "+"
	ArithSub ArithOp = "-"
	ArithMul ArithOp = "*"
	ArithDiv ArithOp = "/"
)

// Arith represents binary arithmetic over numeric (or normalized time)
// operands.
type Arith struct {
	Op    ArithOp
	Left  Operand
	Right Operand
}

func (Arith) operandNode() {}

// Func is a scalar function call: lower, upper, length.
type Func struct {
	Name string
	Args []Operand
}

func (Func) operandNode() {}

// Cmp is shorthand for a Compare predicate.
func Cmp(op CompareOp, left, right Operand) *Compare {
	return &Compare{Op: op, Left: left, Right: right}
}

// AllOf is shorthand for And, flattening nested conjunctions.
func AllOf(preds ...Predicate) *And {
	out := &And{}
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
		case *And:
			out.Predicates = append(out.Predicates, v.Predicates...)
		default:
			out.Predicates = append(out.Predicates, p)
		}
	}
	return out
}

// AnyOf is shorthand for Or, flattening nested disjunctions.
func AnyOf(preds ...Predicate) *Or {
	out := &Or{}
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
		case *Or:
			out.Predicates = append(out.Predicates, v.Predicates...)
		default:
			out.Predicates = append(out.Predicates, p)
		}
	}
	return out
}
