package queryir

import (
	"fmt"
)

// ValidationResult contains portability analysis of a query.
//
// The portable fragment is the subset of the IR every backend can execute
// without dialect-specific features. Queries outside it still compile for
// SQLite; the warnings tell other backends what they must support.
type ValidationResult struct {
	// IsPortable indicates if the query uses only portable fragment features.
	IsPortable bool

	// Warnings lists non-portable or suspicious features used in the query.
	// Empty when IsPortable is true.
	Warnings []string
}

// Validate checks if a query conforms to the portable fragment rules.
//
// Portable fragment rules:
//  1. Explicit columns - no SELECT *
//  2. Deterministic order - every select has at least one ORDER BY term
//  3. No JSON paths - document access is dialect-specific
//  4. No scalar functions - names and semantics vary between backends
//  5. Known node types only
//
// Sub-selects (In) are portable; their inner select is validated with the
// same rules except rule 2, since membership tests are order-independent.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addWarning("nil query - portable fragment requires valid query nodes")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query, true)
	case *Select:
		v.validateSelect(*query, true)
	default:
		v.addWarning("Unknown query type: %T - portability cannot be verified", q)
	}
}

func (v *validator) validateSelect(sel Select, needOrder bool) {
	// Rule 1: Explicit columns
	if len(sel.Columns) == 0 {
		v.addWarning("Empty columns (SELECT *) on %s - portable fragment requires explicit columns", sel.From)
	}

	// Rule 2: Deterministic order
	if needOrder && len(sel.OrderBy) == 0 {
		v.addWarning("No ORDER BY on %s - result order is backend-dependent", sel.From)
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
	for _, o := range sel.OrderBy {
		v.validateOperand(o.Operand)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Compare:
		v.validateOperand(pred.Left)
		v.validateOperand(pred.Right)
	case *Compare:
		v.validateOperand(pred.Left)
		v.validateOperand(pred.Right)
	case And:
		v.validatePredicates(pred.Predicates)
	case *And:
		v.validatePredicates(pred.Predicates)
	case Or:
		v.validatePredicates(pred.Predicates)
	case *Or:
		v.validatePredicates(pred.Predicates)
	case Not:
		v.validatePredicate(pred.Predicate)
	case *Not:
		v.validatePredicate(pred.Predicate)
	case Truth, *Truth:
	case Match:
		v.validateOperand(pred.Operand)
		v.validateOperand(pred.Value)
	case *Match:
		v.validateOperand(pred.Operand)
		v.validateOperand(pred.Value)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	default:
		v.addWarning("Unknown predicate type: %T - portability cannot be verified", p)
	}
}

func (v *validator) validatePredicates(preds []Predicate) {
	for _, p := range preds {
		v.validatePredicate(p)
	}
}

func (v *validator) validateIn(in In) {
	v.validateOperand(in.Operand)
	if len(in.Query.Columns) != 1 {
		v.addWarning("Sub-select on %s must project exactly one column, got %d", in.Query.From, len(in.Query.Columns))
	}
	v.validateSelect(in.Query, false)
}

func (v *validator) validateOperand(o Operand) {
	switch op := o.(type) {
	case nil:
		v.addWarning("nil operand - portable fragment requires valid operand nodes")
	case Column, *Column, Literal, *Literal:
	case JSONPath:
		// Rule 3: No JSON paths
		v.addWarning("JSON path %s/%v is dialect-specific", op.Column, op.Path)
	case *JSONPath:
		v.addWarning("JSON path %s/%v is dialect-specific", op.Column, op.Path)
	case Arith:
		v.validateOperand(op.Left)
		v.validateOperand(op.Right)
	case *Arith:
		v.validateOperand(op.Left)
		v.validateOperand(op.Right)
	case Related:
		v.validateOperand(op.Ref)
		v.validateOperand(op.Value)
	case *Related:
		v.validateOperand(op.Ref)
		v.validateOperand(op.Value)
	case Func:
		// Rule 4: No scalar functions
		v.addWarning("Function %s() is dialect-specific", op.Name)
	case *Func:
		v.addWarning("Function %s() is dialect-specific", op.Name)
	default:
		v.addWarning("Unknown operand type: %T - portability cannot be verified", o)
	}
}
