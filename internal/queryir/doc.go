// Package queryir provides the backend-agnostic predicate tree produced by
// query resolution.
//
// The query core never emits SQL directly. Filters, temporal relations and
// parent/child restrictions are lowered into this IR, and a backend
// (currently querysql for SQLite) compiles it further:
//
//	[expr + temporal] → [queryir] → [querysql] → SQLite
//	                              → [Eval]     (in-memory oracle)
//
// NODES:
//
// Operands produce values:
//   - Column: a column of the current source
//   - Literal: a constant (string, int64, float64, bool, nil, time.Time,
//     time.Duration)
//   - JSONPath: a member of a JSON document column
//   - Related: a value read through a to-one foreign key
//   - Arith: binary arithmetic (+ - * /)
//   - Func: scalar function (lower, upper, length)
//
// Predicates produce booleans:
//   - Compare: = != > >= < <=
//   - And, Or, Not, Truth
//   - Match: prefix/suffix/substring test
//   - In: operand membership in a sub-select
//
// TIME VALUES:
//
// Date-times and durations are carried as time.Time and time.Duration in
// literals and are normalized to integer milliseconds (Unix epoch for
// instants) before comparison or storage. Arithmetic between instants and
// durations is therefore plain integer arithmetic in every backend.
//
// SEALED INTERFACES:
//
// Operand, Predicate and Query are sealed with marker methods, so backends
// can switch exhaustively:
//
//	switch p := pred.(type) {
//	case *Compare:
//	case *And:
//	...
//	default:
//	    return fmt.Errorf("unsupported predicate type: %T", pred)
//	}
//
// PORTABILITY:
//
// Validate reports nodes that depend on backend-specific features (JSON
// paths, scalar functions, sub-selects) and selects without a deterministic
// order.
package queryir
