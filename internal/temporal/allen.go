package temporal

import (
	"fmt"

	"github.com/roach88/staquery/internal/queryir"
)

// Relation is one of Allen's thirteen base relations between two intervals.
//
// Unlike the comparison operators, which follow SensorThings filter
// semantics and overlap each other, the base relations are mutually
// exclusive: for proper intervals (start < end) exactly one holds.
type Relation string

const (
	RelBefore       Relation = "before"
	RelMeets        Relation = "meets"
	RelOverlaps     Relation = "overlaps"
	RelStarts       Relation = "starts"
	RelDuring       Relation = "during"
	RelFinishes     Relation = "finishes"
	RelEquals       Relation = "equals"
	RelAfter        Relation = "after"
	RelMetBy        Relation = "metBy"
	RelOverlappedBy Relation = "overlappedBy"
	RelStartedBy    Relation = "startedBy"
	RelContains     Relation = "contains"
	RelFinishedBy   Relation = "finishedBy"
)

// Relations lists the base relations in canonical order.
var Relations = []Relation{
	RelBefore, RelMeets, RelOverlaps, RelStarts, RelDuring, RelFinishes, RelEquals,
	RelAfter, RelMetBy, RelOverlappedBy, RelStartedBy, RelContains, RelFinishedBy,
}

// Relate builds the predicate "a <rel> b".
func Relate(rel Relation, a, b TimeInterval) (queryir.Predicate, error) {
	s1, e1, s2, e2 := a.Start, a.End, b.Start, b.End
	switch rel {
	case RelBefore:
		return lt(e1, s2), nil
	case RelMeets:
		return eq(e1, s2), nil
	case RelOverlaps:
		return queryir.AllOf(lt(s1, s2), gt(e1, s2), lt(e1, e2)), nil
	case RelStarts:
		return queryir.AllOf(eq(s1, s2), lt(e1, e2)), nil
	case RelDuring:
		return queryir.AllOf(gt(s1, s2), lt(e1, e2)), nil
	case RelFinishes:
		return queryir.AllOf(gt(s1, s2), eq(e1, e2)), nil
	case RelEquals:
		return queryir.AllOf(eq(s1, s2), eq(e1, e2)), nil
	case RelAfter:
		return gt(s1, e2), nil
	case RelMetBy:
		return eq(s1, e2), nil
	case RelOverlappedBy:
		return queryir.AllOf(gt(s1, s2), lt(s1, e2), gt(e1, e2)), nil
	case RelStartedBy:
		return queryir.AllOf(eq(s1, s2), gt(e1, e2)), nil
	case RelContains:
		return queryir.AllOf(lt(s1, s2), gt(e1, e2)), nil
	case RelFinishedBy:
		return queryir.AllOf(lt(s1, s2), eq(e1, e2)), nil
	default:
		return nil, fmt.Errorf("unknown interval relation %q", rel)
	}
}
