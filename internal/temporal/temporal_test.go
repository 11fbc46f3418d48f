package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/staquery/internal/qerr"
	"github.com/roach88/staquery/internal/queryir"
)

func col(name string) *queryir.Column { return &queryir.Column{Name: name} }

var (
	p1 = PointInTime{Field: col("p1")}
	p2 = PointInTime{Field: col("p2")}
	i1 = TimeInterval{Start: col("s1"), End: col("e1")}
	i2 = TimeInterval{Start: col("s2"), End: col("e2")}
	d1 = Duration{Field: col("d1")}
	d2 = Duration{Field: col("d2")}
)

func eval(t *testing.T, pred queryir.Predicate, row queryir.Row) bool {
	t.Helper()
	ok, err := queryir.Eval(pred, row)
	require.NoError(t, err)
	return ok
}

func TestCompare_PointPoint(t *testing.T) {
	row := queryir.Row{"p1": int64(5), "p2": int64(3)}

	testCases := []struct {
		op   Op
		want bool
	}{
		{OpEq, false},
		{OpNe, true},
		{OpGt, true},
		{OpGe, true},
		{OpLt, false},
		{OpLe, false},
		{OpAfter, true},
		{OpBefore, false},
		{OpMeets, false},
		{OpOverlaps, false},
		{OpStarts, false},
		{OpFinishes, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.op), func(t *testing.T) {
			pred, err := Compare(tc.op, p1, p2)
			require.NoError(t, err)
			assert.Equal(t, tc.want, eval(t, pred, row))
		})
	}

	// Allen relations degrade to equality for points.
	same := queryir.Row{"p1": int64(4), "p2": int64(4)}
	for _, op := range []Op{OpMeets, OpOverlaps, OpStarts, OpFinishes} {
		pred, err := Compare(op, p1, p2)
		require.NoError(t, err)
		assert.True(t, eval(t, pred, same), "%s on equal points", op)
	}
}

func TestCompare_PointInterval(t *testing.T) {
	// Interval [10, 20). Points before, at start, inside, at end, after.
	points := map[string]int64{"before": 5, "start": 10, "inside": 15, "end": 20, "after": 25}

	testCases := []struct {
		op   Op
		want map[string]bool
	}{
		{OpEq, map[string]bool{}},
		{OpNe, map[string]bool{"before": true, "start": true, "inside": true, "end": true, "after": true}},
		{OpGt, map[string]bool{"end": true, "after": true}},
		{OpAfter, map[string]bool{"end": true, "after": true}},
		{OpGe, map[string]bool{"end": true, "after": true}},
		{OpLt, map[string]bool{"before": true}},
		{OpBefore, map[string]bool{"before": true}},
		{OpLe, map[string]bool{"before": true, "start": true}},
		{OpMeets, map[string]bool{"start": true, "end": true}},
		{OpOverlaps, map[string]bool{"start": true, "inside": true}},
		{OpStarts, map[string]bool{"start": true}},
		{OpFinishes, map[string]bool{"end": true}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.op), func(t *testing.T) {
			pred, err := Compare(tc.op, p1, i2)
			require.NoError(t, err)
			for name, p := range points {
				row := queryir.Row{"p1": p, "s2": int64(10), "e2": int64(20)}
				assert.Equal(t, tc.want[name], eval(t, pred, row), "point %s", name)
			}
		})
	}
}

func TestCompare_PointContainsIntervalFails(t *testing.T) {
	_, err := Contains(p1, i2)
	require.Error(t, err)
	assert.True(t, qerr.Is(err, qerr.KindUnsupportedTemporalOperation))
	assert.Contains(t, err.Error(), "PointInTime")
	assert.Contains(t, err.Error(), "TimeInterval")
}

func TestCompare_IntervalPoint(t *testing.T) {
	points := map[string]int64{"before": 5, "start": 10, "inside": 15, "end": 20, "after": 25}

	testCases := []struct {
		op   Op
		want map[string]bool
	}{
		{OpGt, map[string]bool{"before": true}},
		{OpAfter, map[string]bool{"before": true}},
		{OpGe, map[string]bool{"before": true, "start": true}},
		{OpLt, map[string]bool{"end": true, "after": true}},
		{OpBefore, map[string]bool{"end": true, "after": true}},
		{OpLe, map[string]bool{"end": true, "after": true}},
		{OpContains, map[string]bool{"start": true, "inside": true}},
		{OpMeets, map[string]bool{"start": true, "end": true}},
		{OpOverlaps, map[string]bool{"start": true, "inside": true}},
		{OpStarts, map[string]bool{"start": true}},
		{OpFinishes, map[string]bool{"end": true}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.op), func(t *testing.T) {
			pred, err := Compare(tc.op, i1, p2)
			require.NoError(t, err)
			for name, p := range points {
				row := queryir.Row{"s1": int64(10), "e1": int64(20), "p2": p}
				assert.Equal(t, tc.want[name], eval(t, pred, row), "point %s", name)
			}
		})
	}
}

func TestCompare_IntervalInterval(t *testing.T) {
	row := func(s1, e1, s2, e2 int64) queryir.Row {
		return queryir.Row{"s1": s1, "e1": e1, "s2": s2, "e2": e2}
	}

	testCases := []struct {
		name string
		op   Op
		row  queryir.Row
		want bool
	}{
		{"equal", OpEq, row(1, 5, 1, 5), true},
		{"not equal end", OpNe, row(1, 5, 1, 6), true},
		{"before touching", OpBefore, row(1, 5, 5, 9), true},
		{"before overlapping", OpBefore, row(1, 6, 5, 9), false},
		{"lt same as before", OpLt, row(1, 5, 5, 9), true},
		{"loe touching", OpLe, row(1, 5, 5, 9), true},
		{"after touching", OpAfter, row(5, 9, 1, 5), true},
		{"gt same as after", OpGt, row(5, 9, 1, 5), true},
		{"goe", OpGe, row(5, 9, 1, 5), true},
		{"meets end to start", OpMeets, row(1, 5, 5, 9), true},
		{"meets start to end", OpMeets, row(5, 9, 1, 5), true},
		{"meets disjoint", OpMeets, row(1, 4, 5, 9), false},
		{"contains", OpContains, row(1, 9, 2, 5), true},
		{"contains equal", OpContains, row(1, 9, 1, 9), true},
		{"contains partial", OpContains, row(1, 5, 2, 9), false},
		{"overlaps partial", OpOverlaps, row(1, 5, 3, 9), true},
		{"overlaps touching", OpOverlaps, row(1, 5, 5, 9), false},
		{"overlaps same start", OpOverlaps, row(1, 1, 1, 9), true},
		{"overlaps disjoint", OpOverlaps, row(1, 2, 5, 9), false},
		{"starts", OpStarts, row(1, 3, 1, 9), true},
		{"finishes", OpFinishes, row(4, 9, 1, 9), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pred, err := Compare(tc.op, i1, i2)
			require.NoError(t, err)
			assert.Equal(t, tc.want, eval(t, pred, tc.row))
		})
	}
}

func TestCompare_Duration(t *testing.T) {
	row := queryir.Row{"d1": int64(1000), "d2": int64(2000)}
	pred, err := Lt(d1, d2)
	require.NoError(t, err)
	assert.True(t, eval(t, pred, row))

	allen := []func(l, r Expression) (queryir.Predicate, error){After, Before, Meets, Contains, Overlaps, Starts, Finishes}
	for _, fn := range allen {
		_, err := fn(d1, d2)
		assert.True(t, qerr.Is(err, qerr.KindUnsupportedTemporalOperation), "duration relations fail fast")
	}

	for _, other := range []Expression{p1, i1} {
		_, err := Eq(d1, other)
		assert.True(t, qerr.Is(err, qerr.KindUnsupportedTemporalOperation))
		_, err = Eq(other, d1)
		assert.True(t, qerr.Is(err, qerr.KindUnsupportedTemporalOperation))
	}
}

func TestCompare_NilOperand(t *testing.T) {
	_, err := Eq(nil, p1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<nil>")
}

func TestCheckCompare(t *testing.T) {
	assert.NoError(t, CheckCompare(OpOverlaps, KindTimeInterval, KindTimeInterval))
	assert.NoError(t, CheckCompare(OpContains, KindTimeInterval, KindPointInTime))
	assert.Error(t, CheckCompare(OpContains, KindPointInTime, KindTimeInterval))
	assert.Error(t, CheckCompare(OpEq, KindScalar, KindDuration))
}

// Exactly one strict Allen relation holds for every pair of proper
// intervals.
func TestRelate_MutualExclusivity(t *testing.T) {
	preds := make(map[Relation]queryir.Predicate, len(Relations))
	for _, rel := range Relations {
		pred, err := Relate(rel, i1, i2)
		require.NoError(t, err)
		preds[rel] = pred
	}
	require.Len(t, Relations, 13)

	const n = 6
	seen := make(map[Relation]bool)
	for s1 := int64(0); s1 < n; s1++ {
		for e1 := s1 + 1; e1 <= n; e1++ {
			for s2 := int64(0); s2 < n; s2++ {
				for e2 := s2 + 1; e2 <= n; e2++ {
					row := queryir.Row{"s1": s1, "e1": e1, "s2": s2, "e2": e2}
					var holding []Relation
					for _, rel := range Relations {
						if eval(t, preds[rel], row) {
							holding = append(holding, rel)
						}
					}
					require.Len(t, holding, 1, "intervals [%d,%d) [%d,%d): %v", s1, e1, s2, e2, holding)
					seen[holding[0]] = true
				}
			}
		}
	}
	assert.Len(t, seen, 13, "every relation is reachable")
}

func TestRelate_Unknown(t *testing.T) {
	_, err := Relate("sideways", i1, i2)
	assert.Error(t, err)
}

func TestArithmetic_ResultKinds(t *testing.T) {
	n := Scalar{Field: &queryir.Literal{Value: int64(2)}}

	testCases := []struct {
		name string
		op   queryir.ArithOp
		l, r Expression
		want Kind
	}{
		{"duration plus duration", queryir.ArithAdd, d1, d2, KindPointInTime},
		{"duration minus duration", queryir.ArithSub, d1, d2, KindPointInTime},
		{"duration plus point", queryir.ArithAdd, d1, p1, KindPointInTime},
		{"point plus duration", queryir.ArithAdd, p1, d1, KindPointInTime},
		{"point minus duration", queryir.ArithSub, p1, d1, KindPointInTime},
		{"duration plus interval", queryir.ArithAdd, d1, i1, KindTimeInterval},
		{"interval minus duration", queryir.ArithSub, i1, d1, KindTimeInterval},
		{"interval minus interval", queryir.ArithSub, i1, i2, KindDuration},
		{"duration times scalar", queryir.ArithMul, d1, n, KindDuration},
		{"duration divided by scalar", queryir.ArithDiv, d1, n, KindDuration},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Arithmetic(tc.op, tc.l, tc.r)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Kind())

			kind, err := ResultKind(tc.op, tc.l.Kind(), tc.r.Kind())
			require.NoError(t, err)
			assert.Equal(t, tc.want, kind, "type checking agrees with evaluation")
		})
	}
}

func TestArithmetic_Unsupported(t *testing.T) {
	testCases := []struct {
		name string
		op   queryir.ArithOp
		l, r Expression
	}{
		{"point plus point", queryir.ArithAdd, p1, p2},
		{"interval plus interval", queryir.ArithAdd, i1, i2},
		{"point minus interval", queryir.ArithSub, p1, i1},
		{"duration times duration", queryir.ArithMul, d1, d2},
		{"point times scalar", queryir.ArithMul, p1, Scalar{Field: col("n")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Arithmetic(tc.op, tc.l, tc.r)
			require.Error(t, err)
			assert.True(t, qerr.Is(err, qerr.KindUnsupportedTemporalOperation))
			assert.Contains(t, err.Error(), string(tc.l.Kind()))
			assert.Contains(t, err.Error(), string(tc.r.Kind()))
		})
	}
}

// Interval difference depends on start times only.
func TestArithmetic_IntervalSubtractionIdentity(t *testing.T) {
	diff, err := Sub(i1, i2)
	require.NoError(t, err)
	require.IsType(t, Duration{}, diff)

	want, err := Eq(diff, Duration{Field: &queryir.Literal{Value: int64(3)}})
	require.NoError(t, err)

	for _, ends := range [][2]int64{{10, 20}, {11, 12}, {100, 7}} {
		row := queryir.Row{"s1": int64(8), "e1": ends[0], "s2": int64(5), "e2": ends[1]}
		assert.True(t, eval(t, want, row), "ends %v must not matter", ends)
	}
}

func TestArithmetic_DurationShiftsBothEndpoints(t *testing.T) {
	shifted, err := Add(i1, d1)
	require.NoError(t, err)

	pred, err := Eq(shifted, i2)
	require.NoError(t, err)

	row := queryir.Row{"s1": int64(10), "e1": int64(20), "d1": int64(5), "s2": int64(15), "e2": int64(25)}
	assert.True(t, eval(t, pred, row))
}

func TestArithmetic_UTCFollowsLeftOperand(t *testing.T) {
	left := PointInTime{Field: col("p"), IsUTC: true}
	right := Duration{Field: col("d")}

	got, err := Add(left, right)
	require.NoError(t, err)
	assert.True(t, got.UTC())

	got, err = Add(right, left)
	require.NoError(t, err)
	assert.False(t, got.UTC())
}
