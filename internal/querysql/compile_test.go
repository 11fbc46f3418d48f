package querysql

import (
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/query"
	"github.com/roach88/staquery/internal/queryir"
)

func col(name string) *queryir.Column { return &queryir.Column{Name: name} }
func lit(v any) *queryir.Literal      { return &queryir.Literal{Value: v} }

func assertParams(t *testing.T, want, got []any) {
	t.Helper()
	if len(want) == 0 {
		assert.Empty(t, got)
		return
	}
	assert.Equal(t, want, got)
}

func TestCompile_Select(t *testing.T) {
	testCases := []struct {
		name   string
		query  queryir.Query
		sql    string
		params []any
	}{
		{
			name: "projection and paging",
			query: queryir.Select{
				From:    "things",
				Columns: []string{"id", "name"},
				OrderBy: []queryir.Order{{Operand: col("name")}, {Operand: col("id"), Descending: true}},
				Limit:   5,
				Offset:  2,
			},
			sql: "SELECT id, name FROM things ORDER BY name ASC, id DESC LIMIT 5 OFFSET 2",
		},
		{
			name: "pointer form",
			query: &queryir.Select{
				From:    "things",
				Columns: []string{"id"},
				Filter:  queryir.Cmp(queryir.OpEq, col("name"), lit("lamp")),
				Limit:   -1,
			},
			sql:    "SELECT id FROM things WHERE name = ?",
			params: []any{"lamp"},
		},
		{
			name: "offset without limit",
			query: queryir.Select{
				From:    "things",
				Columns: []string{"id"},
				Limit:   -1,
				Offset:  10,
			},
			sql:    "SELECT id FROM things LIMIT -1 OFFSET ?",
			params: []any{10},
		},
		{
			name: "distinct",
			query: queryir.Select{
				From:     "datastreams",
				Columns:  []string{"observation_type"},
				Distinct: true,
				Limit:    -1,
			},
			sql: "SELECT DISTINCT observation_type FROM datastreams",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, params, err := NewCompiler().Compile(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.sql, sql)
			assertParams(t, tc.params, params)
		})
	}
}

func TestCompile_Predicates(t *testing.T) {
	testCases := []struct {
		name   string
		filter queryir.Predicate
		where  string
		params []any
	}{
		{
			name:   "is null",
			filter: queryir.Cmp(queryir.OpEq, col("name"), lit(nil)),
			where:  "name IS NULL",
		},
		{
			name:   "is not null",
			filter: &queryir.Compare{Op: queryir.OpNe, Left: col("name"), Right: &queryir.Literal{}},
			where:  "name IS NOT NULL",
		},
		{
			name: "conjunction",
			filter: queryir.AllOf(
				queryir.Cmp(queryir.OpGe, col("id"), lit(2)),
				queryir.AnyOf(
					queryir.Cmp(queryir.OpLt, col("id"), lit(10)),
					&queryir.Not{Predicate: queryir.Cmp(queryir.OpEq, col("name"), lit("x"))},
				),
			),
			where:  "(id >= ?) AND ((id < ?) OR (NOT (name = ?)))",
			params: []any{int64(2), int64(10), "x"},
		},
		{
			name:   "empty conjunction",
			filter: &queryir.And{},
			where:  "1 = 1",
		},
		{
			name:   "empty disjunction",
			filter: queryir.Or{},
			where:  "1 = 0",
		},
		{
			name:   "truth",
			filter: queryir.Truth{Value: false},
			where:  "1 = 0",
		},
		{
			name:   "prefix",
			filter: &queryir.Match{Kind: queryir.MatchPrefix, Operand: col("name"), Value: lit("lamp")},
			where:  "instr(name, ?) = 1",
			params: []any{"lamp"},
		},
		{
			name:   "substring",
			filter: &queryir.Match{Kind: queryir.MatchSubstring, Operand: col("name"), Value: lit("am")},
			where:  "instr(name, ?) > 0",
			params: []any{"am"},
		},
		{
			name: "suffix repeats parameters",
			filter: &queryir.Match{
				Kind:    queryir.MatchSuffix,
				Operand: &queryir.Func{Name: "lower", Args: []queryir.Operand{col("name")}},
				Value:   lit("mp"),
			},
			where:  "substr(lower(name), length(lower(name)) - length(?) + 1) = ?",
			params: []any{"mp", "mp"},
		},
		{
			name:   "json member",
			filter: queryir.Cmp(queryir.OpGt, &queryir.JSONPath{Column: "properties", Path: []string{"depth", "max value"}}, lit(3.5)),
			where:  `json_extract(properties, ?) > ?`,
			params: []any{`$.depth."max value"`, 3.5},
		},
		{
			name:   "whole json document",
			filter: queryir.Cmp(queryir.OpEq, queryir.JSONPath{Column: "result"}, lit(12)),
			where:  "json_extract(result, ?) = ?",
			params: []any{"$", int64(12)},
		},
		{
			name: "arithmetic on times",
			filter: queryir.Cmp(queryir.OpLt,
				&queryir.Arith{Op: queryir.ArithSub, Left: col("result_time"), Right: col("phenomenon_time_start")},
				lit(time.Hour)),
			where:  "(result_time - phenomenon_time_start) < ?",
			params: []any{int64(3600000)},
		},
		{
			name:   "time literal",
			filter: queryir.Cmp(queryir.OpGt, col("result_time"), lit(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))),
			where:  "result_time > ?",
			params: []any{int64(1704067200000)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, params, err := NewCompiler().Compile(queryir.Select{
				From:    "observations",
				Columns: []string{"id"},
				Filter:  tc.filter,
				Limit:   -1,
			})
			require.NoError(t, err)
			assert.Equal(t, "SELECT id FROM observations WHERE "+tc.where, sql)
			assertParams(t, tc.params, params)
		})
	}
}

func TestCompile_RelatedChain(t *testing.T) {
	// Observation -> Datastream -> Thing -> name
	name := &queryir.Related{
		Table: "datastreams",
		Key:   "id",
		Ref:   col("datastream_id"),
		Value: &queryir.Related{
			Table: "things",
			Key:   "id",
			Ref:   col("thing_id"),
			Value: col("name"),
		},
	}
	sel := queryir.Select{
		From:    "observations",
		Columns: []string{"id"},
		Filter:  queryir.Cmp(queryir.OpEq, name, lit("Lab")),
		OrderBy: []queryir.Order{{Operand: name}},
		Limit:   -1,
	}

	sql, params, err := NewCompiler().Compile(sel)
	require.NoError(t, err)

	sub := "(SELECT (SELECT r2.name FROM things r2 WHERE r2.id = r1.thing_id) FROM datastreams r1 WHERE r1.id = observations.datastream_id)"
	sub2 := "(SELECT (SELECT r4.name FROM things r4 WHERE r4.id = r3.thing_id) FROM datastreams r3 WHERE r3.id = observations.datastream_id)"
	assert.Equal(t, "SELECT id FROM observations WHERE "+sub+" = ? ORDER BY "+sub2+" ASC", sql)
	assert.Equal(t, []any{"Lab"}, params)
}

func TestCompile_In(t *testing.T) {
	sel := queryir.Select{
		From:    "locations",
		Columns: []string{"id"},
		Filter: &queryir.In{
			Operand: col("id"),
			Query: queryir.Select{
				From:    "things_locations",
				Columns: []string{"location_id"},
				Filter:  queryir.Cmp(queryir.OpEq, col("thing_id"), lit(7)),
				Limit:   -1,
			},
		},
		Limit: 3,
	}

	sql, params, err := NewCompiler().Compile(sel)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM locations WHERE id IN (SELECT location_id FROM things_locations WHERE thing_id = ?) LIMIT 3", sql)
	assert.Equal(t, []any{int64(7)}, params)
}

func TestCompileCount(t *testing.T) {
	c := NewCompiler()

	sql, params, err := c.CompileCount(queryir.Select{
		From:    "things",
		Columns: []string{"id", "name"},
		Filter:  queryir.Cmp(queryir.OpEq, col("name"), lit("lamp")),
		OrderBy: []queryir.Order{{Operand: col("id")}},
		Limit:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM things WHERE name = ?", sql)
	assert.Equal(t, []any{"lamp"}, params)

	sql, _, err = c.CompileCount(&queryir.Select{
		From:     "datastreams",
		Columns:  []string{"observation_type"},
		Distinct: true,
		Limit:    5,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT DISTINCT observation_type FROM datastreams) d", sql)
}

func TestCompile_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		query queryir.Query
	}{
		{"nil query", nil},
		{"nil pointer", (*queryir.Select)(nil)},
		{"no table", queryir.Select{Columns: []string{"id"}}},
		{"no columns", queryir.Select{From: "things"}},
		{"unknown function", queryir.Select{
			From:    "things",
			Columns: []string{"id"},
			Filter:  queryir.Cmp(queryir.OpEq, &queryir.Func{Name: "reverse", Args: []queryir.Operand{col("name")}}, lit("x")),
		}},
		{"missing operand", queryir.Select{
			From:    "things",
			Columns: []string{"id"},
			Filter:  &queryir.Compare{Op: queryir.OpEq, Right: lit(1)},
		}},
		{"not without predicate", queryir.Select{
			From:    "things",
			Columns: []string{"id"},
			Filter:  &queryir.Not{},
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := NewCompiler().Compile(tc.query)
			assert.Error(t, err)
		})
	}
}

func TestParentLink_Predicate(t *testing.T) {
	reg := model.MustDefault()
	nav := func(typ, name string) *model.NavigationProperty {
		et, ok := reg.EntityType(typ)
		require.True(t, ok)
		p, ok := et.Property(name)
		require.True(t, ok)
		return p.(*model.NavigationProperty)
	}

	testCases := []struct {
		name   string
		link   ParentLink
		target string
		where  string
	}{
		{"to one", ParentLink{nav("Datastream", "Thing"), int64(3)}, "things", "id = ?"},
		{"mapped by", ParentLink{nav("Thing", "Datastreams"), int64(3)}, "datastreams", "thing_id = ?"},
		{"link table", ParentLink{nav("Thing", "Locations"), int64(3)}, "locations",
			"id IN (SELECT location_id FROM things_locations WHERE thing_id = ?)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tc.link.Predicate()
			require.NoError(t, err)
			sql, params, err := NewCompiler().Compile(queryir.Select{
				From: tc.target, Columns: []string{"id"}, Filter: p, Limit: -1,
			})
			require.NoError(t, err)
			assert.Equal(t, "SELECT id FROM "+tc.target+" WHERE "+tc.where, sql)
			assert.Equal(t, []any{int64(3)}, params)
		})
	}

	_, err := ParentLink{}.Predicate()
	assert.Error(t, err)
}

// planCase builds a validated query from YAML options.
func planCase(t *testing.T, entityType, options string, mutate ...func(*query.Defaults)) *query.Query {
	t.Helper()
	reg := model.MustDefault()
	d := query.StandardDefaults()
	for _, m := range mutate {
		m(&d)
	}

	var opts query.Options
	require.NoError(t, yaml.Unmarshal([]byte(options), &opts))
	q, err := opts.Build(query.NewSettings(d, reg), query.Anonymous)
	require.NoError(t, err)

	et, ok := reg.EntityType(entityType)
	require.True(t, ok)
	require.NoError(t, q.Validate(et))
	return q
}

func TestPlan_Golden(t *testing.T) {
	reg := model.MustDefault()
	thing, _ := reg.EntityType("Thing")
	locations, _ := thing.Property("Locations")

	testCases := []struct {
		name       string
		entityType string
		options    string
		link       *ParentLink
	}{
		{
			name:       "things_filtered",
			entityType: "Thing",
			options: `
top: 5
skip: 2
select: [Name]
filter: {fn: startswith, args: [{path: Name}, {string: lamp}]}
orderby: [{path: Name}]
`,
		},
		{
			name:       "observations_by_thing_name",
			entityType: "Observation",
			options:    `filter: {fn: eq, args: [{path: Datastream/Thing/Name}, {string: Lab}]}`,
		},
		{
			name:       "observations_result_desc",
			entityType: "Observation",
			options: `
top: 10
select: [Result]
filter: {fn: gt, args: [{path: Result}, {int: 5}]}
orderby: [{path: Result, desc: true}]
`,
		},
		{
			name:       "datastreams_expanding_thing",
			entityType: "Datastream",
			options: `
select: [Name]
expand: [{path: Thing}, {path: Observations}]
`,
		},
		{
			name:       "locations_of_thing",
			entityType: "Location",
			options:    `select: [Name]`,
			link:       &ParentLink{Navigation: locations.(*model.NavigationProperty), Key: int64(7)},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := planCase(t, tc.entityType, tc.options)
			sel, err := Plan(q, tc.link)
			require.NoError(t, err)

			sql, params, err := NewCompiler().Compile(sel)
			require.NoError(t, err)
			g.Assert(t, tc.name, fmt.Appendf(nil, "%s\n-- params: %v\n", sql, params))
		})
	}
}

func TestPlan_Distinct(t *testing.T) {
	q := planCase(t, "Datastream", "select: [ObservationType]\ndistinct: true\n")
	sel, err := Plan(q, nil)
	require.NoError(t, err)

	assert.True(t, sel.Distinct)
	assert.Equal(t, []string{"observation_type"}, sel.Columns)
	assert.Empty(t, sel.OrderBy)
}

func TestPlan_ReferenceOnly(t *testing.T) {
	q := planCase(t, "Thing", "ref: true\n")
	assert.Equal(t, []string{"id"}, PlanColumns(q))
}

func TestPlan_WithoutAlwaysOrder(t *testing.T) {
	q := planCase(t, "Thing", "top: 1\n", func(d *query.Defaults) { d.AlwaysOrder = false })
	sel, err := Plan(q, nil)
	require.NoError(t, err)
	assert.Empty(t, sel.OrderBy)
	assert.Equal(t, 1, sel.Limit)
}

func TestPlan_RequiresValidation(t *testing.T) {
	q := query.New(query.NewSettings(query.StandardDefaults(), model.MustDefault()), query.Anonymous)
	_, err := Plan(q, nil)
	assert.Error(t, err)
}

func TestPlan_NegativeTopStillLimits(t *testing.T) {
	q := planCase(t, "Thing", "select: [Name]\n")
	q.SetTop(-1)

	sel, err := Plan(q, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sel.Limit)

	sql, _, err := NewCompiler().Compile(sel)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name FROM things ORDER BY id ASC LIMIT 0", sql)
}
