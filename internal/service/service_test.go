package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/staquery/internal/metrics"
	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/qerr"
	"github.com/roach88/staquery/internal/query"
	"github.com/roach88/staquery/internal/store"
	"github.com/roach88/staquery/internal/testutil"
)

func request(t *testing.T, doc string) Request {
	t.Helper()
	var req Request
	require.NoError(t, yaml.Unmarshal([]byte(doc), &req))
	return req
}

func TestResolve(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	var logs bytes.Buffer
	svc := New(model.MustDefault(), query.StandardDefaults(),
		WithMetrics(m),
		WithLogger(zerolog.New(&logs)),
	)

	res, err := svc.Resolve(context.Background(), request(t, `
entity_type: Things
query:
  top: 5
  select: [Name]
  filter: {fn: eq, args: [{path: Name}, {string: Lamp}]}
  expand:
    - path: Datastreams/Observations
`))
	require.NoError(t, err)

	id, err := uuid.Parse(res.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, res.ID, res.Query.ID())

	assert.Equal(t, "Thing", res.EntityType.Name)
	assert.Equal(t, "$top=5&$select=Name&$filter=Name%20eq%20'Lamp'&$expand=Datastreams($expand%3DObservations%3B$orderby%3DId%20asc)&$orderby=Id%20asc", res.URL)
	assert.Equal(t, "SELECT id, name FROM things WHERE name = ? ORDER BY id ASC LIMIT 5", res.SQL)
	assert.Equal(t, []any{"Lamp"}, res.Args)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.ValidationsTotal.WithLabelValues("Thing", "ok")))
	assert.Contains(t, logs.String(), `"message":"query resolved"`)
	assert.Contains(t, logs.String(), `"expand_depth":2`)
}

func TestResolve_Warnings(t *testing.T) {
	svc := New(model.MustDefault(), query.StandardDefaults())
	res, err := svc.Resolve(context.Background(), request(t, `
entity_type: Observation
query:
  filter: {fn: gt, args: [{path: Result}, {int: 5}]}
`))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)
}

func TestResolve_Errors(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		kind qerr.Kind
	}{
		{
			name: "unknown entity type",
			doc:  "entity_type: Gadgets\n",
			kind: qerr.KindUnknownPath,
		},
		{
			name: "unknown expand",
			doc:  "entity_type: Thing\nquery: {expand: [{path: Gadgets}]}\n",
			kind: qerr.KindUnknownPath,
		},
		{
			name: "admin only expand",
			doc:  "entity_type: Datastream\nquery: {expand: [{path: Owner}]}\n",
			kind: qerr.KindUnknownPath,
		},
		{
			name: "invalid select",
			doc:  "entity_type: Thing\nquery: {select: [Colour]}\n",
			kind: qerr.KindInvalidSelect,
		},
		{
			name: "non boolean filter",
			doc:  "entity_type: Thing\nquery: {filter: {path: Name}}\n",
			kind: qerr.KindInvalidFilterExpression,
		},
		{
			name: "temporal mismatch",
			doc: `entity_type: Observation
query:
  filter: {fn: gt, args: [{path: PhenomenonTime}, {duration: PT1H}]}
`,
			kind: qerr.KindUnsupportedTemporalOperation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())
			svc := New(model.MustDefault(), query.StandardDefaults(), WithMetrics(m))

			_, err := svc.Resolve(context.Background(), request(t, tc.doc))
			require.Error(t, err)
			assert.Equal(t, tc.kind, qerr.KindOf(err), err.Error())
			assert.Equal(t, 1.0, promtest.ToFloat64(m.ValidationErrorsTotal.WithLabelValues(string(tc.kind))))
		})
	}
}

func TestResolve_AdminSeesOwner(t *testing.T) {
	svc := New(model.MustDefault(), query.StandardDefaults())
	res, err := svc.Resolve(context.Background(), request(t, `
entity_type: Datastreams
user: root
admin: true
query: {select: [Name], expand: [{path: Owner}]}
`))
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, owner_id FROM datastreams ORDER BY id ASC LIMIT 100", res.SQL)
}

func TestRequest_Principal(t *testing.T) {
	assert.Equal(t, query.Anonymous, Request{}.Principal())
	assert.Equal(t, query.Principal{Name: "alice"}, Request{User: "alice"}.Principal())
	assert.Equal(t, query.Principal{Admin: true}, Request{Admin: true}.Principal())
}

func TestExecute(t *testing.T) {
	reg := model.MustDefault()
	st, err := store.Open("", reg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	thing, err := st.Insert(ctx, "Thing", store.Entity{"Name": "Lamp"})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "Thing", store.Entity{"Name": "Fan"})
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	svc := New(reg, query.StandardDefaults(), WithStore(st), WithMetrics(m))

	exec, err := svc.Execute(ctx, request(t, `
entity_type: Thing
query:
  count: true
  select: [Id, Name]
  filter: {fn: startswith, args: [{path: Name}, {string: La}]}
`))
	require.NoError(t, err)
	require.NotNil(t, exec.Count)
	assert.Equal(t, int64(1), *exec.Count)
	assert.Equal(t, []store.Entity{{store.IDKey: thing, "Name": "Lamp"}}, exec.Entities)
	assert.Equal(t, 2, exec.Statements)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RowsFetchedTotal.WithLabelValues("Thing")))
}

func TestExecute_NoStore(t *testing.T) {
	svc := New(model.MustDefault(), query.StandardDefaults())
	_, err := svc.Execute(context.Background(), Request{EntityType: "Thing"})
	assert.Error(t, err)
}

func TestExpandDepth(t *testing.T) {
	svc := New(model.MustDefault(), query.StandardDefaults())
	testCases := []struct {
		expand string
		depth  int
	}{
		{"[]", 0},
		{"[{path: Locations}]", 1},
		{"[{path: Locations}, {path: Datastreams/Observations/FeatureOfInterest}]", 3},
	}
	for _, tc := range testCases {
		res, err := svc.Resolve(context.Background(), request(t, "entity_type: Thing\nquery: {expand: "+tc.expand+"}\n"))
		require.NoError(t, err, tc.expand)
		assert.Equal(t, tc.depth, ExpandDepth(res.Query), tc.expand)
	}
}

func TestResolve_IDGenerator(t *testing.T) {
	ids := testutil.NewSequentialIDs()
	svc := New(model.MustDefault(), query.StandardDefaults(), WithIDGenerator(ids.Next))

	for _, want := range []string{"00000000-0000-0000-0000-000000000001", "00000000-0000-0000-0000-000000000002"} {
		res, err := svc.Resolve(context.Background(), Request{EntityType: "Thing"})
		require.NoError(t, err)
		assert.Equal(t, want, res.ID)
	}
}

func TestEntityType(t *testing.T) {
	svc := New(model.MustDefault(), query.StandardDefaults())

	for _, name := range []string{"Thing", "Things", "things", "THINGS"} {
		et, err := svc.EntityType(name)
		require.NoError(t, err, name)
		assert.Equal(t, "Thing", et.Name)
	}

	_, err := svc.EntityType("Gadgets")
	require.Error(t, err)
	assert.True(t, qerr.Is(err, qerr.KindUnknownPath))
}
