package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/query"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, model.MustDefault())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixture ids of seedStore.
type fixture struct {
	lamp, fan         int64
	kitchen           int64
	lampTemp, fanRate int64
	observations      []int64
}

// seedStore stores two things with one datastream each. The lamp's
// datastream has three hourly observations (10, 20, 30) starting
// 2024-01-01T00:00:00Z; the fan's has one (5) on 2023-12-31.
func seedStore(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()
	insert := func(entityType string, e Entity) int64 {
		t.Helper()
		id, err := s.Insert(ctx, entityType, e)
		require.NoError(t, err)
		return id
	}

	var f fixture
	f.lamp = insert("Thing", Entity{"Name": "Lamp", "Description": "desk lamp", "Properties": map[string]any{"room": "kitchen"}})
	f.fan = insert("Thing", Entity{"Name": "Fan", "Description": "ceiling fan"})
	f.kitchen = insert("Location", Entity{"Name": "Kitchen", "EncodingType": "application/geo+json",
		"Location": map[string]any{"type": "Point", "coordinates": []float64{7.1, 50.7}}})
	require.NoError(t, s.Link(ctx, "Thing", f.lamp, "Locations", f.kitchen))

	sensor := insert("Sensor", Entity{"Name": "DHT22", "EncodingType": "application/pdf", "Metadata": "dht22.pdf"})
	prop := insert("ObservedProperty", Entity{"Name": "Temperature", "Definition": "http://example.org/temperature"})

	f.lampTemp = insert("Datastream", Entity{
		"Name":              "Lamp temperature",
		"ObservationType":   "OM_Measurement",
		"UnitOfMeasurement": map[string]any{"symbol": "degC"},
		"PhenomenonTime":    "2024-01-01T00:00:00Z/2024-01-01T02:00:00Z",
		"Thing":             f.lamp,
		"Sensor":            sensor,
		"ObservedProperty":  prop,
	})
	f.fanRate = insert("Datastream", Entity{
		"Name":             "Fan rate",
		"ObservationType":  "OM_Measurement",
		"Thing":            f.fan,
		"Sensor":           sensor,
		"ObservedProperty": prop,
	})

	for i, result := range []int{10, 20, 30} {
		at := []string{"2024-01-01T00:00:00Z", "2024-01-01T01:00:00Z", "2024-01-01T02:00:00Z"}[i]
		f.observations = append(f.observations, insert("Observation", Entity{
			"PhenomenonTime": at,
			"ResultTime":     at,
			"Result":         result,
			"Datastream":     f.lampTemp,
		}))
	}
	f.observations = append(f.observations, insert("Observation", Entity{
		"PhenomenonTime": "2023-12-31T12:00:00Z",
		"ResultTime":     "2023-12-31T12:00:00Z",
		"Result":         5,
		"Datastream":     f.fanRate,
	}))
	return f
}

// validated builds a query from YAML options and validates it.
func validated(t *testing.T, entityType, options string, principal ...query.Principal) *query.Query {
	t.Helper()
	reg := model.MustDefault()
	p := query.Anonymous
	if len(principal) > 0 {
		p = principal[0]
	}

	var opts query.Options
	require.NoError(t, yaml.Unmarshal([]byte(options), &opts))
	q, err := opts.Build(query.NewSettings(query.StandardDefaults(), reg), p)
	require.NoError(t, err)

	et, ok := reg.EntityType(entityType)
	require.True(t, ok, entityType)
	require.NoError(t, q.Validate(et))
	return q
}
