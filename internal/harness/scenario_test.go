package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario("testdata/thing_locations.yaml")
	require.NoError(t, err)

	assert.Equal(t, "thing_locations", sc.Name)
	assert.Equal(t, "Things", sc.Request.EntityType)
	assert.Equal(t, []string{"Name"}, sc.Request.Query.Select)
	require.Len(t, sc.Request.Query.Expand, 1)
	assert.Equal(t, "Locations", sc.Request.Query.Expand[0].Path)

	require.Len(t, sc.Seed, 3)
	assert.Equal(t, "Thing", sc.Seed[0].Insert)
	assert.Equal(t, "lamp", sc.Seed[0].As)
	assert.Equal(t, &LinkStep{From: "lamp", Navigation: "Locations", To: "kitchen"}, sc.Seed[2].Link)

	assert.True(t, sc.Executes())
	require.Len(t, sc.Expect.Entities, 1)
	assert.Equal(t, "Lamp", sc.Expect.Entities[0]["Name"])
}

func TestLoadScenario_ResolveOnly(t *testing.T) {
	sc, err := LoadScenario("testdata/things_by_name.yaml")
	require.NoError(t, err)

	assert.False(t, sc.Executes())
	require.NotNil(t, sc.Expect.Portable)
	assert.True(t, *sc.Expect.Portable)
	assert.Equal(t, []any{"Lamp"}, sc.Expect.Args)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: typo
description: misspelled expect
request: {entity_type: Things}
expects: {error: UNKNOWN_PATH}
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nrequest: {entity_type: Things}\nexpect: {error: UNKNOWN_PATH}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nrequest: {entity_type: Things}\nexpect: {error: UNKNOWN_PATH}\n",
			wantErr: "description is required",
		},
		{
			name:    "missing entity type",
			yaml:    "name: n\ndescription: d\nexpect: {error: UNKNOWN_PATH}\n",
			wantErr: "request.entity_type is required",
		},
		{
			name:    "nothing expected",
			yaml:    "name: n\ndescription: d\nrequest: {entity_type: Things}\n",
			wantErr: "expect must check at least one outcome",
		},
		{
			name:    "error with sql",
			yaml:    "name: n\ndescription: d\nrequest: {entity_type: Things}\nexpect: {error: UNKNOWN_PATH, sql: SELECT 1}\n",
			wantErr: "expect.error excludes",
		},
		{
			name: "empty seed step",
			yaml: `name: n
description: d
request: {entity_type: Things}
seed: [{as: x}]
expect: {count: 0}
`,
			wantErr: "seed[0]: insert or link is required",
		},
		{
			name: "insert and link",
			yaml: `name: n
description: d
request: {entity_type: Things}
seed: [{insert: Thing, link: {from: a, navigation: Locations, to: b}}]
expect: {count: 0}
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "unknown ref",
			yaml: `name: n
description: d
request: {entity_type: Datastreams}
seed: [{insert: Datastream, refs: {Thing: lamp}}]
expect: {count: 1}
`,
			wantErr: `seed[0].refs.Thing: unknown alias "lamp"`,
		},
		{
			name: "duplicate alias",
			yaml: `name: n
description: d
request: {entity_type: Things}
seed: [{insert: Thing, as: a}, {insert: Thing, as: a}]
expect: {count: 2}
`,
			wantErr: `seed[1]: duplicate alias "a"`,
		},
		{
			name: "link before insert",
			yaml: `name: n
description: d
request: {entity_type: Things}
seed:
  - link: {from: lamp, navigation: Locations, to: kitchen}
  - {insert: Thing, as: lamp}
expect: {count: 1}
`,
			wantErr: `seed[0].link: unknown alias "lamp"`,
		},
		{
			name: "link without navigation",
			yaml: `name: n
description: d
request: {entity_type: Things}
seed:
  - {insert: Thing, as: lamp}
  - link: {from: lamp, to: lamp}
expect: {count: 1}
`,
			wantErr: "navigation is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestExpect_IsZero(t *testing.T) {
	assert.True(t, Expect{}.IsZero())
	assert.False(t, Expect{SQL: "SELECT 1"}.IsZero())
	assert.False(t, Expect{Args: []any{}}.IsZero())
	assert.False(t, Expect{Entities: []map[string]any{}}.IsZero())
}
