package model

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileModel(t *testing.T, src string) (*Registry, error) {
	t.Helper()
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	v := ctx.CompileString(src)
	return Compile(schema.Unify(v))
}

func TestDefault_SensorThingsModel(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	names := make([]string, 0)
	for _, et := range reg.EntityTypes() {
		names = append(names, et.Name)
	}
	assert.Equal(t, []string{
		"Thing", "Location", "HistoricalLocation", "Datastream", "Sensor",
		"ObservedProperty", "Observation", "FeatureOfInterest", "User",
	}, names, "declaration order is preserved")

	thing, ok := reg.EntityType("Things")
	require.True(t, ok, "lookup by entity set name")
	assert.Equal(t, "Thing", thing.Name)
	assert.Equal(t, "things", thing.Table)
	assert.Equal(t, "Id", thing.PrimaryKey.Name)
	assert.Equal(t, []string{"id"}, thing.PrimaryKey.Columns)

	locs, ok := thing.Property("Locations")
	require.True(t, ok)
	np, ok := locs.(*NavigationProperty)
	require.True(t, ok)
	assert.True(t, np.IsSet)
	assert.Same(t, thing, np.Source)
	assert.Equal(t, "Location", np.Target.Name)
	assert.Equal(t, LinkTable{Table: "things_locations", Source: "thing_id", Target: "location_id"}, np.Link)
}

func TestDefault_DerivedColumns(t *testing.T) {
	reg := MustDefault()
	obs, ok := reg.EntityType("Observation")
	require.True(t, ok)

	testCases := []struct {
		name    string
		prop    string
		typ     Type
		columns []string
	}{
		{"interval gets start and end", "PhenomenonTime", TypeTimeInterval, []string{"phenomenon_time_start", "phenomenon_time_end"}},
		{"date time", "ResultTime", TypeDateTime, []string{"result_time"}},
		{"json document", "Parameters", TypeObject, []string{"parameters"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := obs.Property(tc.prop)
			require.True(t, ok)
			ep, ok := p.(*EntityProperty)
			require.True(t, ok)
			assert.Equal(t, tc.typ, ep.Type)
			assert.Equal(t, tc.columns, ep.Columns)
		})
	}

	ds, _ := reg.EntityType("Datastream")
	owner, ok := ds.Property("Owner")
	require.True(t, ok)
	assert.True(t, IsAdminOnly(owner))
	assert.Equal(t, "owner_id", owner.(*NavigationProperty).ForeignKey)
}

func TestProperty_LookupIsCaseInsensitive(t *testing.T) {
	reg := MustDefault()
	thing, _ := reg.EntityType("thing")
	require.NotNil(t, thing)

	p, ok := reg.Property(thing, "description")
	require.True(t, ok)
	assert.Equal(t, "Description", p.PropertyName())

	_, ok = reg.Property(thing, "Nope")
	assert.False(t, ok)

	_, ok = reg.Property(nil, "Name")
	assert.False(t, ok)
}

func TestCompile_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "missing entityTypes",
			src:     `foo: 1`,
			wantErr: "at least one entity type is required",
		},
		{
			name: "unknown target",
			src: `entityTypes: A: {
				plural: "As", table: "a"
				properties: Id: type: "Id"
				navigation: B: {target: "Missing"}
			}`,
			wantErr: `unknown navigation target "Missing"`,
		},
		{
			name: "primary key not an Id",
			src: `entityTypes: A: {
				plural: "As", table: "a"
				properties: Id: type: "String"
			}`,
			wantErr: "must be a declared property of type Id",
		},
		{
			name: "to-many without storage",
			src: `entityTypes: A: {
				plural: "As", table: "a"
				properties: Id: type: "Id"
				navigation: As: {target: "A", set: true}
			}`,
			wantErr: "needs mappedBy or link",
		},
		{
			name: "bad property type",
			src: `entityTypes: A: {
				plural: "As", table: "a"
				properties: Id: type: "Float"
			}`,
			wantErr: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compileModel(t, tc.src)
			require.Error(t, err)
			if tc.wantErr != "" {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `package custom

entityTypes: Sample: {
	plural: "Samples"
	table:  "samples"
	properties: {
		Id: type:      "Id"
		Taken: type:   "DateTime"
		Payload: type: "Object"
	}
	navigation: Parent: {target: "Sample"}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.cue"), []byte(src), 0o644))

	reg, err := LoadDir(dir)
	require.NoError(t, err)

	sample, ok := reg.EntityType("Samples")
	require.True(t, ok)
	parent, ok := sample.Property("Parent")
	require.True(t, ok)
	assert.Equal(t, "parent_id", parent.(*NavigationProperty).ForeignKey)
	assert.Same(t, sample, parent.(*NavigationProperty).Target)
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestCustomProperties(t *testing.T) {
	base := &EntityProperty{Name: "Properties", Type: TypeObject}
	sel := &CustomSelect{Base: base, SubPath: []string{"owner", "name"}}
	nav := &CustomNavigation{Base: base, SubPath: []string{"link"}}

	assert.True(t, base.HasCustomProperties())
	assert.Equal(t, "Properties/owner/name", sel.PropertyName())
	assert.Equal(t, "Properties/link", nav.PropertyName())
	assert.Nil(t, nav.TargetType())
	assert.Equal(t, "", SelfLink.Column())
}

func TestSnakeCase(t *testing.T) {
	testCases := map[string]string{
		"Id":                "id",
		"PhenomenonTime":    "phenomenon_time",
		"UnitOfMeasurement": "unit_of_measurement",
		"HTTPCode":          "http_code",
	}
	for in, want := range testCases {
		assert.Equal(t, want, snakeCase(in), in)
	}
}
