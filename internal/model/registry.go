package model

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

//go:embed schema.cue
var schemaSource string

//go:embed sensorthings.cue
var sensorThingsSource string

// Registry is an immutable set of compiled entity types.
// It is safe for concurrent use once built.
type Registry struct {
	types  []*EntityType
	byName map[string]*EntityType
}

func newRegistry() *Registry {
	return &Registry{byName: make(map[string]*EntityType)}
}

func (r *Registry) add(et *EntityType) error {
	if _, dup := r.byName[lookupKey(et.Name)]; dup {
		return fmt.Errorf("duplicate entity type %q", et.Name)
	}
	if _, dup := r.byName[lookupKey(et.Plural)]; dup {
		return fmt.Errorf("entity set %q clashes with an existing name", et.Plural)
	}
	r.types = append(r.types, et)
	r.byName[lookupKey(et.Name)] = et
	r.byName[lookupKey(et.Plural)] = et
	return nil
}

// EntityTypes returns all entity types in declaration order.
func (r *Registry) EntityTypes() []*EntityType {
	return r.types
}

// EntityType looks up an entity type by name or entity-set (plural) name.
func (r *Registry) EntityType(name string) (*EntityType, bool) {
	et, ok := r.byName[lookupKey(name)]
	return et, ok
}

// Property implements PropertyResolver.
func (r *Registry) Property(et *EntityType, name string) (Property, bool) {
	if et == nil {
		return nil, false
	}
	return et.Property(name)
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	v := ctx.CompileString(sensorThingsSource, cue.Filename("sensorthings.cue"))
	return Compile(schema.Unify(v))
})

// Default returns the standard SensorThings model. It is compiled once.
func Default() (*Registry, error) {
	return defaultRegistry()
}

// MustDefault is like Default but panics on error.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(fmt.Sprintf("compile embedded model: %v", err))
	}
	return r
}

// lookupKey normalizes a property or type name for lookup.
// A Caser is stateful, so one is created per call.
func lookupKey(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}
