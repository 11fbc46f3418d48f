package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/staquery/internal/model"
)

// Defaults is the per-service configuration consumed by Query.
// It is copied into Settings and never mutated afterwards.
type Defaults struct {
	TopDefault                 int    `yaml:"top_default" json:"top_default"`
	TopMax                     int    `yaml:"top_max" json:"top_max"`
	CountDefault               bool   `yaml:"count_default" json:"count_default"`
	AlwaysOrder                bool   `yaml:"always_order" json:"always_order"`
	UseAbsoluteNavigationLinks bool   `yaml:"absolute_navigation_links" json:"absolute_navigation_links"`
	ServiceRootURL             string `yaml:"service_root_url" json:"service_root_url"`
}

// StandardDefaults returns the values used when nothing is configured.
func StandardDefaults() Defaults {
	return Defaults{
		TopDefault:                 100,
		TopMax:                     10000,
		CountDefault:               false,
		AlwaysOrder:                true,
		UseAbsoluteNavigationLinks: true,
		ServiceRootURL:             "http://localhost:8080/v1.1",
	}
}

// Settings bundles everything a Query needs from its service: defaults,
// the property resolver and a logger. Settings are shared read-only by all
// queries of a service.
type Settings struct {
	Defaults Defaults
	Resolver model.PropertyResolver
	Logger   zerolog.Logger
}

// NewSettings creates Settings with a disabled logger.
func NewSettings(defaults Defaults, resolver model.PropertyResolver) *Settings {
	return &Settings{
		Defaults: defaults,
		Resolver: resolver,
		Logger:   zerolog.Nop(),
	}
}

// WithLogger returns a copy of s that logs to l.
func (s *Settings) WithLogger(l zerolog.Logger) *Settings {
	c := *s
	c.Logger = l
	return &c
}

// Principal is the identity a query is resolved for.
type Principal struct {
	Name  string
	Admin bool
}

// Anonymous is the principal used when no identity is known.
var Anonymous = Principal{Name: "anonymous"}

// Metadata is the $metadata level requested by the client.
type Metadata int

const (
	MetadataUnset Metadata = iota
	MetadataFull
	MetadataMinimal
	MetadataOff
)

func (m Metadata) String() string {
	switch m {
	case MetadataFull:
		return "full"
	case MetadataMinimal:
		return "minimal"
	case MetadataOff:
		return "off"
	}
	return ""
}

// ParseMetadata parses a metadata level. The empty string is MetadataUnset.
func ParseMetadata(s string) (Metadata, error) {
	switch strings.ToLower(s) {
	case "":
		return MetadataUnset, nil
	case "full":
		return MetadataFull, nil
	case "minimal":
		return MetadataMinimal, nil
	case "off":
		return MetadataOff, nil
	}
	return MetadataUnset, fmt.Errorf("unknown metadata level %q", s)
}

// SelfLink returns the link to a single entity.
func (s *Settings) SelfLink(et *model.EntityType, id any) string {
	return s.linkBase() + et.Plural + "(" + formatID(id) + ")"
}

// NavigationLink returns the link from an entity to one of its navigation
// properties, e.g. Things(1)/Datastreams. Links are absolute when
// UseAbsoluteNavigationLinks is set.
func (s *Settings) NavigationLink(et *model.EntityType, id any, nav model.Navigation) string {
	return s.SelfLink(et, id) + "/" + nav.PropertyName()
}

func (s *Settings) linkBase() string {
	if !s.Defaults.UseAbsoluteNavigationLinks || s.Defaults.ServiceRootURL == "" {
		return ""
	}
	return strings.TrimSuffix(s.Defaults.ServiceRootURL, "/") + "/"
}

// formatID renders an entity id as it appears in a resource path.
// Numeric ids are bare, everything else is a quoted string.
func formatID(id any) string {
	switch v := id.(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return fmt.Sprint(id)
}
