// Package model describes the typed entity graph queries are resolved
// against.
//
// Entity types are declared in CUE (see sensorthings.cue for the standard
// SensorThings model) and compiled into a Registry. The query core only
// depends on the PropertyResolver interface, so other model sources can be
// plugged in.
//
// PROPERTY KINDS:
//
// Property is a sealed interface with four implementations:
//
//	*EntityProperty      plain attribute (Name, PhenomenonTime, ...)
//	*NavigationProperty  relation to another entity type (Datastreams, ...)
//	*CustomSelect        JSON sub-path of an Object property in $select
//	*CustomNavigation    JSON sub-path of an Object property in $expand
//
// Navigation is the subset usable as an $expand target.
package model

import "strings"

// Type is the value type of an entity property.
type Type string

const (
	TypeID           Type = "Id"
	TypeString       Type = "String"
	TypeInteger      Type = "Integer"
	TypeDouble       Type = "Double"
	TypeBoolean      Type = "Boolean"
	TypeDateTime     Type = "DateTime"
	TypeTimeInterval Type = "TimeInterval"
	TypeObject       Type = "Object"
	TypeGeometry     Type = "Geometry"
)

// Property is a named member of an entity type.
//
// This is a sealed interface - only types in this package implement it.
type Property interface {
	PropertyName() string
	propertyNode()
}

// Navigation is a property that can be the target of an $expand.
//
// This is a sealed interface - only *NavigationProperty and
// *CustomNavigation implement it.
type Navigation interface {
	Property
	// TargetType is the entity type reached through the navigation, or nil
	// when the navigation points into a JSON document.
	TargetType() *EntityType
	navigationNode()
}

// EntityProperty is a plain attribute of an entity type.
type EntityProperty struct {
	Name string
	Type Type

	// Columns holds the storage columns backing the property: one column for
	// most types, two (start, end) for TimeInterval, none for virtual
	// properties such as SelfLink.
	Columns []string
}

func (p *EntityProperty) PropertyName() string { return p.Name }
func (*EntityProperty) propertyNode()          {}

// HasCustomProperties reports whether the property holds a JSON document
// whose members can be addressed by sub-path.
func (p *EntityProperty) HasCustomProperties() bool {
	return p.Type == TypeObject
}

// Column returns the first storage column, or "" for virtual properties.
func (p *EntityProperty) Column() string {
	if len(p.Columns) == 0 {
		return ""
	}
	return p.Columns[0]
}

// SelfLink is the virtual property rendering an entity's own URL.
var SelfLink = &EntityProperty{Name: "@iot.selfLink", Type: TypeString}

// LinkTable describes a many-to-many relation stored in its own table.
type LinkTable struct {
	Table  string
	Source string // column referencing the source entity's primary key
	Target string // column referencing the target entity's primary key
}

// NavigationProperty is a relation from one entity type to another.
type NavigationProperty struct {
	Name       string
	Source     *EntityType
	Target     *EntityType
	TargetName string

	// IsSet is true for to-many relations.
	IsSet bool

	// AdminOnly hides the relation from non-admin principals.
	AdminOnly bool

	// Storage: exactly one of ForeignKey (to-one, column on Source),
	// MappedBy (to-many, column on Target) or Link is set.
	ForeignKey string
	MappedBy   string
	Link       LinkTable
}

func (p *NavigationProperty) PropertyName() string    { return p.Name }
func (p *NavigationProperty) TargetType() *EntityType { return p.Target }
func (*NavigationProperty) propertyNode()             {}
func (*NavigationProperty) navigationNode()           {}

// CustomSelect selects a member of a JSON document property,
// e.g. Properties/owner/name.
type CustomSelect struct {
	Base    *EntityProperty
	SubPath []string
}

func (p *CustomSelect) PropertyName() string {
	return p.Base.Name + "/" + strings.Join(p.SubPath, "/")
}
func (*CustomSelect) propertyNode() {}

// CustomNavigation expands a link stored inside a JSON document property.
type CustomNavigation struct {
	Base    *EntityProperty
	SubPath []string
}

func (p *CustomNavigation) PropertyName() string {
	if len(p.SubPath) == 0 {
		return p.Base.Name
	}
	return p.Base.Name + "/" + strings.Join(p.SubPath, "/")
}
func (*CustomNavigation) TargetType() *EntityType { return nil }
func (*CustomNavigation) propertyNode()           {}
func (*CustomNavigation) navigationNode()         {}

// IsAdminOnly reports whether p is a navigation hidden from non-admins.
func IsAdminOnly(p Property) bool {
	if np, ok := p.(*NavigationProperty); ok {
		return np.AdminOnly
	}
	return false
}

// EntityType is a node of the entity graph.
type EntityType struct {
	Name       string
	Plural     string
	Table      string
	PrimaryKey *EntityProperty

	entityProps []*EntityProperty
	navProps    []*NavigationProperty
	index       map[string]Property
}

// NewEntityType creates an empty entity type.
func NewEntityType(name, plural, table string) *EntityType {
	return &EntityType{
		Name:   name,
		Plural: plural,
		Table:  table,
		index:  make(map[string]Property),
	}
}

// AddEntityProperty appends an attribute, keeping declaration order.
func (et *EntityType) AddEntityProperty(p *EntityProperty) {
	et.entityProps = append(et.entityProps, p)
	et.index[lookupKey(p.Name)] = p
}

// AddNavigationProperty appends a relation, keeping declaration order.
func (et *EntityType) AddNavigationProperty(p *NavigationProperty) {
	p.Source = et
	et.navProps = append(et.navProps, p)
	et.index[lookupKey(p.Name)] = p
}

// EntityProperties returns the attributes in declaration order.
func (et *EntityType) EntityProperties() []*EntityProperty {
	return et.entityProps
}

// NavigationProperties returns the relations in declaration order.
func (et *EntityType) NavigationProperties() []*NavigationProperty {
	return et.navProps
}

// Property looks up a property by name. Lookup is case-insensitive and
// Unicode-normalized.
func (et *EntityType) Property(name string) (Property, bool) {
	p, ok := et.index[lookupKey(name)]
	return p, ok
}

func (et *EntityType) String() string { return et.Name }

// PropertyResolver looks up properties of entity types by name.
type PropertyResolver interface {
	Property(et *EntityType, name string) (Property, bool)
}
