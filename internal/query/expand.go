package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/qerr"
)

// expandPath is the state of an Expand's path: unresolved raw segments or a
// resolved navigation.
type expandPath interface {
	segments() []string
}

type unresolvedPath struct {
	raw []string
}

type resolvedPath struct {
	nav model.Navigation
	raw []string
}

func (p unresolvedPath) segments() []string { return p.raw }

func (p resolvedPath) segments() []string {
	if len(p.raw) > 0 {
		return p.raw
	}
	return strings.Split(p.nav.PropertyName(), "/")
}

// Expand is one navigation hop with optional nested query options.
type Expand struct {
	path        expandPath
	subQuery    *Query
	parentQuery *Query
}

// NewExpand creates an unresolved Expand from a slash-separated path such
// as "Datastreams/Sensor".
func NewExpand(path string) *Expand {
	return &Expand{path: unresolvedPath{raw: strings.Split(path, "/")}}
}

// NewResolvedExpand creates an Expand on a known navigation.
func NewResolvedExpand(nav model.Navigation) *Expand {
	return &Expand{path: resolvedPath{nav: nav}}
}

// RawPath returns the path segments as written by the client, or derived
// from the navigation name for pre-resolved expands.
func (e *Expand) RawPath() []string { return slices.Clone(e.path.segments()) }

// Navigation returns the resolved navigation, or nil before validation.
func (e *Expand) Navigation() model.Navigation {
	if p, ok := e.path.(resolvedPath); ok {
		return p.nav
	}
	return nil
}

// IsResolved reports whether the path has been resolved.
func (e *Expand) IsResolved() bool {
	_, ok := e.path.(resolvedPath)
	return ok
}

// ParentQuery returns the query this expand belongs to.
func (e *Expand) ParentQuery() *Query { return e.parentQuery }

// HasSubQuery reports whether nested options exist without creating them.
func (e *Expand) HasSubQuery() bool { return e.subQuery != nil }

// SubQuery returns the nested query, creating it on first use.
func (e *Expand) SubQuery() *Query {
	if e.subQuery == nil {
		e.setSubQuery(e.newChildQuery())
	}
	return e.subQuery
}

// SetSubQuery replaces the nested query.
func (e *Expand) SetSubQuery(q *Query) {
	e.setSubQuery(q)
	if e.parentQuery != nil {
		e.parentQuery.markDirty()
	}
}

func (e *Expand) setSubQuery(q *Query) {
	e.subQuery = q
	if q != nil {
		q.parentExpand = e
	}
}

func (e *Expand) newChildQuery() *Query {
	if e.parentQuery == nil {
		return New(nil, Anonymous)
	}
	return New(e.parentQuery.settings, e.parentQuery.principal)
}

// Validate resolves the expand against the entity type of its parent
// query. The expand must have been added to a query.
func (e *Expand) Validate(et *model.EntityType) error {
	if e.parentQuery == nil {
		return fmt.Errorf("expand %s has no parent query", e)
	}
	return e.validate(e.parentQuery, et)
}

func (e *Expand) validate(parent *Query, et *model.EntityType) error {
	e.parentQuery = parent

	if raw, ok := e.path.(unresolvedPath); ok {
		if err := e.resolve(parent, et, raw.raw); err != nil {
			return err
		}
	}

	nav, ok := e.Navigation().(*model.NavigationProperty)
	if !ok || e.subQuery == nil {
		return nil
	}
	sub := e.subQuery
	sub.settings, sub.principal = parent.settings, parent.principal
	if sub.metadata == MetadataUnset {
		sub.SetMetadata(parent.metadata)
	}
	return sub.Validate(nav.Target)
}

// resolve binds the first raw segment and replaces it with the declared
// property name, so paths differing only in case compare equal. Further segments of a navigation path
// move into a child expand one level down, so A/B/C becomes A(B/C). Options
// already attached to this expand move with the child, since they were
// written for the last segment.
func (e *Expand) resolve(parent *Query, et *model.EntityType, raw []string) error {
	if len(raw) == 0 || raw[0] == "" {
		return qerr.NewUnknownPath("", et.Name)
	}
	prop, ok := parent.resolver().Property(et, raw[0])
	if !ok {
		return qerr.NewUnknownPath(raw[0], et.Name)
	}

	switch p := prop.(type) {
	case *model.NavigationProperty:
		if p.AdminOnly && !parent.principal.Admin {
			return qerr.NewUnknownPath(raw[0], et.Name)
		}
		e.path = resolvedPath{nav: p, raw: []string{p.Name}}
		if len(raw) == 1 {
			return nil
		}

		child := &Expand{path: unresolvedPath{raw: slices.Clone(raw[1:])}}
		if e.subQuery != nil {
			child.setSubQuery(e.subQuery)
		}
		sub := New(parent.settings, parent.principal)
		sub.SetID(parent.id)
		sub.AddExpand(child)
		e.setSubQuery(sub)

		parent.logger().Debug().
			Str("query", parent.id).
			Str("path", strings.Join(raw, "/")).
			Str("navigation", p.Name).
			Msg("expand split")
		return nil

	case *model.EntityProperty:
		if !p.HasCustomProperties() {
			return qerr.NewUnknownPath(raw[0], et.Name)
		}
		e.path = resolvedPath{
			nav: &model.CustomNavigation{Base: p, SubPath: slices.Clone(raw[1:])},
			raw: append([]string{p.Name}, raw[1:]...),
		}
		return nil

	default:
		return qerr.NewUnknownPath(raw[0], et.Name)
	}
}

// String renders the expand as it appears in $expand, e.g.
// Datastreams($top=1;$select=Name).
func (e *Expand) String() string {
	s := strings.Join(e.path.segments(), "/")
	if e.subQuery == nil {
		return s
	}
	if inner := e.subQuery.ToURL(true); inner != "" {
		s += "(" + inner + ")"
	}
	return s
}

// Equal compares raw paths and nested queries.
func (e *Expand) Equal(other *Expand) bool {
	if e == nil || other == nil {
		return e == other
	}
	if !slices.Equal(e.path.segments(), other.path.segments()) {
		return false
	}
	if e.subQuery == nil || other.subQuery == nil {
		return isEmptyQuery(e.subQuery) && isEmptyQuery(other.subQuery)
	}
	return e.subQuery.Equal(other.subQuery)
}

func isEmptyQuery(q *Query) bool {
	return q == nil || q.ToURL(true) == ""
}
