package query

import "github.com/roach88/staquery/internal/model"

// selection caches the computed select sets of a query.
type selection struct {
	entity      []model.Property
	nav         []model.Navigation
	navInExpand []model.Navigation
}

// invalidate drops the cached select sets.
func (q *Query) invalidate() { q.selection = nil }

// SelectedEntityProperties returns the entity properties the response
// includes: explicit $select entries, or every entity property of the
// type when nothing was selected. A $ref query selects only the self link.
func (q *Query) SelectedEntityProperties(inExpand bool) []model.Property {
	return q.selected().entity
}

// SelectedNavigationProperties returns the navigation properties the
// response links. Without an explicit $select every navigation property is
// included, except inside an expand where none are.
// Admin-only navigation is visible only to admins.
func (q *Query) SelectedNavigationProperties(inExpand bool) []model.Navigation {
	if inExpand {
		return q.selected().navInExpand
	}
	return q.selected().nav
}

func (q *Query) selected() *selection {
	if q.selection == nil {
		q.selection = q.computeSelection()
	}
	return q.selection
}

func (q *Query) computeSelection() *selection {
	s := &selection{}
	if q.refOnly {
		s.entity = []model.Property{model.SelfLink}
		return s
	}
	if q.entityType == nil {
		return s
	}

	admin := q.principal.Admin
	if len(q.selectProps) == 0 {
		for _, p := range q.entityType.EntityProperties() {
			s.entity = append(s.entity, p)
		}
		if q.metadata == MetadataFull {
			s.entity = append(s.entity, model.SelfLink)
		}
		for _, n := range q.entityType.NavigationProperties() {
			if n.AdminOnly && !admin {
				continue
			}
			s.nav = append(s.nav, n)
		}
		return s
	}

	for _, p := range q.selectProps {
		switch p := p.(type) {
		case *model.EntityProperty, *model.CustomSelect:
			s.entity = append(s.entity, p)
		case *model.NavigationProperty:
			if p.AdminOnly && !admin {
				continue
			}
			s.nav = append(s.nav, p)
			s.navInExpand = append(s.navInExpand, p)
		}
	}
	return s
}
