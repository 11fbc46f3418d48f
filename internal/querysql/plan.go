package querysql

import (
	"fmt"
	"slices"

	"github.com/roach88/staquery/internal/expr"
	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/query"
	"github.com/roach88/staquery/internal/queryir"
)

// ParentLink restricts a plan to the entities one parent entity navigates
// to.
type ParentLink struct {
	// Navigation leads from the parent's type to the planned type.
	Navigation *model.NavigationProperty

	// Key is the parent's foreign key value for to-one navigation and the
	// parent's primary key otherwise.
	Key any
}

// Predicate returns the condition selecting the linked entities.
func (l ParentLink) Predicate() (queryir.Predicate, error) {
	nav := l.Navigation
	if nav == nil || nav.Target == nil {
		return nil, fmt.Errorf("parent link has no navigation")
	}
	pk := &queryir.Column{Name: nav.Target.PrimaryKey.Column()}
	key := &queryir.Literal{Value: l.Key}

	switch {
	case nav.ForeignKey != "":
		return queryir.Cmp(queryir.OpEq, pk, key), nil
	case nav.MappedBy != "":
		return queryir.Cmp(queryir.OpEq, &queryir.Column{Name: nav.MappedBy}, key), nil
	case nav.Link.Table != "":
		return &queryir.In{
			Operand: pk,
			Query: queryir.Select{
				From:    nav.Link.Table,
				Columns: []string{nav.Link.Target},
				Filter:  queryir.Cmp(queryir.OpEq, &queryir.Column{Name: nav.Link.Source}, key),
				Limit:   -1,
			},
		}, nil
	}
	return nil, fmt.Errorf("navigation %s has no storage", nav.Name)
}

// Plan lowers a validated query to a single-table select. Expanded
// entities are not joined; the store plans each expand per parent with a
// ParentLink.
func Plan(q *query.Query, link *ParentLink) (queryir.Select, error) {
	if !q.IsValidated() {
		return queryir.Select{}, fmt.Errorf("plan: query is not validated")
	}
	et := q.EntityType()
	env := q.Env()

	sel := queryir.Select{
		From:     et.Table,
		Columns:  PlanColumns(q),
		Limit:    q.TopOrDefault(),
		Offset:   q.SkipOr(0),
		Distinct: q.IsSelectDistinct(),
	}

	var preds []queryir.Predicate
	for _, e := range []expr.Expression{q.Filter(), q.SkipFilter()} {
		if e == nil {
			continue
		}
		p, err := expr.Compile(e, env)
		if err != nil {
			return queryir.Select{}, fmt.Errorf("plan filter %s: %w", e.ToURL(), err)
		}
		preds = append(preds, p)
	}
	if link != nil {
		p, err := link.Predicate()
		if err != nil {
			return queryir.Select{}, err
		}
		preds = append(preds, p)
	}
	switch len(preds) {
	case 0:
	case 1:
		sel.Filter = preds[0]
	default:
		sel.Filter = queryir.AllOf(preds...)
	}

	for _, o := range q.OrderBy() {
		ops, err := expr.CompileOrder(o.Expression, env)
		if err != nil {
			return queryir.Select{}, fmt.Errorf("plan order %s: %w", o.ToURL(), err)
		}
		for _, op := range ops {
			sel.OrderBy = append(sel.OrderBy, queryir.Order{
				Operand:    op,
				Descending: o.Direction == query.Descending,
			})
		}
	}
	return sel, nil
}

// PlanColumns returns the columns a query reads: the primary key, the
// selected properties and the foreign keys its expands follow. Distinct
// queries read only the selected properties.
func PlanColumns(q *query.Query) []string {
	et := q.EntityType()
	var cols []string
	add := func(names ...string) {
		for _, n := range names {
			if n != "" && !slices.Contains(cols, n) {
				cols = append(cols, n)
			}
		}
	}

	distinct := q.IsSelectDistinct()
	if !distinct {
		add(et.PrimaryKey.Columns...)
	}
	if q.IsReferenceOnly() {
		return cols
	}
	for _, p := range q.SelectedEntityProperties(q.ParentExpand() != nil) {
		switch p := p.(type) {
		case *model.EntityProperty:
			add(p.Columns...)
		case *model.CustomSelect:
			add(p.Base.Columns...)
		}
	}
	if distinct {
		return cols
	}
	for _, e := range q.Expands() {
		switch nav := e.Navigation().(type) {
		case *model.NavigationProperty:
			add(nav.ForeignKey)
		case *model.CustomNavigation:
			add(nav.Base.Columns...)
		}
	}
	return cols
}
