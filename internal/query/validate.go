package query

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/staquery/internal/expr"
	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/qerr"
)

// Validate resolves the query against et.
//
// Validation resolves select tokens, resolves and re-nests expands,
// type-checks filters and order expressions, and appends an ascending
// primary-key order when AlwaysOrder is set. The first error aborts
// validation. Validating an already validated query is a no-op.
func (q *Query) Validate(et *model.EntityType) error {
	if et == nil {
		return fmt.Errorf("validate: nil entity type")
	}
	if q.validated && q.entityType == et {
		return nil
	}
	if q.resolver() == nil {
		return fmt.Errorf("validate %s: no property resolver configured", et.Name)
	}
	q.entityType = et
	q.invalidate()

	if err := q.resolveSelect(et); err != nil {
		return err
	}

	if err := q.validateExpands(et); err != nil {
		return err
	}
	q.reNestExpands()
	// Merging may have created sub-queries that have not been validated yet.
	if err := q.validateExpands(et); err != nil {
		return err
	}

	env := q.env(et)
	if err := checkFilter(q.filter, env); err != nil {
		return err
	}
	if err := checkFilter(q.skipFilter, env); err != nil {
		return err
	}

	pk := et.PrimaryKey
	q.pkOrder = false
	for _, o := range q.orderBy {
		if o.Expression == nil {
			return qerr.New(qerr.KindInvalidOrderExpression, "missing order expression")
		}
		if _, err := expr.CompileOrder(o.Expression, env); err != nil {
			return qerr.Wrap(qerr.KindInvalidOrderExpression, err, "invalid $orderby %s", o.ToURL())
		}
		if q.isPrimaryKey(et, o.Expression) {
			q.pkOrder = true
		}
	}

	if q.defaults().AlwaysOrder && !q.pkOrder && !q.selectDistinct {
		q.orderBy = append(q.orderBy, Asc(expr.NewPath(pk.Name)))
		q.pkOrder = true
		q.logger().Debug().
			Str("query", q.id).
			Str("entity_type", et.Name).
			Msg("primary key order injected")
	}

	q.validated = true
	q.invalidate()
	return nil
}

// isPrimaryKey reports whether e is a bare path to the primary key of et,
// however the client spelled it.
func (q *Query) isPrimaryKey(et *model.EntityType, e expr.Expression) bool {
	path, ok := e.(*expr.Path)
	if !ok || len(path.Segments) != 1 {
		return false
	}
	prop, ok := q.resolver().Property(et, path.Segments[0])
	return ok && prop == model.Property(et.PrimaryKey)
}

func (q *Query) resolver() model.PropertyResolver {
	if q.settings == nil {
		return nil
	}
	return q.settings.Resolver
}

func (q *Query) logger() *zerolog.Logger {
	if q.settings == nil {
		l := zerolog.Nop()
		return &l
	}
	return &q.settings.Logger
}

func (q *Query) env(et *model.EntityType) expr.Env {
	return expr.Env{Type: et, Resolver: q.resolver(), Admin: q.principal.Admin}
}

// Env returns the expression environment of a validated query.
func (q *Query) Env() expr.Env { return q.env(q.entityType) }

func checkFilter(e expr.Expression, env expr.Env) error {
	if e == nil {
		return nil
	}
	t, err := expr.Check(e, env)
	if err != nil {
		return qerr.Wrap(qerr.KindInvalidFilterExpression, err, "invalid $filter %s", e.ToURL())
	}
	if !expr.IsBoolean(t) {
		return qerr.New(qerr.KindInvalidFilterExpression, "$filter %s is %s, want Boolean", e.ToURL(), t)
	}
	return nil
}

// resolveSelect turns raw select tokens into properties of et.
func (q *Query) resolveSelect(et *model.EntityType) error {
	if len(q.rawSelect) == 0 {
		return nil
	}
	if len(q.selectProps) > 0 && !q.selectFromRaw {
		return qerr.NewPlaceholderConflict()
	}

	var props []model.Property
	for _, token := range q.rawSelect {
		p, err := q.resolveSelectToken(et, token)
		if err != nil {
			return err
		}
		props = appendProperty(props, p)
	}
	q.selectProps, q.selectFromRaw = props, true
	return nil
}

func (q *Query) resolveSelectToken(et *model.EntityType, token string) (model.Property, error) {
	if token == model.SelfLink.Name {
		return model.SelfLink, nil
	}
	parts := strings.Split(token, "/")
	prop, ok := q.resolver().Property(et, parts[0])
	if !ok || (model.IsAdminOnly(prop) && !q.principal.Admin) {
		return nil, qerr.NewInvalidSelect(token, et.Name)
	}

	switch p := prop.(type) {
	case *model.NavigationProperty:
		if len(parts) > 1 {
			return nil, qerr.NewInvalidSelect(token, et.Name)
		}
		return p, nil
	case *model.EntityProperty:
		if len(parts) == 1 {
			return p, nil
		}
		if !p.HasCustomProperties() {
			return nil, qerr.NewInvalidSelect(token, et.Name)
		}
		return &model.CustomSelect{Base: p, SubPath: parts[1:]}, nil
	}
	return nil, qerr.NewInvalidSelect(token, et.Name)
}

func (q *Query) validateExpands(et *model.EntityType) error {
	for _, e := range q.expand {
		if err := e.validate(q, et); err != nil {
			return err
		}
	}
	return nil
}

// reNestExpands drops expands whose first segment repeats an earlier
// single-segment expand, merging their nested expands into the kept one.
// Only the expand lists merge; other options of the dropped expand are
// discarded.
func (q *Query) reNestExpands() {
	kept := make(map[string]*Expand)
	out := q.expand[:0]
	for _, e := range q.expand {
		raw := e.path.segments()
		first := raw[0]

		target, seen := kept[first]
		if !seen {
			if len(raw) == 1 {
				kept[first] = e
			}
			out = append(out, e)
			continue
		}

		if e.subQuery != nil && len(e.subQuery.expand) > 0 {
			sub := target.SubQuery()
			sub.AddExpand(e.subQuery.expand...)
			sub.reNestExpands()
		}
		q.logger().Debug().
			Str("query", q.id).
			Str("path", strings.Join(raw, "/")).
			Msg("expand merged")
	}
	clear(q.expand[len(out):])
	q.expand = out
}
