package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/query"
	"github.com/roach88/staquery/internal/querysql"
)

// Result is the outcome of fetching a query.
type Result struct {
	// Count is the total number of matching entities, ignoring paging.
	// Nil unless the query asked for a count.
	Count *int64

	Entities []Entity

	// Statements counts the SQL statements executed.
	Statements int
}

// NavigationLinkSuffix is appended to a navigation property name to key its
// link in fetched entities.
const NavigationLinkSuffix = "@iot.navigationLink"

// CountSuffix is appended to an expanded set's name to key its count.
const CountSuffix = "@iot.count"

// Fetch runs a validated query and its expands against the store.
func (s *Store) Fetch(ctx context.Context, q *query.Query) (*Result, error) {
	if !q.IsValidated() {
		return nil, fmt.Errorf("fetch: query is not validated")
	}
	f := &fetcher{store: s}
	entities, count, err := f.fetch(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Count: count, Entities: entities, Statements: f.statements}, nil
}

type fetcher struct {
	store      *Store
	statements int
}

// row is a scanned row keyed by column name.
type row map[string]any

func (f *fetcher) fetch(ctx context.Context, q *query.Query, link *querysql.ParentLink) ([]Entity, *int64, error) {
	et := q.EntityType()
	sel, err := querysql.Plan(q, link)
	if err != nil {
		return nil, nil, err
	}

	var count *int64
	if q.CountOrDefault() {
		query, args, err := querysql.NewCompiler().CompileCount(sel)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch %s: %w", et.Name, err)
		}
		var n int64
		f.statements++
		f.store.log.Debug().Str("sql", query).Interface("args", args).Msg("count")
		if err := f.store.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, nil, fmt.Errorf("count %s: %w", et.Name, err)
		}
		count = &n
	}

	query, args, err := querysql.NewCompiler().Compile(sel)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", et.Name, err)
	}
	f.statements++
	rows, err := f.store.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", et.Name, err)
	}
	scanned, err := scanRows(rows, sel.Columns)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", et.Name, err)
	}

	entities := make([]Entity, 0, len(scanned))
	for _, r := range scanned {
		e, err := f.entity(ctx, q, r)
		if err != nil {
			return nil, nil, err
		}
		entities = append(entities, e)
	}
	return entities, count, nil
}

func scanRows(rows *sql.Rows, columns []string) ([]row, error) {
	defer rows.Close()

	var out []row
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r := make(row, len(columns))
		for i, c := range columns {
			r[c] = vals[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// entity builds the response entity of a row: selected attributes,
// navigation links and expanded relations.
func (f *fetcher) entity(ctx context.Context, q *query.Query, r row) (Entity, error) {
	et := q.EntityType()
	settings := q.Settings()
	inExpand := q.ParentExpand() != nil
	id := r[et.PrimaryKey.Column()]
	e := Entity{}

	for _, p := range q.SelectedEntityProperties(inExpand) {
		switch p := p.(type) {
		case *model.EntityProperty:
			switch {
			case p == model.SelfLink:
				e[p.Name] = settings.SelfLink(et, id)
			case p == et.PrimaryKey:
				e[IDKey] = id
			default:
				v, err := decodeProperty(p, r)
				if err != nil {
					return nil, fmt.Errorf("decode %s.%s: %w", et.Name, p.Name, err)
				}
				e[p.Name] = v
			}
		case *model.CustomSelect:
			v, err := decodeProperty(p.Base, r)
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", et.Name, p.Base.Name, err)
			}
			e[p.PropertyName()] = member(v, p.SubPath)
		}
	}

	expanded := map[string]bool{}
	for _, x := range q.Expands() {
		nav, ok := x.Navigation().(*model.NavigationProperty)
		if !ok {
			continue
		}
		expanded[nav.Name] = true
		if err := f.expand(ctx, q, x, nav, r, e); err != nil {
			return nil, err
		}
	}

	if q.Metadata() != query.MetadataOff && !q.IsReferenceOnly() {
		for _, nav := range q.SelectedNavigationProperties(inExpand) {
			if expanded[nav.PropertyName()] {
				continue
			}
			e[nav.PropertyName()+NavigationLinkSuffix] = settings.NavigationLink(et, id, nav)
		}
	}
	return e, nil
}

func (f *fetcher) expand(ctx context.Context, q *query.Query, x *query.Expand, nav *model.NavigationProperty, r row, e Entity) error {
	sub := x.SubQuery()
	if !sub.IsValidated() {
		if sub.Metadata() == query.MetadataUnset {
			sub.SetMetadata(q.Metadata())
		}
		if err := sub.Validate(nav.Target); err != nil {
			return err
		}
	}

	link := &querysql.ParentLink{Navigation: nav, Key: r[q.EntityType().PrimaryKey.Column()]}
	if nav.ForeignKey != "" {
		link.Key = r[nav.ForeignKey]
		if link.Key == nil {
			e[nav.Name] = nil
			return nil
		}
	}

	related, count, err := f.fetch(ctx, sub, link)
	if err != nil {
		return err
	}
	if !nav.IsSet {
		if len(related) == 0 {
			e[nav.Name] = nil
		} else {
			e[nav.Name] = related[0]
		}
		return nil
	}
	e[nav.Name] = related
	if count != nil {
		e[nav.Name+CountSuffix] = *count
	}
	return nil
}

// decodeProperty converts the stored columns of an attribute back to its
// value.
func decodeProperty(p *model.EntityProperty, r row) (any, error) {
	switch p.Type {
	case model.TypeDateTime:
		ms, ok, err := millis(r[p.Column()])
		if err != nil || !ok {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil

	case model.TypeTimeInterval:
		start, ok, err := millis(r[p.Columns[0]])
		if err != nil || !ok {
			return nil, err
		}
		end, ok, err := millis(r[p.Columns[1]])
		if err != nil || !ok {
			return nil, err
		}
		return Interval{Start: time.UnixMilli(start).UTC(), End: time.UnixMilli(end).UTC()}, nil

	case model.TypeObject, model.TypeGeometry:
		text, ok := asText(r[p.Column()])
		if !ok {
			return r[p.Column()], nil
		}
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			if p.Type == model.TypeGeometry {
				return text, nil
			}
			return nil, err
		}
		return v, nil

	case model.TypeBoolean:
		switch v := r[p.Column()].(type) {
		case int64:
			return v != 0, nil
		case nil:
			return nil, nil
		default:
			return v, nil
		}
	}

	if text, ok := asText(r[p.Column()]); ok {
		return text, nil
	}
	return r[p.Column()], nil
}

func millis(v any) (int64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return x, true, nil
	case float64:
		return int64(x), true, nil
	}
	return 0, false, fmt.Errorf("expected milliseconds, got %T", v)
}

func asText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}

// member walks a decoded JSON document along path.
func member(doc any, path []string) any {
	for _, key := range path {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil
		}
		doc = obj[key]
	}
	return doc
}
