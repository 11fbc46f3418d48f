package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/staquery/internal/model"
)

// Entity is one entity keyed by property name. The primary key is keyed by
// its property name on input and by IDKey on output.
type Entity map[string]any

// IDKey is the key of an entity's primary key in fetched entities.
const IDKey = "@iot.id"

// Interval is a TimeInterval attribute value.
type Interval struct {
	Start, End time.Time
}

// String renders the interval as ISO 8601 start/end. Instants render as a
// single time.
func (iv Interval) String() string {
	if iv.Start.Equal(iv.End) {
		return iv.Start.UTC().Format(time.RFC3339Nano)
	}
	return iv.Start.UTC().Format(time.RFC3339Nano) + "/" + iv.End.UTC().Format(time.RFC3339Nano)
}

// MarshalJSON renders the interval as its ISO 8601 string.
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(iv.String())
}

// ParseInterval parses an ISO 8601 start/end interval or a single instant.
func ParseInterval(s string) (Interval, error) {
	start, end, found := strings.Cut(s, "/")
	st, err := time.Parse(time.RFC3339Nano, start)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval start %q: %w", start, err)
	}
	if !found {
		return Interval{Start: st, End: st}, nil
	}
	en, err := time.Parse(time.RFC3339Nano, end)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval end %q: %w", end, err)
	}
	return Interval{Start: st, End: en}, nil
}

// Insert stores an entity of the named type and returns its primary key.
// Attributes are keyed by property name; to-one navigation properties take
// the id of the related entity. An id is generated when none is given.
func (s *Store) Insert(ctx context.Context, entityType string, e Entity) (int64, error) {
	et, ok := s.registry.EntityType(entityType)
	if !ok {
		return 0, fmt.Errorf("insert: unknown entity type %q", entityType)
	}

	var cols []string
	var vals []any
	for _, key := range slices.Sorted(maps.Keys(e)) {
		v := e[key]
		p, ok := et.Property(key)
		if !ok {
			return 0, fmt.Errorf("insert %s: unknown property %q", et.Name, key)
		}
		switch p := p.(type) {
		case *model.EntityProperty:
			encoded, err := encodeProperty(p, v)
			if err != nil {
				return 0, fmt.Errorf("insert %s: %w", et.Name, err)
			}
			cols = append(cols, p.Columns...)
			vals = append(vals, encoded...)
		case *model.NavigationProperty:
			if p.ForeignKey == "" {
				return 0, fmt.Errorf("insert %s: %s is not a to-one navigation, use Link", et.Name, p.Name)
			}
			cols = append(cols, p.ForeignKey)
			vals = append(vals, v)
		default:
			return 0, fmt.Errorf("insert %s: cannot store %s", et.Name, key)
		}
	}

	query, args := "INSERT INTO "+et.Table+" DEFAULT VALUES", []any(nil)
	if len(cols) > 0 {
		var err error
		query, args, err = sq.Insert(et.Table).Columns(cols...).Values(vals...).ToSql()
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", et.Name, err)
		}
	}

	s.log.Debug().Str("sql", query).Msg("insert")
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", et.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", et.Name, err)
	}
	return id, nil
}

// Link relates two stored entities through a navigation property of the
// source entity type.
//
// Link is idempotent for many-to-many relations.
func (s *Store) Link(ctx context.Context, entityType string, id int64, navigation string, targetID int64) error {
	et, ok := s.registry.EntityType(entityType)
	if !ok {
		return fmt.Errorf("link: unknown entity type %q", entityType)
	}
	p, ok := et.Property(navigation)
	if !ok {
		return fmt.Errorf("link %s: unknown navigation %q", et.Name, navigation)
	}
	nav, ok := p.(*model.NavigationProperty)
	if !ok {
		return fmt.Errorf("link %s: %s is not a navigation property", et.Name, navigation)
	}

	var b sq.Sqlizer
	switch {
	case nav.ForeignKey != "":
		b = sq.Update(et.Table).
			Set(nav.ForeignKey, targetID).
			Where(sq.Eq{et.PrimaryKey.Column(): id})
	case nav.MappedBy != "":
		b = sq.Update(nav.Target.Table).
			Set(nav.MappedBy, id).
			Where(sq.Eq{nav.Target.PrimaryKey.Column(): targetID})
	case nav.Link.Table != "":
		b = sq.Insert(nav.Link.Table).
			Options("OR IGNORE").
			Columns(nav.Link.Source, nav.Link.Target).
			Values(id, targetID)
	default:
		return fmt.Errorf("link %s: navigation %s has no storage", et.Name, nav.Name)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("link %s/%s: %w", et.Name, nav.Name, err)
	}
	s.log.Debug().Str("sql", query).Msg("link")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("link %s/%s: %w", et.Name, nav.Name, err)
	}
	return nil
}

// encodeProperty converts an attribute value to its column values.
func encodeProperty(p *model.EntityProperty, v any) ([]any, error) {
	if len(p.Columns) == 0 {
		return nil, fmt.Errorf("%s is not stored", p.Name)
	}
	if v == nil {
		out := make([]any, len(p.Columns))
		return out, nil
	}

	switch p.Type {
	case model.TypeDateTime:
		t, err := asTime(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		return []any{t.UnixMilli()}, nil

	case model.TypeTimeInterval:
		iv, err := asInterval(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		return []any{iv.Start.UnixMilli(), iv.End.UnixMilli()}, nil

	case model.TypeObject, model.TypeGeometry:
		if s, ok := v.(string); ok && p.Type == model.TypeGeometry {
			return []any{s}, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		return []any{string(data)}, nil

	case model.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s: expected boolean, got %T", p.Name, v)
		}
		return []any{b}, nil
	}
	return []any{v}, nil
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	}
	return time.Time{}, fmt.Errorf("expected time, got %T", v)
}

func asInterval(v any) (Interval, error) {
	switch t := v.(type) {
	case Interval:
		return t, nil
	case time.Time:
		return Interval{Start: t, End: t}, nil
	case string:
		return ParseInterval(t)
	}
	return Interval{}, fmt.Errorf("expected interval, got %T", v)
}
