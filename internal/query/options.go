package query

import (
	"fmt"

	"github.com/roach88/staquery/internal/expr"
)

// Options is the serialized form of a query as it appears in YAML or JSON
// requests:
//
//	top: 5
//	select: [Name, Description]
//	filter: {fn: eq, args: [{path: Name}, {string: lamp}]}
//	expand:
//	  - path: Datastreams/Observations
//	    top: 1
//	orderby:
//	  - {path: Name, desc: true}
type Options struct {
	Top        *int            `yaml:"top,omitempty" json:"top,omitempty"`
	Skip       *int            `yaml:"skip,omitempty" json:"skip,omitempty"`
	Count      *bool           `yaml:"count,omitempty" json:"count,omitempty"`
	Select     []string        `yaml:"select,omitempty" json:"select,omitempty"`
	Distinct   bool            `yaml:"distinct,omitempty" json:"distinct,omitempty"`
	Filter     *expr.Raw       `yaml:"filter,omitempty" json:"filter,omitempty"`
	SkipFilter *expr.Raw       `yaml:"skip_filter,omitempty" json:"skip_filter,omitempty"`
	Expand     []ExpandOptions `yaml:"expand,omitempty" json:"expand,omitempty"`
	OrderBy    []OrderOptions  `yaml:"orderby,omitempty" json:"orderby,omitempty"`
	Format     string          `yaml:"result_format,omitempty" json:"result_format,omitempty"`
	Metadata   string          `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Ref        bool            `yaml:"ref,omitempty" json:"ref,omitempty"`
}

// ExpandOptions is one $expand entry with its nested options.
type ExpandOptions struct {
	Path    string `yaml:"path" json:"path"`
	Options `yaml:",inline"`
}

// OrderOptions is one $orderby entry.
type OrderOptions struct {
	expr.Raw `yaml:",inline"`
	Desc     bool `yaml:"desc,omitempty" json:"desc,omitempty"`
}

// IsZero reports whether no option is set.
func (o Options) IsZero() bool {
	return o.Top == nil && o.Skip == nil && o.Count == nil && len(o.Select) == 0 &&
		!o.Distinct && o.Filter == nil && o.SkipFilter == nil && len(o.Expand) == 0 &&
		len(o.OrderBy) == 0 && o.Format == "" && o.Metadata == "" && !o.Ref
}

// Build creates an unvalidated Query from the options.
func (o Options) Build(settings *Settings, principal Principal) (*Query, error) {
	q := New(settings, principal)
	if err := o.apply(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (o Options) apply(q *Query) error {
	if o.Top != nil {
		if *o.Top < 0 {
			return fmt.Errorf("top: must not be negative, got %d", *o.Top)
		}
		q.SetTop(*o.Top)
	}
	if o.Skip != nil {
		if *o.Skip < 0 {
			return fmt.Errorf("skip: must not be negative, got %d", *o.Skip)
		}
		q.SetSkip(*o.Skip)
	}
	if o.Count != nil {
		q.SetCount(*o.Count)
	}
	if len(o.Select) > 0 {
		if err := q.AddSelect(o.Select...); err != nil {
			return err
		}
	}
	q.SetSelectDistinct(o.Distinct)

	if o.Filter != nil {
		e, err := o.Filter.Build()
		if err != nil {
			return fmt.Errorf("filter: %w", err)
		}
		q.SetFilter(e)
	}
	if o.SkipFilter != nil {
		e, err := o.SkipFilter.Build()
		if err != nil {
			return fmt.Errorf("skip_filter: %w", err)
		}
		q.SetSkipFilter(e)
	}

	for i, eo := range o.Expand {
		if eo.Path == "" {
			return fmt.Errorf("expand %d: missing path", i+1)
		}
		e := NewExpand(eo.Path)
		q.AddExpand(e)
		if eo.Options.IsZero() {
			continue
		}
		if err := eo.Options.apply(e.SubQuery()); err != nil {
			return fmt.Errorf("expand %s: %w", eo.Path, err)
		}
	}

	for i, oo := range o.OrderBy {
		e, err := oo.Raw.Build()
		if err != nil {
			return fmt.Errorf("orderby %d: %w", i+1, err)
		}
		dir := Ascending
		if oo.Desc {
			dir = Descending
		}
		q.AddOrderBy(OrderBy{Expression: e, Direction: dir})
	}

	q.SetFormat(o.Format)
	m, err := ParseMetadata(o.Metadata)
	if err != nil {
		return err
	}
	q.SetMetadata(m)
	q.SetReferenceOnly(o.Ref)
	return nil
}
