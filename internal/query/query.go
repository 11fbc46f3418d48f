// Package query holds the query plan for one entity-type context: paging,
// selection, filters, ordering and the nested expand tree.
//
// A Query is built from client options, then validated against an entity
// type with Validate. Validation resolves select tokens and expand paths,
// de-duplicates expands, type-checks filter and order expressions and
// appends a primary-key order for stable paging. The validated Query is
// handed to a backend (querysql) for execution.
//
// Queries are request-local and not safe for concurrent use.
package query

import (
	"slices"

	"github.com/roach88/staquery/internal/expr"
	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/qerr"
)

// Query is the query plan for one entity-type context.
type Query struct {
	settings  *Settings
	principal Principal
	id        string

	entityType *model.EntityType

	top   *int
	skip  *int
	count *bool

	// Select is populated either from raw tokens, resolved during Validate,
	// or directly with resolved properties. The two are exclusive.
	rawSelect      []string
	selectProps    []model.Property
	selectFromRaw  bool
	selectDistinct bool

	filter     expr.Expression
	skipFilter expr.Expression
	expand     []*Expand
	orderBy    []OrderBy

	metadata Metadata
	format   string
	refOnly  bool
	pkOrder  bool

	parentExpand *Expand

	validated bool
	selection *selection
}

// New creates an empty Query resolved for principal.
func New(settings *Settings, principal Principal) *Query {
	return &Query{settings: settings, principal: principal}
}

// Settings returns the settings the query resolves against.
func (q *Query) Settings() *Settings { return q.settings }

// Principal returns the caller the query is resolved for.
func (q *Query) Principal() Principal { return q.principal }

// ID returns the diagnostic id set by SetID.
func (q *Query) ID() string { return q.id }

// EntityType returns the type of the last successful Validate, or nil.
func (q *Query) EntityType() *model.EntityType { return q.entityType }

// Filter returns the $filter expression.
func (q *Query) Filter() expr.Expression { return q.filter }

// SkipFilter returns the extra filter that pages past earlier results.
func (q *Query) SkipFilter() expr.Expression { return q.skipFilter }

// Expands returns the $expand list. After validation it is re-nested.
func (q *Query) Expands() []*Expand { return q.expand }

// OrderBy returns the $orderby list, including an injected primary key order.
func (q *Query) OrderBy() []OrderBy { return q.orderBy }

func (q *Query) Metadata() Metadata { return q.metadata }

// Format returns $resultFormat.
func (q *Query) Format() string { return q.format }

func (q *Query) IsSelectDistinct() bool { return q.selectDistinct }

// IsReferenceOnly reports whether the query serves a $ref request.
func (q *Query) IsReferenceOnly() bool { return q.refOnly }

// IsPkOrder reports whether the order list contains the primary key.
func (q *Query) IsPkOrder() bool { return q.pkOrder }

func (q *Query) IsValidated() bool { return q.validated }

// ParentExpand returns the expand owning this query, or nil at top level.
func (q *Query) ParentExpand() *Expand { return q.parentExpand }

// RawSelect returns a copy of the unresolved select tokens.
func (q *Query) RawSelect() []string { return slices.Clone(q.rawSelect) }

// SelectProperties returns a copy of the resolved select properties.
func (q *Query) SelectProperties() []model.Property { return slices.Clone(q.selectProps) }

// SetID tags the query for diagnostics.
func (q *Query) SetID(id string) { q.id = id }

func (q *Query) defaults() Defaults {
	if q.settings == nil {
		return StandardDefaults()
	}
	return q.settings.Defaults
}

// SetTop sets $top, silently clamping it to the range [0, TopMax].
func (q *Query) SetTop(n int) {
	n = max(n, 0)
	if limit := q.defaults().TopMax; limit > 0 && n > limit {
		n = limit
	}
	q.top = &n
}

// Top returns $top as set by the client.
func (q *Query) Top() (int, bool) {
	if q.top == nil {
		return 0, false
	}
	return *q.top, true
}

// TopOrDefault returns $top or the configured default.
func (q *Query) TopOrDefault() int {
	if q.top != nil {
		return *q.top
	}
	return q.defaults().TopDefault
}

// SetSkip sets $skip. Negative values become 0.
func (q *Query) SetSkip(n int) {
	n = max(n, 0)
	q.skip = &n
}

// Skip returns $skip as set by the client.
func (q *Query) Skip() (int, bool) {
	if q.skip == nil {
		return 0, false
	}
	return *q.skip, true
}

// SkipOr returns $skip or def.
func (q *Query) SkipOr(def int) int {
	if q.skip != nil {
		return *q.skip
	}
	return def
}

func (q *Query) SetCount(c bool) { q.count = &c }

// Count returns $count as set by the client.
func (q *Query) Count() (bool, bool) {
	if q.count == nil {
		return false, false
	}
	return *q.count, true
}

// CountOrDefault returns $count or the configured default.
func (q *Query) CountOrDefault() bool {
	if q.count != nil {
		return *q.count
	}
	return q.defaults().CountDefault
}

// AddSelect adds raw select tokens such as "Name" or "Properties/owner".
// They are resolved by Validate.
func (q *Query) AddSelect(tokens ...string) error {
	if len(q.selectProps) > 0 && !q.selectFromRaw {
		return qerr.NewPlaceholderConflict()
	}
	q.rawSelect = append(q.rawSelect, tokens...)
	q.markDirty()
	return nil
}

// AddSelectProperties adds already resolved properties.
func (q *Query) AddSelectProperties(props ...model.Property) error {
	if len(q.rawSelect) > 0 {
		return qerr.NewPlaceholderConflict()
	}
	for _, p := range props {
		q.selectProps = appendProperty(q.selectProps, p)
	}
	q.markDirty()
	return nil
}

func (q *Query) SetSelectDistinct(distinct bool) {
	q.selectDistinct = distinct
	q.markDirty()
}

func (q *Query) SetFilter(e expr.Expression) {
	q.filter = e
	q.markDirty()
}

func (q *Query) SetSkipFilter(e expr.Expression) {
	q.skipFilter = e
	q.markDirty()
}

// AddExpand appends expands and makes q their parent.
func (q *Query) AddExpand(expands ...*Expand) {
	for _, e := range expands {
		e.parentQuery = q
		q.expand = append(q.expand, e)
	}
	q.markDirty()
}

func (q *Query) AddOrderBy(orders ...OrderBy) {
	q.orderBy = append(q.orderBy, orders...)
	q.markDirty()
}

func (q *Query) SetMetadata(m Metadata) {
	q.metadata = m
	q.invalidate()
}

func (q *Query) SetFormat(format string) { q.format = format }

// SetReferenceOnly marks the query as a $ref request: only self links are
// selected.
func (q *Query) SetReferenceOnly(ref bool) {
	q.refOnly = ref
	q.invalidate()
}

// markDirty forces the next Validate to run again.
func (q *Query) markDirty() {
	q.validated = false
	q.invalidate()
}

// selectNames returns the distinct, sorted names used in $select.
func (q *Query) selectNames() []string {
	var names []string
	if len(q.selectProps) > 0 {
		for _, p := range q.selectProps {
			names = append(names, p.PropertyName())
		}
	} else {
		names = slices.Clone(q.rawSelect)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Equal reports whether two queries request the same thing.
func (q *Query) Equal(other *Query) bool {
	if q == nil || other == nil {
		return q == other
	}
	return equalPtr(q.top, other.top) &&
		equalPtr(q.skip, other.skip) &&
		equalPtr(q.count, other.count) &&
		slices.Equal(q.selectNames(), other.selectNames()) &&
		q.selectDistinct == other.selectDistinct &&
		expr.Equal(q.filter, other.filter) &&
		expr.Equal(q.skipFilter, other.skipFilter) &&
		slices.EqualFunc(q.expand, other.expand, (*Expand).Equal) &&
		slices.EqualFunc(q.orderBy, other.orderBy, OrderBy.Equal) &&
		q.format == other.format &&
		q.metadata == other.metadata
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func appendProperty(props []model.Property, p model.Property) []model.Property {
	for _, existing := range props {
		if existing.PropertyName() == p.PropertyName() {
			return props
		}
	}
	return append(props, p)
}
