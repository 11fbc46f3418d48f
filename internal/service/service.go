// Package service resolves client requests into validated queries, SQL
// plans and, when a store is attached, result entities.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roach88/staquery/internal/metrics"
	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/qerr"
	"github.com/roach88/staquery/internal/query"
	"github.com/roach88/staquery/internal/queryir"
	"github.com/roach88/staquery/internal/querysql"
	"github.com/roach88/staquery/internal/store"
)

// Request is one query request in its serialized form:
//
//	entity_type: Things
//	user: alice
//	query:
//	  top: 5
//	  filter: {fn: eq, args: [{path: Name}, {string: lamp}]}
type Request struct {
	// EntityType is the entity type name or its plural (entity set).
	EntityType string        `yaml:"entity_type" json:"entity_type"`
	User       string        `yaml:"user,omitempty" json:"user,omitempty"`
	Admin      bool          `yaml:"admin,omitempty" json:"admin,omitempty"`
	Query      query.Options `yaml:"query,omitempty" json:"query,omitempty"`
}

// Principal returns the identity the request is resolved for.
func (r Request) Principal() query.Principal {
	if r.User == "" && !r.Admin {
		return query.Anonymous
	}
	return query.Principal{Name: r.User, Admin: r.Admin}
}

// Resolution is a validated request and its SQL plan.
type Resolution struct {
	ID         string
	EntityType *model.EntityType
	Query      *query.Query
	URL        string
	Plan       queryir.Select
	SQL        string
	Args       []any

	// Warnings lists the dialect-specific features the plan uses.
	Warnings []string
}

// Execution is a resolution run against the store.
type Execution struct {
	*Resolution

	Count      *int64
	Entities   []store.Entity
	Statements int
}

// Service resolves requests against one entity model.
type Service struct {
	registry *model.Registry
	settings *query.Settings
	store    *store.Store
	metrics  *metrics.Metrics
	log      zerolog.Logger
	newID    func() (uuid.UUID, error)
}

// Option configures a Service.
type Option func(*Service)

// WithStore attaches the store Execute runs against.
func WithStore(s *store.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithMetrics records validation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

// WithLogger sets the service logger. Query validation logs through the
// same logger.
func WithLogger(l zerolog.Logger) Option {
	return func(svc *Service) { svc.log = l }
}

// WithIDGenerator replaces uuid.NewV7 as the source of query ids.
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(svc *Service) { svc.newID = gen }
}

// New creates a Service for reg with the given query defaults.
func New(reg *model.Registry, defaults query.Defaults, opts ...Option) *Service {
	svc := &Service{
		registry: reg,
		log:      zerolog.Nop(),
		newID:    uuid.NewV7,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.settings = query.NewSettings(defaults, reg).WithLogger(svc.log.With().Str("component", "query").Logger())
	return svc
}

// Settings returns the settings queries are resolved with.
func (s *Service) Settings() *query.Settings {
	return s.settings
}

// EntityType looks up an entity type by name or plural.
func (s *Service) EntityType(name string) (*model.EntityType, error) {
	if et, ok := s.registry.EntityType(name); ok {
		return et, nil
	}
	return nil, qerr.New(qerr.KindUnknownPath, "unknown entity type %q", name).WithPath(name)
}

// Resolve validates a request and compiles its SQL plan.
func (s *Service) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	et, err := s.EntityType(req.EntityType)
	if err != nil {
		s.record(req.EntityType, 0, err)
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate query id: %w", err)
	}

	q, err := req.Query.Build(s.settings, req.Principal())
	if err != nil {
		s.record(et.Name, 0, err)
		return nil, err
	}
	q.SetID(id.String())

	if err := q.Validate(et); err != nil {
		s.record(et.Name, 0, err)
		s.log.Warn().
			Str("query", id.String()).
			Str("entity_type", et.Name).
			Str("kind", string(qerr.KindOf(err))).
			Err(err).
			Msg("query rejected")
		return nil, err
	}
	depth := ExpandDepth(q)
	s.record(et.Name, depth, nil)

	plan, err := querysql.Plan(q, nil)
	if err != nil {
		return nil, err
	}
	sql, args, err := querysql.NewCompiler().Compile(plan)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		ID:         id.String(),
		EntityType: et,
		Query:      q,
		URL:        q.ToURL(false),
		Plan:       plan,
		SQL:        sql,
		Args:       args,
		Warnings:   queryir.Validate(plan).Warnings,
	}
	s.log.Info().
		Str("query", res.ID).
		Str("entity_type", et.Name).
		Str("url", res.URL).
		Int("expand_depth", depth).
		Msg("query resolved")
	return res, nil
}

// Execute resolves a request and runs it against the attached store.
func (s *Service) Execute(ctx context.Context, req Request) (*Execution, error) {
	if s.store == nil {
		return nil, fmt.Errorf("execute: no store attached")
	}
	res, err := s.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	fetched, err := s.store.Fetch(ctx, res.Query)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", res.ID, err)
	}
	if s.metrics != nil {
		s.metrics.RecordRows(res.EntityType.Name, len(fetched.Entities))
	}
	s.log.Debug().
		Str("query", res.ID).
		Int("entities", len(fetched.Entities)).
		Int("statements", fetched.Statements).
		Msg("query executed")

	return &Execution{
		Resolution: res,
		Count:      fetched.Count,
		Entities:   fetched.Entities,
		Statements: fetched.Statements,
	}, nil
}

func (s *Service) record(entityType string, depth int, err error) {
	if s.metrics != nil {
		s.metrics.RecordValidation(entityType, depth, err)
	}
}

// ExpandDepth returns the nesting depth of the expand tree of q.
func ExpandDepth(q *query.Query) int {
	depth := 0
	for _, e := range q.Expands() {
		d := 1
		if e.HasSubQuery() {
			d += ExpandDepth(e.SubQuery())
		}
		depth = max(depth, d)
	}
	return depth
}
