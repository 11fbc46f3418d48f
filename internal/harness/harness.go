package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/rs/zerolog"

	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/qerr"
	"github.com/roach88/staquery/internal/query"
	"github.com/roach88/staquery/internal/service"
	"github.com/roach88/staquery/internal/store"
	"github.com/roach88/staquery/internal/testutil"
)

// Harness runs scenarios against one entity model.
type Harness struct {
	registry *model.Registry
	defaults query.Defaults
	logger   zerolog.Logger
}

// New creates a Harness. A nil registry selects the built-in model.
func New(reg *model.Registry) (*Harness, error) {
	if reg == nil {
		var err error
		if reg, err = model.Default(); err != nil {
			return nil, fmt.Errorf("failed to load entity model: %w", err)
		}
	}
	return &Harness{
		registry: reg,
		defaults: query.StandardDefaults(),
		logger:   zerolog.Nop(),
	}, nil
}

// WithDefaults sets the query defaults scenarios resolve with.
func (h *Harness) WithDefaults(d query.Defaults) *Harness {
	h.defaults = d
	return h
}

// WithLogger sets the logger passed to the service and store.
func (h *Harness) WithLogger(l zerolog.Logger) *Harness {
	h.logger = l
	return h
}

// Run executes a scenario with the built-in model and standard defaults.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := New(nil)
	if err != nil {
		return nil, err
	}
	return h.Run(ctx, scenario)
}

// Run executes a test scenario and returns the result.
//
// Each executing scenario runs in a fresh in-memory database for
// isolation. Query ids restart at 1 for every scenario.
//
// A returned error means the scenario could not run at all; expectation
// failures are reported in the Result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	ids := testutil.NewSequentialIDs()
	opts := []service.Option{
		service.WithIDGenerator(ids.Next),
		service.WithLogger(h.logger),
	}

	if scenario.Executes() {
		st, err := store.Open("", h.registry)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		st.WithLogger(h.logger)

		if err := seed(ctx, st, scenario.Seed); err != nil {
			return nil, fmt.Errorf("failed to seed store: %w", err)
		}
		opts = append(opts, service.WithStore(st))
	}
	svc := service.New(h.registry, h.defaults, opts...)

	result := NewResult(scenario.Name)
	snap := &result.Snapshot

	var res *service.Resolution
	var err error
	if scenario.Executes() {
		var exec *service.Execution
		if exec, err = svc.Execute(ctx, scenario.Request); err == nil {
			res = exec.Resolution
			snap.Count = exec.Count
			entities, nerr := normalize(exec.Entities)
			if nerr != nil {
				return nil, fmt.Errorf("failed to normalize entities: %w", nerr)
			}
			snap.Entities = asList(entities)
		}
	} else {
		res, err = svc.Resolve(ctx, scenario.Request)
	}

	if err != nil {
		snap.Error = string(qerr.KindOf(err))
		if snap.Error == "" {
			snap.Error = err.Error()
		}
	} else {
		args, nerr := normalize(res.Args)
		if nerr != nil {
			return nil, fmt.Errorf("failed to normalize args: %w", nerr)
		}
		snap.ID = res.ID
		snap.URL = res.URL
		snap.SQL = res.SQL
		snap.Args = asList(args)
		snap.Warnings = res.Warnings
	}

	for _, msg := range EvaluateExpectations(snap, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

type seeded struct {
	entityType string
	id         int64
}

// seed executes the seed steps in order.
func seed(ctx context.Context, st *store.Store, steps []SeedStep) error {
	aliases := make(map[string]seeded)
	for i, step := range steps {
		if step.Link != nil {
			from, to := aliases[step.Link.From], aliases[step.Link.To]
			if err := st.Link(ctx, from.entityType, from.id, step.Link.Navigation, to.id); err != nil {
				return fmt.Errorf("seed[%d]: %w", i, err)
			}
			continue
		}

		e := store.Entity(maps.Clone(step.Entity))
		if e == nil {
			e = store.Entity{}
		}
		for nav, alias := range step.Refs {
			e[nav] = aliases[alias].id
		}
		id, err := st.Insert(ctx, step.Insert, e)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		if step.As != "" {
			aliases[step.As] = seeded{entityType: step.Insert, id: id}
		}
	}
	return nil
}

// normalize converts v to its generic JSON form.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}
