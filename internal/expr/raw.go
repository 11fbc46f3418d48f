package expr

import (
	"fmt"
	"strings"
	"time"
)

// Raw is the serialized form of an expression tree as it appears in YAML or
// JSON requests. Exactly one of the fields is set per node:
//
//	{fn: gt, args: [{path: Result}, {int: 5}]}
//	{fn: overlaps, args: [{path: PhenomenonTime}, {interval: "2024-01-01T00:00:00Z/2024-02-01T00:00:00Z"}]}
//	{fn: lt, args: [{fn: sub, args: [{path: ResultTime}, {path: PhenomenonTime}]}, {duration: PT1H}]}
type Raw struct {
	Fn       string   `yaml:"fn,omitempty" json:"fn,omitempty"`
	Args     []Raw    `yaml:"args,omitempty" json:"args,omitempty"`
	Path     string   `yaml:"path,omitempty" json:"path,omitempty"`
	String   *string  `yaml:"string,omitempty" json:"string,omitempty"`
	Int      *int64   `yaml:"int,omitempty" json:"int,omitempty"`
	Double   *float64 `yaml:"double,omitempty" json:"double,omitempty"`
	Bool     *bool    `yaml:"bool,omitempty" json:"bool,omitempty"`
	DateTime string   `yaml:"datetime,omitempty" json:"datetime,omitempty"`
	Duration string   `yaml:"duration,omitempty" json:"duration,omitempty"`
	Interval string   `yaml:"interval,omitempty" json:"interval,omitempty"`
	Null     bool     `yaml:"null,omitempty" json:"null,omitempty"`
}

// Build converts the serialized form into an expression tree.
func (r Raw) Build() (Expression, error) {
	set := 0
	for _, ok := range []bool{
		r.Fn != "", r.Path != "", r.String != nil, r.Int != nil, r.Double != nil,
		r.Bool != nil, r.DateTime != "", r.Duration != "", r.Interval != "", r.Null,
	} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("expression node must set exactly one field, got %d", set)
	}

	switch {
	case r.Fn != "":
		args := make([]Expression, len(r.Args))
		for i, a := range r.Args {
			e, err := a.Build()
			if err != nil {
				return nil, fmt.Errorf("%s argument %d: %w", r.Fn, i+1, err)
			}
			args[i] = e
		}
		return Fn(r.Fn, args...), nil
	case r.Path != "":
		return NewPath(r.Path), nil
	case r.String != nil:
		return String(*r.String), nil
	case r.Int != nil:
		return Int(*r.Int), nil
	case r.Double != nil:
		return Double(*r.Double), nil
	case r.Bool != nil:
		return Bool(*r.Bool), nil
	case r.DateTime != "":
		t, err := time.Parse(time.RFC3339Nano, r.DateTime)
		if err != nil {
			return nil, fmt.Errorf("datetime: %w", err)
		}
		return DateTime(t), nil
	case r.Duration != "":
		d, err := ParseDuration(r.Duration)
		if err != nil {
			return nil, fmt.Errorf("duration %q: %w", r.Duration, err)
		}
		return d, nil
	case r.Interval != "":
		start, end, ok := strings.Cut(r.Interval, "/")
		if !ok {
			return nil, fmt.Errorf("interval %q: want start/end", r.Interval)
		}
		s, err := time.Parse(time.RFC3339Nano, start)
		if err != nil {
			return nil, fmt.Errorf("interval start: %w", err)
		}
		e, err := time.Parse(time.RFC3339Nano, end)
		if err != nil {
			return nil, fmt.Errorf("interval end: %w", err)
		}
		return Interval(s, e), nil
	}
	return Null(), nil
}
