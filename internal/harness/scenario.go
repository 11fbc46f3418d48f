package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/staquery/internal/service"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Request is resolved, or executed when the scenario needs a store.
	Request service.Request `yaml:"request"`

	// Seed lists entities stored before the request executes.
	Seed []SeedStep `yaml:"seed,omitempty"`

	// Expect is the expected outcome.
	Expect Expect `yaml:"expect"`
}

// SeedStep stores one entity or links two stored ones. Exactly one of
// Insert and Link is set.
type SeedStep struct {
	// Insert is the entity type to store.
	Insert string `yaml:"insert,omitempty"`

	// As names the stored entity for later Refs and Links.
	As string `yaml:"as,omitempty"`

	// Entity holds property values keyed by property name.
	Entity map[string]any `yaml:"entity,omitempty"`

	// Refs maps to-one navigation properties to earlier aliases.
	Refs map[string]string `yaml:"refs,omitempty"`

	Link *LinkStep `yaml:"link,omitempty"`
}

// LinkStep relates two seeded entities through a navigation property of
// the From entity.
type LinkStep struct {
	From       string `yaml:"from"`
	Navigation string `yaml:"navigation"`
	To         string `yaml:"to"`
}

// Expect specifies the expected outcome. Unset fields are not checked.
type Expect struct {
	URL  string `yaml:"url,omitempty"`
	SQL  string `yaml:"sql,omitempty"`
	Args []any  `yaml:"args,omitempty"`

	// Error is the expected error kind.
	Error string `yaml:"error,omitempty"`

	// Portable, when set, checks whether the plan uses dialect-specific
	// features.
	Portable *bool `yaml:"portable,omitempty"`

	Count    *int64           `yaml:"count,omitempty"`
	Entities []map[string]any `yaml:"entities,omitempty"`
}

// IsZero reports whether nothing is expected.
func (e Expect) IsZero() bool {
	return e.URL == "" && e.SQL == "" && e.Args == nil && e.Error == "" &&
		e.Portable == nil && e.Count == nil && e.Entities == nil
}

// Executes reports whether the scenario runs against a store.
func (s *Scenario) Executes() bool {
	return len(s.Seed) > 0 || s.Expect.Count != nil || s.Expect.Entities != nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario is LoadScenario for in-memory YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Request.EntityType == "" {
		return fmt.Errorf("request.entity_type is required")
	}
	if s.Expect.IsZero() {
		return fmt.Errorf("expect must check at least one outcome")
	}
	if s.Expect.Error != "" && (s.Expect.URL != "" || s.Expect.SQL != "" || s.Expect.Args != nil ||
		s.Expect.Count != nil || s.Expect.Entities != nil) {
		return fmt.Errorf("expect.error excludes url, sql, args, count and entities")
	}

	aliases := make(map[string]bool)
	for i, step := range s.Seed {
		switch {
		case step.Insert != "" && step.Link != nil:
			return fmt.Errorf("seed[%d]: insert and link are mutually exclusive", i)
		case step.Insert != "":
			for nav, alias := range step.Refs {
				if !aliases[alias] {
					return fmt.Errorf("seed[%d].refs.%s: unknown alias %q", i, nav, alias)
				}
			}
			if step.As != "" {
				if aliases[step.As] {
					return fmt.Errorf("seed[%d]: duplicate alias %q", i, step.As)
				}
				aliases[step.As] = true
			}
		case step.Link != nil:
			if step.Link.Navigation == "" {
				return fmt.Errorf("seed[%d].link: navigation is required", i)
			}
			for _, alias := range []string{step.Link.From, step.Link.To} {
				if !aliases[alias] {
					return fmt.Errorf("seed[%d].link: unknown alias %q", i, alias)
				}
			}
		default:
			return fmt.Errorf("seed[%d]: insert or link is required", i)
		}
	}
	return nil
}
