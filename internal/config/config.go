// Package config loads staquery configuration from YAML with environment
// variable overrides.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides (STAQUERY_SECTION_FIELD)
//  4. Validate final configuration
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/staquery/internal/logger"
	"github.com/roach88/staquery/internal/query"
)

// Config is the root configuration.
type Config struct {
	Query query.Defaults `yaml:"query"`
	Log   logger.Config  `yaml:"log"`
	Store StoreConfig    `yaml:"store"`
	Model ModelConfig    `yaml:"model"`
}

// StoreConfig configures the SQLite reference store.
type StoreConfig struct {
	// Path is the database file. Empty means in-memory.
	Path string `yaml:"path"`
}

// ModelConfig selects the entity model.
type ModelConfig struct {
	// Dir is a directory holding a CUE model package. Empty means the
	// built-in SensorThings model.
	Dir string `yaml:"dir"`
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{Query: query.StandardDefaults()}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg := raw.resolve()
	applyEnvOverrides(cfg, os.Getenv)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds configuration from defaults and environment variables only.
func FromEnv() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg, os.Getenv)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// rawConfig mirrors Config with pointers for values whose zero differs
// from the default, so an explicit false or 0 in YAML survives
// ApplyDefaults.
type rawConfig struct {
	Query struct {
		TopDefault                 *int   `yaml:"top_default"`
		TopMax                     int    `yaml:"top_max"`
		CountDefault               bool   `yaml:"count_default"`
		AlwaysOrder                *bool  `yaml:"always_order"`
		UseAbsoluteNavigationLinks *bool  `yaml:"absolute_navigation_links"`
		ServiceRootURL             string `yaml:"service_root_url"`
	} `yaml:"query"`
	Log   logger.Config `yaml:"log"`
	Store StoreConfig   `yaml:"store"`
	Model ModelConfig   `yaml:"model"`
}

func (r rawConfig) resolve() *Config {
	d := query.StandardDefaults()
	cfg := &Config{
		Query: query.Defaults{
			TopMax:                     r.Query.TopMax,
			CountDefault:               r.Query.CountDefault,
			AlwaysOrder:                d.AlwaysOrder,
			UseAbsoluteNavigationLinks: d.UseAbsoluteNavigationLinks,
			ServiceRootURL:             r.Query.ServiceRootURL,
		},
		Log:   r.Log,
		Store: r.Store,
		Model: r.Model,
	}
	if r.Query.AlwaysOrder != nil {
		cfg.Query.AlwaysOrder = *r.Query.AlwaysOrder
	}
	if r.Query.UseAbsoluteNavigationLinks != nil {
		cfg.Query.UseAbsoluteNavigationLinks = *r.Query.UseAbsoluteNavigationLinks
	}
	ApplyDefaults(cfg)
	if r.Query.TopDefault != nil {
		cfg.Query.TopDefault = *r.Query.TopDefault
	}
	return cfg
}

// ApplyDefaults fills zero numeric and string values.
func ApplyDefaults(cfg *Config) {
	d := query.StandardDefaults()
	if cfg.Query.TopMax == 0 {
		cfg.Query.TopMax = d.TopMax
	}
	if cfg.Query.TopDefault == 0 {
		cfg.Query.TopDefault = min(d.TopDefault, cfg.Query.TopMax)
	}
	if cfg.Query.ServiceRootURL == "" {
		cfg.Query.ServiceRootURL = d.ServiceRootURL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// applyEnvOverrides applies STAQUERY_SECTION_FIELD variables. Values that
// do not parse are ignored.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if val := getenv("STAQUERY_QUERY_TOP_DEFAULT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Query.TopDefault = i
		}
	}
	if val := getenv("STAQUERY_QUERY_TOP_MAX"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Query.TopMax = i
		}
	}
	if val := getenv("STAQUERY_QUERY_COUNT_DEFAULT"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Query.CountDefault = b
		}
	}
	if val := getenv("STAQUERY_QUERY_ALWAYS_ORDER"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Query.AlwaysOrder = b
		}
	}
	if val := getenv("STAQUERY_QUERY_ABSOLUTE_LINKS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Query.UseAbsoluteNavigationLinks = b
		}
	}
	if val := getenv("STAQUERY_SERVICE_ROOT_URL"); val != "" {
		cfg.Query.ServiceRootURL = val
	}
	if val := getenv("STAQUERY_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := getenv("STAQUERY_STORE_PATH"); val != "" {
		cfg.Store.Path = val
	}
	if val := getenv("STAQUERY_MODEL_DIR"); val != "" {
		cfg.Model.Dir = val
	}
}

// FieldError is a validation error for one configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error of a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "configuration validation failed: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:", len(e.Errors))
	for _, fe := range e.Errors {
		sb.WriteString("\n  - " + fe.Error())
	}
	return sb.String()
}

// Validate checks the configuration and returns a ValidationError listing
// every problem found.
func Validate(cfg *Config) error {
	var errs []FieldError
	q := cfg.Query

	if q.TopMax <= 0 {
		errs = append(errs, FieldError{"query.top_max", "must be positive"})
	}
	if q.TopDefault < 0 || (q.TopMax > 0 && q.TopDefault > q.TopMax) {
		errs = append(errs, FieldError{"query.top_default", fmt.Sprintf("must be between 0 and top_max (%d)", q.TopMax)})
	}
	if q.ServiceRootURL != "" {
		u, err := url.Parse(q.ServiceRootURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{"query.service_root_url", fmt.Sprintf("%q is not an absolute URL", q.ServiceRootURL)})
		}
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, FieldError{"log.level", err.Error()})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
