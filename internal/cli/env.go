package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/staquery/internal/config"
	"github.com/roach88/staquery/internal/logger"
	"github.com/roach88/staquery/internal/model"
	"github.com/roach88/staquery/internal/service"
)

// environment is what every command needs: configuration, the entity
// model and a logger.
type environment struct {
	config   *config.Config
	registry *model.Registry
	log      zerolog.Logger
	out      *OutputFormatter
}

// loadEnvironment resolves the global flags of cmd. Logs go to stderr;
// --verbose lowers the level to debug.
func loadEnvironment(opts *RootOptions, cmd *cobra.Command) (*environment, error) {
	var cfg *config.Config
	var err error
	if opts.Config != "" {
		cfg, err = config.Load(opts.Config)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	logCfg := cfg.Log
	logCfg.Output = cmd.ErrOrStderr()
	if opts.Verbose {
		logCfg.Level = "debug"
	} else if opts.Config == "" {
		logCfg.Level = "warn"
	}
	log := logger.New(logCfg)

	var reg *model.Registry
	if cfg.Model.Dir != "" {
		reg, err = model.LoadDir(cfg.Model.Dir)
	} else {
		reg, err = model.Default()
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load entity model", err)
	}
	log.Debug().Int("entity_types", len(reg.EntityTypes())).Str("dir", cfg.Model.Dir).Msg("model loaded")

	return &environment{
		config:   cfg,
		registry: reg,
		log:      log,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

// service creates a query service for the environment.
func (env *environment) service(opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithLogger(logger.Component(env.log, "service"))}, opts...)
	return service.New(env.registry, env.config.Query, opts...)
}

// loadRequest reads a request document. "-" reads standard input.
// Unknown fields are rejected.
func loadRequest(path string, stdin io.Reader) (service.Request, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return service.Request{}, WrapExitError(ExitCommandError, "failed to read request", err)
	}

	var req service.Request
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return service.Request{}, WrapExitError(ExitCommandError, "failed to parse request", err)
	}
	if req.EntityType == "" {
		return service.Request{}, NewExitError(ExitCommandError, fmt.Sprintf("%s: entity_type is required", path))
	}
	return req, nil
}
