package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/staquery/internal/qerr"
	"github.com/roach88/staquery/internal/service"
	"github.com/roach88/staquery/internal/store"
)

// ResolveOutput is the data printed by the resolve command.
type ResolveOutput struct {
	EntityType string   `json:"entity_type"`
	URL        string   `json:"url"`
	SQL        string   `json:"sql"`
	Args       []any    `json:"args"`
	Portable   bool     `json:"portable"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ExecOutput is the data printed by the exec command.
type ExecOutput struct {
	ResolveOutput
	Count      *int64         `json:"count,omitempty"`
	Entities   []store.Entity `json:"entities"`
	Statements int            `json:"statements"`
}

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	DB string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <request.yaml>",
		Short: "Validate a request and print its URL and SQL",
		Long: `Validate a query request and print the canonical request URL and the
SQL plan it compiles to. Use - to read the request from standard input.

Exit codes:
  0 - Request resolved
  1 - Request rejected (unknown path, invalid select, ...)
  2 - Command error (unreadable request, bad configuration)

Examples:
  staquery resolve request.yaml
  staquery resolve request.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(rootOpts, cmd)
			if err != nil {
				return err
			}
			req, err := loadRequest(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			res, err := env.service().Resolve(cmd.Context(), req)
			if err != nil {
				return reject(env, err)
			}
			out := resolveOutput(res)
			return env.out.Success(res.ID, out, func(w io.Writer) { printResolution(w, out) })
		},
	}
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <request.yaml>",
		Short: "Run a request against a SQLite store",
		Long: `Resolve a query request and run it against a SQLite database created
with the schema of the entity model. Prints the result entities.

The database defaults to store.path from the configuration.

Examples:
  staquery exec request.yaml --db sensors.db
  staquery exec - --db sensors.db --format json < request.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd.Context(), opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database path")
	return cmd
}

func runExec(ctx context.Context, opts *ExecOptions, path string, cmd *cobra.Command) error {
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	req, err := loadRequest(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	dbPath := opts.DB
	if dbPath == "" {
		dbPath = env.config.Store.Path
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no database: pass --db or set store.path")
	}
	st, err := store.Open(dbPath, env.registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()
	st.WithLogger(env.log.With().Str("component", "store").Logger())
	env.out.VerboseLog("opened %s", dbPath)

	exec, err := env.service(service.WithStore(st)).Execute(ctx, req)
	if err != nil {
		return reject(env, err)
	}
	out := ExecOutput{
		ResolveOutput: resolveOutput(exec.Resolution),
		Count:         exec.Count,
		Entities:      exec.Entities,
		Statements:    exec.Statements,
	}
	env.out.VerboseLog("%d statements", exec.Statements)
	return env.out.Success(exec.ID, out, func(w io.Writer) {
		if out.Count != nil {
			fmt.Fprintf(w, "Count: %d\n", *out.Count)
		}
		(&OutputFormatter{Writer: w}).Success("", out.Entities, nil)
	})
}

// reject prints a failed request. Query errors exit with ExitFailure,
// anything else with ExitCommandError.
func reject(env *environment, err error) error {
	if ferr := env.out.Error(err, nil); ferr != nil {
		return ferr
	}
	if qerr.KindOf(err) != "" {
		return WrapExitError(ExitFailure, "request rejected", err)
	}
	return WrapExitError(ExitCommandError, "request failed", err)
}

func resolveOutput(res *service.Resolution) ResolveOutput {
	args := res.Args
	if args == nil {
		args = []any{}
	}
	return ResolveOutput{
		EntityType: res.EntityType.Name,
		URL:        res.URL,
		SQL:        res.SQL,
		Args:       args,
		Portable:   len(res.Warnings) == 0,
		Warnings:   res.Warnings,
	}
}

func printResolution(w io.Writer, out ResolveOutput) {
	fmt.Fprintf(w, "Entity type: %s\n", out.EntityType)
	fmt.Fprintf(w, "URL:  %s\n", out.URL)
	fmt.Fprintf(w, "SQL:  %s\n", out.SQL)
	if len(out.Args) > 0 {
		args := make([]string, len(out.Args))
		for i, a := range out.Args {
			args[i] = fmt.Sprintf("%#v", a)
		}
		fmt.Fprintf(w, "Args: %s\n", strings.Join(args, ", "))
	}
	for _, warning := range out.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}
