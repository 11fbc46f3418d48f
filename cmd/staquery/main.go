// Staquery resolves OGC SensorThings API queries into validated request
// URLs and SQL.
//
// Usage:
//
//	# List the entity types of the model
//	staquery model
//
//	# Print the canonical URL and SQL of a request
//	staquery resolve request.yaml
//
//	# Run a request against a SQLite database
//	staquery exec request.yaml --db sensors.db
//
//	# Run conformance scenarios
//	staquery test ./scenarios
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/staquery/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code == cli.ExitCommandError {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
