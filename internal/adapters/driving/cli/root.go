// Package cli provides the calsync command-line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/calsync/internal/core/ports/driven"
	"github.com/custodia-labs/calsync/internal/core/ports/driving"
	"github.com/custodia-labs/calsync/internal/logger"
)

var version = "dev"

// Runner is anything that serves until its context is cancelled.
type Runner interface {
	Start(ctx context.Context) error
}

// Deps are the wired services the commands drive. main assembles them
// and calls Configure before Execute.
type Deps struct {
	Accounts  driven.AccountStore
	Scheduler driving.SyncScheduler
	Server    Runner
}

var deps Deps

// Configure injects the wired services.
func Configure(d Deps) {
	deps = d
}

// SetVersion overrides the reported version, set from the build.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "calsync",
	Short: "Mirror external calendars and tasks into local storage",
	Long: `Calsync pulls events and tasks from connected provider accounts into
local mirrors on a schedule, and pushes local task edits back when an
account allows it.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
