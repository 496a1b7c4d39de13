package cli

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync scheduler and the HTTP API",
	Long: `Starts the background scheduler, which syncs every active account once
immediately and then on the configured interval, together with the REST
surface. Runs until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if deps.Scheduler == nil || deps.Server == nil {
		return errors.New("services not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- deps.Scheduler.Start(ctx) }()
	go func() { errCh <- deps.Server.Start(ctx) }()

	cmd.Println("calsync is running. Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	stop()
	return deps.Scheduler.Stop()
}
