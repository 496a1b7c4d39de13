package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

var syncType string

var syncCmd = &cobra.Command{
	Use:   "sync <workspace> <account>",
	Short: "Run one sync cycle for an account now",
	Long: `Triggers an immediate reconciliation cycle for the account, through the
same exclusive slot the scheduler uses. If a cycle for the account is
already running, this is a no-op.`,
	Args: cobra.ExactArgs(2),
	RunE: runSyncNow,
}

func init() {
	syncCmd.Flags().StringVarP(&syncType, "type", "t", "both", "what to sync: calendar, tasks or both")
	rootCmd.AddCommand(syncCmd)
}

func runSyncNow(cmd *cobra.Command, args []string) error {
	if deps.Scheduler == nil {
		return errors.New("services not configured")
	}

	parsed, err := domain.ParseSyncType(syncType)
	if err != nil {
		return fmt.Errorf("invalid sync type %q: %w", syncType, err)
	}

	workspaceID, accountID := args[0], args[1]
	cmd.Printf("Syncing account %s...\n", accountID)

	outcome, err := deps.Scheduler.SyncNow(cmd.Context(), workspaceID, accountID, parsed)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if outcome.Skipped {
		cmd.Println("A cycle for this account is already running; nothing to do.")
		return nil
	}

	if parsed.IncludesCalendar() {
		printResult(cmd, "calendar", outcome.Calendar)
	}
	if parsed.IncludesTasks() {
		printResult(cmd, "tasks", outcome.Tasks)
	}
	return nil
}

func printResult(cmd *cobra.Command, scope string, result domain.SyncCycleResult) {
	cmd.Printf("%s: %d synced, %d deleted", scope, result.SyncedCount, result.DeletedCount)
	if len(result.Errors) > 0 {
		cmd.Printf(", %d errors", len(result.Errors))
	}
	cmd.Println()
	for _, e := range result.Errors {
		cmd.Printf("  - %s\n", e)
	}
}
