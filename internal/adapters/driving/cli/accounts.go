package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Inspect connected provider accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list <workspace>",
	Short: "List the accounts connected to a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsList,
}

func init() {
	accountsCmd.AddCommand(accountsListCmd)
	rootCmd.AddCommand(accountsCmd)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	if deps.Accounts == nil {
		return errors.New("services not configured")
	}

	accounts, err := deps.Accounts.ListByWorkspace(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		cmd.Println("No accounts connected.")
		return nil
	}

	for i := range accounts {
		summary := accounts[i].Summary()
		cmd.Printf("%s  %s  [%s]", summary.ID, summary.ExternalEmail, summary.Status)
		if !summary.LastSyncAt.IsZero() {
			cmd.Printf("  last sync %s", summary.LastSyncAt.Format("2006-01-02 15:04:05"))
		}
		cmd.Println()
		if n := len(summary.Errors); n > 0 {
			latest := summary.Errors[n-1]
			cmd.Printf("    last error (%s): %s\n", latest.Scope, latest.Message)
		}
	}
	return nil
}
