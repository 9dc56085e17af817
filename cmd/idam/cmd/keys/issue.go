package keys

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venicegeo/pz-idam/internal/db/bunx"
)

var issueCmd = &cobra.Command{
	Use:   "issue <username>",
	Short: "Issue a new API key, replacing any existing key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		key, err := store.Issue(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to issue key for '%s': %w", args[0], err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}
