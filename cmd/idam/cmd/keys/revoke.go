package keys

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venicegeo/pz-idam/internal/db/bunx"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <username>",
	Short: "Revoke the API key of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		if err := store.DeleteForUser(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to revoke key for '%s': %w", args[0], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Revoked API key for %s\n", args[0])
		return nil
	},
}
