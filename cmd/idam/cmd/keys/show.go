package keys

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/venicegeo/pz-idam/internal/db/bunx"
)

var showCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show the API key of a user and whether it is still valid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		key, found, err := store.GetKeyFor(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to look up key for '%s': %w", args[0], err)
		}
		if !found {
			return fmt.Errorf("no API key for '%s'", args[0])
		}

		// Validate advances the last-used time of a valid key.
		valid, err := store.Validate(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to validate key for '%s': %w", args[0], err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tKEY\tVALID")
		fmt.Fprintf(w, "%s\t%s\t%t\n", args[0], key, valid)
		return w.Flush()
	},
}
