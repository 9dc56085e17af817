package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/venicegeo/pz-idam/cmd/idam/cmd/cmdutil"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage stored user profiles",
}

var profilesVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-check every stored profile against the identity provider",
	Long: `Runs the scheduled profile verification once. Users the provider no
longer reports as valid lose their API key and profile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewBundle(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		verifier, ok := bundle.Verifier()
		if !ok {
			return fmt.Errorf("%s authentication cannot look up user attributes", bundle.Router.Variant())
		}

		summary, err := verifier.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("profile verification failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checked=%d updated=%d removed=%d failed=%d\n",
			summary.Checked, summary.Updated, summary.Removed, summary.Failed)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print gateway statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewBundle(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		stats, err := bundle.Gateway.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profiles=%d apiKeys=%d throttledUsers=%d ceiling=%d windowStart=%s authn=%s\n",
			stats.Profiles, stats.ActiveKeys, stats.ThrottledUsers, stats.ThrottleCeiling,
			stats.WindowStart.Format(time.RFC3339), stats.AuthnVariant)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd, statsCmd)
	profilesCmd.AddCommand(profilesVerifyCmd)
}
