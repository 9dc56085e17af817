package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venicegeo/pz-idam/cmd/idam/cmd/cmdutil"
	"github.com/venicegeo/pz-idam/internal/db/models"
	"github.com/venicegeo/pz-idam/internal/logging"
)

var throttleCmd = &cobra.Command{
	Use:   "throttle",
	Short: "Inspect and reset job throttle counts",
}

var throttleResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset throttle counts from past windows",
	Long: `Runs the same reset as the scheduled throttle task, outside its schedule.
Counts recorded in the current window are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewBundle(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Counter.ResetAll(cmd.Context()); err != nil {
			return fmt.Errorf("failed to reset throttle counts: %w", err)
		}
		logging.Infof("Throttle counts reset")
		return nil
	},
}

var throttleShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show the job count of a user in the current window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewBundle(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		count, err := bundle.Counter.CurrentCount(cmd.Context(), args[0], models.ThrottleComponentJob)
		if err != nil {
			return fmt.Errorf("failed to read throttle count for '%s': %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d/%d\n", args[0], count, cfg.Throttle.Ceiling)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(throttleCmd)
	throttleCmd.AddCommand(throttleResetCmd, throttleShowCmd)
}
