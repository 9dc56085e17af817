package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/venicegeo/pz-idam/cmd/idam/cmd/cmdutil"
	"github.com/venicegeo/pz-idam/cmd/idam/cmd/keys"
	"github.com/venicegeo/pz-idam/internal/config"
	"github.com/venicegeo/pz-idam/internal/logging"
)

var (
	cfg        *config.Config
	v          = config.New()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "idam",
	Short: "Identity gateway for the Piazza platform",
	Long: `idam authenticates users against the configured identity provider,
issues the API keys used by the rest of the platform and answers
authorization checks for endpoint access and job throttling.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		var err error
		cfg, err = config.Load(v)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		cmd.SetContext(cmdutil.WithConfig(cmd.Context(), cfg))

		return logging.Initialize(logging.Options{Debug: cfg.Debug, Format: cfg.LogFormat})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML config file")
	flags.String("db-url", "", "Database connection URL (env: IDAM_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: IDAM_SERVER_ADDR)")
	flags.String("authn-mode", "", "Authentication mode: directory, provider or oauth (env: IDAM_AUTHN_MODE)")
	flags.Bool("debug", false, "Enable debug logging (env: IDAM_DEBUG)")
	flags.String("log-format", "", "Log format: json or console (env: IDAM_LOG_FORMAT)")

	bindFlag(v, "database.url", "db-url")
	bindFlag(v, "server.addr", "server-addr")
	bindFlag(v, "authn.mode", "authn-mode")
	bindFlag(v, "debug", "debug")
	bindFlag(v, "log_format", "log-format")

	rootCmd.AddCommand(keys.KeysCmd)
}

func bindFlag(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
