// Package keys holds the operator commands for API key administration.
package keys

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/venicegeo/pz-idam/cmd/idam/cmd/cmdutil"
	"github.com/venicegeo/pz-idam/internal/db/bunx"
	"github.com/venicegeo/pz-idam/internal/repository"
	"github.com/venicegeo/pz-idam/internal/services/apikey"
)

// KeysCmd is the parent command for API key operations
var KeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long:  `Commands for managing API keys directly from the server, bypassing upstream authentication.`,
}

func init() {
	KeysCmd.AddCommand(issueCmd)
	KeysCmd.AddCommand(showCmd)
	KeysCmd.AddCommand(revokeCmd)
}

// openStore connects to the database and returns a key store using the
// configured lifetimes. The caller closes the returned database.
func openStore(ctx context.Context) (*bun.DB, *apikey.Store, error) {
	cfg, err := cmdutil.ConfigFrom(ctx)
	if err != nil {
		return nil, nil, err
	}

	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxOpenConns: cfg.MaxDBConnections})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := apikey.NewStore(repository.NewBunAPIKeyRepository(db)).
		WithLifetimes(cfg.APIKey.Expiration, cfg.APIKey.Inactivity)
	return db, store, nil
}
