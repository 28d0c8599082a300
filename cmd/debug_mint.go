package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api/middleware"
)

var (
	mintSubject string
	mintTTL     time.Duration
)

var debugMintCmd = &cobra.Command{
	Use:   "mint-admin",
	Short: "Sign an admin token with the key of a server config",
	Long: `Signs a JWT with the admin role using the admin signing key of the given config file.
The token is accepted by /info and /v1/admin/* of servers using the same key.
Use 'osmosis login' to store it for the CLI.`,
	Example: `  osmosis debug mint-admin -c osmosis.yaml --ttl 1h
  osmosis login --server http://localhost:3580 "$(osmosis debug mint-admin -c osmosis.yaml)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if f.ConfigPath == "" {
			return fmt.Errorf("config file not specified (use --config)")
		}
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		key, err := cfg.Admin.Key()
		if err != nil {
			return err
		}
		if len(key) == 0 {
			return fmt.Errorf("config has no admin signing key")
		}

		token, err := middleware.MintAdminToken(key, mintSubject, mintTTL)
		if err != nil {
			return fmt.Errorf("signing token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugMintCmd)

	f.bindConfigFlag(debugMintCmd.Flags())
	debugMintCmd.Flags().StringVar(&mintSubject, "subject", "osmosis-cli", "Subject of the token")
	debugMintCmd.Flags().DurationVar(&mintTTL, "ttl", time.Hour, "Lifetime of the token")
}
