package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/internal/policy"
	"github.com/decentraminds/osmosis-streaming-driver/internal/transport"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Parses the config file, builds its transports and compiles its destination policy,
exactly like 'osmosis serve' does on startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if f.ConfigPath == "" {
			return fmt.Errorf("config file not specified (use --config)")
		}
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return logError(err, "", "configuration is invalid")
		}
		transports, err := transport.BuildRegistry(cfg.Transports)
		if err != nil {
			return logError(err, "", "transports are invalid")
		}
		guard, err := policy.Compile(cfg.Policy.Expr)
		if err != nil {
			return logError(err, "", "policy is invalid")
		}
		if _, err := cfg.Admin.Key(); err != nil {
			return logError(err, "", "admin signing key is unusable")
		}

		log.Debug().
			Strs("schemes", transports.Schemes()).
			Str("policy", guard.String()).
			Msg("configuration details")
		logSuccess("configuration is valid")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)

	f.bindConfigFlag(configValidateCmd.Flags())
}
