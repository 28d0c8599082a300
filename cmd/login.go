package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/internal/cliconfig"
	"github.com/decentraminds/osmosis-streaming-driver/pkg/client"
)

var loginCmd = &cobra.Command{
	Use:   "login ADMIN_TOKEN",
	Short: "Store an admin token for a server",
	Long: `Saves an admin token (see 'osmosis debug mint-admin') for the server given with --server.
Subsequent commands against that server (token list, metrics, tasks, audit) send it automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := f.ServerAddr()
		if err != nil {
			return err
		}
		token := args[0]

		cred := cliconfig.Credential{Token: token}
		// the signature is checked by the server, here we only want the expiry
		claims := jwt.RegisteredClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
			return fmt.Errorf("not a JWT: %w", err)
		}
		if claims.ExpiresAt != nil {
			if claims.ExpiresAt.Before(time.Now()) {
				return fmt.Errorf("token expired at %s", claims.ExpiresAt.Format(time.RFC3339))
			}
			cred.ExpiresAt = claims.ExpiresAt.Time
		}

		cli, err := client.New(server, client.WithAuthToken(token))
		if err != nil {
			return err
		}
		cfg, err := cliconfig.Load()
		if err != nil {
			return fmt.Errorf("loading credentials: %w", err)
		}

		// make sure the server accepts the token before saving it
		log.Debug().Msg("Verifying token against the server...")
		if _, correlation, err := cli.Metrics(cmd.Context()); err != nil {
			return logError(err, correlation, "server did not accept the token")
		}

		if err := cfg.SetCredential(server, cred); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "could not save credentials")
		}

		logSuccess("saved credentials for %s", bold(server))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored admin token of a server",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := f.ServerAddr()
		if err != nil {
			return err
		}
		cfg, err := cliconfig.Load()
		if err != nil {
			return fmt.Errorf("loading credentials: %w", err)
		}
		removed, err := cfg.RemoveCredential(server)
		if err != nil {
			return err
		}
		if !removed {
			log.Info().Msgf("No credentials stored for %s", server)
			return nil
		}
		if err := cliconfig.Save(cfg); err != nil {
			return err
		}
		logSuccess("removed credentials for %s", bold(server))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
