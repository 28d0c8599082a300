package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy TOKEN",
	Short: "Redeem a token and write the stream to stdout",
	Long: `Opens GET /proxy?token=TOKEN and copies the relayed stream to stdout
until the token expires, the upstream closes or the command is interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		body, correlation, err := cli.Stream(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to open stream")
		}
		defer func() {
			_ = body.Close()
		}()
		log.Debug().Str("correlation_id", correlation).Msg("stream opened")

		n, err := io.Copy(os.Stdout, body)
		if err != nil && !errors.Is(err, cmd.Context().Err()) {
			return fmt.Errorf("reading stream after %d bytes: %w", n, err)
		}
		log.Debug().Int64("bytes", n).Msg("stream ended")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proxyCmd)
}
