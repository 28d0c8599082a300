package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/internal/audit"
)

var fingerprintRaw bool

var fingerprintCmd = &cobra.Command{
	Use:     "fingerprint TOKEN",
	Aliases: []string{"fp"},
	Short:   `Calculate the fingerprint of a stream token`,
	Long: `Calculates the fingerprint of a token (SHA256 -> Base64, truncated).
This is the value stored in audit entries in the 'token_fingerprint' field
and shown by 'osmosis token list'.`,
	Example: `  osmosis debug fingerprint 3f2a...
  echo "3f2a..." | osmosis debug fingerprint -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := args[0]
		if token == "-" {
			log.Debug().Msg("Reading token from stdin")
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read token from stdin: %w", err)
			}
			token = strings.TrimSpace(string(data))
		}
		if token == "" {
			return fmt.Errorf("token cannot be empty")
		}

		fp := audit.Fingerprint(token)
		if fingerprintRaw {
			fmt.Println(fp)
		} else {
			fmt.Println("Fingerprint:", fp)
		}
		return nil
	},
}

func init() {
	debugCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().BoolVarP(&fingerprintRaw, "raw", "r", false,
		"Output only the fingerprint value without additional text")
}
