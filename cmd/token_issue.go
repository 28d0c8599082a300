package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/pkg/client"
)

var (
	issueTTL       time.Duration
	issueExpiresAt string
	issueRaw       bool
)

var tokenIssueCmd = &cobra.Command{
	Use:   "issue STREAM_URL",
	Short: "Request a token for an upstream stream",
	Long: `Asks the server to probe STREAM_URL and, if it is reachable, to issue a token for it.
The token can then be redeemed with 'osmosis proxy TOKEN' or GET /proxy?token=TOKEN.`,
	Example: `  osmosis token issue wss://feed.example.com/ticks
  osmosis token issue --ttl 10m tcp://10.0.0.5:9000
  osmosis token issue --raw wss://feed.example.com/ticks | xargs osmosis proxy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := client.IssueTokenOptions{TTL: issueTTL}
		if issueExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, issueExpiresAt)
			if err != nil {
				return fmt.Errorf("parsing --expires-at: %w", err)
			}
			opts.ExpiresAt = t
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		issued, correlation, err := cli.IssueToken(cmd.Context(), args[0], opts)
		if err != nil {
			return logError(err, correlation, "failed to issue token")
		}

		if issueRaw {
			fmt.Println(issued.Token)
			return nil
		}
		logSuccess("token issued, expires %s (%s)",
			issued.ExpiresAt.Local().Format(time.TimeOnly), faint(relative(issued.ExpiresAt)))
		fmt.Println(issued.Token)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd)

	tokenIssueCmd.Flags().DurationVar(&issueTTL, "ttl", 0, "Requested lifetime (server default if unset)")
	tokenIssueCmd.Flags().StringVar(&issueExpiresAt, "expires-at", "", "Requested expiry (RFC 3339), takes precedence over --ttl")
	tokenIssueCmd.Flags().BoolVarP(&issueRaw, "raw", "r", false, "Only print the token")
}
