package cmd

import (
	"os"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/internal/audit"
)

var listShowExpired bool

var tokenListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the tokens known to the server",
	Long: `Shows the token registry of the server (GET /info).
Tokens are shown by fingerprint, the same value audit entries carry.

Requires an admin session if the server has an admin signing key configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching token registry...")
		snapshot, correlation, err := cli.Info(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to fetch token registry")
		}

		type row struct {
			fingerprint, destination string
			issuedAt, expiresAt      time.Time
		}
		now := time.Now()
		var rows []row
		for token, entry := range snapshot {
			if entry.Expired(now) && !listShowExpired {
				continue
			}
			rows = append(rows, row{
				fingerprint: audit.Fingerprint(token),
				destination: entry.Destination,
				issuedAt:    entry.IssuedAt,
				expiresAt:   entry.ExpiresAt,
			})
		}
		if len(rows) == 0 {
			log.Info().Msg("No tokens found")
			return nil
		}
		slices.SortFunc(rows, func(a, b row) int {
			return a.expiresAt.Compare(b.expiresAt)
		})

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Fingerprint", "Destination", "Issued", "Expires"})
		for _, r := range rows {
			expires := relative(r.expiresAt)
			if !r.expiresAt.After(now) {
				expires = color.RedString("expired " + expires)
			}
			t.AppendRow(table.Row{
				bold(r.fingerprint),
				truncate(r.destination, 48),
				faint(r.issuedAt.Local().Format(time.DateTime)),
				expires,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenListCmd)

	tokenListCmd.Flags().BoolVarP(&listShowExpired, "all", "a", false, "Include expired tokens")
}
