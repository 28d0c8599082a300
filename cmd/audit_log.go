package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/pkg/client"
)

var auditLogOpts client.ListAuditsOpts

// auditLogCmd represents the audit log command
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit log entries",
	Example: `  osmosis audit log -n 10
  osmosis audit log --action stream.open
  osmosis audit log --fingerprint "$(osmosis debug fingerprint -r TOKEN)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching audit log...")
		audits, correlation, err := cli.ListAudits(cmd.Context(), auditLogOpts)
		if err != nil {
			return logError(err, correlation, "failed to fetch audit log")
		}
		log.Debug().Msgf("Retrieved %d audit entries", len(audits))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Action", "OK", "Fingerprint", "Destination", "Error",
		})

		for _, e := range audits {
			status := greenCheck
			if !e.Success {
				status = redCross
			}
			t.AppendRow(table.Row{
				e.Time.Local().Format(time.DateTime),
				e.Action,
				status,
				faint(e.TokenFingerprint),
				e.DestinationHost,
				truncate(e.Error, 60),
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().UintVarP(&auditLogOpts.Limit, "limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().StringVar(&auditLogOpts.Action, "action", "", "Only entries of this action (token.issue, stream.open)")
	auditLogCmd.Flags().StringVar(&auditLogOpts.Fingerprint, "fingerprint", "", "Only entries of this token fingerprint")
	auditLogCmd.Flags().StringVar(&auditLogOpts.CorrelationID, "correlation-id", "", "Only entries of this request")
}
