package cmd

import (
	"os"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show the server's counters",
	Long:  `Shows issuance, probe and relay counters of the server. Requires an admin session if configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		counters, correlation, err := cli.Metrics(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to fetch metrics")
		}

		help := make(map[string]string, len(metrics.Defs))
		for _, def := range metrics.Defs {
			help[def.Name] = def.Help
		}

		names := make([]string, 0, len(counters))
		for name := range counters {
			names = append(names, name)
		}
		slices.Sort(names)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Metric", "Value", "Description"})
		for _, name := range names {
			t.AppendRow(table.Row{bold(name), counters[name], faint(help[name])})
		}
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
		})

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
