package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and trigger background tasks of the server",
	Long:  `List, trigger and read logs of server background tasks. Requires an admin session if configured.`,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
