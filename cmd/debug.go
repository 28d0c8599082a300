package cmd

import "github.com/spf13/cobra"

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debugging commands",
	Long:  `Commands for debugging osmosis installations, upstream streams and admin access`,
}

func init() {
	rootCmd.AddCommand(debugCmd)
}
