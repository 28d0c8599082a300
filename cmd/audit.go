package cmd

import (
	"github.com/spf13/cobra"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check the audit log of the server",
	Long:  `View token issuance and stream audit entries. Requires an admin session if configured.`,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
