package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/internal/buildinfo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show build information of the CLI or, with --server, of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := f.ServerAddr(); err != nil {
			return infoLocally(cmd, args)
		}
		return infoRemote(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func infoRemote(cmd *cobra.Command, _ []string) error {
	cli, err := f.GetClient()
	if err != nil {
		return err
	}
	log.Debug().Msg("Fetching build info from server...")
	info, correlation, err := cli.About(cmd.Context())
	if err != nil {
		return logError(err, correlation, "failed to get info from server")
	}
	printInfo("Server", info)
	return nil
}

func infoLocally(_ *cobra.Command, _ []string) error {
	info := buildinfo.GetBuildInfo()
	printInfo("Local", &info)
	return nil
}

func printInfo(kind string, info *buildinfo.Info) {
	fmt.Println(bold(fmt.Sprintf("\n── %s Build Information ──", kind)))
	fmt.Printf("  %s:    %s\n", faint("Service"), info.Service)
	fmt.Printf("  %s:    %s\n", faint("Version"), info.Version)
	fmt.Printf("  %s:     %s\n", faint("Commit"), info.CommitHash)
}
