package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/decentraminds/osmosis-streaming-driver/internal/probe"
	"github.com/decentraminds/osmosis-streaming-driver/internal/transport"
)

var (
	probeTimeout time.Duration
	probeFrames  int
)

var debugProbeCmd = &cobra.Command{
	Use:   "probe STREAM_URL",
	Short: "Check locally whether a stream is reachable",
	Long: `Runs the same reachability probe the server runs before issuing a token,
using the transports of the given config file (or the defaults).
With --frames, additionally reads that many frames from the stream.`,
	Example: `  osmosis debug probe wss://feed.example.com/ticks
  osmosis debug probe -c osmosis.yaml --timeout 2s --frames 3 tcp://10.0.0.5:9000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		destination := args[0]

		cfg, err := f.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		transports, err := transport.BuildRegistry(cfg.Transports)
		if err != nil {
			return fmt.Errorf("building transport registry: %w", err)
		}

		start := time.Now()
		result := probe.New(transports, cfg.Probe.Timeout).Probe(cmd.Context(), destination, probeTimeout)
		if !result.OK {
			log.Error().Msgf("%s %s", redCross, result.Message)
			return BeQuietError{}
		}
		logSuccess("%s is reachable (%s)", bold(destination), time.Since(start).Round(time.Millisecond))

		if probeFrames <= 0 {
			return nil
		}

		conn, err := transports.Connect(cmd.Context(), destination)
		if err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer func() {
			_ = conn.Close()
		}()
		for i := range probeFrames {
			frame, err := conn.Receive(cmd.Context())
			if err != nil {
				return fmt.Errorf("receiving frame %d: %w", i+1, err)
			}
			fmt.Printf("%s %s\n", faint(fmt.Sprintf("#%d (%d bytes)", i+1, len(frame))), truncate(string(frame), 120))
		}
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugProbeCmd)

	f.bindConfigFlag(debugProbeCmd.Flags())
	debugProbeCmd.Flags().DurationVar(&probeTimeout, "timeout", 0, "Probe timeout (config value if unset)")
	debugProbeCmd.Flags().IntVarP(&probeFrames, "frames", "n", 0, "Number of frames to read after a successful probe")
}
