package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api"
	"github.com/decentraminds/osmosis-streaming-driver/internal/audit"
	"github.com/decentraminds/osmosis-streaming-driver/internal/metrics"
	"github.com/decentraminds/osmosis-streaming-driver/internal/policy"
	"github.com/decentraminds/osmosis-streaming-driver/internal/probe"
	"github.com/decentraminds/osmosis-streaming-driver/internal/registry"
	"github.com/decentraminds/osmosis-streaming-driver/internal/service"
	"github.com/decentraminds/osmosis-streaming-driver/internal/tasks"
	"github.com/decentraminds/osmosis-streaming-driver/internal/transport"
)

// PortEnv sets the listen port if neither --addr nor the config file do.
const PortEnv = "PROXY_SERVER_PORT"

const meterName = "github.com/decentraminds/osmosis-streaming-driver"

const streamDrainTimeout = 5 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the osmosis server",
	Long: `Starts the HTTP server that issues stream tokens (GET /token), relays streams
for valid tokens (GET /proxy) and exposes the token registry (GET /info).`,
	Example: `  osmosis serve
  osmosis serve -c osmosis.yaml --addr :8080
  PROXY_SERVER_PORT=3000 osmosis serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		addr := cfg.Server.Addr
		if port := os.Getenv(PortEnv); port != "" && f.ConfigPath == "" {
			addr = ":" + port
		}
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		log.Info().Msg("Initializing transports...")
		transports, err := transport.BuildRegistry(cfg.Transports)
		if err != nil {
			return fmt.Errorf("building transport registry: %w", err)
		}
		log.Debug().Strs("schemes", transports.Schemes()).Msg("transports ready")

		guard, err := policy.Compile(cfg.Policy.Expr)
		if err != nil {
			return err
		}
		if guard != nil {
			log.Info().Str("policy", guard.String()).Msg("destination policy enabled")
		}

		auditor, err := audit.New(cfg.Audit)
		if err != nil {
			return fmt.Errorf("creating auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Warn().Err(err).Msg("closing auditor")
			}
		}()

		recorder := metrics.NewRecorder()
		exporter, err := metrics.NewExporter(otel.Meter(meterName), recorder)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		defer func() {
			_ = exporter.Close()
		}()

		svc := service.NewStreamService(
			registry.New(),
			probe.New(transports, cfg.Probe.Timeout),
			transports,
			service.Options{
				DefaultTTL:   cfg.Tokens.DefaultTTL,
				MaxTTL:       cfg.Tokens.MaxTTL,
				ProbeTimeout: cfg.Probe.Timeout,
				Policy:       guard,
				Auditor:      auditor,
				Metrics:      recorder,
			},
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		taskManager := tasks.NewManager(ctx)
		defer taskManager.Stop()
		if interval := cfg.Tokens.Eviction.Interval; interval > 0 {
			log.Info().Dur("interval", interval).Msg("expired tokens will be evicted")
			taskManager.Register(tasks.EvictionTask(svc, interval))
		}

		adminKey, err := cfg.Admin.Key()
		if err != nil {
			return err
		}
		if len(adminKey) == 0 {
			log.Warn().Msg("no admin signing key configured, /info and admin routes are public")
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           api.NewServer(svc, taskManager, auditor).Routes(adminKey),
			ReadHeaderTimeout: 10 * time.Second,
			// streams end with the process
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		serveErr := make(chan error, 1)
		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("server crashed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// open streams must write their audit entry before the auditor closes
			_ = server.Close()
			drainCtx, cancelDrain := context.WithTimeout(context.Background(), streamDrainTimeout)
			defer cancelDrain()
			if waitErr := svc.WaitStreams(drainCtx); waitErr != nil {
				log.Warn().Err(waitErr).Msg("streams still open after forced shutdown")
			}
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f.bindConfigFlag(serveCmd.Flags())
	serveCmd.Flags().String("addr", ":3580", "address to listen on (overrides the config file)")
}
