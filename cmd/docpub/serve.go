package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/config"
	"github.com/tinynewsco/docpub/internal/server"
)

var (
	serveHost    string
	servePort    string
	swaggerPath  string
	waitAttempts uint
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docpub server",
	Long: `Start the docpub HTTP server.

The server reloads its services whenever the config file changes or the
process receives SIGHUP.

The server provides:
  - /health   - Basic server health check
  - /ready    - Readiness check (pings the content API)
  - /metrics  - Prometheus metrics
  - /convert  - Run a conversion pass
  - /publish  - Publish an article or page
  - /preview  - Save an unpublished preview

Examples:
  docpub serve                    # Start on the configured address
  docpub serve --port 3000        # Start on custom port
  docpub serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger, err := newLogger()
		if err != nil {
			return err
		}

		h, mgr, err := loadEnv(config.WithLogger(logger))
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		cfg := mgr.Get()
		if err := cfg.Validate(); err != nil {
			return err
		}
		mgr.WatchConfig()
		go reloadOnHangup(ctx, mgr, logger)

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:               host,
			Port:               port,
			ConfigManager:      mgr,
			Home:               h,
			SwaggerSpecPath:    swaggerPath,
			ContentAPIAttempts: waitAttempts,
			Logger:             logger,
		})
		if err != nil {
			return err
		}

		logger.Info("docpub ready", "config", mgr.ConfigFile(), "home", h.Path(), "organization", cfg.OrganizationName)

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

// reloadOnHangup re-reads the config file on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, mgr *config.Manager, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := mgr.Reload(); err != nil {
				logger.Warn("reload on SIGHUP failed", "error", err)
			}
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")
	serveCmd.Flags().StringVar(&swaggerPath, "swagger", "", "Path to swagger.json (default: docs/swagger/swagger.json beside the binary, then in the working directory)")
	serveCmd.Flags().UintVar(&waitAttempts, "wait-content-api", 5, "Pings to wait for the content API before serving (0 disables)")

	rootCmd.AddCommand(serveCmd)
}
