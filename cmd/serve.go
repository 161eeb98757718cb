package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/dialmix/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync loop with a live status page",
	Long: `Run the sync loop like 'dialmix run' and serve its live state over HTTP.

The page at / shows every dial, its position, its mute flag and the
applications bound to it. /status and /config return JSON and /ws streams
one JSON report per cycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		host, serialPort, err := openHost()
		if err != nil {
			return err
		}

		srv := server.New(cfg, cfgFile, host, port)
		host.AddObserver(srv)

		srvErr := make(chan error, 1)
		go func() {
			srvErr <- srv.Start(ctx)
			cancel()
		}()

		slog.Info("dialmix status server starting", "port", port, "config", cfgFile)

		hostErr := runHost(ctx, host, serialPort)
		cancel()
		if err := <-srvErr; err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return hostErr
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "port for the web server")
}
