package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/dialmix/internal/audio"
	"github.com/audiolibrelab/dialmix/internal/service"
	"github.com/audiolibrelab/dialmix/internal/wire"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply dial positions to running applications",
	Long: `Listen for dial snapshots on the serial port and apply them to the
applications playing on the default output device, until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		host, port, err := openHost()
		if err != nil {
			return err
		}
		return runHost(ctx, host, port)
	},
}

// openHost opens the configured serial port and audio backend.
func openHost() (*service.Host, io.Closer, error) {
	backend, err := audio.NewBackend(cfg.Audio.Backend)
	if err != nil {
		return nil, nil, err
	}

	port, err := wire.OpenSerial(cfg.Serial.Path, cfg.Serial.Baud)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("Serial port open", "path", cfg.Serial.Path, "baud", cfg.Serial.Baud, "profile", cfg.Profile)
	return service.NewHostFromConfig(cfg, wire.NewLink(port), backend), port, nil
}

// runHost runs the host loop until ctx is done. The port is closed on
// cancellation so a blocked read returns.
func runHost(ctx context.Context, host *service.Host, port io.Closer) error {
	defer port.Close()
	stop := context.AfterFunc(ctx, func() {
		port.Close()
	})
	defer stop()

	if err := host.Run(ctx); err != nil {
		return fmt.Errorf("sync loop failed: %w", err)
	}
	return nil
}
