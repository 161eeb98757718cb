package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/audiolibrelab/dialmix/internal/ui"

	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the sync loop with a terminal dashboard",
	Long: `Run the sync loop like 'dialmix run' and show every dial, its position,
its mute flag and the applications bound to it in the terminal.

Log output would draw over the dashboard, so it is discarded unless --log is
given; per-cycle problems are shown in the dashboard instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, _ := cmd.Flags().GetString("log")

		var logWriter io.Writer = io.Discard
		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer f.Close()
			logWriter = f
		}
		setupLogging(logWriter, verboseLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		host, port, err := openHost()
		if err != nil {
			return err
		}

		names := make([]string, len(host.Bindings()))
		for i, b := range host.Bindings() {
			names[i] = b.Name
		}
		monitor := ui.NewMonitor(cfg.Profile, names, tea.WithAltScreen())
		host.AddObserver(monitor)

		hostErr := make(chan error, 1)
		go func() {
			hostErr <- runHost(ctx, host, port)
			monitor.Stop()
		}()
		go func() {
			select {
			case <-monitor.QuitChan():
				cancel()
			case <-ctx.Done():
				monitor.Stop()
			}
		}()

		uiErr := monitor.Start()
		cancel()
		if err := <-hostErr; err != nil {
			return err
		}
		return uiErr
	},
}

func init() {
	monitorCmd.Flags().String("log", "", "append log output to this file")
}
