package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/dialmix/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	serialPath   string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "dialmix",
	Short: "Hardware dials for per-application volume",
	Long: `dialmix turns a small board with rotary dials into a mixer for your
desktop audio.

The board streams dial positions over a serial port. dialmix matches the
applications currently playing on the default output to the dials of the
active profile and sets their volume and mute from the dial positions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(os.Stderr, verboseLevel)

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/dialmix.yaml")
		}

		// Skip config loading for commands that don't need it
		switch cmd.Name() {
		case "ports", "init", "use", "validate", "help", "completion":
			return nil
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if serialPath != "" {
			cfg.Serial.Path = serialPath
		}

		slog.Debug("Configuration loaded", "file", cfgFile, "profile", cfg.Profile, "dials", len(cfg.Dials))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/dialmix.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_profile from file)")
	rootCmd.PersistentFlags().StringVar(&serialPath, "serial", "", "serial port (overrides serial.path from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
}

// setupLogging configures slog to write to w based on the verbose level
func setupLogging(w io.Writer, level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(w, opts)
	slog.SetDefault(slog.New(handler))
}
