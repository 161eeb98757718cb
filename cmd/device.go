package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/dialmix/internal/dial"
	"github.com/audiolibrelab/dialmix/internal/service"
	"github.com/audiolibrelab/dialmix/internal/wire"

	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Emulate the dial board on a serial port",
	Long: `Run the device side of the link: sample the dials and stream snapshots to
the host. Without --values the dials sweep across their range, which is
useful to test a setup with a null-modem cable or a virtual serial pair.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		values, _ := cmd.Flags().GetUintSlice("values")
		step, _ := cmd.Flags().GetUint16("step")

		res := dial.Resolution(cfg.Device.Resolution)
		channels, err := emulatedChannels(res, values, step)
		if err != nil {
			return err
		}
		dials, err := dial.New(res, channels...)
		if err != nil {
			return err
		}

		port, err := wire.OpenSerial(cfg.Serial.Path, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		defer port.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		interval := time.Duration(cfg.Device.IntervalMs) * time.Millisecond
		device := service.NewDevice(dials, wire.NewLink(port), cfg.Serial.MuteFeedback, &service.LogIndicator{}, interval)
		slog.Info("Emulating dial board", "path", cfg.Serial.Path, "baud", cfg.Serial.Baud, "fixed", len(values) > 0)

		unblock := context.AfterFunc(ctx, func() {
			port.Close()
		})
		defer unblock()

		if err := device.Run(ctx); err != nil {
			return fmt.Errorf("device loop failed: %w", err)
		}
		return nil
	},
}

// emulatedChannels returns one channel per physical dial, either fixed at the
// given raw values or sweeping with staggered starting points.
func emulatedChannels(res dial.Resolution, values []uint, step uint16) ([]dial.ChannelReader, error) {
	channels := make([]dial.ChannelReader, dial.Count)
	if len(values) > 0 {
		if len(values) != dial.Count {
			return nil, fmt.Errorf("--values needs %d values, got %d", dial.Count, len(values))
		}
		for i, v := range values {
			if uint32(v) >= uint32(res) {
				return nil, fmt.Errorf("--values: %d is outside resolution %d", v, res)
			}
			channels[i] = dial.FixedChannel(v)
		}
		return channels, nil
	}

	if step == 0 {
		return nil, fmt.Errorf("--step must be > 0")
	}
	top := dial.RawSample(uint32(res) - 1)
	for i := range channels {
		start := dial.RawSample(uint32(top) * uint32(i) / uint32(dial.Count))
		channels[i] = dial.NewSweepChannel(top, step, start)
	}
	return channels, nil
}

func init() {
	deviceCmd.Flags().UintSlice("values", nil, "fixed raw ADC value per dial (e.g. 0,1024,2047)")
	deviceCmd.Flags().Uint16("step", 16, "sweep step per snapshot when --values is not set")
}
