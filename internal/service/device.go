package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/audiolibrelab/dialmix/internal/dial"
	"github.com/audiolibrelab/dialmix/internal/wire"
)

// Indicator shows the mute state reported back by the host.
type Indicator interface {
	Indicate(state dial.MuteState)
}

// LogIndicator logs the mute state whenever it changes.
type LogIndicator struct {
	last dial.MuteState
}

func (l *LogIndicator) Indicate(state dial.MuteState) {
	if l.last != nil && l.last.Equal(state) {
		return
	}
	l.last = append(dial.MuteState(nil), state...)
	slog.Info("Mute indicators", "state", state)
}

// Device samples the dials and streams snapshots to the host.
type Device struct {
	loopState

	dials        *dial.Dials
	link         *wire.Link
	muteFeedback bool
	indicator    Indicator
	interval     time.Duration

	cycle uint64
}

// NewDevice creates a device loop. The indicator is only used when
// muteFeedback is set; a nil indicator discards the frames.
func NewDevice(dials *dial.Dials, link *wire.Link, muteFeedback bool, indicator Indicator, interval time.Duration) *Device {
	return &Device{
		dials:        dials,
		link:         link,
		muteFeedback: muteFeedback,
		indicator:    indicator,
		interval:     interval,
	}
}

// Cycle samples, encodes and transmits one snapshot. Every error it returns
// is fatal.
func (d *Device) Cycle() error {
	defer d.setState(StateIdle)

	d.setState(StateSampling)
	snapshot := d.dials.Snapshot()

	d.setState(StateEncoding)
	frame := wire.EncodeSnapshot(snapshot)

	d.setState(StateTransmitting)
	if err := d.link.WriteFrame(frame); err != nil {
		return fmt.Errorf("failed to send snapshot: %w", err)
	}
	d.cycle++

	if d.muteFeedback {
		d.setState(StateReceiving)
		state, err := d.link.ReceiveMuteState(d.dials.Len())
		if err != nil {
			return fmt.Errorf("failed to receive mute state: %w", err)
		}
		if d.indicator != nil {
			d.indicator.Indicate(state)
		}
	}

	slog.Debug("Device cycle complete", "cycle", d.cycle, "snapshot", snapshot.Percentages())
	return nil
}

// Run cycles with the configured pause between snapshots until a fatal error
// or until ctx is cancelled.
func (d *Device) Run(ctx context.Context) error {
	slog.Info("Device loop started", "dials", d.dials.Len(), "resolution", d.dials.Resolution(), "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Device loop stopped", "cycles", d.cycle)
			return nil
		default:
		}

		if err := d.Cycle(); err != nil {
			if ctx.Err() != nil {
				slog.Info("Device loop stopped", "cycles", d.cycle)
				return nil
			}
			return err
		}

		if d.interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(d.interval):
			}
		}
	}
}
