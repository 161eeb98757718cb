// Package mixer reconciles the sessions bound to each dial: it reduces their
// mute flags into one per dial and pushes a dial's commanded state onto them.
package mixer

import (
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/audiolibrelab/dialmix/internal/audio"
	"github.com/audiolibrelab/dialmix/internal/dial"
	"github.com/audiolibrelab/dialmix/internal/mapping"
)

// AggregateMute reports a dial as muted only when every bound session is
// muted. A dial with nothing bound has nothing to hear and is muted.
//
// Sessions whose mute flag cannot be read are left out of the reduction and
// their errors returned alongside the result.
func AggregateMute(sessions []audio.Session) (bool, error) {
	muted := true
	var errs error
	for _, s := range sessions {
		m, err := s.Muted()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("process %d: failed to read mute: %w", s.ProcessID(), err))
			continue
		}
		muted = muted && m
	}
	return muted, errs
}

// MuteStates aggregates every binding of the assignment, in binding order.
func MuteStates(a *mapping.Assignment) (dial.MuteState, error) {
	state := make(dial.MuteState, len(a.Bindings))
	var errs error
	for i, binding := range a.Bindings {
		muted, err := AggregateMute(a.Sessions(i))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dial %q: %w", binding.Name, err))
		}
		state[i] = muted
	}
	return state, errs
}

// Command turns a dial position into the volume and mute to apply. Only the
// zero stop mutes.
func Command(p dial.Percentage) (volume float32, mute bool) {
	return float32(p.Float64()), p.Bits() == 0
}

// Apply sets volume and mute on every session bound to a dial. A failure on
// one session does not stop the others; all failures are returned together.
func Apply(binding mapping.Binding, p dial.Percentage, mute bool, sessions []audio.Session) error {
	volume := float32(p.Float64())

	var errs error
	for _, s := range sessions {
		if err := s.SetVolume(volume); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dial %q, process %d: %w", binding.Name, s.ProcessID(), err))
		}
		if err := s.SetMuted(mute); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dial %q, process %d: %w", binding.Name, s.ProcessID(), err))
		}
	}

	slog.Debug("Applied dial state", "dial", binding.Name, "volume", volume, "mute", mute, "sessions", len(sessions))
	return errs
}

// ApplySnapshot applies dial i of the snapshot to binding i. The snapshot and
// the assignment must describe the same number of dials.
func ApplySnapshot(a *mapping.Assignment, s dial.Snapshot) error {
	if s.Len() != len(a.Bindings) {
		return fmt.Errorf("snapshot has %d dials but %d bindings are configured", s.Len(), len(a.Bindings))
	}

	var errs error
	for i, binding := range a.Bindings {
		_, mute := Command(s.At(i))
		errs = multierr.Append(errs, Apply(binding, s.At(i), mute, a.Sessions(i)))
	}
	return errs
}

// Errors splits a combined error back into its parts.
func Errors(err error) []error {
	return multierr.Errors(err)
}
