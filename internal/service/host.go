package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/dialmix/internal/audio"
	"github.com/audiolibrelab/dialmix/internal/config"
	"github.com/audiolibrelab/dialmix/internal/dial"
	"github.com/audiolibrelab/dialmix/internal/mapping"
	"github.com/audiolibrelab/dialmix/internal/mixer"
	"github.com/audiolibrelab/dialmix/internal/wire"
)

// Host receives dial snapshots and applies them to the sessions of the
// default output device.
type Host struct {
	loopState

	link         *wire.Link
	backend      audio.Backend
	bindings     []mapping.Binding
	muteFeedback bool

	observersMu sync.RWMutex
	observers   []Observer

	cycle    uint64
	lastMute dial.MuteState
	now      func() time.Time
}

// NewHost creates a host loop for the given bindings. When muteFeedback is
// set, every cycle ends by sending the aggregated mute state to the device.
func NewHost(link *wire.Link, backend audio.Backend, bindings []mapping.Binding, muteFeedback bool) *Host {
	lastMute := make(dial.MuteState, len(bindings))
	for i := range lastMute {
		lastMute[i] = true
	}

	return &Host{
		link:         link,
		backend:      backend,
		bindings:     bindings,
		muteFeedback: muteFeedback,
		lastMute:     lastMute,
		now:          time.Now,
	}
}

// NewHostFromConfig creates a host loop using the bindings and serial
// settings of the loaded profile.
func NewHostFromConfig(cfg *config.Config, link *wire.Link, backend audio.Backend) *Host {
	return NewHost(link, backend, cfg.Bindings(), cfg.Serial.MuteFeedback)
}

// AddObserver registers o to receive every cycle report.
func (h *Host) AddObserver(o Observer) {
	h.observersMu.Lock()
	defer h.observersMu.Unlock()
	h.observers = append(h.observers, o)
}

// Bindings returns the bindings the host applies snapshots to.
func (h *Host) Bindings() []mapping.Binding {
	return h.bindings
}

// Cycle runs one receive/apply pass. The returned error is always fatal;
// recoverable problems are listed in the report's warnings.
func (h *Host) Cycle() (*CycleReport, error) {
	defer h.setState(StateIdle)

	h.setState(StateReceiving)
	frame, err := h.link.ReadFrame(wire.SnapshotFrameSize(len(h.bindings)))
	if err != nil {
		return nil, fmt.Errorf("failed to receive snapshot: %w", err)
	}

	h.setState(StateDecoding)
	snapshot, err := wire.DecodeSnapshot(frame, len(h.bindings))
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	h.cycle++
	report := &CycleReport{Cycle: h.cycle, Time: h.now()}

	h.setState(StateMatching)
	sessions, err := h.backend.ListSessions()
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("failed to list sessions: %v", err))
		report.Dials = h.dialReports(snapshot, nil, nil)
		return h.finish(report, h.lastMute)
	}
	assignment := mapping.Match(h.bindings, sessions)
	report.Unassigned = boundReports(assignment.Unassigned)
	report.Unresolved = unresolvedReports(assignment.Unresolved)
	for _, u := range assignment.Unresolved {
		report.Warnings = append(report.Warnings, fmt.Sprintf("process %d: failed to resolve path: %v", u.Session.ProcessID(), u.Err))
	}

	h.setState(StateAggregating)
	mute, err := mixer.MuteStates(assignment)
	report.Warnings = appendErrors(report.Warnings, err)

	h.setState(StateApplying)
	err = mixer.ApplySnapshot(assignment, snapshot)
	report.Warnings = appendErrors(report.Warnings, err)

	report.Dials = h.dialReports(snapshot, mute, assignment)
	h.lastMute = mute
	return h.finish(report, mute)
}

func (h *Host) finish(report *CycleReport, mute dial.MuteState) (*CycleReport, error) {
	if h.muteFeedback {
		h.setState(StateTransmitting)
		if err := h.link.SendMuteState(mute); err != nil {
			return report, fmt.Errorf("failed to send mute state: %w", err)
		}
	}

	if len(report.Warnings) > 0 {
		h.setLastError(strings.Join(report.Warnings, "; "))
	} else {
		h.clearLastError()
	}

	h.observersMu.RLock()
	observers := h.observers
	h.observersMu.RUnlock()
	for _, o := range observers {
		o.Observe(report)
	}
	return report, nil
}

func (h *Host) dialReports(snapshot dial.Snapshot, mute dial.MuteState, a *mapping.Assignment) []DialReport {
	dials := make([]DialReport, len(h.bindings))
	for i, binding := range h.bindings {
		p := snapshot.At(i)
		volume, command := mixer.Command(p)
		d := DialReport{
			Name:     binding.Name,
			Selector: binding.Selector.String(),
			Bits:     p.Bits(),
			Percent:  p.Float64() * 100,
			Volume:   volume,
			Command:  command,
			Sessions: []SessionReport{},
		}
		if mute != nil {
			d.Muted = mute[i]
		} else {
			d.Muted = h.lastMute[i]
		}
		if a != nil {
			d.Sessions = boundReports(a.Bound(i))
		}
		dials[i] = d
	}
	return dials
}

// Run cycles until a fatal error or until ctx is cancelled. Cancellation is
// only noticed between cycles; to interrupt a blocked read, close the
// underlying port after cancelling.
func (h *Host) Run(ctx context.Context) error {
	slog.Info("Host sync loop started", "dials", len(h.bindings), "backend", h.backend.GetType(), "mute_feedback", h.muteFeedback)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Host sync loop stopped", "cycles", h.cycle)
			return nil
		default:
		}

		report, err := h.Cycle()
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Host sync loop stopped", "cycles", h.cycle)
				return nil
			}
			return err
		}

		for _, w := range report.Warnings {
			slog.Warn("Recoverable cycle problem", "cycle", report.Cycle, "error", w)
		}
		slog.Debug("Host cycle complete", "cycle", report.Cycle, "mute", report.MuteFlags(), "unassigned", len(report.Unassigned))
	}
}

func appendErrors(warnings []string, err error) []string {
	for _, e := range mixer.Errors(err) {
		warnings = append(warnings, e.Error())
	}
	return warnings
}
