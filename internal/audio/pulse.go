package audio

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// pulseVolumeNorm is the raw PulseAudio volume for 100%.
const pulseVolumeNorm = 65536

// runFunc executes a command and returns its standard output.
type runFunc func(name string, args ...string) ([]byte, error)

func runCommand(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s %s: %w (output: %s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return output, nil
}

// PulseBackend talks to PulseAudio, or PipeWire through pipewire-pulse, using
// the pactl command line tool. pactl 16 or newer is required for JSON output.
type PulseBackend struct {
	run      runFunc
	procRoot string
}

// NewPulseBackend creates a backend using the system pactl.
func NewPulseBackend() *PulseBackend {
	return &PulseBackend{
		run:      runCommand,
		procRoot: "/proc",
	}
}

type pactlSink struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type pactlChannelVolume struct {
	Value int `json:"value"`
}

type pactlSinkInput struct {
	Index      int                           `json:"index"`
	Sink       int                           `json:"sink"`
	Mute       bool                          `json:"mute"`
	Volume     map[string]pactlChannelVolume `json:"volume"`
	Properties map[string]string             `json:"properties"`
}

func (p *PulseBackend) defaultSinkName() (string, error) {
	output, err := p.run("pactl", "get-default-sink")
	if err != nil {
		return "", fmt.Errorf("failed to get default sink: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (p *PulseBackend) listSinks() ([]pactlSink, error) {
	output, err := p.run("pactl", "-f", "json", "list", "sinks")
	if err != nil {
		return nil, fmt.Errorf("failed to list sinks: %w", err)
	}

	var sinks []pactlSink
	if err := json.Unmarshal(output, &sinks); err != nil {
		return nil, fmt.Errorf("failed to parse sink list: %w", err)
	}
	return sinks, nil
}

// ListOutputDevices returns every sink, marking the default one.
func (p *PulseBackend) ListOutputDevices() ([]Device, error) {
	sinks, err := p.listSinks()
	if err != nil {
		return nil, err
	}

	defaultName, err := p.defaultSinkName()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(sinks))
	for _, sink := range sinks {
		devices = append(devices, Device{
			ID:          strconv.Itoa(sink.Index),
			Name:        sink.Name,
			Description: sink.Description,
			Default:     sink.Name == defaultName,
		})
	}
	return devices, nil
}

// ListSessions returns the sink inputs playing on the default sink.
func (p *PulseBackend) ListSessions() ([]Session, error) {
	defaultName, err := p.defaultSinkName()
	if err != nil {
		return nil, err
	}

	sinks, err := p.listSinks()
	if err != nil {
		return nil, err
	}

	defaultIndex := -1
	for _, sink := range sinks {
		if sink.Name == defaultName {
			defaultIndex = sink.Index
			break
		}
	}
	if defaultIndex < 0 {
		return nil, fmt.Errorf("default sink %q not found", defaultName)
	}

	output, err := p.run("pactl", "-f", "json", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("failed to list sink inputs: %w", err)
	}

	var inputs []pactlSinkInput
	if err := json.Unmarshal(output, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse sink input list: %w", err)
	}

	var sessions []Session
	for _, input := range inputs {
		if input.Sink != defaultIndex {
			continue
		}

		pid, err := strconv.Atoi(input.Properties["application.process.id"])
		if err != nil || pid <= 0 {
			// System streams have no owning process to match against
			slog.Debug("Skipping sink input without process id", "index", input.Index)
			continue
		}

		sessions = append(sessions, &pulseSession{
			backend: p,
			index:   input.Index,
			pid:     pid,
			raw:     averageVolume(input.Volume),
			muted:   input.Mute,
		})
	}

	slog.Debug("Listed audio sessions", "sink", defaultName, "count", len(sessions))
	return sessions, nil
}

// GetType returns the backend type
func (p *PulseBackend) GetType() BackendType {
	return BackendTypePulse
}

// averageVolume returns the mean raw volume across channels.
func averageVolume(channels map[string]pactlChannelVolume) int {
	if len(channels) == 0 {
		return 0
	}
	total := 0
	for _, ch := range channels {
		total += ch.Value
	}
	return int(math.Round(float64(total) / float64(len(channels))))
}

// pulseSession is a sink input. Volume and mute are read once when listed and
// tracked locally after that; setting a value the stream already has does
// not run pactl.
type pulseSession struct {
	backend *PulseBackend
	index   int
	pid     int
	raw     int
	muted   bool
}

func (s *pulseSession) ProcessID() int {
	return s.pid
}

func (s *pulseSession) ProcessPath() (string, error) {
	path, err := os.Readlink(filepath.Join(s.backend.procRoot, strconv.Itoa(s.pid), "exe"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path of process %d: %w", s.pid, err)
	}
	return path, nil
}

func (s *pulseSession) Volume() (float32, error) {
	return float32(s.raw) / pulseVolumeNorm, nil
}

func (s *pulseSession) SetVolume(v float32) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume must be in [0, 1], got %v", v)
	}

	raw := int(math.Round(float64(v) * pulseVolumeNorm))
	if raw == s.raw {
		return nil
	}
	if _, err := s.backend.run("pactl", "set-sink-input-volume", strconv.Itoa(s.index), strconv.Itoa(raw)); err != nil {
		return fmt.Errorf("failed to set volume of sink input %d: %w", s.index, err)
	}
	s.raw = raw
	return nil
}

func (s *pulseSession) Muted() (bool, error) {
	return s.muted, nil
}

func (s *pulseSession) SetMuted(m bool) error {
	if m == s.muted {
		return nil
	}
	flag := "0"
	if m {
		flag = "1"
	}
	if _, err := s.backend.run("pactl", "set-sink-input-mute", strconv.Itoa(s.index), flag); err != nil {
		return fmt.Errorf("failed to set mute of sink input %d: %w", s.index, err)
	}
	s.muted = m
	return nil
}
