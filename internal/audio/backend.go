package audio

import (
	"fmt"
	"strings"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypePulse BackendType = "pulse"
	BackendTypeAuto  BackendType = "auto"
)

// Backend lists output devices and the application sessions playing on the
// default one.
type Backend interface {
	ListOutputDevices() ([]Device, error)

	// ListSessions queries the sessions of the default output device. Each
	// call returns fresh sessions.
	ListSessions() ([]Session, error)

	GetType() BackendType
}

// NewBackend creates a backend by name. An empty name means auto.
func NewBackend(name string) (Backend, error) {
	switch BackendType(strings.ToLower(name)) {
	case "", BackendTypeAuto, BackendTypePulse, "pipewire":
		// pactl speaks to both PulseAudio and pipewire-pulse
		return NewPulseBackend(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend: %s (valid: auto, pulse)", name)
	}
}
