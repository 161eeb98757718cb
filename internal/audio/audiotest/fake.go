// Package audiotest provides in-memory audio sessions and backends for tests.
package audiotest

import (
	"sync"

	"github.com/audiolibrelab/dialmix/internal/audio"
)

// Session is an in-memory audio.Session. Setting PathErr, VolumeErr or MuteErr
// makes the matching calls fail.
type Session struct {
	mu sync.Mutex

	PID    int
	Path   string
	Vol    float32
	IsMute bool

	PathErr   error
	VolumeErr error
	MuteErr   error

	SetVolumeCalls int
	SetMuteCalls   int
}

// NewSession creates an unmuted session at full volume.
func NewSession(pid int, path string) *Session {
	return &Session{PID: pid, Path: path, Vol: 1}
}

// WithMute sets the initial mute flag and returns the session.
func (s *Session) WithMute(m bool) *Session {
	s.IsMute = m
	return s
}

func (s *Session) ProcessID() int {
	return s.PID
}

func (s *Session) ProcessPath() (string, error) {
	if s.PathErr != nil {
		return "", s.PathErr
	}
	return s.Path, nil
}

func (s *Session) Volume() (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.VolumeErr != nil {
		return 0, s.VolumeErr
	}
	return s.Vol, nil
}

func (s *Session) SetVolume(v float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetVolumeCalls++
	if s.VolumeErr != nil {
		return s.VolumeErr
	}
	s.Vol = v
	return nil
}

func (s *Session) Muted() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MuteErr != nil {
		return false, s.MuteErr
	}
	return s.IsMute, nil
}

func (s *Session) SetMuted(m bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetMuteCalls++
	if s.MuteErr != nil {
		return s.MuteErr
	}
	s.IsMute = m
	return nil
}

// Backend serves a fixed list of sessions.
type Backend struct {
	Devices  []audio.Device
	Sessions []*Session
	Err      error

	Listed int
}

func (b *Backend) ListOutputDevices() ([]audio.Device, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	return b.Devices, nil
}

func (b *Backend) ListSessions() ([]audio.Session, error) {
	b.Listed++
	if b.Err != nil {
		return nil, b.Err
	}
	sessions := make([]audio.Session, len(b.Sessions))
	for i, s := range b.Sessions {
		sessions[i] = s
	}
	return sessions, nil
}

func (b *Backend) GetType() audio.BackendType {
	return "fake"
}
