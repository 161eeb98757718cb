package audio

// Session is one application's audio stream on the output device.
//
// Sessions are only valid for the cycle that listed them; applications can
// exit at any time, so callers must not keep them across cycles.
type Session interface {
	ProcessID() int

	// ProcessPath resolves the executable behind the session. It can fail
	// when the process belongs to another user or has already exited.
	ProcessPath() (string, error)

	Volume() (float32, error)
	SetVolume(v float32) error

	Muted() (bool, error)
	SetMuted(m bool) error
}

// Device describes an output device.
type Device struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Default     bool   `json:"default" yaml:"default"`
}
