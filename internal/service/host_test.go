package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/audiolibrelab/dialmix/internal/audio/audiotest"
	"github.com/audiolibrelab/dialmix/internal/mapping"
	"github.com/audiolibrelab/dialmix/internal/wire"
)

// stream replays a fixed input and records everything written.
type stream struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func newStream(input ...byte) *stream {
	return &stream{in: bytes.NewReader(input)}
}

func (s *stream) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func testBindings(t *testing.T) []mapping.Binding {
	t.Helper()
	spotify, err := mapping.PatternSelector("spotify")
	if err != nil {
		t.Fatalf("Failed to compile selector: %v", err)
	}
	game, err := mapping.PatternSelector("game")
	if err != nil {
		t.Fatalf("Failed to compile selector: %v", err)
	}
	return []mapping.Binding{
		{Name: "spotify", Selector: spotify},
		{Name: "game", Selector: game},
		{Name: "unmatched", Selector: mapping.CatchAllSelector()},
	}
}

func testBackend() (*audiotest.Backend, *audiotest.Session, *audiotest.Session, *audiotest.Session) {
	spotify := audiotest.NewSession(10, "/usr/bin/Spotify").WithMute(true)
	game := audiotest.NewSession(20, "/opt/game/game.x86_64")
	browser := audiotest.NewSession(30, "/usr/lib/firefox/firefox").WithMute(true)
	return &audiotest.Backend{Sessions: []*audiotest.Session{browser, game, spotify}}, spotify, game, browser
}

// 50%, zero stop, full scale
var testFrame = []byte{0x80, 0x00, 0x00, 0x00, 0xFF, 0xFF}

func TestHostCycle_AppliesSnapshot(t *testing.T) {
	backend, spotify, game, browser := testBackend()
	s := newStream(testFrame...)
	host := NewHost(wire.NewLink(s), backend, testBindings(t), false)

	report, err := host.Cycle()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if spotify.Vol != 0.5 || spotify.IsMute {
		t.Errorf("Expected spotify at 0.5 unmuted, got %v muted=%v", spotify.Vol, spotify.IsMute)
	}
	if game.Vol != 0 || !game.IsMute {
		t.Errorf("Expected game at zero stop to be muted, got %v muted=%v", game.Vol, game.IsMute)
	}
	if browser.Vol != float32(0xFFFF)/65536 || browser.IsMute {
		t.Errorf("Expected browser at full scale unmuted, got %v muted=%v", browser.Vol, browser.IsMute)
	}

	if report.Cycle != 1 {
		t.Errorf("Expected cycle 1, got %d", report.Cycle)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", report.Warnings)
	}
	if len(report.Dials) != 3 || report.Dials[0].Sessions[0].PID != 10 {
		t.Fatalf("Unexpected dial reports: %+v", report.Dials)
	}
	if report.Dials[0].Bits != 0x8000 || !report.Dials[1].Command {
		t.Errorf("Unexpected dial values: %+v", report.Dials)
	}
	if s.out.Len() != 0 {
		t.Errorf("Expected nothing written without mute feedback, got % x", s.out.Bytes())
	}
	if host.State() != StateIdle {
		t.Errorf("Expected host to be idle after a cycle, got %s", host.State())
	}
}

func TestHostCycle_MuteFeedback(t *testing.T) {
	backend, _, _, _ := testBackend()
	s := newStream(testFrame...)
	host := NewHost(wire.NewLink(s), backend, testBindings(t), true)

	report, err := host.Cycle()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// aggregated before the snapshot is applied
	want := []byte{0x01, 0x00, 0x01}
	if !bytes.Equal(s.out.Bytes(), want) {
		t.Errorf("Expected mute frame % x, got % x", want, s.out.Bytes())
	}
	flags := report.MuteFlags()
	if !flags[0] || flags[1] || !flags[2] {
		t.Errorf("Unexpected mute flags: %v", flags)
	}
}

func TestHostCycle_EmptyBindingIsMuted(t *testing.T) {
	backend := &audiotest.Backend{Sessions: []*audiotest.Session{audiotest.NewSession(10, "/usr/bin/spotify")}}
	s := newStream(testFrame...)
	host := NewHost(wire.NewLink(s), backend, testBindings(t), true)

	if _, err := host.Cycle(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	want := []byte{0x00, 0x01, 0x01}
	if !bytes.Equal(s.out.Bytes(), want) {
		t.Errorf("Expected mute frame % x, got % x", want, s.out.Bytes())
	}
}

func TestHostCycle_ListFailureIsRecoverable(t *testing.T) {
	backend := &audiotest.Backend{Err: errors.New("pactl not running")}
	s := newStream(append(append([]byte{}, testFrame...), testFrame...)...)
	host := NewHost(wire.NewLink(s), backend, testBindings(t), true)

	report, err := host.Cycle()
	if err != nil {
		t.Fatalf("Expected enumeration failure to be recoverable, got: %v", err)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "pactl not running") {
		t.Errorf("Unexpected warnings: %v", report.Warnings)
	}
	if !strings.Contains(host.GetLastError(), "failed to list sessions") {
		t.Errorf("Expected last error to be recorded, got %q", host.GetLastError())
	}

	// nothing aggregated yet, every dial reads as muted
	if !bytes.Equal(s.out.Bytes(), []byte{0x01, 0x01, 0x01}) {
		t.Errorf("Unexpected mute frame % x", s.out.Bytes())
	}

	backend.Err = nil
	if _, err := host.Cycle(); err != nil {
		t.Fatalf("Expected second cycle to succeed, got: %v", err)
	}
	if backend.Listed != 2 {
		t.Errorf("Expected sessions to be listed every cycle, got %d", backend.Listed)
	}
	if host.GetLastError() != "" {
		t.Errorf("Expected last error to clear, got %q", host.GetLastError())
	}
}

func TestHostCycle_UnresolvedPath(t *testing.T) {
	backend, spotify, _, _ := testBackend()
	ghost := audiotest.NewSession(40, "")
	ghost.PathErr = errors.New("no such process")
	backend.Sessions = append(backend.Sessions, ghost)

	host := NewHost(wire.NewLink(newStream(testFrame...)), backend, testBindings(t), false)
	report, err := host.Cycle()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(report.Unresolved) != 1 || report.Unresolved[0].PID != 40 {
		t.Errorf("Expected pid 40 unresolved, got %+v", report.Unresolved)
	}
	if ghost.SetVolumeCalls != 0 {
		t.Error("Expected unresolved session to be left alone")
	}
	if spotify.Vol != 0.5 {
		t.Errorf("Expected other sessions to still be applied, got %v", spotify.Vol)
	}
}

func TestHostCycle_ApplyFailureIsRecoverable(t *testing.T) {
	backend, _, game, browser := testBackend()
	game.VolumeErr = errors.New("sink input gone")

	host := NewHost(wire.NewLink(newStream(testFrame...)), backend, testBindings(t), false)
	report, err := host.Cycle()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "sink input gone") {
		t.Errorf("Unexpected warnings: %v", report.Warnings)
	}
	if browser.SetVolumeCalls != 1 {
		t.Error("Expected later dials to be applied after a failure")
	}
}

func TestHostCycle_TransportFailureIsFatal(t *testing.T) {
	backend, _, _, _ := testBackend()
	host := NewHost(wire.NewLink(newStream(0x80, 0x00, 0x00)), backend, testBindings(t), false)

	_, err := host.Cycle()
	if err == nil {
		t.Fatal("Expected error on a short frame")
	}
	if !IsFatal(err) {
		t.Errorf("Expected transport error to be fatal, got: %v", err)
	}
	if backend.Listed != 0 {
		t.Error("Expected no session enumeration after a failed receive")
	}
}

func TestHostRun_StopsOnFatalError(t *testing.T) {
	backend, _, _, _ := testBackend()
	s := newStream(append(append([]byte{}, testFrame...), testFrame...)...)
	host := NewHost(wire.NewLink(s), backend, testBindings(t), false)

	var reports []*CycleReport
	host.AddObserver(ObserverFunc(func(r *CycleReport) {
		reports = append(reports, r)
	}))

	err := host.Run(context.Background())
	if !IsFatal(err) {
		t.Fatalf("Expected fatal error once the stream ends, got: %v", err)
	}
	if len(reports) != 2 || reports[1].Cycle != 2 {
		t.Errorf("Expected 2 observed cycles, got %d", len(reports))
	}
}

func TestHostRun_CancelledContext(t *testing.T) {
	backend, _, _, _ := testBackend()
	host := NewHost(wire.NewLink(newStream(testFrame...)), backend, testBindings(t), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := host.Run(ctx); err != nil {
		t.Errorf("Expected clean stop, got: %v", err)
	}
	if backend.Listed != 0 {
		t.Error("Expected no cycle after cancellation")
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(errors.New("session vanished")) {
		t.Error("Expected plain errors to be recoverable")
	}
	if !IsFatal(wire.ErrFrameSize) || !IsFatal(wire.ErrInvalidFlag) {
		t.Error("Expected frame errors to be fatal")
	}
	if IsFatal(nil) {
		t.Error("Expected nil to not be fatal")
	}
}
