package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/audiolibrelab/dialmix/internal/dial"
)

// pipe is an in-memory stream that records each Write call.
type pipe struct {
	in     bytes.Buffer
	out    bytes.Buffer
	writes int
	err    error
}

func (p *pipe) Read(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.in.Read(b)
}

func (p *pipe) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.writes++
	return p.out.Write(b)
}

func TestLink_SendSnapshotWritesBytesIndividually(t *testing.T) {
	p := &pipe{}
	link := NewLink(p)

	snap := dial.NewSnapshot(dial.FromBits(0x1234), dial.FromBits(0xABCD), dial.FromBits(0))
	if err := link.SendSnapshot(snap); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if p.writes != 6 {
		t.Errorf("Expected 6 single-byte writes, got %d", p.writes)
	}
	if !bytes.Equal(p.out.Bytes(), []byte{0x12, 0x34, 0xAB, 0xCD, 0x00, 0x00}) {
		t.Errorf("Unexpected bytes on the wire: %x", p.out.Bytes())
	}
}

func TestLink_ReceiveSnapshot(t *testing.T) {
	p := &pipe{}
	p.in.Write([]byte{0x7F, 0xE0, 0xFF, 0xFF})
	link := NewLink(p)

	snap, err := link.ReceiveSnapshot(2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if snap.At(0).Bits() != 0x7FE0 || snap.At(1).Bits() != 0xFFFF {
		t.Errorf("Unexpected snapshot: %v", snap.Percentages())
	}
}

func TestLink_ShortReadIsTransportError(t *testing.T) {
	p := &pipe{}
	p.in.Write([]byte{0x7F})
	link := NewLink(p)

	_, err := link.ReceiveSnapshot(1)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Expected ErrTransport, got: %v", err)
	}
}

func TestLink_WriteFailureIsTransportError(t *testing.T) {
	p := &pipe{err: errors.New("device unplugged")}
	link := NewLink(p)

	err := link.SendMuteState(dial.MuteState{true})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Expected ErrTransport, got: %v", err)
	}
}

func TestLink_MuteStateBothWays(t *testing.T) {
	host := &pipe{}
	if err := NewLink(host).SendMuteState(dial.MuteState{true, false, true}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	device := &pipe{}
	device.in.Write(host.out.Bytes())

	state, err := NewLink(device).ReceiveMuteState(3)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !state.Equal(dial.MuteState{true, false, true}) {
		t.Errorf("Unexpected mute state: %v", state)
	}
}
