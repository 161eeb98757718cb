// Package wire implements the fixed-length frames exchanged between the dial
// device and the host, and the byte-oriented link that carries them.
//
// Frames have no header, checksum or sync marker. Both ends must agree on the
// number of dials out of band; a single lost byte misaligns every frame that
// follows.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/audiolibrelab/dialmix/internal/dial"
)

const percentageSize = 2

var (
	ErrFrameSize   = errors.New("unexpected frame size")
	ErrInvalidFlag = errors.New("invalid mute flag")
)

// SnapshotFrameSize returns the length in bytes of a snapshot frame for n dials.
func SnapshotFrameSize(n int) int {
	return n * percentageSize
}

// MuteFrameSize returns the length in bytes of a mute state frame for m bindings.
func MuteFrameSize(m int) int {
	return m
}

// EncodeSnapshot writes each percentage as a big-endian uint16.
func EncodeSnapshot(s dial.Snapshot) []byte {
	frame := make([]byte, SnapshotFrameSize(s.Len()))
	for i := 0; i < s.Len(); i++ {
		binary.BigEndian.PutUint16(frame[i*percentageSize:], s.At(i).Bits())
	}
	return frame
}

// DecodeSnapshot parses a frame holding exactly n percentages.
func DecodeSnapshot(frame []byte, n int) (dial.Snapshot, error) {
	if len(frame) != SnapshotFrameSize(n) {
		return dial.Snapshot{}, fmt.Errorf("%w: snapshot of %d dials needs %d bytes, got %d",
			ErrFrameSize, n, SnapshotFrameSize(n), len(frame))
	}

	percentages := make([]dial.Percentage, n)
	for i := range percentages {
		percentages[i] = dial.FromBits(binary.BigEndian.Uint16(frame[i*percentageSize:]))
	}
	return dial.NewSnapshot(percentages...), nil
}

// EncodeMuteState writes one byte per binding, 1 for muted and 0 otherwise.
func EncodeMuteState(m dial.MuteState) []byte {
	frame := make([]byte, MuteFrameSize(len(m)))
	for i, muted := range m {
		if muted {
			frame[i] = 1
		}
	}
	return frame
}

// DecodeMuteState parses a frame holding exactly m flags.
func DecodeMuteState(frame []byte, m int) (dial.MuteState, error) {
	if len(frame) != MuteFrameSize(m) {
		return nil, fmt.Errorf("%w: mute state of %d bindings needs %d bytes, got %d",
			ErrFrameSize, m, MuteFrameSize(m), len(frame))
	}

	state := make(dial.MuteState, m)
	for i, b := range frame {
		switch b {
		case 0:
			state[i] = false
		case 1:
			state[i] = true
		default:
			return nil, fmt.Errorf("%w: byte %d is 0x%02x", ErrInvalidFlag, i, b)
		}
	}
	return state, nil
}
