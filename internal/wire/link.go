package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/audiolibrelab/dialmix/internal/dial"
)

// ErrTransport wraps every read or write failure on the link. The link cannot
// be trusted after one.
var ErrTransport = errors.New("transport failure")

// Link carries frames over a byte stream, one byte at a time.
//
// A Link must have a single owner: frames are not delimited, so interleaved
// readers or writers would corrupt the stream.
type Link struct {
	rw  io.ReadWriter
	buf [1]byte
}

// NewLink wraps a byte stream such as an open serial port.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{rw: rw}
}

// WriteByte blocks until b has been handed to the transport.
func (l *Link) WriteByte(b byte) error {
	l.buf[0] = b
	if _, err := l.rw.Write(l.buf[:]); err != nil {
		return fmt.Errorf("%w: write: %v", ErrTransport, err)
	}
	return nil
}

// ReadByte blocks until one byte arrives. There is no timeout.
func (l *Link) ReadByte() (byte, error) {
	if _, err := io.ReadFull(l.rw, l.buf[:]); err != nil {
		return 0, fmt.Errorf("%w: read: %v", ErrTransport, err)
	}
	return l.buf[0], nil
}

// WriteFrame writes frame byte by byte. Frames carry no delimiter.
func (l *Link) WriteFrame(frame []byte) error {
	for _, b := range frame {
		if err := l.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame blocks until size bytes have arrived.
func (l *Link) ReadFrame(size int) ([]byte, error) {
	frame := make([]byte, size)
	for i := range frame {
		b, err := l.ReadByte()
		if err != nil {
			return nil, err
		}
		frame[i] = b
	}
	return frame, nil
}

// SendSnapshot encodes and transmits a snapshot frame.
func (l *Link) SendSnapshot(s dial.Snapshot) error {
	return l.WriteFrame(EncodeSnapshot(s))
}

// ReceiveSnapshot blocks until a full snapshot frame for n dials arrives.
func (l *Link) ReceiveSnapshot(n int) (dial.Snapshot, error) {
	frame, err := l.ReadFrame(SnapshotFrameSize(n))
	if err != nil {
		return dial.Snapshot{}, err
	}
	return DecodeSnapshot(frame, n)
}

// SendMuteState encodes and transmits a mute state frame.
func (l *Link) SendMuteState(m dial.MuteState) error {
	return l.WriteFrame(EncodeMuteState(m))
}

// ReceiveMuteState blocks until a full mute state frame for m bindings arrives.
func (l *Link) ReceiveMuteState(m int) (dial.MuteState, error) {
	frame, err := l.ReadFrame(MuteFrameSize(m))
	if err != nil {
		return nil, err
	}
	return DecodeMuteState(frame, m)
}
