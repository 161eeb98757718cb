// Package service runs the sync loop on both ends of the serial link: the
// device samples and transmits dial snapshots, the host receives them and
// applies them to the audio sessions bound to each dial.
package service

import (
	"errors"
	"sync"

	"github.com/audiolibrelab/dialmix/internal/wire"
)

// State is the step a sync loop is currently in.
type State string

const (
	StateIdle         State = "IDLE"
	StateSampling     State = "SAMPLING"
	StateEncoding     State = "ENCODING"
	StateTransmitting State = "TRANSMITTING"
	StateReceiving    State = "RECEIVING"
	StateDecoding     State = "DECODING"
	StateMatching     State = "MATCHING"
	StateAggregating  State = "AGGREGATING"
	StateApplying     State = "APPLYING"
)

// Observer is notified after every completed host cycle.
type Observer interface {
	Observe(report *CycleReport)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(report *CycleReport)

func (f ObserverFunc) Observe(report *CycleReport) {
	f(report)
}

// IsFatal reports whether err ends a sync loop. Transport failures and
// malformed frames leave the stream in an unknown position, so they cannot
// be retried.
func IsFatal(err error) bool {
	return errors.Is(err, wire.ErrTransport) ||
		errors.Is(err, wire.ErrFrameSize) ||
		errors.Is(err, wire.ErrInvalidFlag)
}

// loopState is the state and error bookkeeping shared by both loops.
type loopState struct {
	mu        sync.RWMutex
	state     State
	lastError string
}

func (l *loopState) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// State returns the current step of the loop.
func (l *loopState) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state == "" {
		return StateIdle
	}
	return l.state
}

func (l *loopState) setLastError(msg string) {
	l.mu.Lock()
	l.lastError = msg
	l.mu.Unlock()
}

func (l *loopState) clearLastError() {
	l.setLastError("")
}

// GetLastError returns the most recent recoverable problem, or "" when the
// last cycle was clean.
func (l *loopState) GetLastError() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastError
}
