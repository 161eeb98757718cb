package dial

import (
	"fmt"
	"sync"
)

// ChannelReader reads one analog channel. Reads may block on hardware.
type ChannelReader interface {
	Read() RawSample
}

// Dials samples a fixed, ordered set of channels.
type Dials struct {
	channels   []ChannelReader
	resolution Resolution
}

// New creates a dial set. The channel order is the wiring order and is kept
// for every snapshot.
func New(resolution Resolution, channels ...ChannelReader) (*Dials, error) {
	if err := resolution.Validate(); err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}
	return &Dials{
		channels:   append([]ChannelReader(nil), channels...),
		resolution: resolution,
	}, nil
}

// Len returns the number of channels.
func (d *Dials) Len() int {
	return len(d.channels)
}

// Resolution returns the resolution used to encode samples.
func (d *Dials) Resolution() Resolution {
	return d.resolution
}

// Snapshot reads every channel in order. Nothing is cached between calls.
func (d *Dials) Snapshot() Snapshot {
	percentages := make([]Percentage, len(d.channels))
	for i, ch := range d.channels {
		percentages[i] = Encode(ch.Read(), d.resolution)
	}
	return Snapshot{percentages: percentages}
}

// FixedChannel always reads the same value.
type FixedChannel RawSample

func (c FixedChannel) Read() RawSample {
	return RawSample(c)
}

// SweepChannel walks up and down the range [0, max] by step on every read,
// standing in for a dial being turned back and forth.
type SweepChannel struct {
	mu      sync.Mutex
	max     RawSample
	step    RawSample
	value   RawSample
	falling bool
}

// NewSweepChannel creates a sweep starting at start.
func NewSweepChannel(max, step, start RawSample) *SweepChannel {
	if step == 0 {
		step = 1
	}
	if start > max {
		start = max
	}
	return &SweepChannel{max: max, step: step, value: start}
}

func (c *SweepChannel) Read() RawSample {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.value
	if c.falling {
		if c.value <= c.step {
			c.value = 0
			c.falling = false
		} else {
			c.value -= c.step
		}
	} else {
		if c.max-c.value <= c.step {
			c.value = c.max
			c.falling = true
		} else {
			c.value += c.step
		}
	}
	return v
}
