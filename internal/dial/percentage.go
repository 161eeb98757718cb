package dial

import (
	"fmt"
)

// RawSample is a single ADC reading, in the range [0, Resolution).
type RawSample = uint16

// Resolution is the exclusive upper bound of a RawSample. It must be larger
// than any value the ADC can produce.
type Resolution uint32

const (
	// DefaultResolution matches a 10-bit ADC with one bit of headroom.
	DefaultResolution Resolution = 2 << 10

	// MaxResolution is the largest resolution that still fits a 16-bit sample.
	MaxResolution Resolution = 1 << 16

	fracBits = 16
)

// Validate reports whether r can be used to encode samples.
func (r Resolution) Validate() error {
	if r == 0 || r > MaxResolution {
		return fmt.Errorf("resolution must be in (0, %d], got %d", MaxResolution, r)
	}
	return nil
}

// Percentage is a fixed-point fraction in [0, 1) with 16 fractional bits.
type Percentage uint16

// FromBits builds a Percentage from its raw 16-bit representation.
func FromBits(bits uint16) Percentage {
	return Percentage(bits)
}

// Bits returns the raw 16-bit representation.
func (p Percentage) Bits() uint16 {
	return uint16(p)
}

// Float64 returns the fraction as a float in [0, 1).
func (p Percentage) Float64() float64 {
	return float64(p) / float64(uint32(1)<<fracBits)
}

func (p Percentage) String() string {
	return fmt.Sprintf("%.2f%%", p.Float64()*100)
}

// Encode converts a raw sample into a Percentage of the given resolution.
//
// A sample at or above the resolution means the hardware produced a value it
// was never calibrated for. That is not something to retry, so Encode panics.
func Encode(raw RawSample, res Resolution) Percentage {
	if err := res.Validate(); err != nil {
		panic(fmt.Sprintf("dial: %v", err))
	}

	ratio := (uint32(raw) << fracBits) / uint32(res)
	if ratio>>fracBits != 0 {
		panic(fmt.Sprintf("dial: ADC value %d outside resolution %d", raw, res))
	}
	return Percentage(ratio)
}
