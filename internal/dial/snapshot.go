package dial

// Count is the number of physical dials wired to the device.
const Count = 3

// Snapshot is one Percentage per dial, in wiring order. It is immutable once
// built.
type Snapshot struct {
	percentages []Percentage
}

// NewSnapshot copies the given percentages into a new Snapshot.
func NewSnapshot(percentages ...Percentage) Snapshot {
	p := make([]Percentage, len(percentages))
	copy(p, percentages)
	return Snapshot{percentages: p}
}

// Len returns the number of dials in the snapshot.
func (s Snapshot) Len() int {
	return len(s.percentages)
}

// At returns the percentage of dial i.
func (s Snapshot) At(i int) Percentage {
	return s.percentages[i]
}

// Percentages returns a copy of all percentages.
func (s Snapshot) Percentages() []Percentage {
	p := make([]Percentage, len(s.percentages))
	copy(p, s.percentages)
	return p
}

// Equal reports whether both snapshots hold the same bits in the same order.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.percentages) != len(other.percentages) {
		return false
	}
	for i := range s.percentages {
		if s.percentages[i] != other.percentages[i] {
			return false
		}
	}
	return true
}

// MuteState holds one mute flag per configured binding, in binding order.
type MuteState []bool

// Equal reports whether both states hold the same flags.
func (m MuteState) Equal(other MuteState) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}
