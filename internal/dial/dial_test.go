package dial

import "testing"

type countingChannel struct {
	value RawSample
	reads int
}

func (c *countingChannel) Read() RawSample {
	c.reads++
	return c.value
}

func TestDials_SnapshotKeepsWiringOrder(t *testing.T) {
	d, err := New(2048, FixedChannel(0), FixedChannel(1024), FixedChannel(2047))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	snap := d.Snapshot()
	if snap.Len() != 3 {
		t.Fatalf("Expected 3 percentages, got %d", snap.Len())
	}

	expected := []uint16{0, 32768, 65504}
	for i, bits := range expected {
		if snap.At(i).Bits() != bits {
			t.Errorf("dial %d: expected bits %d, got %d", i, bits, snap.At(i).Bits())
		}
	}
}

func TestDials_EveryCycleReadsEveryChannel(t *testing.T) {
	a := &countingChannel{value: 10}
	b := &countingChannel{value: 20}
	d, err := New(DefaultResolution, a, b)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	d.Snapshot()
	d.Snapshot()

	if a.reads != 2 || b.reads != 2 {
		t.Errorf("Expected 2 reads per channel, got %d and %d", a.reads, b.reads)
	}
}

func TestDials_Validation(t *testing.T) {
	if _, err := New(DefaultResolution); err == nil {
		t.Error("Expected error for empty dial set")
	}
	if _, err := New(0, FixedChannel(0)); err == nil {
		t.Error("Expected error for zero resolution")
	}
}

func TestSnapshot_Immutable(t *testing.T) {
	src := []Percentage{1, 2}
	snap := NewSnapshot(src...)
	src[0] = 99

	if snap.At(0) != 1 {
		t.Errorf("Snapshot changed with its source slice: %d", snap.At(0))
	}

	out := snap.Percentages()
	out[1] = 99
	if snap.At(1) != 2 {
		t.Errorf("Snapshot changed through Percentages(): %d", snap.At(1))
	}
}

func TestSweepChannel_Bounces(t *testing.T) {
	c := NewSweepChannel(10, 4, 0)

	var got []RawSample
	for i := 0; i < 8; i++ {
		got = append(got, c.Read())
	}

	expected := []RawSample{0, 4, 8, 10, 6, 2, 0, 4}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("Expected sweep %v, got %v", expected, got)
		}
	}
}
