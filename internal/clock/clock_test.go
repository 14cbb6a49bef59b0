package clock

import (
	"testing"
	"time"
)

func TestManualAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewManual(start)

	if got := c.Advance(90 * time.Second); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("unexpected advanced time: %v", got)
	}
	if got := c.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("Now did not reflect advance: %v", got)
	}

	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Set did not apply: %v", got)
	}
}

func TestSystemIsMonotonic(t *testing.T) {
	var c Clock = System{}
	first := c.Now()
	second := c.Now()
	if second.Sub(first) < 0 {
		t.Fatalf("system clock went backwards: %v -> %v", first, second)
	}
}
