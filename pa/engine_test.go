package pa

import (
	"testing"
	"time"

	"github.com/jmhodges/clock"
)

func TestNewVerificationIDIsPrefixedAndMonotonicFormat(t *testing.T) {
	clk := clock.NewFake()
	clk.Set(time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC))

	id := newVerificationID(clk)
	want := "pa-20260305T143000.000000000"
	if id != want {
		t.Errorf("newVerificationID = %q, want %q", id, want)
	}
}

func TestNewVerificationIDChangesWithClock(t *testing.T) {
	clk := clock.NewFake()
	clk.Set(time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC))
	first := newVerificationID(clk)

	clk.Add(time.Second)
	second := newVerificationID(clk)

	if first == second {
		t.Errorf("expected distinct verification IDs after advancing the clock, got %q twice", first)
	}
}
