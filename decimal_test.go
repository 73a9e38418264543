package main

import (
	"testing"
	"time"
)

func TestRound8(t *testing.T) {
	got := round8(D(1.123456789))
	want := D(1.12345679) // rounds to 8 fractional digits
	if !got.Equal(want) {
		t.Fatalf("round8 = %s, want %s", got, want)
	}
}

func TestPctOf(t *testing.T) {
	got := pctOf(D(1000), D(3))
	if !got.Equal(D(30)) {
		t.Fatalf("pctOf(1000, 3%%) = %s, want 30", got)
	}
}

func TestTimeframeDuration(t *testing.T) {
	cases := map[Timeframe]time.Duration{
		TF4Hour: 4 * time.Hour,
		TF5Min:  5 * time.Minute,
		TF1Hour: time.Hour,
		TF1Day:  24 * time.Hour,
		TF1Min:  time.Minute,
	}
	for tf, want := range cases {
		if got := tf.duration(); got != want {
			t.Fatalf("%s.duration() = %s, want %s", tf, got, want)
		}
	}
}

func TestAlignToBoundary(t *testing.T) {
	ts := time.Date(2026, 1, 1, 13, 37, 0, 0, time.UTC)
	got := alignToBoundary(TF4Hour, ts)
	want := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("alignToBoundary(4H, %s) = %s, want %s", ts, got, want)
	}
}

func TestIsAligned(t *testing.T) {
	aligned := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	unaligned := time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC)
	if !isAligned(TF4Hour, aligned) {
		t.Fatalf("expected %s to be 4H-aligned", aligned)
	}
	if isAligned(TF4Hour, unaligned) {
		t.Fatalf("did not expect %s to be 4H-aligned", unaligned)
	}
}

func TestMidnightUTC(t *testing.T) {
	ts := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	got := midnightUTC(ts)
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("midnightUTC(%s) = %s, want %s", ts, got, want)
	}
}
