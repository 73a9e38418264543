package main

import (
	"testing"
	"time"
)

func cndl(ts time.Time, high, low, close float64) Candle {
	return Candle{
		Timeframe: TF5Min,
		TsStart:   ts,
		Open:      D(close),
		High:      D(high),
		Low:       D(low),
		Close:     D(close),
		Volume:    D(1),
	}
}

// bullishWindow builds a window containing, in order: 5 quiet candles, a
// CHoCH break at index 5, an FVG opened at index 8, its fill at index 9,
// and a BOS confirmation at index 10.
func bullishWindow(base time.Time) []Candle {
	step := 5 * time.Minute
	ts := func(i int) time.Time { return base.Add(time.Duration(i) * step) }
	out := []Candle{
		cndl(ts(0), 100, 90, 95),
		cndl(ts(1), 100, 90, 95),
		cndl(ts(2), 100, 90, 95),
		cndl(ts(3), 100, 90, 95),
		cndl(ts(4), 100, 90, 95),
		cndl(ts(5), 101.5, 95, 101.2), // CHoCH: close 101.2 > 100*1.001
		cndl(ts(6), 101, 95, 99),      // c1 of the FVG triple (High=101)
		cndl(ts(7), 100, 98, 99),
		cndl(ts(8), 103, 102.5, 103), // c3 of the FVG triple (Low=102.5)
		cndl(ts(9), 102.0, 100.8, 101.9), // fill: Low 100.8 <= gap.Lo 101 (c1.High)
		cndl(ts(10), 101.6, 101.4, 101.5), // BOS: close 101.5 > 101.2*1.001
	}
	return out
}

func TestStep_FullBullishPipeline(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := bullishWindow(base)
	sweep := Sweep{ID: 1, Bias: BiasBullish}
	now := base.Add(time.Hour)

	ctx := ConfluenceCtx{SweepRef: 1, State: WaitingCHoCH, StartTs: base}

	eff := step(ctx, sweep, window, now)
	if eff.Kind != effectPersist {
		t.Fatalf("CHoCH stage: kind = %s, want PERSIST", eff.Kind)
	}
	if eff.Next.State != WaitingFVG {
		t.Fatalf("CHoCH stage: state = %s, want WAITING_FVG", eff.Next.State)
	}
	if eff.Next.CHoCH == nil {
		t.Fatalf("CHoCH stage: CHoCH mark not set")
	}
	ctx = eff.Next

	eff = step(ctx, sweep, window, now)
	if eff.Kind != effectPersist {
		t.Fatalf("FVG-open stage: kind = %s, want PERSIST", eff.Kind)
	}
	if eff.Next.FVG == nil || eff.Next.FVG.filled() {
		t.Fatalf("FVG-open stage: expected an unfilled gap")
	}
	if eff.Next.State != WaitingFVG {
		t.Fatalf("FVG-open stage: state advanced early to %s", eff.Next.State)
	}
	ctx = eff.Next

	eff = step(ctx, sweep, window, now)
	if eff.Kind != effectPersist {
		t.Fatalf("FVG-fill stage: kind = %s, want PERSIST", eff.Kind)
	}
	if eff.Next.State != WaitingBOS {
		t.Fatalf("FVG-fill stage: state = %s, want WAITING_BOS", eff.Next.State)
	}
	if !eff.Next.FVG.filled() {
		t.Fatalf("FVG-fill stage: gap not marked filled")
	}
	ctx = eff.Next

	eff = step(ctx, sweep, window, now)
	if eff.Kind != effectEmitSignal {
		t.Fatalf("BOS stage: kind = %s, want EMIT_SIGNAL", eff.Kind)
	}
	if eff.Next.State != Complete {
		t.Fatalf("BOS stage: state = %s, want COMPLETE", eff.Next.State)
	}
	if eff.Next.BOS == nil {
		t.Fatalf("BOS stage: BOS mark not set")
	}
}

func TestStep_ExpiresAfterTTL(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := ConfluenceCtx{SweepRef: 1, State: WaitingFVG, StartTs: base}
	sweep := Sweep{ID: 1, Bias: BiasBullish}
	now := base.Add(13 * time.Hour) // past confluenceTTL (12h)

	eff := step(ctx, sweep, nil, now)
	if eff.Kind != effectPersist {
		t.Fatalf("kind = %s, want PERSIST", eff.Kind)
	}
	if eff.Next.State != Expired {
		t.Fatalf("state = %s, want EXPIRED", eff.Next.State)
	}
}

func TestStep_TerminalStatesAreNoop(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sweep := Sweep{ID: 1, Bias: BiasBullish}
	now := base.Add(time.Hour)

	for _, st := range []ConfluenceState{Complete, Expired} {
		ctx := ConfluenceCtx{SweepRef: 1, State: st, StartTs: base}
		eff := step(ctx, sweep, nil, now)
		if eff.Kind != effectNone {
			t.Fatalf("state %s: kind = %s, want NONE", st, eff.Kind)
		}
		if eff.Next.State != st {
			t.Fatalf("state %s: unexpectedly transitioned to %s", st, eff.Next.State)
		}
	}
}

func TestStep_NoProgressWithoutQualifyingCandle(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	step5 := 5 * time.Minute
	flat := []Candle{
		cndl(base, 100, 90, 95),
		cndl(base.Add(step5), 100, 90, 95),
		cndl(base.Add(2*step5), 100, 90, 95),
		cndl(base.Add(3*step5), 100, 90, 95),
		cndl(base.Add(4*step5), 100, 90, 95),
		cndl(base.Add(5*step5), 100, 90, 95), // no break
	}
	sweep := Sweep{ID: 1, Bias: BiasBullish}
	ctx := ConfluenceCtx{SweepRef: 1, State: WaitingCHoCH, StartTs: base}

	eff := step(ctx, sweep, flat, base.Add(time.Hour))
	if eff.Kind != effectNone {
		t.Fatalf("kind = %s, want NONE", eff.Kind)
	}
	if eff.Next.State != WaitingCHoCH {
		t.Fatalf("state advanced to %s without a qualifying candle", eff.Next.State)
	}
}
