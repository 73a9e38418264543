package main

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateStopLoss_S1Happy(t *testing.T) {
	entry := D(90692)
	swing5m := Swing{Kind: SwingLow, Price: D(90300)}
	candidates := BuildCandidates(Long, &swing5m, nil)

	got, err := CalculateStopLoss(Long, entry, candidates)
	if err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
	if got.Source != Stop5MSwing {
		t.Fatalf("expected 5M_SWING source, got %s", got.Source)
	}
	wantStop := decimal.NewFromFloat(90119.40)
	if got.Stop.Sub(wantStop).Abs().GreaterThan(D(0.01)) {
		t.Fatalf("stop = %s, want ~%s", got.Stop, wantStop)
	}
}

func TestCalculateStopLoss_S2Fallback(t *testing.T) {
	entry := D(90692)
	swing5m := Swing{Kind: SwingLow, Price: D(90650)} // too close, rejected
	swing4h := Swing{Kind: SwingLow, Price: D(89000)} // accepted as fallback
	candidates := BuildCandidates(Long, &swing5m, &swing4h)

	got, err := CalculateStopLoss(Long, entry, candidates)
	if err != nil {
		t.Fatalf("expected accept via fallback, got %v", err)
	}
	if got.Source != Stop4HSwing {
		t.Fatalf("expected 4H_SWING fallback, got %s", got.Source)
	}
}

func TestCalculateStopLoss_S3BothInvalid(t *testing.T) {
	entry := D(90692)
	swing5m := Swing{Kind: SwingLow, Price: D(90689.9)} // too close
	swing4h := Swing{Kind: SwingLow, Price: D(87800)}   // too far
	candidates := BuildCandidates(Long, &swing5m, &swing4h)

	_, err := CalculateStopLoss(Long, entry, candidates)
	if !errors.Is(err, ErrNoValidStop) {
		t.Fatalf("expected ErrNoValidStop, got %v", err)
	}
}

func TestCalculateStopLoss_ShortWrongSide(t *testing.T) {
	entry := D(90000)
	// A LOW swing used for a SHORT stop will sit below entry — wrong side.
	swing := Swing{Kind: SwingLow, Price: D(89000)}
	candidates := []StopLossCandidate{{Source: Stop5MSwing, Swing: swing}}

	_, err := CalculateStopLoss(Short, entry, candidates)
	if !errors.Is(err, ErrNoValidStop) {
		t.Fatalf("expected rejection on wrong side, got %v", err)
	}
}

func TestBuildCandidates_FiltersWrongKind(t *testing.T) {
	highSwing := Swing{Kind: SwingHigh, Price: D(91000)}
	out := BuildCandidates(Long, &highSwing, nil)
	if len(out) != 0 {
		t.Fatalf("expected no candidates for mismatched kind, got %d", len(out))
	}
}
