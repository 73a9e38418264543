package main

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSizePosition_Happy(t *testing.T) {
	balance := D(1000)
	entry := D(90692)
	stop := decimal.NewFromFloat(90119.40)
	tp := entry.Add(entry.Sub(stop).Abs().Mul(D(2)))

	got, err := SizePosition(balance, entry, stop, tp, D(0.01))
	if err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
	wantRisk := D(10) // 1% of 1000
	if !got.RiskAmount.Equal(wantRisk) {
		t.Fatalf("risk amount = %s, want %s", got.RiskAmount, wantRisk)
	}
	if got.RR.LessThan(D(minRR)) {
		t.Fatalf("rr %s below minimum", got.RR)
	}
}

func TestSizePosition_DefaultsRiskWhenZero(t *testing.T) {
	balance := D(1000)
	entry := D(90692)
	stop := decimal.NewFromFloat(90119.40)
	tp := entry.Add(entry.Sub(stop).Abs().Mul(D(2)))

	got, err := SizePosition(balance, entry, stop, tp, decimal.Zero)
	if err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
	want := balance.Mul(D(riskPerTradeDefault))
	if !got.RiskAmount.Equal(want) {
		t.Fatalf("risk amount = %s, want default %s", got.RiskAmount, want)
	}
}

func TestSizePosition_BalanceTooLow(t *testing.T) {
	_, err := SizePosition(D(99), D(90692), D(90119), D(91800), D(0.01))
	if !errors.Is(err, ErrBalanceTooLow) {
		t.Fatalf("expected ErrBalanceTooLow, got %v", err)
	}
}

func TestSizePosition_StopEqualsEntry(t *testing.T) {
	_, err := SizePosition(D(1000), D(90000), D(90000), D(92000), D(0.01))
	if !errors.Is(err, ErrStopEqualsEntry) {
		t.Fatalf("expected ErrStopEqualsEntry, got %v", err)
	}
}

func TestSizePosition_StopDistanceOutOfBand(t *testing.T) {
	// Distance under 0.5%.
	_, err := SizePosition(D(1000), D(90000), D(89800), D(91000), D(0.01))
	if !errors.Is(err, ErrStopDistance) {
		t.Fatalf("expected ErrStopDistance (too close), got %v", err)
	}

	// Distance over 3.0%.
	_, err = SizePosition(D(1000), D(90000), D(86000), D(100000), D(0.01))
	if !errors.Is(err, ErrStopDistance) {
		t.Fatalf("expected ErrStopDistance (too far), got %v", err)
	}
}

func TestSizePosition_RRBand(t *testing.T) {
	entry := D(90000)
	stop := D(89500) // 0.555% distance, within band
	// RR too low: tp only 1x the stop distance away.
	tpLow := entry.Add(entry.Sub(stop).Abs())
	if _, err := SizePosition(D(1000), entry, stop, tpLow, D(0.01)); !errors.Is(err, ErrRRBand) {
		t.Fatalf("expected ErrRRBand (too low), got %v", err)
	}

	// RR too high: tp 6x the stop distance away.
	tpHigh := entry.Add(entry.Sub(stop).Abs().Mul(D(6)))
	if _, err := SizePosition(D(1000), entry, stop, tpHigh, D(0.01)); !errors.Is(err, ErrRRBand) {
		t.Fatalf("expected ErrRRBand (too high), got %v", err)
	}
}
