// FILE: stoploss.go
// Package main – Swing-anchored stop-loss calculator.
//
// Pure function, no I/O: candidates are passed in by the caller (the
// orchestrator resolves the active 5M swing and the swept 4H swing before
// calling). Walks an ordered candidate list and falls back from the finer
// timeframe to the coarser one.
package main

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNoValidStop is returned when no candidate swing yields an acceptable
// stop-loss.
var ErrNoValidStop = errors.New("no valid stop-loss candidate")

const (
	slBufferLong  = 0.002 // LONG stop = swing * (1 - 0.002)
	slBufferShort = 0.003 // SHORT stop = swing * (1 + 0.003)
	slMinDistPct  = 0.5
	slMaxDistPct  = 3.0
	minRR         = 2.0
)

// StopLossCandidate is one swing under consideration as a stop anchor.
type StopLossCandidate struct {
	Source StopSource
	Swing  Swing
}

// StopLossResult is the accepted stop, its source, and the derived minimum
// take-profit.
type StopLossResult struct {
	Stop             decimal.Decimal
	Source           StopSource
	MinTakeProfit    decimal.Decimal
	DistancePercent  decimal.Decimal
}

// CalculateStopLoss walks candidates in order (5M swing first, then 4H
// swing) and returns the first one that passes side-correctness and
// distance checks. direction must already be validated to match the
// sweep's bias by the caller — this function only computes geometry.
func CalculateStopLoss(direction Direction, entry decimal.Decimal, candidates []StopLossCandidate) (StopLossResult, error) {
	for _, cand := range candidates {
		stop := computeStop(direction, cand.Swing.Price)

		if direction == Long && !stop.LessThan(entry) {
			IncStopLossRejection("wrong_side")
			continue
		}
		if direction == Short && !stop.GreaterThan(entry) {
			IncStopLossRejection("wrong_side")
			continue
		}

		distPct := entry.Sub(stop).Abs().Div(entry).Mul(decimal.NewFromInt(100))
		if distPct.LessThan(decimal.NewFromFloat(slMinDistPct)) {
			IncStopLossRejection("too_close")
			continue
		}
		if distPct.GreaterThan(decimal.NewFromFloat(slMaxDistPct)) {
			IncStopLossRejection("too_far")
			continue
		}

		distAbs := entry.Sub(stop).Abs()
		var minTP decimal.Decimal
		if direction == Long {
			minTP = entry.Add(distAbs.Mul(decimal.NewFromInt(2)))
		} else {
			minTP = entry.Sub(distAbs.Mul(decimal.NewFromInt(2)))
		}

		return StopLossResult{
			Stop:            round8(stop),
			Source:          cand.Source,
			MinTakeProfit:   round8(minTP),
			DistancePercent: distPct,
		}, nil
	}
	return StopLossResult{}, fmt.Errorf("stop-loss: %w", ErrNoValidStop)
}

// computeStop applies the directional buffer to a swing price.
func computeStop(direction Direction, swingPrice decimal.Decimal) decimal.Decimal {
	if direction == Long {
		return swingPrice.Mul(decimal.NewFromFloat(1 - slBufferLong))
	}
	return swingPrice.Mul(decimal.NewFromFloat(1 + slBufferShort))
}

// BuildCandidates assembles the ordered candidate list: the active 5M swing
// of the correct kind first, falling back to the 4H swing that was swept.
// Either may be nil if unavailable.
func BuildCandidates(direction Direction, fiveMinSwing *Swing, fourHourSwept *Swing) []StopLossCandidate {
	var out []StopLossCandidate
	wantKind := SwingLow
	if direction == Short {
		wantKind = SwingHigh
	}
	if fiveMinSwing != nil && fiveMinSwing.Kind == wantKind {
		out = append(out, StopLossCandidate{Source: Stop5MSwing, Swing: *fiveMinSwing})
	}
	if fourHourSwept != nil {
		out = append(out, StopLossCandidate{Source: Stop4HSwing, Swing: *fourHourSwept})
	}
	return out
}
