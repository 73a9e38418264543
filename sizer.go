// FILE: sizer.go
// Package main – Position sizer.
//
// Pure fixed-risk sizing and trade-parameter validation. No I/O; the
// orchestrator supplies account_balance, entry, stop, tp. Fixed-risk sizing
// against a stop distance, carried in decimal rather than float64.
package main

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrBalanceTooLow  = errors.New("account balance below minimum")
	ErrInvalidPrice   = errors.New("entry/stop price invalid")
	ErrStopEqualsEntry = errors.New("stop equals entry")
	ErrStopDistance   = errors.New("stop distance outside allowed band")
	ErrRRBand         = errors.New("risk/reward outside allowed band")
)

const (
	riskPerTradeDefault = 0.01
	minAccountBalance   = 100
	rrMax               = 5.0
)

// SizingResult is the output of the position sizer.
type SizingResult struct {
	RiskAmount   decimal.Decimal
	StopDistance decimal.Decimal
	SizeBase     decimal.Decimal
	SizeQuote    decimal.Decimal
	RR           decimal.Decimal
}

// SizePosition computes size_base/size_quote from account_balance, entry,
// and stop, and validates every sizing precondition. riskPerTrade is the
// configured fraction of balance to risk (default 0.01).
func SizePosition(accountBalance, entry, stop, tp decimal.Decimal, riskPerTrade decimal.Decimal) (SizingResult, error) {
	if accountBalance.LessThan(decimal.NewFromInt(minAccountBalance)) {
		return SizingResult{}, fmt.Errorf("sizer: balance %s: %w", accountBalance, ErrBalanceTooLow)
	}
	if entry.LessThanOrEqual(decimal.Zero) || stop.LessThanOrEqual(decimal.Zero) {
		return SizingResult{}, fmt.Errorf("sizer: %w", ErrInvalidPrice)
	}
	if entry.Equal(stop) {
		return SizingResult{}, fmt.Errorf("sizer: %w", ErrStopEqualsEntry)
	}

	stopDistance := entry.Sub(stop).Abs()
	distPct := stopDistance.Div(entry).Mul(decimal.NewFromInt(100))
	if distPct.LessThan(decimal.NewFromFloat(slMinDistPct)) || distPct.GreaterThan(decimal.NewFromFloat(slMaxDistPct)) {
		return SizingResult{}, fmt.Errorf("sizer: distance %.4f%%: %w", distPct.InexactFloat64(), ErrStopDistance)
	}

	if riskPerTrade.IsZero() {
		riskPerTrade = decimal.NewFromFloat(riskPerTradeDefault)
	}
	riskAmount := round8(accountBalance.Mul(riskPerTrade))
	sizeBase := round8(riskAmount.Div(stopDistance))
	sizeQuote := round8(sizeBase.Mul(entry))

	rr := tp.Sub(entry).Abs().Div(stopDistance)
	if rr.LessThan(decimal.NewFromFloat(minRR)) || rr.GreaterThan(decimal.NewFromFloat(rrMax)) {
		return SizingResult{}, fmt.Errorf("sizer: rr %.4f: %w", rr.InexactFloat64(), ErrRRBand)
	}

	return SizingResult{
		RiskAmount:   riskAmount,
		StopDistance: round8(stopDistance),
		SizeBase:     sizeBase,
		SizeQuote:    sizeQuote,
		RR:           round8(rr),
	}, nil
}
