// FILE: decimal.go
// Package main – Fixed-precision arithmetic and UTC time helpers.
//
// All monetary values in this engine (prices, sizes, stops, PnL) are
// shopspring/decimal values carried at 8 fractional digits. Float64 is only
// acceptable for non-persisted heuristics, and there are none in the core.
package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// pricePrecision is the minimum fractional-digit precision this engine carries.
const pricePrecision = 8

func init() {
	decimal.DivisionPrecision = pricePrecision + 4
}

// D is a short constructor for a decimal from a float64 literal (test/config
// convenience only — never used on a value that came from a price feed).
func D(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// round8 normalizes a decimal to the engine's canonical 8-digit scale.
func round8(d decimal.Decimal) decimal.Decimal {
	return d.Round(pricePrecision)
}

// pctOf returns d * (pct/100).
func pctOf(d decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return round8(d.Mul(pct).Div(decimal.NewFromInt(100)))
}

// Timeframe identifies a candle granularity tracked by the engine.
type Timeframe string

const (
	TF4Hour  Timeframe = "4H"
	TF5Min   Timeframe = "5M"
	TF1Hour  Timeframe = "1H"
	TF1Day   Timeframe = "1D"
	TF1Min   Timeframe = "1M"
)

// duration returns the wall-clock span of one candle at this timeframe.
func (tf Timeframe) duration() time.Duration {
	switch tf {
	case TF4Hour:
		return 4 * time.Hour
	case TF5Min:
		return 5 * time.Minute
	case TF1Hour:
		return time.Hour
	case TF1Day:
		return 24 * time.Hour
	case TF1Min:
		return time.Minute
	default:
		return 0
	}
}

// alignToBoundary floors ts to the start of the timeframe's bucket in UTC.
func alignToBoundary(tf Timeframe, ts time.Time) time.Time {
	ts = ts.UTC()
	d := tf.duration()
	if d <= 0 {
		return ts
	}
	return ts.Truncate(d)
}

// isAligned reports whether ts sits exactly on a timeframe boundary.
func isAligned(tf Timeframe, ts time.Time) bool {
	return alignToBoundary(tf, ts).Equal(ts.UTC())
}

// nowUTC is the engine's single source of wall-clock truth; isolated here so
// tests can't accidentally depend on local-time behavior elsewhere.
func nowUTC() time.Time { return time.Now().UTC() }

// midnightUTC returns 00:00:00 UTC of the day containing ts, used as the
// daily risk-reset boundary.
func midnightUTC(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
