// FILE: confluence.go
// Package main – 5M CHoCH → FVG-fill → BOS confluence state machine.
//
// Modeled as a tagged variant with an explicit step(state, event) -> state'
// function that returns effects (persist, emit-signal) rather than
// performing them inline — this keeps the transition logic a pure function,
// easy to test for monotonicity and no-regression independent of any I/O.
package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// chochRatio / bosRatio / fvgGapRatio are the pattern-confirmation thresholds.
var (
	chochRatio  = decimal.NewFromFloat(1.001)
	bosRatio    = decimal.NewFromFloat(1.001)
	fvgGapRatio = decimal.NewFromFloat(0.001)
)

// confluenceEffectKind tags what the orchestrator must do after a step.
type confluenceEffectKind string

const (
	effectNone      confluenceEffectKind = "NONE"
	effectPersist   confluenceEffectKind = "PERSIST"
	effectEmitSignal confluenceEffectKind = "EMIT_SIGNAL"
)

// confluenceEffect is the side effect a step produces; the caller executes it.
type confluenceEffect struct {
	Kind confluenceEffectKind
	Next ConfluenceCtx
}

// step is the pure transition function: given the current context, the
// sweep it belongs to, the closed 5M candle window ending at the newest
// candle, and now, returns the next context plus the effect to perform.
// It never mutates ctx and never does I/O.
func step(ctx ConfluenceCtx, sweep Sweep, window []Candle, now time.Time) confluenceEffect {
	if ctx.expired(now) {
		next := ctx
		next.State = Expired
		return confluenceEffect{Kind: effectPersist, Next: next}
	}
	if ctx.State == Complete || ctx.State == Expired {
		return confluenceEffect{Kind: effectNone, Next: ctx}
	}

	bullish := sweep.Bias == BiasBullish

	switch ctx.State {
	case WaitingCHoCH:
		mark, ok := findCHoCH(window, bullish)
		if !ok {
			return confluenceEffect{Kind: effectNone, Next: ctx}
		}
		next := ctx
		next.CHoCH = &mark
		next.State = WaitingFVG
		return confluenceEffect{Kind: effectPersist, Next: next}

	case WaitingFVG:
		if ctx.CHoCH == nil {
			return confluenceEffect{Kind: effectNone, Next: ctx}
		}
		if ctx.FVG == nil {
			gap, ok := findFVG(window, *ctx.CHoCH, bullish)
			if !ok {
				return confluenceEffect{Kind: effectNone, Next: ctx}
			}
			next := ctx
			next.FVG = &gap
			return confluenceEffect{Kind: effectPersist, Next: next}
		}
		fillTs, ok := findFVGFill(window, *ctx.FVG, bullish)
		if !ok {
			return confluenceEffect{Kind: effectNone, Next: ctx}
		}
		next := ctx
		filled := *ctx.FVG
		filled.FillTs = fillTs
		next.FVG = &filled
		next.State = WaitingBOS
		return confluenceEffect{Kind: effectPersist, Next: next}

	case WaitingBOS:
		if ctx.CHoCH == nil || ctx.FVG == nil || !ctx.FVG.filled() {
			return confluenceEffect{Kind: effectNone, Next: ctx}
		}
		mark, ok := findBOS(window, *ctx.CHoCH, ctx.FVG.FillTs, bullish)
		if !ok {
			return confluenceEffect{Kind: effectNone, Next: ctx}
		}
		next := ctx
		next.BOS = &mark
		next.State = Complete
		return confluenceEffect{Kind: effectEmitSignal, Next: next}

	default:
		return confluenceEffect{Kind: effectNone, Next: ctx}
	}
}

// findCHoCH scans window for the earliest candle c whose close breaks the
// max/min high/low of the previous 5 closed candles by the CHoCH ratio.
// Ties (multiple candidates in one batch) resolve to the earliest by ts.
func findCHoCH(window []Candle, bullish bool) (CHoCHMark, bool) {
	for i := 5; i < len(window); i++ {
		c := window[i]
		prev := window[i-5 : i]
		if bullish {
			maxHigh := prev[0].High
			for _, p := range prev[1:] {
				if p.High.GreaterThan(maxHigh) {
					maxHigh = p.High
				}
			}
			if c.Close.GreaterThan(maxHigh.Mul(chochRatio)) {
				return CHoCHMark{Ts: c.TsStart, Price: c.Close}, true
			}
		} else {
			minLow := prev[0].Low
			for _, p := range prev[1:] {
				if p.Low.LessThan(minLow) {
					minLow = p.Low
				}
			}
			if c.Close.LessThan(minLow.Div(chochRatio)) {
				return CHoCHMark{Ts: c.TsStart, Price: c.Close}, true
			}
		}
	}
	return CHoCHMark{}, false
}

// findFVG scans sliding triples (c1,c2,c3) with c3.ts > choch.ts for the
// earliest qualifying fair value gap.
func findFVG(window []Candle, choch CHoCHMark, bullish bool) (FVGMark, bool) {
	for i := 2; i < len(window); i++ {
		c1, c3 := window[i-2], window[i]
		if !c3.TsStart.After(choch.Ts) {
			continue
		}
		if bullish {
			if c3.Low.GreaterThan(c1.High) {
				gapRatio := c3.Low.Sub(c1.High).Div(c3.Low)
				if gapRatio.GreaterThanOrEqual(fvgGapRatio) {
					return FVGMark{Ts: c3.TsStart, Lo: c1.High, Hi: c3.Low}, true
				}
			}
		} else {
			if c3.High.LessThan(c1.Low) {
				gapRatio := c1.Low.Sub(c3.High).Div(c3.High)
				if gapRatio.GreaterThanOrEqual(fvgGapRatio) {
					return FVGMark{Ts: c3.TsStart, Lo: c3.High, Hi: c1.Low}, true
				}
			}
		}
	}
	return FVGMark{}, false
}

// findFVGFill finds the first candle after the gap's ts whose excursion
// retraces into the gap range.
func findFVGFill(window []Candle, gap FVGMark, bullish bool) (time.Time, bool) {
	for _, c := range window {
		if !c.TsStart.After(gap.Ts) {
			continue
		}
		if bullish {
			if c.Low.LessThanOrEqual(gap.Lo) {
				return c.TsStart, true
			}
		} else {
			if c.High.GreaterThanOrEqual(gap.Hi) {
				return c.TsStart, true
			}
		}
	}
	return time.Time{}, false
}

// findBOS finds the earliest candle after fillTs whose close confirms the
// break of structure beyond the CHoCH level.
func findBOS(window []Candle, choch CHoCHMark, fillTs time.Time, bullish bool) (BOSMark, bool) {
	for _, c := range window {
		if !c.TsStart.After(fillTs) {
			continue
		}
		if bullish {
			if c.Close.GreaterThan(choch.Price.Mul(bosRatio)) {
				return BOSMark{Ts: c.TsStart, Price: c.Close}, true
			}
		} else {
			if c.Close.LessThan(choch.Price.Div(bosRatio)) {
				return BOSMark{Ts: c.TsStart, Price: c.Close}, true
			}
		}
	}
	return BOSMark{}, false
}
