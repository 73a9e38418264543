// FILE: model.go
// Package main – Core domain entities.
//
// These are the persisted records the rest of the engine operates on.
// Cross-entity references are by id (sweep_ref, swing_ref) — never owning
// pointers — so the candle store remains the single graph root.
package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar for a timeframe. Never mutated after insert.
type Candle struct {
	Timeframe Timeframe
	TsStart   time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// valid checks low <= open,close <= high, volume >= 0, and ts_start aligned
// to the timeframe boundary.
func (c Candle) valid() bool {
	if c.Volume.IsNegative() {
		return false
	}
	if !isAligned(c.Timeframe, c.TsStart) {
		return false
	}
	if c.Low.GreaterThan(c.Open) || c.Open.GreaterThan(c.High) {
		return false
	}
	if c.Low.GreaterThan(c.Close) || c.Close.GreaterThan(c.High) {
		return false
	}
	return true
}

// SwingKind distinguishes a local high from a local low.
type SwingKind string

const (
	SwingHigh SwingKind = "HIGH"
	SwingLow  SwingKind = "LOW"
)

// Swing is a confirmed local extremum on one timeframe. At most one active
// swing exists per (timeframe, kind); older swings of the same kind flip
// Active=false when superseded (owned by the swing tracker).
type Swing struct {
	ID        int64
	Timeframe Timeframe
	Ts        time.Time
	Kind      SwingKind
	Price     decimal.Decimal
	Active    bool
}

// Bias is the directional permission a sweep grants to downstream trades.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
)

// biasForSweepKind derives bias from which side of a swing was swept.
func biasForSweepKind(kind SwingKind) Bias {
	if kind == SwingHigh {
		return BiasBearish
	}
	return BiasBullish
}

// sweepTTL is how long an active sweep survives before auto-expiring.
const sweepTTL = 24 * time.Hour

// Sweep records a liquidity sweep of an active 4H swing. At most one active
// sweep exists globally; owned and retired by the 4H sweep detector or by
// the confluence state machine on COMPLETE/EXPIRED.
type Sweep struct {
	ID       int64
	Ts       time.Time
	Kind     SwingKind
	SwingRef int64
	Price    decimal.Decimal
	Bias     Bias
	Active   bool
}

// expired reports whether the sweep has outlived its TTL as of now.
func (s Sweep) expired(now time.Time) bool {
	return now.Sub(s.Ts) > sweepTTL
}

// ConfluenceState is the linear progression of the 5M confluence pipeline.
type ConfluenceState string

const (
	WaitingCHoCH ConfluenceState = "WAITING_CHOCH"
	WaitingFVG   ConfluenceState = "WAITING_FVG"
	WaitingBOS   ConfluenceState = "WAITING_BOS"
	Complete     ConfluenceState = "COMPLETE"
	Expired      ConfluenceState = "EXPIRED"
)

// confluenceTTL is the 12h window the whole pipeline must complete within.
const confluenceTTL = 12 * time.Hour

// CHoCHMark records where a Change of Character fired.
type CHoCHMark struct {
	Ts    time.Time
	Price decimal.Decimal
}

// FVGMark records a detected Fair Value Gap and, once retraced into, its
// fill timestamp.
type FVGMark struct {
	Ts     time.Time
	Lo     decimal.Decimal
	Hi     decimal.Decimal
	FillTs time.Time // zero until filled
}

func (f FVGMark) filled() bool { return !f.FillTs.IsZero() }

// BOSMark records where a Break of Structure confirmed the move.
type BOSMark struct {
	Ts    time.Time
	Price decimal.Decimal
}

// ConfluenceCtx is one-to-one with a Sweep: the 5M CHoCH→FVG→BOS pipeline
// state for that sweep, owned by the confluence state machine.
type ConfluenceCtx struct {
	ID       int64
	SweepRef int64
	State    ConfluenceState
	CHoCH    *CHoCHMark
	FVG      *FVGMark
	BOS      *BOSMark
	StartTs  time.Time // sweep creation time; TTL anchor
}

// expired reports whether the non-terminal context has outlived its TTL.
func (cc ConfluenceCtx) expired(now time.Time) bool {
	if cc.State == Complete || cc.State == Expired {
		return false
	}
	return now.Sub(cc.StartTs) > confluenceTTL
}

// Direction is the trade side.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// directionForBias maps a sweep's bias to the only direction it permits.
func directionForBias(b Bias) Direction {
	if b == BiasBullish {
		return Long
	}
	return Short
}

// StopSource records which swing anchored the stop-loss.
type StopSource string

const (
	Stop5MSwing StopSource = "5M_SWING"
	Stop4HSwing StopSource = "4H_SWING"
)

// Outcome is the realized result of a closed trade.
type Outcome string

const (
	OutcomeWin       Outcome = "WIN"
	OutcomeLoss      Outcome = "LOSS"
	OutcomeBreakeven Outcome = "BREAKEVEN"
)

// TradeStatus is the trade lifecycle state.
type TradeStatus string

const (
	TradePending  TradeStatus = "PENDING"
	TradeOpen     TradeStatus = "OPEN"
	TradeClosed   TradeStatus = "CLOSED"
	TradeRejected TradeStatus = "REJECTED"
)

// maxTradeDuration is the time-based exit horizon.
const maxTradeDuration = 72 * time.Hour

// Trade is the single live (or historical) position. At most one Trade
// with a nil ExitTs exists at any time. The execution manager inserts it;
// the position monitor mutates it until CLOSED.
type Trade struct {
	ID            int64
	SweepRef      int64
	Direction     Direction
	EntryPrice    decimal.Decimal
	EntryTs       time.Time
	SizeBase      decimal.Decimal
	SizeQuote     decimal.Decimal
	StopLoss      decimal.Decimal
	StopSource    StopSource
	TakeProfit    decimal.Decimal
	RR            decimal.Decimal
	TrailingFired bool
	Status        TradeStatus
	ExitPrice     *decimal.Decimal
	ExitTs        *time.Time
	Outcome       *Outcome
	PnL           *decimal.Decimal
}

// isOpen reports whether the trade still occupies the single-position slot.
func (t Trade) isOpen() bool {
	return t.Status == TradeOpen && t.ExitTs == nil
}

// invariantOK checks the stop/entry/target ordering and minimum RR for a
// fully-specified trade.
func (t Trade) invariantOK() bool {
	if t.Direction == Long {
		if !(t.StopLoss.LessThan(t.EntryPrice) && t.EntryPrice.LessThan(t.TakeProfit)) {
			return false
		}
	} else {
		if !(t.StopLoss.GreaterThan(t.EntryPrice) && t.EntryPrice.GreaterThan(t.TakeProfit)) {
			return false
		}
	}
	return t.RR.GreaterThanOrEqual(decimal.NewFromInt(2))
}

// RiskState is the mutable risk/circuit-breaker ledger, owned solely by the
// orchestrator and updated by the risk gatekeeper.
type RiskState struct {
	ConsecutiveLosses int
	DayPL             decimal.Decimal
	DayStartTs        time.Time
	PausedUntil       *time.Time
	Reason            string
}

// SystemConfig is the singleton of operator-controlled global flags.
type SystemConfig struct {
	EmergencyStop   bool
	TradingEnabled  bool
	AccountBalance  decimal.Decimal
}
