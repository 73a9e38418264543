// FILE: riskgate.go
// Package main – Risk gatekeeper.
//
// Pre-trade checks and circuit breakers. Reads a RiskState/SystemConfig
// snapshot the orchestrator hands it — never mutates shared state directly,
// since only the orchestrator writes RiskState — and returns a structured
// decision the orchestrator applies. The gate's only side effect is the
// rejection counter in metrics.go; it is built around daily-loss and
// consecutive-loss bookkeeping.
package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reason codes for a rejected trade proposal.
const (
	ReasonPositionLimit      = "POSITION_LIMIT"
	ReasonDailyLoss          = "DAILY_LOSS"
	ReasonConsecutiveLosses  = "CONSECUTIVE_LOSSES"
	ReasonMinBalance         = "MIN_BALANCE"
	ReasonStopTooClose       = "STOP_TOO_CLOSE"
	ReasonStopTooFar         = "STOP_TOO_FAR"
	ReasonStopWrongSide      = "STOP_WRONG_SIDE"
	ReasonRRTooLow           = "RR_TOO_LOW"
	ReasonOracleNo           = "ORACLE_NO"
	ReasonOracleLowConfidence = "ORACLE_LOW_CONFIDENCE"
	ReasonBrokerDown         = "BROKER_DOWN"
	ReasonPaused             = "PAUSED"
	ReasonEmergencyStop      = "EMERGENCY_STOP"
)

// TradeProposal is the candidate the gatekeeper evaluates, already run
// through the stop-loss calculator and sizer.
type TradeProposal struct {
	Direction  Direction
	Entry      decimal.Decimal
	Stop       decimal.Decimal
	TakeProfit decimal.Decimal
	RR         decimal.Decimal
	DistPct    decimal.Decimal
}

// GateInputs bundles everything the gate needs beyond the proposal itself.
type GateInputs struct {
	HasOpenTrade    bool
	Risk            RiskState
	System          SystemConfig
	DailyLossLimit  decimal.Decimal // fraction of balance, e.g. 0.03
	ConsecutiveCap  int             // e.g. 3
	MinBalance      decimal.Decimal
	BrokerHealthy   bool
	OracleDecision  string // "YES" or "NO"
	OracleConfidence int
	ConfidenceFloor int
	Now             time.Time
}

// GateDecision is the gatekeeper's verdict.
type GateDecision struct {
	Approved bool
	Reason   string
}

// Evaluate runs every pre-trade check, short-circuiting on the first
// failure reason.
func Evaluate(p TradeProposal, in GateInputs) GateDecision {
	if in.System.EmergencyStop {
		return reject(ReasonEmergencyStop)
	}
	if in.Risk.PausedUntil != nil && in.Now.Before(*in.Risk.PausedUntil) {
		return reject(ReasonPaused)
	}
	if in.HasOpenTrade {
		return reject(ReasonPositionLimit)
	}
	if in.System.AccountBalance.LessThan(in.MinBalance) {
		return reject(ReasonMinBalance)
	}
	dailyFloor := in.DailyLossLimit.Neg().Mul(in.System.AccountBalance)
	if in.Risk.DayPL.LessThan(dailyFloor) {
		return reject(ReasonDailyLoss)
	}
	if in.Risk.ConsecutiveLosses >= in.ConsecutiveCap {
		return reject(ReasonConsecutiveLosses)
	}
	if p.Direction == Long && !p.Stop.LessThan(p.Entry) {
		return reject(ReasonStopWrongSide)
	}
	if p.Direction == Short && !p.Stop.GreaterThan(p.Entry) {
		return reject(ReasonStopWrongSide)
	}
	if p.DistPct.LessThan(decimal.NewFromFloat(slMinDistPct)) {
		return reject(ReasonStopTooClose)
	}
	if p.DistPct.GreaterThan(decimal.NewFromFloat(slMaxDistPct)) {
		return reject(ReasonStopTooFar)
	}
	if p.RR.LessThan(decimal.NewFromFloat(minRR)) {
		return reject(ReasonRRTooLow)
	}
	if !in.BrokerHealthy {
		return reject(ReasonBrokerDown)
	}
	if in.OracleDecision != "YES" {
		return reject(ReasonOracleNo)
	}
	if in.OracleConfidence < in.ConfidenceFloor {
		return reject(ReasonOracleLowConfidence)
	}
	return GateDecision{Approved: true}
}

func reject(reason string) GateDecision {
	IncRiskRejection(reason)
	return GateDecision{Approved: false, Reason: reason}
}

// ApplyTradeClose updates RiskState after a trade closes. Called only by
// the orchestrator, the sole writer of RiskState.
func ApplyTradeClose(rs RiskState, outcome Outcome, pnl decimal.Decimal, now time.Time, consecutiveCap int, dailyLossLimit, accountBalance decimal.Decimal) RiskState {
	next := rs
	if !sameUTCDay(rs.DayStartTs, now) {
		next.DayStartTs = midnightUTC(now)
		next.DayPL = decimal.Zero
	}
	next.DayPL = next.DayPL.Add(pnl)

	if outcome == OutcomeLoss {
		next.ConsecutiveLosses = rs.ConsecutiveLosses + 1
	} else {
		next.ConsecutiveLosses = 0
	}

	dailyFloor := dailyLossLimit.Neg().Mul(accountBalance)
	if next.DayPL.LessThan(dailyFloor) {
		nextMidnight := midnightUTC(now).Add(24 * time.Hour)
		next.PausedUntil = &nextMidnight
		next.Reason = ReasonDailyLoss
	} else if next.ConsecutiveLosses >= consecutiveCap {
		until := now.Add(24 * time.Hour)
		next.PausedUntil = &until
		next.Reason = ReasonConsecutiveLosses
	}
	return next
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
