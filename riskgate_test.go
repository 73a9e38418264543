package main

import (
	"testing"
	"time"
)

func baseGateInputs(now time.Time) GateInputs {
	return GateInputs{
		HasOpenTrade:     false,
		Risk:             RiskState{DayStartTs: now},
		System:           SystemConfig{AccountBalance: D(1000), TradingEnabled: true},
		DailyLossLimit:   D(0.03),
		ConsecutiveCap:   3,
		MinBalance:       D(100),
		BrokerHealthy:    true,
		OracleDecision:   "YES",
		OracleConfidence: 80,
		ConfidenceFloor:  70,
		Now:              now,
	}
}

func baseProposal() TradeProposal {
	return TradeProposal{
		Direction:  Long,
		Entry:      D(90000),
		Stop:       D(89000),
		TakeProfit: D(92000),
		RR:         D(2.0),
		DistPct:    D(1.1),
	}
}

func TestEvaluate_Approves(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	got := Evaluate(baseProposal(), baseGateInputs(now))
	if !got.Approved {
		t.Fatalf("expected approval, got rejection reason=%s", got.Reason)
	}
}

func TestEvaluate_EmergencyStopWins(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := baseGateInputs(now)
	in.System.EmergencyStop = true
	got := Evaluate(baseProposal(), in)
	if got.Approved || got.Reason != ReasonEmergencyStop {
		t.Fatalf("expected EMERGENCY_STOP rejection, got %+v", got)
	}
}

func TestEvaluate_PositionLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := baseGateInputs(now)
	in.HasOpenTrade = true
	got := Evaluate(baseProposal(), in)
	if got.Approved || got.Reason != ReasonPositionLimit {
		t.Fatalf("expected POSITION_LIMIT rejection, got %+v", got)
	}
}

func TestEvaluate_Paused(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := baseGateInputs(now)
	until := now.Add(time.Hour)
	in.Risk.PausedUntil = &until
	got := Evaluate(baseProposal(), in)
	if got.Approved || got.Reason != ReasonPaused {
		t.Fatalf("expected PAUSED rejection, got %+v", got)
	}
}

func TestEvaluate_DailyLossBreach(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := baseGateInputs(now)
	in.Risk.DayPL = D(-31) // past 3% of 1000
	got := Evaluate(baseProposal(), in)
	if got.Approved || got.Reason != ReasonDailyLoss {
		t.Fatalf("expected DAILY_LOSS rejection, got %+v", got)
	}
}

func TestEvaluate_ConsecutiveLosses(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := baseGateInputs(now)
	in.Risk.ConsecutiveLosses = 3
	got := Evaluate(baseProposal(), in)
	if got.Approved || got.Reason != ReasonConsecutiveLosses {
		t.Fatalf("expected CONSECUTIVE_LOSSES rejection, got %+v", got)
	}
}

func TestEvaluate_OracleNo(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := baseGateInputs(now)
	in.OracleDecision = "NO"
	got := Evaluate(baseProposal(), in)
	if got.Approved || got.Reason != ReasonOracleNo {
		t.Fatalf("expected ORACLE_NO rejection, got %+v", got)
	}
}

func TestEvaluate_OracleLowConfidence(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := baseGateInputs(now)
	in.OracleConfidence = 50
	got := Evaluate(baseProposal(), in)
	if got.Approved || got.Reason != ReasonOracleLowConfidence {
		t.Fatalf("expected ORACLE_LOW_CONFIDENCE rejection, got %+v", got)
	}
}

func TestEvaluate_BrokerDown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := baseGateInputs(now)
	in.BrokerHealthy = false
	got := Evaluate(baseProposal(), in)
	if got.Approved || got.Reason != ReasonBrokerDown {
		t.Fatalf("expected BROKER_DOWN rejection, got %+v", got)
	}
}

func TestApplyTradeClose_S6DailyLossBreaker(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := RiskState{DayStartTs: midnightUTC(now)}
	// A single loss breaching the 3% daily cap on a 1000 balance.
	next := ApplyTradeClose(rs, OutcomeLoss, D(-35), now, 3, D(0.03), D(1000))
	if next.PausedUntil == nil {
		t.Fatalf("expected a pause after breaching the daily loss limit")
	}
	if next.Reason != ReasonDailyLoss {
		t.Fatalf("reason = %s, want %s", next.Reason, ReasonDailyLoss)
	}
	wantUntil := midnightUTC(now).Add(24 * time.Hour)
	if !next.PausedUntil.Equal(wantUntil) {
		t.Fatalf("paused until = %s, want next UTC midnight %s", next.PausedUntil, wantUntil)
	}
}

func TestApplyTradeClose_ConsecutiveLossBreaker(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := RiskState{DayStartTs: midnightUTC(now), ConsecutiveLosses: 2}
	next := ApplyTradeClose(rs, OutcomeLoss, D(-1), now, 3, D(0.03), D(1000))
	if next.ConsecutiveLosses != 3 {
		t.Fatalf("consecutive losses = %d, want 3", next.ConsecutiveLosses)
	}
	if next.PausedUntil == nil || next.Reason != ReasonConsecutiveLosses {
		t.Fatalf("expected a consecutive-loss pause, got %+v", next)
	}
	wantUntil := now.Add(24 * time.Hour)
	if !next.PausedUntil.Equal(wantUntil) {
		t.Fatalf("paused until = %s, want now+24h %s", next.PausedUntil, wantUntil)
	}
}

func TestApplyTradeClose_WinResetsConsecutiveLosses(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := RiskState{DayStartTs: midnightUTC(now), ConsecutiveLosses: 2}
	next := ApplyTradeClose(rs, OutcomeWin, D(50), now, 3, D(0.03), D(1000))
	if next.ConsecutiveLosses != 0 {
		t.Fatalf("expected consecutive losses reset to 0 on a win, got %d", next.ConsecutiveLosses)
	}
}

func TestApplyTradeClose_NewUTCDayResetsDayPL(t *testing.T) {
	yesterday := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	today := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	rs := RiskState{DayStartTs: midnightUTC(yesterday), DayPL: D(-20)}
	next := ApplyTradeClose(rs, OutcomeWin, D(10), today, 3, D(0.03), D(1000))
	if !next.DayPL.Equal(D(10)) {
		t.Fatalf("expected day PL reset across the UTC day boundary, got %s", next.DayPL)
	}
	if !next.DayStartTs.Equal(midnightUTC(today)) {
		t.Fatalf("expected DayStartTs to roll to today's midnight")
	}
}
