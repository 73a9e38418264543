// FILE: monitor.go
// Package main – Position monitor.
//
// Subscribes to the price feed and manages the single open trade's
// lifecycle: stop/target crossing, trailing-to-breakeven, time-based exit,
// and emergency stop. One task, awakened by price-tick events.
package main

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// trailingTriggerRatio is the "progress >= 0.8" trailing-to-breakeven rule.
var trailingTriggerRatio = decimal.NewFromFloat(0.8)

// TradeRepo is the persistence surface the monitor needs.
type TradeRepo interface {
	SetTrailingFired(ctx context.Context, id int64, newStop decimal.Decimal) error
	CloseTrade(ctx context.Context, id int64, exitPrice decimal.Decimal, exitTs time.Time, outcome Outcome, pnl decimal.Decimal) error
}

// PositionMonitor owns the open trade's lifecycle until it closes.
type PositionMonitor struct {
	broker Broker
	store  TradeRepo
	symbol string

	// onClose is invoked once the trade closes, so the orchestrator can
	// update RiskState and free the single-position slot; it is the sole
	// writer of that shared state.
	onClose func(ctx context.Context, t Trade)
}

func NewPositionMonitor(broker Broker, store TradeRepo, symbol string, onClose func(context.Context, Trade)) *PositionMonitor {
	return &PositionMonitor{broker: broker, store: store, symbol: symbol, onClose: onClose}
}

// Watch blocks, evaluating t against every tick on ticks (and a periodic
// time-based-exit check), until the trade closes or ctx is canceled. sysCfg
// is polled for emergency_stop, per the "components poll a read-only handle
// before side effects" design note.
func (m *PositionMonitor) Watch(ctx context.Context, t Trade, ticks <-chan PriceTick, sysCfg func() SystemConfig) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticks:
			if sysCfg().EmergencyStop {
				m.closeAt(ctx, &t, tick.Mid(), nowUTC(), true)
				return
			}
			if m.evaluate(ctx, &t, tick.Mid(), tick.Ts) {
				return
			}
		case <-ticker.C:
			if sysCfg().EmergencyStop {
				price, _ := m.broker.GetNowPrice(ctx, m.symbol)
				m.closeAt(ctx, &t, price, nowUTC(), true)
				return
			}
			if m.checkTimeExit(ctx, &t) {
				return
			}
		}
	}
}

// evaluate applies one price tick's worth of rules to t; returns true if the
// trade closed.
func (m *PositionMonitor) evaluate(ctx context.Context, t *Trade, price decimal.Decimal, ts time.Time) bool {
	if crossedStop(*t, price) {
		outcome := OutcomeLoss
		if t.TrailingFired {
			outcome = OutcomeBreakeven
		}
		m.close(ctx, t, price, ts, outcome)
		return true
	}
	if crossedTarget(*t, price) {
		m.close(ctx, t, price, ts, OutcomeWin)
		return true
	}
	if !t.TrailingFired && trailingShouldFire(*t, price) {
		if err := m.store.SetTrailingFired(ctx, t.ID, t.EntryPrice); err != nil {
			log.Printf("[WARN] monitor: trailing update failed for trade %d: %v", t.ID, err)
		} else {
			t.TrailingFired = true
			t.StopLoss = t.EntryPrice
			log.Printf("[INFO] trade %d trailing to breakeven at %s", t.ID, t.EntryPrice)
		}
	}
	if m.checkTimeExit(ctx, t) {
		return true
	}
	return false
}

// crossedStop reports whether price has crossed the trade's current stop.
func crossedStop(t Trade, price decimal.Decimal) bool {
	if t.Direction == Long {
		return price.LessThanOrEqual(t.StopLoss)
	}
	return price.GreaterThanOrEqual(t.StopLoss)
}

// crossedTarget reports whether price has crossed the take-profit.
func crossedTarget(t Trade, price decimal.Decimal) bool {
	if t.Direction == Long {
		return price.GreaterThanOrEqual(t.TakeProfit)
	}
	return price.LessThanOrEqual(t.TakeProfit)
}

// trailingShouldFire implements the progress >= 0.8 trailing rule.
func trailingShouldFire(t Trade, price decimal.Decimal) bool {
	denom := t.TakeProfit.Sub(t.EntryPrice)
	if denom.IsZero() {
		return false
	}
	progress := price.Sub(t.EntryPrice).Div(denom)
	if t.Direction == Short {
		denom = t.EntryPrice.Sub(t.TakeProfit)
		if denom.IsZero() {
			return false
		}
		progress = t.EntryPrice.Sub(price).Div(denom)
	}
	return progress.GreaterThanOrEqual(trailingTriggerRatio)
}

// checkTimeExit closes the trade if it has run past maxTradeDuration.
func (m *PositionMonitor) checkTimeExit(ctx context.Context, t *Trade) bool {
	if nowUTC().Sub(t.EntryTs) < maxTradeDuration {
		return false
	}
	price, err := m.broker.GetNowPrice(ctx, m.symbol)
	if err != nil {
		log.Printf("[WARN] monitor: time-exit price lookup failed for trade %d: %v", t.ID, err)
		return false
	}
	pnl := computePnL(*t, price)
	outcome := outcomeForPnL(pnl)
	m.close(ctx, t, price, nowUTC(), outcome)
	return true
}

func (m *PositionMonitor) closeAt(ctx context.Context, t *Trade, price decimal.Decimal, ts time.Time, emergency bool) {
	outcome := outcomeForPnL(computePnL(*t, price))
	if emergency {
		log.Printf("[WARN] emergency stop: closing trade %d at %s", t.ID, price)
	}
	m.close(ctx, t, price, ts, outcome)
}

func (m *PositionMonitor) close(ctx context.Context, t *Trade, price decimal.Decimal, ts time.Time, outcome Outcome) {
	pnl := computePnL(*t, price)
	if err := m.store.CloseTrade(ctx, t.ID, price, ts, outcome, pnl); err != nil {
		log.Printf("[ERROR] monitor: close trade %d failed: %v", t.ID, err)
		return
	}
	t.ExitPrice, t.ExitTs, t.Outcome, t.PnL = &price, &ts, &outcome, &pnl
	t.Status = TradeClosed
	IncTrade(outcome)
	log.Printf("[INFO] trade %d closed outcome=%s pnl=%s", t.ID, outcome, pnl)
	if m.onClose != nil {
		m.onClose(ctx, *t)
	}
}

// computePnL: pnl = (exit-entry) * size * dir. Exit PnL is computed at fill
// price only; slippage/commission is an adapter concern, not modeled here.
func computePnL(t Trade, exit decimal.Decimal) decimal.Decimal {
	dir := decimal.NewFromInt(1)
	if t.Direction == Short {
		dir = decimal.NewFromInt(-1)
	}
	return round8(exit.Sub(t.EntryPrice).Mul(t.SizeBase).Mul(dir))
}

func outcomeForPnL(pnl decimal.Decimal) Outcome {
	switch {
	case pnl.GreaterThan(decimal.Zero):
		return OutcomeWin
	case pnl.LessThan(decimal.Zero):
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}
