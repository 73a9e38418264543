// FILE: execution.go
// Package main – Execution manager.
//
// Transforms an approved trade proposal into a group of three brokerage
// orders (entry, stop, take-profit). Submission order is entry first; on
// fill, stop and take-profit go out together. Any child-order failure
// unwinds everything already placed and marks the pending trade REJECTED —
// scoped resource acquisition for a brokerage order group.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrExecutionFailed wraps any child-order placement failure that triggers
// an unwind.
type ErrExecutionFailed struct {
	Leg string
	Err error
}

func (e *ErrExecutionFailed) Error() string {
	return fmt.Sprintf("execution: %s leg failed: %v", e.Leg, e.Err)
}
func (e *ErrExecutionFailed) Unwrap() error { return e.Err }

// ExecutionManager submits and reconciles a trade's order group.
type ExecutionManager struct {
	broker Broker
	symbol string
}

func NewExecutionManager(broker Broker, symbol string) *ExecutionManager {
	return &ExecutionManager{broker: broker, symbol: symbol}
}

// OpenedTrade is the result of a successful order-group submission, ready
// for the orchestrator to insert the Trade row and hand off to the monitor.
type OpenedTrade struct {
	EntryOrder *PlacedOrder
	StopOrder  *PlacedOrder
	TPOrder    *PlacedOrder
}

// Open submits the entry order, waits for its fill, then submits the stop
// and take-profit legs. On any failure it cancels everything already placed
// and returns ErrExecutionFailed; the caller marks the pending Trade
// REJECTED and does not charge the gatekeeper a loss.
func (m *ExecutionManager) Open(ctx context.Context, direction Direction, sizeBase, stop, tp decimal.Decimal) (*OpenedTrade, error) {
	idemBase := uuid.New().String()
	entrySide := SideBuy
	exitSide := SideSell
	if direction == Short {
		entrySide, exitSide = SideSell, SideBuy
	}

	entry, err := m.broker.PlaceMarketOrder(ctx, m.symbol, entrySide, sizeBase, idemBase+"-entry")
	if err != nil {
		return nil, &ErrExecutionFailed{Leg: "entry", Err: err}
	}
	if entry.Status != "filled" {
		filled, err := m.pollUntilFilled(ctx, entry.ID)
		if err != nil {
			_ = m.broker.CancelOrder(ctx, m.symbol, entry.ID)
			return nil, &ErrExecutionFailed{Leg: "entry", Err: err}
		}
		entry = filled
	}

	stopOrder, err := m.broker.PlaceStopOrder(ctx, m.symbol, exitSide, stop, entry.FillBase, OrderStopLoss, idemBase+"-stop")
	if err != nil {
		m.unwind(ctx, entry, nil, nil)
		return nil, &ErrExecutionFailed{Leg: "stop_loss", Err: err}
	}

	tpOrder, err := m.broker.PlaceStopOrder(ctx, m.symbol, exitSide, tp, entry.FillBase, OrderTakeProfit, idemBase+"-tp")
	if err != nil {
		m.unwind(ctx, entry, stopOrder, nil)
		return nil, &ErrExecutionFailed{Leg: "take_profit", Err: err}
	}

	return &OpenedTrade{EntryOrder: entry, StopOrder: stopOrder, TPOrder: tpOrder}, nil
}

// pollUntilFilled checks the entry order's status once and returns an error
// if it is not filled; it does not wait or poll again. The paper broker
// fills synchronously, so this only matters for a real venue.
func (m *ExecutionManager) pollUntilFilled(ctx context.Context, orderID string) (*PlacedOrder, error) {
	o, err := m.broker.GetOrder(ctx, m.symbol, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != "filled" {
		return nil, fmt.Errorf("order %s not filled (status=%s)", orderID, o.Status)
	}
	return o, nil
}

// unwind cancels every leg already placed, per the scoped-resource-
// acquisition note: no path may exit without confirming all three orders or
// canceling what it placed.
func (m *ExecutionManager) unwind(ctx context.Context, entry, stop, tp *PlacedOrder) {
	for _, o := range []*PlacedOrder{tp, stop} {
		if o == nil {
			continue
		}
		if err := m.broker.CancelOrder(ctx, m.symbol, o.ID); err != nil {
			log.Printf("[WARN] execution: unwind cancel %s failed: %v", o.ID, err)
		}
	}
	// The entry already filled (base asset was acquired); closing it out is
	// a market order in the opposite direction rather than a cancel.
	if entry != nil {
		side := SideSell
		if entry.Side == SideSell {
			side = SideBuy
		}
		if _, err := m.broker.PlaceMarketOrder(ctx, m.symbol, side, entry.FillBase, entry.ClientID+"-unwind"); err != nil {
			log.Printf("[WARN] execution: unwind flatten of entry %s failed: %v", entry.ID, err)
		}
	}
}
