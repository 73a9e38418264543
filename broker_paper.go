// FILE: broker_paper.go
// Package main – In-memory paper broker (no external dependencies).
//
// Simulates execution against the latest known price so the engine is
// runnable and testable without a real exchange. Feed it candles/prices
// with SeedCandles/AppendCandle/SetPrice; main.go calls none of these, so
// in a live run the paper broker keeps its starting price and an empty
// candle history. Market orders fill immediately at the latest price — no
// partial fills, no slippage model; stop/take-profit orders rest with
// status "open" until FillRestingOrder or CancelOrder is called.
package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperBroker keeps an in-memory price, candle history, and order book used
// to simulate fills under the Broker interface.
type PaperBroker struct {
	mu      sync.Mutex
	price   decimal.Decimal
	candles map[Timeframe][]Candle
	orders  map[string]*PlacedOrder
	balance decimal.Decimal
}

func NewPaperBroker(startBalance decimal.Decimal) *PaperBroker {
	return &PaperBroker{
		price:   decimal.NewFromInt(60000),
		candles: make(map[Timeframe][]Candle),
		orders:  make(map[string]*PlacedOrder),
		balance: startBalance,
	}
}

func (p *PaperBroker) Name() string { return "paper" }

// SetPrice updates the latest traded price used for market fills.
func (p *PaperBroker) SetPrice(price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.price = price
}

// SeedCandles replaces the in-memory candle history for a timeframe, oldest
// first.
func (p *PaperBroker) SeedCandles(tf Timeframe, candles []Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]Candle, len(candles))
	copy(cp, candles)
	p.candles[tf] = cp
	if len(cp) > 0 {
		p.price = cp[len(cp)-1].Close
	}
}

// AppendCandle pushes one closed candle, as a live feed would.
func (p *PaperBroker) AppendCandle(c Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[c.Timeframe] = append(p.candles[c.Timeframe], c)
	p.price = c.Close
}

func (p *PaperBroker) GetNowPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.price, nil
}

func (p *PaperBroker) GetRecentCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := p.candles[tf]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]Candle, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}

func (p *PaperBroker) PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, baseSize decimal.Decimal, clientID string) (*PlacedOrder, error) {
	if baseSize.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("baseSize must be > 0")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.orders[clientID]; ok {
		return existing, nil // idempotent retry
	}
	o := &PlacedOrder{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		Symbol:     symbol,
		Side:       side,
		Kind:       OrderEntry,
		Price:      p.price,
		BaseSize:   baseSize,
		FillPrice:  p.price,
		FillBase:   baseSize,
		Status:     "filled",
		CreateTime: nowUTC(),
	}
	p.orders[clientID] = o
	p.orders[o.ID] = o
	return o, nil
}

func (p *PaperBroker) PlaceStopOrder(ctx context.Context, symbol string, side OrderSide, triggerPrice, baseSize decimal.Decimal, kind OrderKind, clientID string) (*PlacedOrder, error) {
	if baseSize.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("baseSize must be > 0")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.orders[clientID]; ok {
		return existing, nil
	}
	o := &PlacedOrder{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		Symbol:     symbol,
		Side:       side,
		Kind:       kind,
		Price:      triggerPrice,
		BaseSize:   baseSize,
		Status:     "open", // resting until FillRestingOrder or CancelOrder
		CreateTime: nowUTC(),
	}
	p.orders[clientID] = o
	p.orders[o.ID] = o
	return o, nil
}

func (p *PaperBroker) GetOrder(ctx context.Context, symbol, orderID string) (*PlacedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	return o, nil
}

func (p *PaperBroker) CancelOrder(ctx context.Context, symbol, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	if o.Status == "open" {
		o.Status = "canceled"
	}
	return nil
}

// FillRestingOrder marks a resting stop/target order filled at its trigger
// price. Nothing in the engine calls it: the position monitor closes trades
// in the store without touching broker orders.
func (p *PaperBroker) FillRestingOrder(orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	o.Status = "filled"
	o.FillPrice = o.Price
	o.FillBase = o.BaseSize
	return nil
}

func (p *PaperBroker) GetAvailableBalance(ctx context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

// SetBalance overrides the simulated available balance, e.g. after a fill.
func (p *PaperBroker) SetBalance(b decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance = b
}

var _ Broker = (*PaperBroker)(nil)
