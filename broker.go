// FILE: broker.go
// Package main – Broker abstraction shared by all execution backends.
//
// The core engine never speaks a brokerage wire protocol directly; it only
// depends on this narrow interface. Auth is opaque to the core — the Broker
// implementation owns its own token/key rotation and the core never
// constructs or inspects credentials.
//
// One concrete implementation lives in this repo:
//   - broker_paper.go – in-memory paper broker for dry-run mode and tests
// A real venue adapter satisfies the same interface; none ships here.
package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the side of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderKind distinguishes the entry/stop/target legs of a trade's order group.
type OrderKind string

const (
	OrderEntry      OrderKind = "ENTRY"
	OrderStopLoss   OrderKind = "STOP_LOSS"
	OrderTakeProfit OrderKind = "TAKE_PROFIT"
)

// PlacedOrder is a normalized view of a submitted/filled order.
type PlacedOrder struct {
	ID         string
	ClientID   string // idempotency key supplied by the caller (google/uuid)
	Symbol     string
	Side       OrderSide
	Kind       OrderKind
	Price      decimal.Decimal // limit/stop trigger price, zero for market
	BaseSize   decimal.Decimal
	FillPrice  decimal.Decimal
	FillBase   decimal.Decimal
	Status     string // "open", "filled", "canceled", "rejected"
	CreateTime time.Time
}

// Broker is the minimal surface the engine needs to operate against any venue.
type Broker interface {
	Name() string

	// GetNowPrice returns the latest traded price for symbol.
	GetNowPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetRecentCandles returns up to limit most-recent closed candles for the
	// given timeframe, oldest first.
	GetRecentCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)

	// PlaceMarketOrder submits a market entry and blocks for its fill.
	// clientID is the caller-supplied idempotency key; a retry with the same
	// clientID must not create a second order.
	PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, baseSize decimal.Decimal, clientID string) (*PlacedOrder, error)

	// PlaceStopOrder submits a stop-loss or take-profit leg tied to an open
	// position. kind distinguishes which leg this is for reconciliation.
	PlaceStopOrder(ctx context.Context, symbol string, side OrderSide, triggerPrice, baseSize decimal.Decimal, kind OrderKind, clientID string) (*PlacedOrder, error)

	GetOrder(ctx context.Context, symbol, orderID string) (*PlacedOrder, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// GetAvailableBalance returns the free quote-currency balance usable for
	// new positions.
	GetAvailableBalance(ctx context.Context) (decimal.Decimal, error)
}
