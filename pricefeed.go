// FILE: pricefeed.go
// Package main – Live price feed.
//
// Maintains a single websocket connection yielding (ts, bid, ask, seq?)
// tuples, reconnecting with bounded backoff and logging (not failing on)
// sequence gaps. Exposes a synchronous "latest price" snapshot and an
// event-stream channel per subscriber (the orchestrator's sweep loop and
// the position monitor both subscribe). Client-side gorilla/websocket Dialer with its own read pump
// and reconnect loop.
package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// PriceTick is one (ts, bid, ask, seq) sample from the feed.
type PriceTick struct {
	Ts  time.Time
	Bid decimal.Decimal
	Ask decimal.Decimal
	Seq int64
}

// Mid returns the midpoint of bid/ask, the price used by the sweep detector
// and position monitor.
func (t PriceTick) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

const (
	feedReconnectBaseDelay = 2 * time.Second
	feedReconnectMaxDelay  = 30 * time.Second
)

// PriceFeed owns the live websocket connection and fans out ticks.
type PriceFeed struct {
	url string

	mu       sync.RWMutex
	latest   PriceTick
	lastSeq  int64
	haveSeq  bool
	subs     []chan PriceTick
}

func NewPriceFeed(url string) *PriceFeed {
	return &PriceFeed{url: url}
}

// Subscribe returns a channel of every subsequent tick. The caller owns its
// own backpressure: the channel is buffered but a slow consumer will miss
// ticks rather than stall the feed, per the "each subscriber owns its
// backpressure" design note.
func (f *PriceFeed) Subscribe() <-chan PriceTick {
	ch := make(chan PriceTick, 64)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch
}

// Latest returns the most recent tick seen, for synchronous callers.
func (f *PriceFeed) Latest() (PriceTick, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest, !f.latest.Ts.IsZero()
}

// wireTick is the on-wire JSON shape the brokerage feed emits.
type wireTick struct {
	Ts  int64  `json:"ts"`
	Bid string `json:"bid"`
	Ask string `json:"ask"`
	Seq int64  `json:"seq,omitempty"`
}

// Run dials the feed and reconnects with bounded backoff until ctx is
// canceled; reconnection is automatic and the backoff is capped.
func (f *PriceFeed) Run(ctx context.Context) {
	delay := feedReconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.runOnce(ctx); err != nil {
			log.Printf("[WARN] price feed: %v (reconnecting in %s)", err, delay)
			IncPricefeedReconnect()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > feedReconnectMaxDelay {
			delay = feedReconnectMaxDelay
		}
	}
}

func (f *PriceFeed) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[INFO] price feed connected to %s", f.url)

	// Return nil once the socket is closed from our side (ctx cancellation).
	// Run does not reset its reconnect delay after a successful connection.
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = conn.Close()
		close(done)
	}()

	for {
		var wt wireTick
		if err := conn.ReadJSON(&wt); err != nil {
			select {
			case <-done:
				return nil
			default:
				return err
			}
		}
		f.handleTick(wt)
	}
}

func (f *PriceFeed) handleTick(wt wireTick) {
	bid, err := decimal.NewFromString(wt.Bid)
	if err != nil {
		log.Printf("[WARN] price feed: bad bid %q", wt.Bid)
		return
	}
	ask, err := decimal.NewFromString(wt.Ask)
	if err != nil {
		log.Printf("[WARN] price feed: bad ask %q", wt.Ask)
		return
	}
	tick := PriceTick{Ts: time.UnixMilli(wt.Ts).UTC(), Bid: bid, Ask: ask, Seq: wt.Seq}

	f.mu.Lock()
	if f.haveSeq && wt.Seq != 0 && wt.Seq != f.lastSeq+1 {
		log.Printf("[WARN] price feed: sequence gap %d -> %d", f.lastSeq, wt.Seq)
	}
	if wt.Seq != 0 {
		f.lastSeq, f.haveSeq = wt.Seq, true
	}
	f.latest = tick
	subs := make([]chan PriceTick, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- tick:
		default: // slow subscriber drops this tick, per its own backpressure
		}
	}
}
