// FILE: collectors.go
// Package main – Candle collectors.
//
// One collector per timeframe, driven by a timer. Fetches closed candles
// from the brokerage, validates, upserts, gap-fills, and prunes on a
// cadence.
package main

import (
	"context"
	"log"
	"time"
)

// CandleSource is the brokerage surface a collector polls.
type CandleSource interface {
	GetRecentCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
}

// CandlePersister is the store surface a collector writes to.
type CandlePersister interface {
	UpsertCandle(ctx context.Context, c Candle) error
	LatestCandleTs(ctx context.Context, tf Timeframe) (time.Time, error)
	RecentCandles(ctx context.Context, tf Timeframe, limit int) ([]Candle, error)
	PruneCandlesOlderThan(ctx context.Context, tf Timeframe, cutoff time.Time) (int64, error)
}

// collectorBackoffBase / collectorMaxRetries bound the fetch retry policy.
const (
	collectorBackoffBase = 60 * time.Second
	collectorMaxRetries  = 2
)

// retentionWindow5M / pruneCadence bound the 5M retention policy.
const (
	retentionWindow5M = 7 * 24 * time.Hour
	pruneCadence       = 6 * time.Hour
)

// gapFillLookback is how many recent stored candles each tick inspects for
// missing boundaries.
const gapFillLookback = 10

// Collector polls one timeframe and keeps the candle store current.
type Collector struct {
	symbol    string
	tf        Timeframe
	source    CandleSource
	store     CandlePersister
	onCandles func(ctx context.Context, tf Timeframe, fresh []Candle) // orchestrator hook (swing scan, confluence step)

	lastPrune time.Time
}

func NewCollector(symbol string, tf Timeframe, source CandleSource, store CandlePersister, onCandles func(context.Context, Timeframe, []Candle)) *Collector {
	return &Collector{symbol: symbol, tf: tf, source: source, store: store, onCandles: onCandles}
}

// Run blocks, polling on the timeframe's own duration as its cadence, until
// ctx is canceled.
func (c *Collector) Run(ctx context.Context) {
	interval := c.tf.duration()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] collector %s shutting down", c.tf)
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick performs one fetch/validate/upsert/gap-fill/prune pass, retrying
// with exponential backoff on failure, logging and continuing rather than
// propagating the error — collectors never abort the orchestrator.
func (c *Collector) tick(ctx context.Context) {
	if err := c.fetchWithRetry(ctx); err != nil {
		log.Printf("[WARN] collector %s: %v", c.tf, err)
	}
	if err := c.GapFill(ctx, gapFillLookback); err != nil {
		log.Printf("[WARN] collector %s: gap fill: %v", c.tf, err)
	}
	c.maybePrune(ctx)
}

func (c *Collector) fetchWithRetry(ctx context.Context) error {
	var lastErr error
	backoff := collectorBackoffBase
	for attempt := 0; attempt <= collectorMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		fresh, err := c.source.GetRecentCandles(ctx, c.symbol, c.tf, 300)
		if err != nil {
			lastErr = err
			continue
		}
		c.upsertValid(ctx, fresh)
		if c.onCandles != nil {
			c.onCandles(ctx, c.tf, fresh)
		}
		return nil
	}
	return lastErr
}

// upsertValid validates each candle before storing it; invalid candles are
// skipped (DataIntegrity, never fatal).
func (c *Collector) upsertValid(ctx context.Context, candles []Candle) {
	for _, cd := range candles {
		cd.Timeframe = c.tf
		if !cd.valid() {
			log.Printf("[WARN] collector %s: invalid candle at %s skipped", c.tf, cd.TsStart)
			continue
		}
		if err := c.store.UpsertCandle(ctx, cd); err != nil {
			log.Printf("[WARN] collector %s: upsert failed at %s: %v", c.tf, cd.TsStart, err)
		}
	}
}

// maybePrune enforces the 5M 7-day retention policy, running at most every
// pruneCadence.
func (c *Collector) maybePrune(ctx context.Context) {
	if c.tf != TF5Min {
		return
	}
	now := nowUTC()
	if !c.lastPrune.IsZero() && now.Sub(c.lastPrune) < pruneCadence {
		return
	}
	c.lastPrune = now
	cutoff := now.Add(-retentionWindow5M)
	n, err := c.store.PruneCandlesOlderThan(ctx, c.tf, cutoff)
	if err != nil {
		log.Printf("[WARN] collector %s: prune failed: %v", c.tf, err)
		return
	}
	if n > 0 {
		log.Printf("[INFO] collector %s: pruned %d candles older than %s", c.tf, n, cutoff)
	}
}

// GapFill scans the last N stored timestamps for missing boundaries and
// refetches them.
func (c *Collector) GapFill(ctx context.Context, lookback int) error {
	stored, err := c.store.RecentCandles(ctx, c.tf, lookback)
	if err != nil {
		return err
	}
	if len(stored) < 2 {
		return nil
	}
	step := c.tf.duration()
	var gaps int
	for i := 1; i < len(stored); i++ {
		expected := stored[i-1].TsStart.Add(step)
		if stored[i].TsStart.After(expected) {
			gaps++
		}
	}
	if gaps == 0 {
		return nil
	}
	log.Printf("[WARN] collector %s: %d gap(s) detected in last %d candles, refetching", c.tf, gaps, lookback)
	return c.fetchWithRetry(ctx)
}
