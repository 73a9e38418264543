// FILE: sweepdetector.go
// Package main – 4H liquidity sweep detector.
//
// Compares live price against the active 4H swings and maintains the single
// global active Sweep + its ConfluenceCtx: a pure function taking current
// state plus a price and returning a sweep-bias decision.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// sweepHighRatio / sweepLowRatio are the sweep-confirmation thresholds.
var (
	sweepHighRatio = decimal.NewFromFloat(1.001)
	sweepLowRatio  = decimal.NewFromFloat(0.999)
)

// SweepStore is the persistence surface the detector needs.
type SweepStore interface {
	ActiveSweep(ctx context.Context) (*Sweep, error)
	// CreateSweep deactivates any existing active sweep and its
	// ConfluenceCtx (marking it EXPIRED), inserts the new sweep active, and
	// creates a fresh ConfluenceCtx in WAITING_CHOCH — one transaction.
	CreateSweep(ctx context.Context, s Sweep) (*ConfluenceCtx, error)
	DeactivateSweep(ctx context.Context, sweepID int64) error
	ExpireConfluenceForSweep(ctx context.Context, sweepID int64) error
}

// SweepDetector owns the single active-sweep decision.
type SweepDetector struct {
	store SweepStore
}

func NewSweepDetector(store SweepStore) *SweepDetector {
	return &SweepDetector{store: store}
}

// sweptKind reports which swing kind, if any, the given price has swept.
func sweptKind(high, low Swing, price decimal.Decimal) (SwingKind, decimal.Decimal, bool) {
	if price.GreaterThanOrEqual(high.Price.Mul(sweepHighRatio)) {
		return SwingHigh, high.Price, true
	}
	if price.LessThanOrEqual(low.Price.Mul(sweepLowRatio)) {
		return SwingLow, low.Price, true
	}
	return "", decimal.Zero, false
}

// OnTick runs one sweep-detection evaluation for a live price against the
// currently active 4H HIGH/LOW swings. highSwing/lowSwing may be nil if no
// active swing of that kind exists yet.
func (d *SweepDetector) OnTick(ctx context.Context, now time.Time, highSwing, lowSwing *Swing, price decimal.Decimal) error {
	active, err := d.store.ActiveSweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep detector: load active sweep: %w", err)
	}

	// Expire sweeps older than 24h on every tick, regardless of new detection.
	if active != nil && active.expired(now) {
		if err := d.store.DeactivateSweep(ctx, active.ID); err != nil {
			return fmt.Errorf("sweep detector: expire stale sweep: %w", err)
		}
		if err := d.store.ExpireConfluenceForSweep(ctx, active.ID); err != nil {
			return fmt.Errorf("sweep detector: expire confluence for stale sweep: %w", err)
		}
		log.Printf("[INFO] sweep %d auto-expired (>24h)", active.ID)
		active = nil
	}

	var high, low Swing
	haveHigh, haveLow := highSwing != nil, lowSwing != nil
	if haveHigh {
		high = *highSwing
	}
	if haveLow {
		low = *lowSwing
	}
	if !haveHigh && !haveLow {
		return nil
	}

	var kind SwingKind
	var swingPrice decimal.Decimal
	var swept bool
	switch {
	case haveHigh && haveLow:
		kind, swingPrice, swept = sweptKind(high, low, price)
	case haveHigh:
		if price.GreaterThanOrEqual(high.Price.Mul(sweepHighRatio)) {
			kind, swingPrice, swept = SwingHigh, high.Price, true
		}
	case haveLow:
		if price.LessThanOrEqual(low.Price.Mul(sweepLowRatio)) {
			kind, swingPrice, swept = SwingLow, low.Price, true
		}
	}
	if !swept {
		return nil
	}

	if active != nil {
		if active.Kind == kind {
			return nil // same-kind sweep already active, nothing to do
		}
		// Opposite-kind sweep: deactivate old sweep + its ConfluenceCtx (EXPIRED).
		if err := d.store.DeactivateSweep(ctx, active.ID); err != nil {
			return fmt.Errorf("sweep detector: deactivate superseded sweep: %w", err)
		}
		if err := d.store.ExpireConfluenceForSweep(ctx, active.ID); err != nil {
			return fmt.Errorf("sweep detector: expire superseded confluence: %w", err)
		}
	}

	var swingRef int64
	if kind == SwingHigh {
		swingRef = high.ID
	} else {
		swingRef = low.ID
	}

	newSweep := Sweep{
		Ts:       now,
		Kind:     kind,
		SwingRef: swingRef,
		Price:    swingPrice,
		Bias:     biasForSweepKind(kind),
		Active:   true,
	}
	if _, err := d.store.CreateSweep(ctx, newSweep); err != nil {
		return fmt.Errorf("sweep detector: create sweep: %w", err)
	}
	IncSweep(kind)
	log.Printf("[INFO] sweep detected kind=%s price=%s bias=%s", kind, price, newSweep.Bias)
	return nil
}
