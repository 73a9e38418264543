// FILE: orchestrator.go
// Package main – Orchestrator.
//
// Wires collectors, the price feed, the swing tracker, sweep detector,
// confluence state machine, stop-loss calculator, sizer, risk gatekeeper,
// oracle, execution manager, and position monitor into the trade lifecycle.
// Owns the single-position slot and RiskState as their sole writer.
package main

import (
	"context"
	"log"
	"sync"
)

// Orchestrator is the sole writer of RiskState and the single-position
// slot.
type Orchestrator struct {
	cfg    Config
	store  *Store
	broker Broker
	oracle Oracle
	feed   *PriceFeed

	swingTracker  *SwingTracker
	sweepDetector *SweepDetector
	exec          *ExecutionManager

	mu          sync.Mutex
	sysCfg      SystemConfig
	openTradeID *int64
}

func NewOrchestrator(cfg Config, store *Store, broker Broker, oracle Oracle, feed *PriceFeed) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		store:         store,
		broker:        broker,
		oracle:        oracle,
		feed:          feed,
		swingTracker:  NewSwingTracker(store),
		sweepDetector: NewSweepDetector(store),
		exec:          NewExecutionManager(broker, cfg.Trading.Symbol),
		sysCfg: SystemConfig{
			EmergencyStop:  cfg.System.EmergencyStop,
			TradingEnabled: true,
			AccountBalance: cfg.Trading.AccountBalance,
		},
	}
}

// SystemConfigSnapshot returns a read-only copy, the "snapshot via a
// read-only handle" other components poll before side effects.
func (o *Orchestrator) SystemConfigSnapshot() SystemConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sysCfg
}

// SetEmergencyStop is one of the two write paths (with SetTradingEnabled)
// the operator API is allowed to trigger directly.
func (o *Orchestrator) SetEmergencyStop(v bool) {
	o.mu.Lock()
	o.sysCfg.EmergencyStop = v
	o.mu.Unlock()
	SetOpenPosition(o.hasOpenTrade())
	log.Printf("[WARN] emergency_stop set to %v via operator API", v)
}

func (o *Orchestrator) SetTradingEnabled(v bool) {
	o.mu.Lock()
	o.sysCfg.TradingEnabled = v
	o.mu.Unlock()
}

func (o *Orchestrator) hasOpenTrade() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.openTradeID != nil
}

// Run starts every long-running task and blocks until ctx is canceled: one
// per collector, one for the price feed, and one for the sweep loop. The 5M
// state machine has no task of its own; it is stepped from the 5M
// collector's candle callback. The position monitor runs in its own
// goroutine, started on demand when a trade opens.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.recoverOpenTrade(ctx); err != nil {
		log.Printf("[WARN] orchestrator: recover open trade: %v", err)
	}

	collector4H := NewCollector(o.cfg.Trading.Symbol, TF4Hour, o.broker, o.store, o.on4HCandles)
	collector5M := NewCollector(o.cfg.Trading.Symbol, TF5Min, o.broker, o.store, o.on5MCandles)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); collector4H.Run(ctx) }()
	go func() { defer wg.Done(); collector5M.Run(ctx) }()
	go func() { defer wg.Done(); o.feed.Run(ctx) }()

	priceTicks := o.feed.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.runSweepLoop(ctx, priceTicks)
	}()

	<-ctx.Done()
	log.Printf("[INFO] orchestrator: shutting down, draining tasks")
	wg.Wait()
	return nil
}

// recoverOpenTrade restores the single-position slot from the store at
// startup, so a restart doesn't lose track of a live position.
func (o *Orchestrator) recoverOpenTrade(ctx context.Context) error {
	t, err := o.store.OpenTrade(ctx)
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	o.mu.Lock()
	o.openTradeID = &t.ID
	o.mu.Unlock()
	SetOpenPosition(true)
	log.Printf("[INFO] orchestrator: recovered open trade %d", t.ID)
	o.startMonitor(ctx, *t)
	return nil
}

// runSweepLoop feeds every live tick to the 4H sweep detector.
func (o *Orchestrator) runSweepLoop(ctx context.Context, ticks <-chan PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticks:
			o.onPriceTick(ctx, tick)
		}
	}
}

func (o *Orchestrator) onPriceTick(ctx context.Context, tick PriceTick) {
	high, err := o.store.ActiveSwing(ctx, TF4Hour, SwingHigh)
	if err != nil {
		log.Printf("[WARN] orchestrator: load active 4H high: %v", err)
		return
	}
	low, err := o.store.ActiveSwing(ctx, TF4Hour, SwingLow)
	if err != nil {
		log.Printf("[WARN] orchestrator: load active 4H low: %v", err)
		return
	}
	if err := o.sweepDetector.OnTick(ctx, tick.Ts, high, low, tick.Mid()); err != nil {
		log.Printf("[WARN] orchestrator: sweep detector: %v", err)
	}
}

// on4HCandles re-scans 4H swings after a collector run.
func (o *Orchestrator) on4HCandles(ctx context.Context, tf Timeframe, fresh []Candle) {
	all, err := o.store.RecentCandles(ctx, tf, swingScanWindow4H)
	if err != nil {
		log.Printf("[WARN] orchestrator: load 4H candles for swing scan: %v", err)
		return
	}
	if err := o.swingTracker.Scan(ctx, tf, all); err != nil {
		log.Printf("[WARN] orchestrator: 4H swing scan: %v", err)
	}
}

// on5MCandles re-scans 5M swings, then steps the confluence state machine
// for the active sweep, if any.
func (o *Orchestrator) on5MCandles(ctx context.Context, tf Timeframe, fresh []Candle) {
	all, err := o.store.RecentCandles(ctx, tf, swingScanWindow5M)
	if err != nil {
		log.Printf("[WARN] orchestrator: load 5M candles for swing scan: %v", err)
		return
	}
	if err := o.swingTracker.Scan(ctx, tf, all); err != nil {
		log.Printf("[WARN] orchestrator: 5M swing scan: %v", err)
	}

	sweep, err := o.store.ActiveSweep(ctx)
	if err != nil {
		log.Printf("[WARN] orchestrator: load active sweep: %v", err)
		return
	}
	if sweep == nil {
		return
	}
	cc, err := o.store.ConfluenceForSweep(ctx, sweep.ID)
	if err != nil || cc == nil {
		if err != nil {
			log.Printf("[WARN] orchestrator: load confluence for sweep %d: %v", sweep.ID, err)
		}
		return
	}

	window, err := o.store.RecentCandles(ctx, TF5Min, swingScanWindow5M)
	if err != nil {
		log.Printf("[WARN] orchestrator: load 5M window for confluence step: %v", err)
		return
	}

	effect := step(*cc, *sweep, window, nowUTC())
	switch effect.Kind {
	case effectNone:
		return
	case effectPersist:
		if err := o.store.SaveConfluence(ctx, effect.Next); err != nil {
			log.Printf("[WARN] orchestrator: save confluence: %v", err)
			return
		}
		IncConfluenceTransition(effect.Next.State)
	case effectEmitSignal:
		if err := o.store.SaveConfluence(ctx, effect.Next); err != nil {
			log.Printf("[WARN] orchestrator: save confluence: %v", err)
			return
		}
		IncConfluenceTransition(effect.Next.State)
		o.onConfluenceComplete(ctx, *sweep, effect.Next)
	}
	if effect.Next.State == Complete || effect.Next.State == Expired {
		if err := o.store.DeactivateSweep(ctx, sweep.ID); err != nil {
			log.Printf("[WARN] orchestrator: retire sweep %d: %v", sweep.ID, err)
		}
	}
}

// onConfluenceComplete runs the stop-loss -> sizer -> oracle -> risk-gate ->
// execution pipeline once the 5M confluence pipeline completes; the risk
// gate receives the oracle's verdict as one of its checks.
func (o *Orchestrator) onConfluenceComplete(ctx context.Context, sweep Sweep, cc ConfluenceCtx) {
	if o.hasOpenTrade() {
		IncRiskRejection(ReasonPositionLimit)
		return
	}

	direction := directionForBias(sweep.Bias)
	entry, err := o.broker.GetNowPrice(ctx, o.cfg.Trading.Symbol)
	if err != nil {
		log.Printf("[WARN] orchestrator: price lookup for entry failed: %v", err)
		return
	}

	wantKind := SwingLow
	if direction == Short {
		wantKind = SwingHigh
	}
	fiveMinSwing, err := o.store.ActiveSwing(ctx, TF5Min, wantKind)
	if err != nil {
		log.Printf("[WARN] orchestrator: load 5M swing for stop calc: %v", err)
		return
	}
	var fourHourSwept *Swing
	if sweep.Kind == SwingHigh {
		fourHourSwept, err = o.store.ActiveSwing(ctx, TF4Hour, SwingHigh)
	} else {
		fourHourSwept, err = o.store.ActiveSwing(ctx, TF4Hour, SwingLow)
	}
	if err != nil {
		log.Printf("[WARN] orchestrator: load 4H swept swing: %v", err)
		return
	}
	// The swept swing itself may already have been superseded; reconstruct
	// its price from the sweep record if the active lookup no longer matches.
	if fourHourSwept == nil || fourHourSwept.ID != sweep.SwingRef {
		fourHourSwept = &Swing{ID: sweep.SwingRef, Timeframe: TF4Hour, Kind: sweep.Kind, Price: sweep.Price, Active: false}
	}

	candidates := BuildCandidates(direction, fiveMinSwing, fourHourSwept)
	slResult, err := CalculateStopLoss(direction, entry, candidates)
	if err != nil {
		log.Printf("[INFO] orchestrator: no valid stop for sweep %d: %v", sweep.ID, err)
		return
	}

	sizing, err := SizePosition(o.sysCfg.AccountBalance, entry, slResult.Stop, slResult.MinTakeProfit, o.cfg.Trading.RiskPerTrade)
	if err != nil {
		log.Printf("[INFO] orchestrator: sizing rejected for sweep %d: %v", sweep.ID, err)
		return
	}

	proposal := TradeProposal{
		Direction:  direction,
		Entry:      entry,
		Stop:       slResult.Stop,
		TakeProfit: slResult.MinTakeProfit,
		RR:         sizing.RR,
		DistPct:    slResult.DistancePercent,
	}

	risk, err := o.store.LoadRiskState(ctx)
	if err != nil {
		log.Printf("[WARN] orchestrator: load risk state: %v", err)
		return
	}

	oracleResp, err := o.oracle.Consult(ctx, OracleRequest{
		Bias:       sweep.Bias,
		Symbol:     o.cfg.Trading.Symbol,
		SweepPrice: sweep.Price,
		Entry:      entry,
		StopLoss:   slResult.Stop,
		TakeProfit: slResult.MinTakeProfit,
		Account:    o.sysCfg.AccountBalance,
	})
	if err != nil {
		log.Printf("[WARN] orchestrator: oracle consult failed: %v", err)
		IncOracleCall("error")
		oracleResp = OracleResponse{Decision: "NO", Confidence: 0, Reason: "oracle unavailable"}
	} else {
		IncOracleCall(oracleResp.Decision)
	}

	decision := Evaluate(proposal, GateInputs{
		HasOpenTrade:     false,
		Risk:             risk,
		System:           o.SystemConfigSnapshot(),
		DailyLossLimit:   o.cfg.Trading.DailyLossLimit,
		ConsecutiveCap:   o.cfg.Trading.ConsecutiveLossLimit,
		MinBalance:       o.cfg.Trading.MinBalance,
		BrokerHealthy:    true,
		OracleDecision:   oracleResp.Decision,
		OracleConfidence: oracleResp.Confidence,
		ConfidenceFloor:  o.cfg.Oracle.ConfidenceThreshold,
		Now:              nowUTC(),
	})
	if !decision.Approved {
		log.Printf("[INFO] orchestrator: trade rejected reason=%s", decision.Reason)
		return
	}

	pending := Trade{
		SweepRef:   sweep.ID,
		Direction:  direction,
		EntryPrice: entry,
		EntryTs:    nowUTC(),
		SizeBase:   sizing.SizeBase,
		SizeQuote:  sizing.SizeQuote,
		StopLoss:   slResult.Stop,
		StopSource: slResult.Source,
		TakeProfit: slResult.MinTakeProfit,
		RR:         sizing.RR,
		Status:     TradePending,
	}
	id, err := o.store.InsertTrade(ctx, pending)
	if err != nil {
		log.Printf("[ERROR] orchestrator: insert pending trade: %v", err)
		return
	}
	pending.ID = id

	opened, err := o.exec.Open(ctx, direction, sizing.SizeBase, slResult.Stop, slResult.MinTakeProfit)
	if err != nil {
		log.Printf("[WARN] orchestrator: execution failed, marking trade %d REJECTED: %v", id, err)
		if uerr := o.store.UpdateTradeStatus(ctx, id, TradeRejected); uerr != nil {
			log.Printf("[ERROR] orchestrator: mark trade %d rejected: %v", id, uerr)
		}
		return
	}

	pending.EntryPrice = opened.EntryOrder.FillPrice
	pending.Status = TradeOpen
	if err := o.store.UpdateTradeStatus(ctx, id, TradeOpen); err != nil {
		log.Printf("[ERROR] orchestrator: mark trade %d open: %v", id, err)
	}

	o.mu.Lock()
	o.openTradeID = &id
	o.mu.Unlock()
	SetOpenPosition(true)
	log.Printf("[INFO] trade %d opened direction=%s entry=%s stop=%s tp=%s", id, direction, pending.EntryPrice, pending.StopLoss, pending.TakeProfit)

	o.startMonitor(ctx, pending)
}

func (o *Orchestrator) startMonitor(ctx context.Context, t Trade) {
	mon := NewPositionMonitor(o.broker, o.store, o.cfg.Trading.Symbol, o.onTradeClosed)
	ticks := o.feed.Subscribe()
	go mon.Watch(ctx, t, ticks, o.SystemConfigSnapshot)
}

// onTradeClosed is the single-writer update path for RiskState and the
// single-position slot after a trade closes.
func (o *Orchestrator) onTradeClosed(ctx context.Context, t Trade) {
	o.mu.Lock()
	o.openTradeID = nil
	o.mu.Unlock()
	SetOpenPosition(false)

	if t.Outcome == nil || t.PnL == nil {
		return
	}
	risk, err := o.store.LoadRiskState(ctx)
	if err != nil {
		log.Printf("[WARN] orchestrator: load risk state after close: %v", err)
		return
	}
	next := ApplyTradeClose(risk, *t.Outcome, *t.PnL, nowUTC(), o.cfg.Trading.ConsecutiveLossLimit, o.cfg.Trading.DailyLossLimit, o.sysCfg.AccountBalance)
	if err := o.store.SaveRiskState(ctx, next); err != nil {
		log.Printf("[WARN] orchestrator: save risk state after close: %v", err)
	}
	SetDayPnL(next.DayPL.InexactFloat64())

	o.mu.Lock()
	o.sysCfg.AccountBalance = o.sysCfg.AccountBalance.Add(*t.PnL)
	bal := o.sysCfg.AccountBalance
	o.mu.Unlock()
	SetEquity(bal.InexactFloat64())
}
