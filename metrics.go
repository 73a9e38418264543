// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the primary series the engine updates during operation:
//   • engine_swings_total{timeframe,kind}       – swing highs/lows confirmed
//   • engine_sweeps_total{kind}                 – liquidity sweeps detected
//   • engine_confluence_transitions_total{to}   – 5M pipeline state transitions
//   • engine_stoploss_rejections_total{reason}  – SL candidates rejected
//   • engine_risk_rejections_total{reason}      – trades blocked by the gatekeeper
//   • engine_trades_total{outcome}              – closed trades by outcome
//   • engine_equity_usd                         – current account balance (gauge)
//   • engine_day_pnl_usd                        – running daily PnL (gauge)
//   • engine_open_position                      – 1 if a trade is open, else 0
//   • engine_oracle_calls_total{verdict}         – oracle consultations by verdict
//   • engine_pricefeed_reconnects_total          – websocket reconnect count
//
// Registered in init() and served by the HTTP handler started in main.go at
// /metrics (Prometheus text exposition format).
package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxSwings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_swings_total",
			Help: "Confirmed swing highs/lows",
		},
		[]string{"timeframe", "kind"},
	)

	mtxSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_sweeps_total",
			Help: "Liquidity sweeps detected on the 4H timeframe",
		},
		[]string{"kind"},
	)

	mtxConfluenceTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_confluence_transitions_total",
			Help: "5M confluence pipeline state transitions",
		},
		[]string{"to"},
	)

	mtxStopLossRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_stoploss_rejections_total",
			Help: "Stop-loss candidates rejected, by reason",
		},
		[]string{"reason"},
	)

	mtxRiskRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_risk_rejections_total",
			Help: "Trades blocked by the pre-trade risk gatekeeper, by reason code",
		},
		[]string{"reason"},
	)

	mtxTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_trades_total",
			Help: "Closed trades by outcome (WIN|LOSS|BREAKEVEN)",
		},
		[]string{"outcome"},
	)

	mtxEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_equity_usd",
			Help: "Current account balance in USD",
		},
	)

	mtxDayPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_day_pnl_usd",
			Help: "Running realized PnL for the current UTC trading day",
		},
	)

	mtxOpenPosition = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_open_position",
			Help: "1 if a trade currently occupies the single-position slot, else 0",
		},
	)

	mtxOracleCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_oracle_calls_total",
			Help: "Oracle consultations by verdict (YES|NO|error)",
		},
		[]string{"verdict"},
	)

	mtxPricefeedReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_pricefeed_reconnects_total",
			Help: "Live price feed websocket reconnect attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxSwings,
		mtxSweeps,
		mtxConfluenceTransitions,
		mtxStopLossRejections,
		mtxRiskRejections,
		mtxTrades,
		mtxEquity,
		mtxDayPnL,
		mtxOpenPosition,
		mtxOracleCalls,
		mtxPricefeedReconnects,
	)
}

func IncSwing(tf Timeframe, kind SwingKind)    { mtxSwings.WithLabelValues(string(tf), string(kind)).Inc() }
func IncSweep(kind SwingKind)                  { mtxSweeps.WithLabelValues(string(kind)).Inc() }
func IncConfluenceTransition(to ConfluenceState) {
	mtxConfluenceTransitions.WithLabelValues(string(to)).Inc()
}
func IncStopLossRejection(reason string) { mtxStopLossRejections.WithLabelValues(reason).Inc() }
func IncRiskRejection(reason string)     { mtxRiskRejections.WithLabelValues(reason).Inc() }
func IncTrade(outcome Outcome)           { mtxTrades.WithLabelValues(string(outcome)).Inc() }
func SetEquity(v float64)                { mtxEquity.Set(v) }
func SetDayPnL(v float64)                { mtxDayPnL.Set(v) }
func SetOpenPosition(open bool) {
	if open {
		mtxOpenPosition.Set(1)
	} else {
		mtxOpenPosition.Set(0)
	}
}
func IncOracleCall(verdict string)   { mtxOracleCalls.WithLabelValues(verdict).Inc() }
func IncPricefeedReconnect()         { mtxPricefeedReconnects.Inc() }
