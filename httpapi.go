// FILE: httpapi.go
// Package main – Operator HTTP API.
//
// Read-only views of open positions, recent swings, latest sweep, and
// performance counters, plus the two writable flags (emergency_stop,
// trading_enabled). Grounded on abdulloh5007-tradepl's internal/httpserver/
// router.go for the go-chi/chi/v5 dependency and route-grouping style.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// NewOperatorRouter builds the chi router serving the operator surface.
func NewOperatorRouter(orch *Orchestrator, store *Store) http.Handler {
	r := chi.NewRouter()

	r.Get("/positions", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()
		t, err := store.OpenTrade(ctx)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, t)
	})

	r.Get("/swings", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()
		tf := Timeframe(req.URL.Query().Get("timeframe"))
		if tf == "" {
			tf = TF4Hour
		}
		high, errH := store.ActiveSwing(ctx, tf, SwingHigh)
		low, errL := store.ActiveSwing(ctx, tf, SwingLow)
		if errH != nil {
			httpError(w, errH)
			return
		}
		if errL != nil {
			httpError(w, errL)
			return
		}
		writeJSON(w, map[string]*Swing{"high": high, "low": low})
	})

	r.Get("/sweep", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()
		s, err := store.ActiveSweep(ctx)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, s)
	})

	r.Get("/risk", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()
		rs, err := store.LoadRiskState(ctx)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, rs)
	})

	r.Get("/system", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, orch.SystemConfigSnapshot())
	})

	r.Post("/emergency_stop", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		orch.SetEmergencyStop(body.Enabled)
		writeJSON(w, orch.SystemConfigSnapshot())
	})

	r.Post("/trading_enabled", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		orch.SetTradingEnabled(body.Enabled)
		writeJSON(w, orch.SystemConfigSnapshot())
	})

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
