// FILE: main.go
// Package main – Program entrypoint, HTTP/metrics server, graceful shutdown.
//
// Boot sequence:
//   1) loadBotEnv()        – read .env (no shell exports required)
//   2) loadConfig()        – defaults < optional YAML file < environment
//   3) wire Store/Broker/Oracle/PriceFeed/Orchestrator
//   4) start /healthz, /metrics, and the chi operator API on cfg.Port
//   5) run the orchestrator until SIGINT/SIGTERM, then drain
//
// Exit codes: 0 clean shutdown, 1 configuration invalid, 2 storage
// unreachable at startup, 4 unhandled fault. Code 3 (brokerage auth failed
// at startup) is never returned: only the paper broker is wired, and it has
// no auth step.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to an optional YAML config file")
	flag.Parse()

	loadBotEnv()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Printf("[FATAL] config invalid: %v", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := NewStore(ctx, cfg.dsn())
	if err != nil {
		log.Printf("[FATAL] storage unreachable: %v", err)
		return 2
	}
	if err := store.Migrate(ctx); err != nil {
		log.Printf("[FATAL] storage migrate failed: %v", err)
		return 2
	}
	defer store.Close()

	// A real venue adapter satisfying the Broker interface would be wired
	// here when paper_mode=false; the brokerage wire protocol itself is out
	// of scope, so this engine ships only the paper broker.
	broker := NewPaperBroker(cfg.Trading.AccountBalance)

	var oracle Oracle
	if cfg.Oracle.Endpoint == "" {
		oracle = NoOracle{}
	} else {
		oracle = NewHTTPOracle(cfg.Oracle.Endpoint, cfg.Oracle.Model, cfg.Oracle.Temperature, time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second)
	}

	feedURL := getEnv("PRICE_FEED_URL", "")
	feed := NewPriceFeed(feedURL)

	orch := NewOrchestrator(cfg, store, broker, oracle, feed)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", NewOperatorRouter(orch, store))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("[INFO] serving operator API on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[FATAL] http server: %v", err)
		}
	}()

	runErr := orch.Run(ctx)

	shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)

	if runErr != nil {
		log.Printf("[ERROR] orchestrator exited with error: %v", runErr)
		return 4
	}
	return 0
}
