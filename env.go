// FILE: env.go
// Package main – Environment helpers and safe .env loading for the trading engine.
//
// This file provides:
//   1) Small helpers to read environment variables with sane defaults
//      (strings, ints, floats, bools, decimals).
//   2) A dependency-free .env loader (loadBotEnv) that reads ./.env (and ../.env)
//      and injects ONLY the keys this engine needs into the process environment,
//      so a plain `go run .` works without shell exports.
//
// Any other process sharing the same .env (e.g. an operator dashboard) keeps
// reading its own keys; this loader ignores everything outside its allowlist.
package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// --------- Env helpers (used across files) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}
func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
func getEnvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}
	return d
}

// --------- Lightweight .env loader (no external deps) ---------

// loadBotEnv reads .env from "." and ".." and sets ONLY the keys this engine
// needs. It won't override variables already in the environment.
func loadBotEnv() {
	needed := map[string]struct{}{
		"DB_HOST": {}, "DB_PORT": {}, "DB_NAME": {}, "DB_USER": {}, "DB_PASSWORD": {},
		"BROKER_API_KEY": {}, "BROKER_API_SECRET": {},
		"SYMBOL": {}, "PAPER_MODE": {}, "ACCOUNT_BALANCE": {}, "RISK_PER_TRADE": {},
		"DAILY_LOSS_LIMIT": {}, "CONSECUTIVE_LOSS_LIMIT": {}, "MIN_BALANCE": {},
		"MAX_TRADE_DURATION_HOURS": {}, "LEVERAGE": {},
		"ORACLE_ENDPOINT": {}, "ORACLE_MODEL": {}, "ORACLE_TEMPERATURE": {},
		"ORACLE_TIMEOUT_S": {}, "ORACLE_CONFIDENCE_THRESHOLD": {},
		"LOG_LEVEL": {}, "EMERGENCY_STOP": {}, "PORT": {},
	}
	try := func(path string) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := strings.TrimSpace(s.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.HasPrefix(line, "export ") {
				line = strings.TrimSpace(line[len("export "):])
			}
			eq := strings.Index(line, "=")
			if eq <= 0 {
				continue
			}
			key := strings.TrimSpace(line[:eq])
			if _, ok := needed[key]; !ok {
				continue // ignore anything this process doesn't read
			}
			val := strings.TrimSpace(line[eq+1:])
			if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
				val = val[1 : len(val)-1]
			}
			if idx := strings.IndexAny(val, "#"); idx >= 0 {
				val = strings.TrimSpace(val[:idx])
			}
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, val)
			}
		}
	}
	for _, base := range []string{".", ".."} {
		try(filepath.Join(base, ".env"))
	}
}
