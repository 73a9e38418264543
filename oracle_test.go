package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNoOracle_AlwaysRejects(t *testing.T) {
	resp, err := (NoOracle{}).Consult(context.Background(), OracleRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Decision != "NO" {
		t.Fatalf("decision = %s, want NO", resp.Decision)
	}
}

func TestHTTPOracle_ConsultDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OracleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("oracle server: decode request: %v", err)
		}
		if req.Bias != BiasBullish {
			t.Errorf("bias = %s, want BULLISH", req.Bias)
		}
		json.NewEncoder(w).Encode(OracleResponse{Decision: "YES", Confidence: 82, Reason: "confluence aligns with higher timeframe bias"})
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL, "test-model", 0.3, 2*time.Second)
	resp, err := oracle.Consult(context.Background(), OracleRequest{Bias: BiasBullish})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Decision != "YES" || resp.Confidence != 82 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHTTPOracle_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL, "test-model", 0.3, 2*time.Second)
	if _, err := oracle.Consult(context.Background(), OracleRequest{}); err == nil {
		t.Fatalf("expected an error on a non-200 response")
	}
}
