// FILE: oracle.go
// Package main – Advisory oracle client.
//
// The oracle itself is out of scope (an external collaborator); this file
// only implements the outbound request/response contract the core depends
// on: a small JSON POST/decode helper against a sidecar URL.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// OracleRequest carries the confluence bundle the oracle reasons over.
type OracleRequest struct {
	Bias       Bias            `json:"bias"`
	Symbol     string          `json:"symbol"`
	SweepPrice decimal.Decimal `json:"sweep_price"`
	Entry      decimal.Decimal `json:"entry_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	Account    decimal.Decimal `json:"account_balance"`
	Model      string          `json:"model,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
}

// OracleResponse is the oracle's verdict. Decisions below the configured
// confidence threshold are treated as NO by the caller (riskgate.go), not
// by this client.
type OracleResponse struct {
	Decision   string `json:"decision"` // "YES" or "NO"
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// Oracle is the interface the orchestrator consults after sizing and before
// the risk gatekeeper, which checks the returned verdict.
type Oracle interface {
	Consult(ctx context.Context, req OracleRequest) (OracleResponse, error)
}

// HTTPOracle calls a remote advisory endpoint over HTTP/JSON.
type HTTPOracle struct {
	endpoint string
	model    string
	temp     float64
	client   *http.Client
}

func NewHTTPOracle(endpoint, model string, temperature float64, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		endpoint: endpoint,
		model:    model,
		temp:     temperature,
		client:   &http.Client{Timeout: timeout},
	}
}

func (o *HTTPOracle) Consult(ctx context.Context, req OracleRequest) (OracleResponse, error) {
	req.Model = o.model
	req.Temperature = o.temp

	body, err := json.Marshal(req)
	if err != nil {
		return OracleResponse{}, fmt.Errorf("oracle: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return OracleResponse{}, fmt.Errorf("oracle: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return OracleResponse{}, fmt.Errorf("oracle: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return OracleResponse{}, fmt.Errorf("oracle: status %d", resp.StatusCode)
	}

	var out OracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return OracleResponse{}, fmt.Errorf("oracle: decode response: %w", err)
	}
	return out, nil
}

// NoOracle always rejects; used when ORACLE_ENDPOINT is unset so the engine
// fails closed rather than trading without advisory confirmation.
type NoOracle struct{}

func (NoOracle) Consult(ctx context.Context, req OracleRequest) (OracleResponse, error) {
	return OracleResponse{Decision: "NO", Confidence: 0, Reason: "oracle not configured"}, nil
}
