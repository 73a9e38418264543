package main

import (
	"context"
	"errors"
	"testing"
)

func TestExecutionManager_OpenPlacesThreeLegs(t *testing.T) {
	broker := NewPaperBroker(D(1000))
	broker.SetPrice(D(90000))
	exec := NewExecutionManager(broker, "BTC-USD")

	opened, err := exec.Open(context.Background(), Long, D(0.01), D(89000), D(92000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opened.EntryOrder.Status != "filled" {
		t.Fatalf("entry status = %s, want filled", opened.EntryOrder.Status)
	}
	if opened.StopOrder.Kind != OrderStopLoss || opened.StopOrder.Status != "open" {
		t.Fatalf("unexpected stop order: %+v", opened.StopOrder)
	}
	if opened.TPOrder.Kind != OrderTakeProfit || opened.TPOrder.Status != "open" {
		t.Fatalf("unexpected tp order: %+v", opened.TPOrder)
	}
	if opened.EntryOrder.Side != SideBuy || opened.StopOrder.Side != SideSell || opened.TPOrder.Side != SideSell {
		t.Fatalf("unexpected leg sides for a LONG: entry=%s stop=%s tp=%s",
			opened.EntryOrder.Side, opened.StopOrder.Side, opened.TPOrder.Side)
	}
}

func TestExecutionManager_ShortUsesOppositeSides(t *testing.T) {
	broker := NewPaperBroker(D(1000))
	broker.SetPrice(D(90000))
	exec := NewExecutionManager(broker, "BTC-USD")

	opened, err := exec.Open(context.Background(), Short, D(0.01), D(91000), D(88000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opened.EntryOrder.Side != SideSell || opened.StopOrder.Side != SideBuy || opened.TPOrder.Side != SideBuy {
		t.Fatalf("unexpected leg sides for a SHORT: entry=%s stop=%s tp=%s",
			opened.EntryOrder.Side, opened.StopOrder.Side, opened.TPOrder.Side)
	}
}

func TestExecutionManager_ZeroSizeRejectedAndUnwound(t *testing.T) {
	broker := NewPaperBroker(D(1000))
	broker.SetPrice(D(90000))
	exec := NewExecutionManager(broker, "BTC-USD")

	_, err := exec.Open(context.Background(), Long, D(0), D(89000), D(92000))
	if err == nil {
		t.Fatalf("expected an error for a zero-size entry")
	}
	var execErr *ErrExecutionFailed
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ErrExecutionFailed, got %T: %v", err, err)
	}
	if execErr.Leg != "entry" {
		t.Fatalf("leg = %s, want entry", execErr.Leg)
	}
}
