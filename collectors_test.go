package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCandleSource struct {
	candles []Candle
	err     error
	calls   int
}

func (f *fakeCandleSource) GetRecentCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

type fakeCandlePersister struct {
	upserted []Candle
	pruned   int64
}

func (f *fakeCandlePersister) UpsertCandle(ctx context.Context, c Candle) error {
	f.upserted = append(f.upserted, c)
	return nil
}
func (f *fakeCandlePersister) LatestCandleTs(ctx context.Context, tf Timeframe) (time.Time, error) {
	return time.Time{}, nil
}
func (f *fakeCandlePersister) RecentCandles(ctx context.Context, tf Timeframe, limit int) ([]Candle, error) {
	return nil, nil
}
func (f *fakeCandlePersister) PruneCandlesOlderThan(ctx context.Context, tf Timeframe, cutoff time.Time) (int64, error) {
	return f.pruned, nil
}

func TestCollector_FetchWithRetry_SucceedsImmediately(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeCandleSource{candles: []Candle{
		{Timeframe: TF5Min, TsStart: base, Open: D(1), High: D(2), Low: D(1), Close: D(1), Volume: D(1)},
	}}
	store := &fakeCandlePersister{}
	c := NewCollector("BTC-USD", TF5Min, src, store, nil)

	if err := c.fetchWithRetry(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected exactly one fetch on immediate success, got %d", src.calls)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected one candle upserted, got %d", len(store.upserted))
	}
}

func TestCollector_FetchWithRetry_StopsOnCanceledContext(t *testing.T) {
	src := &fakeCandleSource{err: errors.New("network down")}
	store := &fakeCandlePersister{}
	c := NewCollector("BTC-USD", TF5Min, src, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // canceled up front so the retry backoff wait returns immediately

	err := c.fetchWithRetry(ctx)
	if err == nil {
		t.Fatalf("expected an error when the source keeps failing")
	}
}

func TestCollector_UpsertValid_SkipsInvalidCandles(t *testing.T) {
	store := &fakeCandlePersister{}
	c := NewCollector("BTC-USD", TF4Hour, nil, store, nil)

	aligned := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	valid := Candle{TsStart: aligned, Open: D(1), High: D(2), Low: D(1), Close: D(1), Volume: D(1)}
	invalid := Candle{TsStart: aligned.Add(time.Minute), Open: D(1), High: D(2), Low: D(1), Close: D(1), Volume: D(-1)}

	c.upsertValid(context.Background(), []Candle{valid, invalid})
	if len(store.upserted) != 1 {
		t.Fatalf("expected only the valid candle upserted, got %d", len(store.upserted))
	}
}

func TestCollector_MaybePrune_OnlyForFiveMinute(t *testing.T) {
	store := &fakeCandlePersister{pruned: 5}
	c := NewCollector("BTC-USD", TF4Hour, nil, store, nil)
	c.maybePrune(context.Background())
	if !c.lastPrune.IsZero() {
		t.Fatalf("expected a 4H collector to never run the prune pass")
	}
}

func TestCollector_MaybePrune_RespectsCadence(t *testing.T) {
	store := &fakeCandlePersister{pruned: 5}
	before := nowUTC()
	c := &Collector{symbol: "BTC-USD", tf: TF5Min, store: store, lastPrune: before}
	c.maybePrune(context.Background()) // lastPrune just set, should skip
	if !c.lastPrune.Equal(before) {
		t.Fatalf("expected prune skipped within pruneCadence, but lastPrune moved from %s to %s", before, c.lastPrune)
	}
}

func TestCollector_GapFill_DetectsAndRefetches(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	step := TF5Min.duration()
	src := &fakeCandleSource{candles: []Candle{}}
	store := &fakeCandlePersister{}
	storeWithHistory := &recentCandlesStore{
		fakeCandlePersister: store,
		recent: []Candle{
			{TsStart: base},
			{TsStart: base.Add(2 * step)}, // gap: skipped one 5M boundary
		},
	}
	c := NewCollector("BTC-USD", TF5Min, src, storeWithHistory, nil)

	if err := c.GapFill(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected GapFill to trigger exactly one refetch, got %d calls", src.calls)
	}
}

func TestCollector_GapFill_NoGapsSkipsRefetch(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	step := TF5Min.duration()
	src := &fakeCandleSource{candles: []Candle{}}
	store := &fakeCandlePersister{}
	storeWithHistory := &recentCandlesStore{
		fakeCandlePersister: store,
		recent: []Candle{
			{TsStart: base},
			{TsStart: base.Add(step)},
		},
	}
	c := NewCollector("BTC-USD", TF5Min, src, storeWithHistory, nil)

	if err := c.GapFill(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("expected no refetch when there are no gaps, got %d calls", src.calls)
	}
}

// recentCandlesStore overrides RecentCandles so GapFill can observe a
// specific stored history while reusing fakeCandlePersister's other methods.
type recentCandlesStore struct {
	*fakeCandlePersister
	recent []Candle
}

func (r *recentCandlesStore) RecentCandles(ctx context.Context, tf Timeframe, limit int) ([]Candle, error) {
	return r.recent, nil
}
