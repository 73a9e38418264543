// FILE: candlestore.go
// Package main – Persistence layer: candles, swings, sweeps,
// confluence contexts, trades, and risk state.
//
// A thin Store struct wrapping a pgxpool.Pool, plain SQL with $N
// placeholders, transactions for the multi-statement writes (swing
// supersession, sweep creation), and partial unique indexes enforcing the single-active-row
// invariants instead of application-level locking for the global
// "at most one" constraints.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the pgx-backed persistence layer satisfying every *Store
// interface the components need (SwingStore, SweepStore, and the trade/
// candle operations used directly by the orchestrator).
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("candlestore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("candlestore: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// schema is applied once at startup (idempotent via IF NOT EXISTS); a real
// deployment would run this through a migration tool instead, but the
// engine's only migration need is this fixed schema.
const schema = `
create table if not exists candles (
	timeframe  text not null,
	ts_start   timestamptz not null,
	open       numeric(20,8) not null,
	high       numeric(20,8) not null,
	low        numeric(20,8) not null,
	close      numeric(20,8) not null,
	volume     numeric(20,8) not null,
	primary key (timeframe, ts_start)
);
create index if not exists idx_candles_ts on candles (timeframe, ts_start desc);

create table if not exists swings (
	id         bigserial primary key,
	timeframe  text not null,
	kind       text not null,
	ts         timestamptz not null,
	price      numeric(20,8) not null,
	active     boolean not null default true
);
create index if not exists idx_swings_active on swings (timeframe, kind, active, ts desc);

create table if not exists sweeps (
	id         bigserial primary key,
	ts         timestamptz not null,
	kind       text not null,
	swing_ref  bigint not null,
	price      numeric(20,8) not null,
	bias       text not null,
	active     boolean not null default true
);
create unique index if not exists idx_sweeps_one_active on sweeps (active) where active;

create table if not exists confluence_ctx (
	id         bigserial primary key,
	sweep_ref  bigint not null,
	state      text not null,
	choch_ts   timestamptz,
	choch_price numeric(20,8),
	fvg_ts     timestamptz,
	fvg_lo     numeric(20,8),
	fvg_hi     numeric(20,8),
	fvg_fill_ts timestamptz,
	bos_ts     timestamptz,
	bos_price  numeric(20,8),
	start_ts   timestamptz not null
);

create table if not exists trades (
	id          bigserial primary key,
	sweep_ref   bigint not null,
	direction   text not null,
	entry_price numeric(20,8) not null,
	entry_ts    timestamptz not null,
	size_base   numeric(20,8) not null,
	size_quote  numeric(20,8) not null,
	stop_loss   numeric(20,8) not null,
	stop_source text not null,
	take_profit numeric(20,8) not null,
	rr          numeric(10,4) not null,
	trailing_fired boolean not null default false,
	status      text not null,
	exit_price  numeric(20,8),
	exit_ts     timestamptz,
	outcome     text,
	pnl         numeric(20,8)
);
create unique index if not exists idx_trades_one_open on trades ((1)) where exit_ts is null;

create table if not exists risk_state (
	id                 int primary key default 1,
	consecutive_losses int not null default 0,
	day_pl             numeric(20,8) not null default 0,
	day_start_ts       timestamptz not null,
	paused_until       timestamptz,
	reason             text
);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("candlestore: migrate: %w", err)
	}
	_, err = s.pool.Exec(ctx, `insert into risk_state (id, day_start_ts) values (1, $1) on conflict (id) do nothing`, midnightUTC(nowUTC()))
	if err != nil {
		return fmt.Errorf("candlestore: seed risk_state: %w", err)
	}
	return nil
}

// --- Candles ---

// UpsertCandle inserts a candle, skipping silently on a duplicate
// (timeframe, ts_start) key. Candles are never mutated after insert.
func (s *Store) UpsertCandle(ctx context.Context, c Candle) error {
	_, err := s.pool.Exec(ctx,
		`insert into candles (timeframe, ts_start, open, high, low, close, volume)
		 values ($1,$2,$3,$4,$5,$6,$7)
		 on conflict (timeframe, ts_start) do nothing`,
		string(c.Timeframe), c.TsStart, c.Open, c.High, c.Low, c.Close, c.Volume)
	if err != nil {
		return fmt.Errorf("candlestore: upsert candle: %w", err)
	}
	return nil
}

// LatestCandleTs returns the ts_start of the most recently stored candle for
// tf, or the zero time if none exist.
func (s *Store) LatestCandleTs(ctx context.Context, tf Timeframe) (time.Time, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx,
		`select ts_start from candles where timeframe=$1 order by ts_start desc limit 1`,
		string(tf)).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("candlestore: latest candle ts: %w", err)
	}
	return ts, nil
}

// RecentCandles returns up to limit most-recent candles for tf, oldest first.
func (s *Store) RecentCandles(ctx context.Context, tf Timeframe, limit int) ([]Candle, error) {
	rows, err := s.pool.Query(ctx,
		`select timeframe, ts_start, open, high, low, close, volume
		 from candles where timeframe=$1 order by ts_start desc limit $2`,
		string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("candlestore: recent candles: %w", err)
	}
	defer rows.Close()

	var out []Candle
	for rows.Next() {
		var c Candle
		var tfStr string
		if err := rows.Scan(&tfStr, &c.TsStart, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("candlestore: scan candle: %w", err)
		}
		c.Timeframe = Timeframe(tfStr)
		out = append(out, c)
	}
	// reverse to oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// PruneCandlesOlderThan deletes candles for tf older than the cutoff,
// implementing the 5M 7-day retention policy.
func (s *Store) PruneCandlesOlderThan(ctx context.Context, tf Timeframe, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `delete from candles where timeframe=$1 and ts_start < $2`, string(tf), cutoff)
	if err != nil {
		return 0, fmt.Errorf("candlestore: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Swings, satisfying SwingStore ---

func (s *Store) ActiveSwing(ctx context.Context, tf Timeframe, kind SwingKind) (*Swing, error) {
	var sw Swing
	var tfStr, kindStr string
	err := s.pool.QueryRow(ctx,
		`select id, timeframe, kind, ts, price, active from swings
		 where timeframe=$1 and kind=$2 and active order by ts desc limit 1`,
		string(tf), string(kind)).Scan(&sw.ID, &tfStr, &kindStr, &sw.Ts, &sw.Price, &sw.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("candlestore: active swing: %w", err)
	}
	sw.Timeframe, sw.Kind = Timeframe(tfStr), SwingKind(kindStr)
	return &sw, nil
}

func (s *Store) SupersedeSwing(ctx context.Context, tf Timeframe, kind SwingKind, newSwing Swing) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("candlestore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`update swings set active=false where timeframe=$1 and kind=$2 and active`,
		string(tf), string(kind)); err != nil {
		return fmt.Errorf("candlestore: deactivate swing: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`insert into swings (timeframe, kind, ts, price, active) values ($1,$2,$3,$4,true)`,
		string(tf), string(kind), newSwing.Ts, newSwing.Price); err != nil {
		return fmt.Errorf("candlestore: insert swing: %w", err)
	}
	return tx.Commit(ctx)
}

// --- Sweeps + ConfluenceCtx, satisfying SweepStore ---

func (s *Store) ActiveSweep(ctx context.Context) (*Sweep, error) {
	var sw Sweep
	var kindStr, biasStr string
	err := s.pool.QueryRow(ctx,
		`select id, ts, kind, swing_ref, price, bias, active from sweeps where active limit 1`,
	).Scan(&sw.ID, &sw.Ts, &kindStr, &sw.SwingRef, &sw.Price, &biasStr, &sw.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("candlestore: active sweep: %w", err)
	}
	sw.Kind, sw.Bias = SwingKind(kindStr), Bias(biasStr)
	return &sw, nil
}

func (s *Store) CreateSweep(ctx context.Context, sw Sweep) (*ConfluenceCtx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("candlestore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`update confluence_ctx set state=$1 where sweep_ref in (select id from sweeps where active) and state not in ($2,$3)`,
		string(Expired), string(Complete), string(Expired)); err != nil {
		return nil, fmt.Errorf("candlestore: expire superseded confluence: %w", err)
	}
	if _, err := tx.Exec(ctx, `update sweeps set active=false where active`); err != nil {
		return nil, fmt.Errorf("candlestore: deactivate sweeps: %w", err)
	}

	var sweepID int64
	err = tx.QueryRow(ctx,
		`insert into sweeps (ts, kind, swing_ref, price, bias, active) values ($1,$2,$3,$4,$5,true) returning id`,
		sw.Ts, string(sw.Kind), sw.SwingRef, sw.Price, string(sw.Bias)).Scan(&sweepID)
	if err != nil {
		return nil, fmt.Errorf("candlestore: insert sweep: %w", err)
	}

	cc := ConfluenceCtx{SweepRef: sweepID, State: WaitingCHoCH, StartTs: sw.Ts}
	err = tx.QueryRow(ctx,
		`insert into confluence_ctx (sweep_ref, state, start_ts) values ($1,$2,$3) returning id`,
		sweepID, string(cc.State), cc.StartTs).Scan(&cc.ID)
	if err != nil {
		return nil, fmt.Errorf("candlestore: insert confluence_ctx: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("candlestore: commit: %w", err)
	}
	return &cc, nil
}

func (s *Store) DeactivateSweep(ctx context.Context, sweepID int64) error {
	_, err := s.pool.Exec(ctx, `update sweeps set active=false where id=$1`, sweepID)
	if err != nil {
		return fmt.Errorf("candlestore: deactivate sweep: %w", err)
	}
	return nil
}

func (s *Store) ExpireConfluenceForSweep(ctx context.Context, sweepID int64) error {
	_, err := s.pool.Exec(ctx,
		`update confluence_ctx set state=$1 where sweep_ref=$2 and state not in ($3,$4)`,
		string(Expired), sweepID, string(Complete), string(Expired))
	if err != nil {
		return fmt.Errorf("candlestore: expire confluence: %w", err)
	}
	return nil
}

func (s *Store) ConfluenceForSweep(ctx context.Context, sweepID int64) (*ConfluenceCtx, error) {
	var cc ConfluenceCtx
	var stateStr string
	var chochTs, fvgTs, fvgFillTs, bosTs *time.Time
	var chochPrice, fvgLo, fvgHi, bosPrice *decimal.Decimal
	err := s.pool.QueryRow(ctx,
		`select id, sweep_ref, state, choch_ts, choch_price, fvg_ts, fvg_lo, fvg_hi, fvg_fill_ts, bos_ts, bos_price, start_ts
		 from confluence_ctx where sweep_ref=$1`, sweepID,
	).Scan(&cc.ID, &cc.SweepRef, &stateStr, &chochTs, &chochPrice, &fvgTs, &fvgLo, &fvgHi, &fvgFillTs, &bosTs, &bosPrice, &cc.StartTs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("candlestore: confluence for sweep: %w", err)
	}
	cc.State = ConfluenceState(stateStr)
	if chochTs != nil && chochPrice != nil {
		cc.CHoCH = &CHoCHMark{Ts: *chochTs, Price: *chochPrice}
	}
	if fvgTs != nil && fvgLo != nil && fvgHi != nil {
		fvg := FVGMark{Ts: *fvgTs, Lo: *fvgLo, Hi: *fvgHi}
		if fvgFillTs != nil {
			fvg.FillTs = *fvgFillTs
		}
		cc.FVG = &fvg
	}
	if bosTs != nil && bosPrice != nil {
		cc.BOS = &BOSMark{Ts: *bosTs, Price: *bosPrice}
	}
	return &cc, nil
}

// SaveConfluence persists the full state of a ConfluenceCtx after a step().
func (s *Store) SaveConfluence(ctx context.Context, cc ConfluenceCtx) error {
	var chochTs, fvgTs, fvgFillTs, bosTs *time.Time
	var chochPrice, fvgLo, fvgHi, bosPrice *decimal.Decimal
	if cc.CHoCH != nil {
		chochTs, chochPrice = &cc.CHoCH.Ts, &cc.CHoCH.Price
	}
	if cc.FVG != nil {
		fvgTs, fvgLo, fvgHi = &cc.FVG.Ts, &cc.FVG.Lo, &cc.FVG.Hi
		if cc.FVG.filled() {
			fvgFillTs = &cc.FVG.FillTs
		}
	}
	if cc.BOS != nil {
		bosTs, bosPrice = &cc.BOS.Ts, &cc.BOS.Price
	}
	_, err := s.pool.Exec(ctx,
		`update confluence_ctx set state=$1, choch_ts=$2, choch_price=$3, fvg_ts=$4, fvg_lo=$5, fvg_hi=$6, fvg_fill_ts=$7, bos_ts=$8, bos_price=$9 where id=$10`,
		string(cc.State), chochTs, chochPrice, fvgTs, fvgLo, fvgHi, fvgFillTs, bosTs, bosPrice, cc.ID)
	if err != nil {
		return fmt.Errorf("candlestore: save confluence: %w", err)
	}
	return nil
}

// --- Trades (execution inserts; the position monitor mutates until CLOSED) ---

func (s *Store) OpenTrade(ctx context.Context) (*Trade, error) {
	var t Trade
	var dirStr, srcStr, statusStr string
	var outcomeStr *string
	var exitPrice, pnl *decimal.Decimal
	var exitTs *time.Time
	err := s.pool.QueryRow(ctx,
		`select id, sweep_ref, direction, entry_price, entry_ts, size_base, size_quote, stop_loss, stop_source, take_profit, rr, trailing_fired, status, exit_price, exit_ts, outcome, pnl
		 from trades where exit_ts is null limit 1`,
	).Scan(&t.ID, &t.SweepRef, &dirStr, &t.EntryPrice, &t.EntryTs, &t.SizeBase, &t.SizeQuote, &t.StopLoss, &srcStr, &t.TakeProfit, &t.RR, &t.TrailingFired, &statusStr, &exitPrice, &exitTs, &outcomeStr, &pnl)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("candlestore: open trade: %w", err)
	}
	t.Direction, t.StopSource, t.Status = Direction(dirStr), StopSource(srcStr), TradeStatus(statusStr)
	t.ExitPrice, t.ExitTs, t.PnL = exitPrice, exitTs, pnl
	if outcomeStr != nil {
		o := Outcome(*outcomeStr)
		t.Outcome = &o
	}
	return &t, nil
}

func (s *Store) InsertTrade(ctx context.Context, t Trade) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`insert into trades (sweep_ref, direction, entry_price, entry_ts, size_base, size_quote, stop_loss, stop_source, take_profit, rr, trailing_fired, status)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) returning id`,
		t.SweepRef, string(t.Direction), t.EntryPrice, t.EntryTs, t.SizeBase, t.SizeQuote, t.StopLoss, string(t.StopSource), t.TakeProfit, t.RR, t.TrailingFired, string(t.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("candlestore: insert trade: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateTradeStatus(ctx context.Context, id int64, status TradeStatus) error {
	_, err := s.pool.Exec(ctx, `update trades set status=$1 where id=$2`, string(status), id)
	if err != nil {
		return fmt.Errorf("candlestore: update trade status: %w", err)
	}
	return nil
}

func (s *Store) SetTrailingFired(ctx context.Context, id int64, newStop decimal.Decimal) error {
	_, err := s.pool.Exec(ctx, `update trades set trailing_fired=true, stop_loss=$1 where id=$2`, newStop, id)
	if err != nil {
		return fmt.Errorf("candlestore: set trailing fired: %w", err)
	}
	return nil
}

func (s *Store) CloseTrade(ctx context.Context, id int64, exitPrice decimal.Decimal, exitTs time.Time, outcome Outcome, pnl decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`update trades set status=$1, exit_price=$2, exit_ts=$3, outcome=$4, pnl=$5 where id=$6`,
		string(TradeClosed), exitPrice, exitTs, string(outcome), pnl, id)
	if err != nil {
		return fmt.Errorf("candlestore: close trade: %w", err)
	}
	return nil
}

// --- Risk state ---

func (s *Store) LoadRiskState(ctx context.Context) (RiskState, error) {
	var rs RiskState
	var paused *time.Time
	var reason *string
	err := s.pool.QueryRow(ctx,
		`select consecutive_losses, day_pl, day_start_ts, paused_until, reason from risk_state where id=1`,
	).Scan(&rs.ConsecutiveLosses, &rs.DayPL, &rs.DayStartTs, &paused, &reason)
	if err != nil {
		return rs, fmt.Errorf("candlestore: load risk state: %w", err)
	}
	rs.PausedUntil = paused
	if reason != nil {
		rs.Reason = *reason
	}
	return rs, nil
}

func (s *Store) SaveRiskState(ctx context.Context, rs RiskState) error {
	_, err := s.pool.Exec(ctx,
		`update risk_state set consecutive_losses=$1, day_pl=$2, day_start_ts=$3, paused_until=$4, reason=$5 where id=1`,
		rs.ConsecutiveLosses, rs.DayPL, rs.DayStartTs, rs.PausedUntil, rs.Reason)
	if err != nil {
		return fmt.Errorf("candlestore: save risk state: %w", err)
	}
	return nil
}
