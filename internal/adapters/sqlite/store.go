// Package sqlite stores rate observations in a WAL-mode SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/bft-labs/stableopt/internal/backtest"
	"github.com/bft-labs/stableopt/internal/domain"
)

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

// HistoryStore implements ports.HistoryStore.
type HistoryStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string, cfg Config) (*HistoryStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func (s *HistoryStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rate_observations (
		market_key TEXT NOT NULL,
		observed_at INTEGER NOT NULL,
		protocol TEXT NOT NULL,
		chain TEXT NOT NULL,
		asset TEXT NOT NULL,
		source TEXT NOT NULL,
		supply_apy REAL NOT NULL,
		borrow_apy REAL,
		utilization REAL NOT NULL DEFAULT 0,
		total_supply REAL NOT NULL DEFAULT 0,
		total_borrow REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (market_key, observed_at)
	);

	CREATE INDEX IF NOT EXISTS idx_rate_observations_time ON rate_observations(observed_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append upserts observations in one transaction. Rates without a borrow
// quote are stored with a NULL borrow APY.
func (s *HistoryStore) Append(ctx context.Context, rates []domain.Rate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO rate_observations (
		market_key, observed_at, protocol, chain, asset, source,
		supply_apy, borrow_apy, utilization, total_supply, total_borrow
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(market_key, observed_at) DO UPDATE SET
		supply_apy = excluded.supply_apy,
		borrow_apy = excluded.borrow_apy,
		utilization = excluded.utilization,
		total_supply = excluded.total_supply,
		total_borrow = excluded.total_borrow
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rates {
		var borrow sql.NullFloat64
		if r.HasBorrow() {
			borrow = sql.NullFloat64{Float64: r.BorrowAPY, Valid: true}
		}
		m := r.Market
		if _, err := stmt.ExecContext(ctx,
			m.Key, r.ObservedAt.UTC().UnixMilli(), string(m.Protocol), string(m.Chain), m.Asset, string(m.Source),
			r.SupplyAPY, borrow, r.Utilization, r.TotalSupply, r.TotalBorrow,
		); err != nil {
			return fmt.Errorf("insert %s: %w", m.Key, err)
		}
	}
	return tx.Commit()
}

// timeRange appends optional bounds to a WHERE clause. Zero times are open.
func timeRange(where []string, args []any, from, to time.Time) ([]string, []any) {
	if !from.IsZero() {
		where = append(where, "observed_at >= ?")
		args = append(args, from.UTC().UnixMilli())
	}
	if !to.IsZero() {
		where = append(where, "observed_at <= ?")
		args = append(args, to.UTC().UnixMilli())
	}
	return where, args
}

const selectColumns = `market_key, observed_at, protocol, chain, asset, source,
	supply_apy, borrow_apy, utilization, total_supply, total_borrow`

func (s *HistoryStore) query(ctx context.Context, keys []string, from, to time.Time) ([]domain.Rate, error) {
	var (
		where []string
		args  []any
	)
	if len(keys) > 0 {
		where = append(where, "market_key IN (?"+strings.Repeat(",?", len(keys)-1)+")")
		for _, k := range keys {
			args = append(args, k)
		}
	}
	where, args = timeRange(where, args, from, to)

	q := "SELECT " + selectColumns + " FROM rate_observations"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY observed_at, market_key"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Rate
	for rows.Next() {
		var (
			r      domain.Rate
			ms     int64
			borrow sql.NullFloat64
			proto  string
			chain  string
			source string
		)
		if err := rows.Scan(&r.Market.Key, &ms, &proto, &chain, &r.Market.Asset, &source,
			&r.SupplyAPY, &borrow, &r.Utilization, &r.TotalSupply, &r.TotalBorrow); err != nil {
			return nil, err
		}
		r.Market.Protocol = domain.Protocol(proto)
		r.Market.Chain = domain.Chain(chain)
		r.Market.Source = domain.Source(source)
		r.ObservedAt = time.UnixMilli(ms).UTC()
		if borrow.Valid {
			r.BorrowAPY = borrow.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Range returns one market's observations in [from, to], oldest first.
func (s *HistoryStore) Range(ctx context.Context, marketKey string, from, to time.Time) ([]domain.Rate, error) {
	return s.query(ctx, []string{marketKey}, from, to)
}

// Markets lists the distinct market keys.
func (s *HistoryStore) Markets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT market_key FROM rate_observations ORDER BY market_key`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Prune deletes observations older than before.
func (s *HistoryStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_observations WHERE observed_at < ?`, before.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Series loads observations of keys (all markets when empty) into a
// backtest series.
func (s *HistoryStore) Series(ctx context.Context, keys []string, from, to time.Time) (*backtest.Series, error) {
	rates, err := s.query(ctx, keys, from, to)
	if err != nil {
		return nil, err
	}

	series := &backtest.Series{}
	for _, r := range rates {
		p := backtest.Pair{Supply: backtest.Float(r.SupplyAPY)}
		if r.HasBorrow() {
			p.Borrow = backtest.Float(r.BorrowAPY)
		}
		series.Add(r.ObservedAt, r.Market.Key, p)
	}
	return series, nil
}
