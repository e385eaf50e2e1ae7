package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"autotrader/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol    TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	open      REAL NOT NULL,
	high      REAL NOT NULL,
	low       REAL NOT NULL,
	close     REAL NOT NULL,
	volume    REAL NOT NULL,
	PRIMARY KEY (symbol, timestamp)
);
CREATE TABLE IF NOT EXISTS closed_trades (
	id        INTEGER PRIMARY KEY,
	timestamp TEXT NOT NULL,
	symbol    TEXT NOT NULL,
	side      TEXT NOT NULL,
	amount    REAL NOT NULL,
	price     REAL NOT NULL,
	profit    REAL NOT NULL
);`

// SQLite persists price bars and closed trades. Bars are keyed by symbol and
// timestamp, so re-fetching the latest bar is an idempotent append.
type SQLite struct {
	db *sql.DB
}

func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) AppendBars(ctx context.Context, bars []core.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO bars (symbol, timestamp, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.Timestamp.UTC().Format(time.RFC3339),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) ReadBars(ctx context.Context, symbol string) ([]core.Bar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, timestamp, open, high, low, close, volume
		 FROM bars WHERE symbol = ? ORDER BY timestamp`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Bar
	for rows.Next() {
		var b core.Bar
		var ts string
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("bad bar timestamp %q: %w", ts, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLite) AppendClosedTrade(ctx context.Context, t core.ClosedTrade) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO closed_trades (timestamp, symbol, side, amount, price, profit)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Timestamp.UTC().Format(time.RFC3339), t.Symbol, string(t.Side), t.Amount, t.Price, t.Profit)
	return err
}

func (s *SQLite) ReadClosedTrades(ctx context.Context) ([]core.ClosedTrade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, symbol, side, amount, price, profit
		 FROM closed_trades ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ClosedTrade
	for rows.Next() {
		var t core.ClosedTrade
		var ts, side string
		if err := rows.Scan(&ts, &t.Symbol, &side, &t.Amount, &t.Price, &t.Profit); err != nil {
			return nil, err
		}
		t.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("bad trade timestamp %q: %w", ts, err)
		}
		t.Side = core.Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}
