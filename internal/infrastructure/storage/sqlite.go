package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/kraken_spot_bot/internal/domain"
)

// SQLiteJournal records confirmed fills and per-cycle decisions for audit.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	journal := &SQLiteJournal{db: db}
	if err := journal.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return journal, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func (j *SQLiteJournal) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			txid TEXT NOT NULL,
			pair TEXT NOT NULL,
			side TEXT NOT NULL,
			volume REAL NOT NULL,
			price REAL NOT NULL,
			fee REAL NOT NULL,
			simulated BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades(created_at);`,
		`CREATE TABLE IF NOT EXISTS cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			price REAL NOT NULL,
			mode TEXT NOT NULL,
			decision TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := j.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (j *SQLiteJournal) SaveTrade(ctx context.Context, trade *domain.TradeRecord) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	query := `INSERT INTO trades (id, txid, pair, side, volume, price, fee, simulated, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.ExecContext(ctx, query,
		trade.ID, trade.TxID, trade.Pair, trade.Side, trade.Volume, trade.Price,
		trade.Fee, trade.Simulated, trade.CreatedAt)
	return err
}

func (j *SQLiteJournal) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT id, txid, pair, side, volume, price, fee, simulated, created_at
			  FROM trades ORDER BY created_at DESC LIMIT ?`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(&t.ID, &t.TxID, &t.Pair, &t.Side, &t.Volume, &t.Price,
			&t.Fee, &t.Simulated, &t.CreatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func (j *SQLiteJournal) SaveCycle(ctx context.Context, cycle *domain.CycleRecord) error {
	query := `INSERT INTO cycles (price, mode, decision, reason, created_at)
			  VALUES (?, ?, ?, ?, ?)`
	_, err := j.db.ExecContext(ctx, query,
		cycle.Price, cycle.Mode, cycle.Decision, cycle.Reason, cycle.CreatedAt)
	return err
}
