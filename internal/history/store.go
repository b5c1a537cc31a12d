// Package history persists delivery outcomes to a local SQLite database and
// reads them back most-recent-first. Records are append-only: nothing in the
// engine ever mutates or deletes a row.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Status is the terminal outcome of one delivery attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Attempt records the outcome of sending one offer through one channel.
type Attempt struct {
	ID         int64
	SentAt     time.Time
	OfferTitle string
	Channel    string
	Status     Status
}

const schema = `
CREATE TABLE IF NOT EXISTS delivery_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    sent_at     TEXT NOT NULL,
    offer_title TEXT NOT NULL,
    channel     TEXT NOT NULL,
    status      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_delivery_history_sent_at ON delivery_history(sent_at);
`

const timeLayout = "2006-01-02 15:04:05"

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Store is a SQLite-backed append log of delivery attempts.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	log.Debug("history store ready", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Append durably records one delivery attempt.
func (s *Store) Append(ctx context.Context, a Attempt) error {
	sentAt := a.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO delivery_history (sent_at, offer_title, channel, status) VALUES (?, ?, ?, ?)",
		sentAt.Format(timeLayout), a.OfferTitle, a.Channel, string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("append delivery attempt: %w", err)
	}
	return nil
}

// List returns up to limit attempts, most recent first.
func (s *Store) List(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, sent_at, offer_title, channel, status FROM delivery_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a      Attempt
			sentAt string
			status string
		)
		if err := rows.Scan(&a.ID, &sentAt, &a.OfferTitle, &a.Channel, &status); err != nil {
			return nil, fmt.Errorf("scan delivery attempt: %w", err)
		}
		if ts, err := time.ParseInLocation(timeLayout, sentAt, time.Local); err == nil {
			a.SentAt = ts
		}
		a.Status = Status(status)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	return attempts, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
