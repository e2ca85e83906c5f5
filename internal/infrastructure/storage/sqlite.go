package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// SQLiteStore persists the ledger, history and signal log in one database.
// Each Save replaces the whole table inside a transaction.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			entry REAL NOT NULL,
			tp REAL NOT NULL,
			sl REAL NOT NULL,
			strategy TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_sent_at TEXT NOT NULL,
			closed_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);`,
		`CREATE TABLE IF NOT EXISTS history (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			entry REAL NOT NULL,
			target_price REAL NOT NULL,
			stop_loss REAL NOT NULL,
			created_at TEXT NOT NULL,
			closed_at TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS signals (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			entry REAL NOT NULL,
			tp REAL NOT NULL,
			sl REAL NOT NULL,
			rr REAL NOT NULL,
			confidence REAL NOT NULL,
			strategy TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			tech_score REAL NOT NULL,
			sent_score REAL NOT NULL,
			mix_score REAL NOT NULL,
			reason TEXT NOT NULL,
			features TEXT
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// Book, History and Signals expose the store through the domain interfaces.
func (s *SQLiteStore) Book() domain.BookStore       { return sqliteBook{s} }
func (s *SQLiteStore) History() domain.HistoryStore { return sqliteHistory{s} }
func (s *SQLiteStore) Signals() domain.SignalStore  { return sqliteSignals{s} }

type sqliteBook struct{ s *SQLiteStore }

func (b sqliteBook) Load(ctx context.Context) (domain.Book, error) {
	rows, err := b.s.db.QueryContext(ctx,
		`SELECT id, symbol, entry, tp, sl, strategy, status, created_at, last_sent_at, closed_at FROM positions ORDER BY seq`)
	if err != nil {
		return domain.Book{}, err
	}
	defer rows.Close()

	book := domain.Book{Open: []domain.Position{}, Closed: []domain.Position{}}
	for rows.Next() {
		var p domain.Position
		var created, lastSent string
		var closed sql.NullString
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Entry, &p.TP, &p.SL, &p.Strategy, &p.Status, &created, &lastSent, &closed); err != nil {
			return domain.Book{}, err
		}
		if p.CreatedAt, err = parseTime(created); err != nil {
			return domain.Book{}, err
		}
		if p.LastSentAt, err = parseTime(lastSent); err != nil {
			return domain.Book{}, err
		}
		if closed.Valid {
			t, err := parseTime(closed.String)
			if err != nil {
				return domain.Book{}, err
			}
			p.ClosedAt = &t
		}
		if p.Status == domain.StatusOpen {
			book.Open = append(book.Open, p)
		} else {
			book.Closed = append(book.Closed, p)
		}
	}
	return book, rows.Err()
}

func (b sqliteBook) Save(ctx context.Context, book domain.Book) error {
	return b.s.replace(ctx, "positions", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO positions (id, symbol, entry, tp, sl, strategy, status, created_at, last_sent_at, closed_at, seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		seq := 0
		for _, list := range [][]domain.Position{book.Open, book.Closed} {
			for _, p := range list {
				var closed any
				if p.ClosedAt != nil {
					closed = formatTime(*p.ClosedAt)
				}
				if _, err := stmt.ExecContext(ctx, p.ID, p.Symbol, p.Entry, p.TP, p.SL, p.Strategy, string(p.Status),
					formatTime(p.CreatedAt), formatTime(p.LastSentAt), closed, seq); err != nil {
					return fmt.Errorf("failed to insert position %s: %w", p.ID, err)
				}
				seq++
			}
		}
		return nil
	})
}

type sqliteHistory struct{ s *SQLiteStore }

func (h sqliteHistory) Load(ctx context.Context) ([]domain.HistoryRecord, error) {
	rows, err := h.s.db.QueryContext(ctx,
		`SELECT id, symbol, entry, target_price, stop_loss, created_at, closed_at, outcome, reason FROM history ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var r domain.HistoryRecord
		var created, closed string
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Entry, &r.TP, &r.SL, &created, &closed, &r.Outcome, &r.Reason); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if r.ClosedAt, err = parseTime(closed); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (h sqliteHistory) Save(ctx context.Context, records []domain.HistoryRecord) error {
	return h.s.replace(ctx, "history", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO history (seq, id, symbol, entry, target_price, stop_loss, created_at, closed_at, outcome, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, r := range records {
			if _, err := stmt.ExecContext(ctx, i, r.ID, r.Symbol, r.Entry, r.TP, r.SL,
				formatTime(r.CreatedAt), formatTime(r.ClosedAt), string(r.Outcome), string(r.Reason)); err != nil {
				return fmt.Errorf("failed to insert history %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

type sqliteSignals struct{ s *SQLiteStore }

func (g sqliteSignals) Load(ctx context.Context) ([]domain.SignalRecord, error) {
	rows, err := g.s.db.QueryContext(ctx,
		`SELECT id, symbol, entry, tp, sl, rr, confidence, strategy, created_at, tech_score, sent_score, mix_score, reason, features
		 FROM signals ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.SignalRecord
	for rows.Next() {
		var r domain.SignalRecord
		var created string
		var features sql.NullString
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Entry, &r.TP, &r.SL, &r.RR, &r.Confidence, &r.Strategy, &created,
			&r.TechScore, &r.SentScore, &r.MixScore, &r.Reason, &features); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if features.Valid && features.String != "" {
			if err := json.Unmarshal([]byte(features.String), &r.Features); err != nil {
				return nil, fmt.Errorf("failed to decode features for %s: %w", r.ID, err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (g sqliteSignals) Save(ctx context.Context, records []domain.SignalRecord) error {
	return g.s.replace(ctx, "signals", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO signals (seq, id, symbol, entry, tp, sl, rr, confidence, strategy, created_at, tech_score, sent_score, mix_score, reason, features)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, r := range records {
			var features any
			if len(r.Features) > 0 {
				raw, err := json.Marshal(r.Features)
				if err != nil {
					return fmt.Errorf("failed to encode features for %s: %w", r.ID, err)
				}
				features = string(raw)
			}
			if _, err := stmt.ExecContext(ctx, i, r.ID, r.Symbol, r.Entry, r.TP, r.SL, r.RR, r.Confidence, r.Strategy,
				formatTime(r.CreatedAt), r.TechScore, r.SentScore, r.MixScore, r.Reason, features); err != nil {
				return fmt.Errorf("failed to insert signal %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// replace clears table and refills it with fill in one transaction.
func (s *SQLiteStore) replace(ctx context.Context, table string, fill func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	if err := fill(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
