package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/confidence-coach/internal/domain"
	"github.com/ashureev/confidence-coach/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets the health ping read while a turn is being written.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS clients (
		client_id TEXT PRIMARY KEY,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		ledger_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		turn_count INTEGER NOT NULL DEFAULT 0,
		latest_confidence INTEGER NOT NULL DEFAULT 5,
		started_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_client ON sessions(client_id, session_id);

	CREATE TABLE IF NOT EXISTS turns (
		ledger_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		confidence_level INTEGER,
		fallback INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (ledger_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetClient retrieves a client by ID.
func (s *SQLiteStore) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT client_id, last_seen_at, created_at FROM clients WHERE client_id = ?`, clientID)

	var client domain.Client
	var lastSeen, createdAt int64
	err := row.Scan(&client.ClientID, &lastSeen, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan client row: %w", err)
	}

	client.LastSeenAt = time.Unix(lastSeen, 0)
	client.CreatedAt = time.Unix(createdAt, 0)
	return &client, nil
}

// UpsertClient creates or updates a client record.
func (s *SQLiteStore) UpsertClient(ctx context.Context, client *domain.Client) error {
	query := `
	INSERT INTO clients (client_id, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(client_id) DO UPDATE SET
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		client.ClientID, client.LastSeenAt.Unix(), client.CreatedAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a client.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, clientID string, lastSeen time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE clients SET last_seen_at = ?, updated_at = ? WHERE client_id = ?`,
		lastSeen.Unix(), time.Now().Unix(), clientID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "client_id", clientID)
	}
	return nil
}

// RecordExchange upserts the session row and inserts turns atomically,
// retrying on SQLite lock contention.
func (s *SQLiteStore) RecordExchange(ctx context.Context, session domain.ArchivedSession, turns []domain.ArchivedTurn) error {
	return shared.RetryOnConflict(ctx, "record exchange", writeAttempts, writeBaseDelay, func() error {
		return s.recordExchangeOnce(ctx, session, turns)
	})
}

func (s *SQLiteStore) recordExchangeOnce(ctx context.Context, session domain.ArchivedSession, turns []domain.ArchivedTurn) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back exchange", "ledger_id", session.LedgerID, "error", rbErr)
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO sessions (ledger_id, client_id, session_id, turn_count, latest_confidence, started_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(ledger_id) DO UPDATE SET
		turn_count = excluded.turn_count,
		latest_confidence = excluded.latest_confidence,
		updated_at = excluded.updated_at`,
		session.LedgerID, session.ClientID, session.SessionID, session.TurnCount,
		session.LatestConfidence, session.StartedAt.Unix(), session.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	for _, t := range turns {
		var level any
		if t.ConfidenceLevel != nil {
			level = *t.ConfidenceLevel
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (ledger_id, seq, role, content, confidence_level, fallback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.LedgerID, t.Seq, string(t.Role), t.Content, level, t.Fallback, t.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert turn %d: %w", t.Seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit exchange: %w", err)
	}
	return nil
}

// CleanupStaleSessions removes sessions and their turns not updated within ttl.
func (s *SQLiteStore) CleanupStaleSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()

	var deleted int64
	err := shared.RetryOnConflict(ctx, "cleanup stale sessions", writeAttempts, writeBaseDelay, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM turns WHERE ledger_id IN (SELECT ledger_id FROM sessions WHERE updated_at < ?)`,
			threshold); err != nil {
			return fmt.Errorf("delete stale turns: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete stale sessions: %w", err)
		}
		if deleted, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
