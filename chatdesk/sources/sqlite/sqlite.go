// Package sqlite keeps the chat state in an embedded SQLite database, one row
// per session with its messages stored as a JSON column.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chatdesk/chatdesk/services/sessions"

	_ "modernc.org/sqlite"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    position   INTEGER NOT NULL,
    title      TEXT NOT NULL,
    model      TEXT NOT NULL,
    created_at TEXT NOT NULL,
    messages   TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_sessions_position ON sessions(position);
CREATE TABLE IF NOT EXISTS store_meta (
    id                INTEGER PRIMARY KEY CHECK (id = 1),
    active_session_id TEXT NOT NULL DEFAULT '',
    default_model     TEXT NOT NULL DEFAULT ''
);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Saves rewrite every row; a single connection keeps them serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context) (*sessions.StoreState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, model, created_at, messages
		FROM sessions ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var st sessions.StoreState
	for rows.Next() {
		var sess sessions.Session
		var createdAt, msgJSON string
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Model, &createdAt, &msgJSON); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("session %s created_at: %w", sess.ID, err)
		}
		if err := json.Unmarshal([]byte(msgJSON), &sess.Messages); err != nil {
			return nil, fmt.Errorf("session %s messages: %w", sess.ID, err)
		}
		st.Sessions = append(st.Sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(st.Sessions) == 0 {
		return nil, nil
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT active_session_id, default_model FROM store_meta WHERE id = 1`,
	).Scan(&st.ActiveSessionID, &st.DefaultModel)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load store meta: %w", err)
	}
	return &st, nil
}

// Save replaces the stored state inside one transaction.
func (s *Store) Save(ctx context.Context, st sessions.StoreState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	for i, sess := range st.Sessions {
		msgs := sess.Messages
		if msgs == nil {
			msgs = []sessions.Message{}
		}
		msgJSON, err := json.Marshal(msgs)
		if err != nil {
			return fmt.Errorf("marshal messages: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (id, position, title, model, created_at, messages)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, i, sess.Title, sess.Model,
			sess.CreatedAt.UTC().Format(time.RFC3339Nano),
			string(msgJSON),
		)
		if err != nil {
			return fmt.Errorf("save session %s: %w", sess.ID, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO store_meta (id, active_session_id, default_model) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active_session_id = excluded.active_session_id,
			default_model = excluded.default_model`,
		st.ActiveSessionID, st.DefaultModel)
	if err != nil {
		return fmt.Errorf("save store meta: %w", err)
	}
	return tx.Commit()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
