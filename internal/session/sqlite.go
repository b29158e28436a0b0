package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pixil98/go-quest/internal/engine"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	data       BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expires_at ON sessions(expires_at);
`

// SqliteStore is a durable Store keeping one JSON aggregate row per
// session. Writes check the aggregate version so a stale save (which the
// per-session serialization above should already prevent) fails loudly
// instead of silently losing progress.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqliteStore opens (and creates if needed) a session database at path.
func OpenSqliteStore(ctx context.Context, path string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) Get(ctx context.Context, id string) (*engine.State, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	var state engine.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshalling session %s: %w", id, err)
	}
	return &state, nil
}

func (s *SqliteStore) Put(ctx context.Context, state *engine.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling session %s: %w", state.Id, err)
	}

	var expires int64
	if !state.ExpiresAt.IsZero() {
		expires = state.ExpiresAt.Unix()
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(id, version, expires_at, data)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	version=excluded.version,
	expires_at=excluded.expires_at,
	data=excluded.data
WHERE excluded.version > sessions.version`,
		state.Id, state.Version, expires, data)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", state.Id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("saving session %s: version %d is stale", state.Id, state.Version)
	}
	return nil
}

func (s *SqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

func (s *SqliteStore) ExpiredIds(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE expires_at > 0 AND expires_at < ?`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("listing expired sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
