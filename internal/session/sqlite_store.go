package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/roelfdiedericks/aiorch/internal/logging"
	"github.com/roelfdiedericks/aiorch/internal/paths"
)

// SQLiteStore keeps conversations in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Schema version for migrations
const currentSchemaVersion = 1

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := paths.EnsureParentDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	L_debug("sqlite: session store opened", "path", path)
	return store, nil
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, start from scratch
		version = 0
	}

	if version >= currentSchemaVersion {
		return nil
	}

	migrations := []func(*sql.DB) error{
		migrateV1,
	}
	for i := version; i < len(migrations); i++ {
		if err := migrations[i](s.db); err != nil {
			return fmt.Errorf("migration v%d failed: %w", i+1, err)
		}
		L_debug("sqlite: applied migration", "version", i+1)
	}
	return nil
}

// migrateV1 creates the initial schema
func migrateV1(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		history TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec("INSERT INTO schema_version (version, applied_at) VALUES (1, ?)", time.Now().Unix())
	return err
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	var history string
	var updated int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, history, updated_at FROM conversations WHERE id = ?", id,
	).Scan(&conv.ID, &conv.Title, &history, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(history), &conv.History); err != nil {
		L_warn("sqlite: corrupt history", "id", id, "error", err)
		return nil, ErrNotFound
	}
	conv.UpdatedAt = time.UnixMilli(updated)
	return &conv, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, conv *Conversation) error {
	history, err := json.Marshal(conv.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	// Millisecond resolution keeps List ordering stable for quick successive saves.
	_, err = s.db.ExecContext(ctx, `INSERT INTO conversations (id, title, history, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, history = excluded.history, updated_at = excluded.updated_at`,
		conv.ID, conv.Title, string(history), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", conv.ID, err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, json_array_length(history), updated_at FROM conversations ORDER BY updated_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		var updated int64
		if err := rows.Scan(&info.ID, &info.Title, &info.Messages, &updated); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.UnixMilli(updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
