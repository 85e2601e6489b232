// Package store persists chat messages, users, inventory, and the lesson
// plan knowledge base in a single SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store owns the database handle. Units of work (HTTP requests, background
// bot replies) each obtain their own Session; no transaction is ever shared
// across concurrent units.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite has one writer, and it keeps ":memory:"
	// databases from silently splitting per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER REFERENCES users(id) ON DELETE CASCADE,
		content    TEXT NOT NULL,
		is_bot     INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_bot ON messages(is_bot, id);

	CREATE TABLE IF NOT EXISTS inventory_items (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		name           TEXT NOT NULL,
		category       TEXT NOT NULL,
		description    TEXT,
		quantity       REAL NOT NULL DEFAULT 0,
		unit           TEXT NOT NULL DEFAULT 'units',
		min_quantity   REAL NOT NULL DEFAULT 10,
		location       TEXT,
		last_restocked DATETIME,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_inventory_name ON inventory_items(name);
	CREATE INDEX IF NOT EXISTS idx_inventory_category ON inventory_items(category);

	CREATE TABLE IF NOT EXISTS inventory_transactions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id          INTEGER NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
		transaction_type TEXT NOT NULL,
		quantity_change  REAL NOT NULL,
		quantity_after   REAL NOT NULL,
		user_id          INTEGER REFERENCES users(id) ON DELETE SET NULL,
		reason           TEXT,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_item ON inventory_transactions(item_id, created_at);

	CREATE TABLE IF NOT EXISTS suppliers (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		name           TEXT NOT NULL,
		item_name      TEXT NOT NULL,
		contact_info   TEXT,
		order_url      TEXT,
		price_per_unit REAL,
		lead_time_days INTEGER,
		notes          TEXT,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_suppliers_item ON suppliers(item_name);

	CREATE TABLE IF NOT EXISTS lesson_documents (
		id          TEXT PRIMARY KEY,
		filename    TEXT NOT NULL,
		subject     TEXT,
		grade       INTEGER,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS lesson_chunks (
		id          TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES lesson_documents(id) ON DELETE CASCADE,
		content     TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		embedding   BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON lesson_chunks(document_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Session returns an independent unit of work over the shared handle. Each
// background bot reply and each request acquires its own Session; any
// transaction a Session opens is invisible to other sessions.
func (s *Store) Session() *Session {
	return &Session{db: s.db, logger: s.logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Session is a single unit of work against the store.
type Session struct {
	db     *sql.DB
	logger *slog.Logger
}
