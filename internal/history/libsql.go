package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	_ "github.com/tursodatabase/go-libsql"
)

const schema = `
CREATE TABLE IF NOT EXISTS histories (
    domain  TEXT PRIMARY KEY,
    payload TEXT NOT NULL
);
`

// LibsqlBackend keeps each domain's serialized collection in one row of a
// local libsql database.
type LibsqlBackend struct {
	db *sql.DB
}

// OpenLibsqlBackend opens (creating if needed) the history database at dbPath.
func OpenLibsqlBackend(dbPath string) (*LibsqlBackend, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("libsql", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug("history store initialized", "path", dbPath)
	return &LibsqlBackend{db: db}, nil
}

// Read returns the serialized collection for a domain.
func (b *LibsqlBackend) Read(domain string) (string, bool, error) {
	var payload string
	err := b.db.QueryRow(`SELECT payload FROM histories WHERE domain = ?`, domain).Scan(&payload)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read history for %s: %w", domain, err)
	}
	return payload, true, nil
}

// Write replaces the serialized collection for a domain.
func (b *LibsqlBackend) Write(domain, payload string) error {
	_, err := b.db.Exec(`
		INSERT INTO histories (domain, payload) VALUES (?, ?)
		ON CONFLICT(domain) DO UPDATE SET payload = excluded.payload`,
		domain, payload)
	if err != nil {
		return fmt.Errorf("failed to write history for %s: %w", domain, err)
	}
	return nil
}

// Close closes the underlying database.
func (b *LibsqlBackend) Close() error {
	return b.db.Close()
}
