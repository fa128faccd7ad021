package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// codeFormat identifies what the assembler emits for a given program hash.
// It is stored as the database user_version; a cache written under another
// format holds code this build would not produce, so its artifacts are
// dropped on open while the run log is kept.
//
//	1 - scalar moves and compares on whole accesses
//	2 - proxied moves expand per element, base types never coerce
const codeFormat = 2

// connParams are applied by the driver to every connection it opens.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
}

// Store caches compiled artifacts and logs program runs.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path. ":memory:" gives a
// private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dataSource(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to cache %s: %w", path, err)
	}

	// SQLite has a single writer, and an in-memory cache lives only as
	// long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare cache %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func dataSource(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + connParams.Encode()
}

// prepare creates the artifact and run tables and drops artifacts assembled
// under an older code format.
func prepare(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var format int
	if err := db.QueryRow("PRAGMA user_version").Scan(&format); err != nil {
		return fmt.Errorf("read code format: %w", err)
	}
	switch {
	case format == codeFormat:
		return nil
	case format > codeFormat:
		return fmt.Errorf("cache uses code format %d, this build reads up to %d", format, codeFormat)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("upgrade code format: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM artifacts")
	if err != nil {
		return fmt.Errorf("drop stale artifacts: %w", err)
	}
	dropped, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("drop stale artifacts: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", codeFormat)); err != nil {
		return fmt.Errorf("record code format: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upgrade code format: %w", err)
	}
	if format > 0 {
		slog.Info("dropped artifacts from older code format",
			"from", format, "to", codeFormat, "artifacts", dropped)
	}
	return nil
}
