// Package storage provides an optional sqlite-backed cache of the last
// UTXO set this engine observed for a wallet address, so the CLI can show a
// balance without waiting on the oracle.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage wraps the sqlite connection backing the UTXO cache.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	// DBPath is the sqlite file to open, or create if absent. A relative
	// path is resolved against the working directory.
	DBPath string
}

// New opens (creating if needed) the sqlite cache database at cfg.DBPath.
func New(cfg *Config) (*Storage, error) {
	dbPath := cfg.DBPath
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	// sqlite only supports a single writer; keep one connection so WAL mode
	// doesn't need to arbitrate between pooled ones.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS wallet_utxos (
		address TEXT NOT NULL,
		txid    TEXT NOT NULL,
		vout    INTEGER NOT NULL,
		amount  INTEGER NOT NULL,
		height  INTEGER NOT NULL DEFAULT 0,
		cached_at INTEGER NOT NULL,
		PRIMARY KEY (address, txid, vout)
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_utxos_address ON wallet_utxos(address);
	`
	_, err := s.db.Exec(schema)
	return err
}
