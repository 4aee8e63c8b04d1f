// Package storage persists the QA event log in SQLite.
// Writes go through a single connection; reads use a small pool.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

const memoryPath = ":memory:"

// DB wraps the SQLite database connections
type DB struct {
	writer *sql.DB
	reader *sql.DB
	path   string
}

// New opens (or creates) the database at dbPath and initializes the schema.
// ":memory:" opens a private in-memory database on a single connection.
func New(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath == memoryPath {
		conn, err := open(dbPath, 1)
		if err != nil {
			return nil, err
		}
		db := &DB{writer: conn, reader: conn, path: dbPath}
		return db.init(ctx)
	}

	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	writer, err := open(dbPath, 1)
	if err != nil {
		return nil, err
	}
	reader, err := open(dbPath, 4)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}
	db := &DB{writer: writer, reader: reader, path: dbPath}
	return db.init(ctx)
}

// NewTestDB creates an in-memory database for testing.
func NewTestDB() (*DB, error) {
	return New(context.Background(), memoryPath)
}

// open applies per-connection pragmas through the DSN so that every pooled
// connection gets them.
func open(path string, maxConns int) (*sql.DB, error) {
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "synchronous(NORMAL)")
	if path != memoryPath {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	dsn := "file:" + path + "?" + params.Encode()

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	if path != memoryPath {
		conn.SetConnMaxLifetime(time.Hour)
	}
	return conn, nil
}

func (db *DB) init(ctx context.Context) (*DB, error) {
	if err := db.writer.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := InitSchema(ctx, db.writer); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Close closes the database connections
func (db *DB) Close() error {
	var errs []error
	if db.reader != nil && db.reader != db.writer {
		errs = append(errs, db.reader.Close())
	}
	if db.writer != nil {
		errs = append(errs, db.writer.Close())
	}
	return errors.Join(errs...)
}

// Ping checks that both pools are usable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if err := db.reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	return nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}
