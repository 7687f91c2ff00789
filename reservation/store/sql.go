package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect holds the driver name and statements for one SQL database.
type Dialect struct {
	Name        string
	Driver      string
	createTable string
	get         string
	upsert      string
	remove      string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite3",
		createTable: `CREATE TABLE IF NOT EXISTS kv_store (store_key TEXT PRIMARY KEY, store_value TEXT NOT NULL)`,
		get:         `SELECT store_value FROM kv_store WHERE store_key = ?`,
		upsert:      `INSERT INTO kv_store (store_key, store_value) VALUES (?, ?) ON CONFLICT(store_key) DO UPDATE SET store_value = excluded.store_value`,
		remove:      `DELETE FROM kv_store WHERE store_key = ?`,
	}

	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "postgres",
		createTable: `CREATE TABLE IF NOT EXISTS kv_store (store_key VARCHAR(255) PRIMARY KEY, store_value TEXT NOT NULL)`,
		get:         `SELECT store_value FROM kv_store WHERE store_key = $1`,
		upsert:      `INSERT INTO kv_store (store_key, store_value) VALUES ($1, $2) ON CONFLICT (store_key) DO UPDATE SET store_value = EXCLUDED.store_value`,
		remove:      `DELETE FROM kv_store WHERE store_key = $1`,
	}

	MySQL = Dialect{
		Name:        "mysql",
		Driver:      "mysql",
		createTable: `CREATE TABLE IF NOT EXISTS kv_store (store_key VARCHAR(255) PRIMARY KEY, store_value LONGTEXT NOT NULL)`,
		get:         `SELECT store_value FROM kv_store WHERE store_key = ?`,
		upsert:      `INSERT INTO kv_store (store_key, store_value) VALUES (?, ?) ON DUPLICATE KEY UPDATE store_value = VALUES(store_value)`,
		remove:      `DELETE FROM kv_store WHERE store_key = ?`,
	}
)

// SQL is a Store kept in a single kv_store table.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQL opens the database, checks the connection and creates the table
func NewSQL(ctx context.Context, dialect Dialect, dsn string) (*SQL, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", dialect.Name, err)
	}
	if dialect.Driver == SQLite.Driver {
		// a single writer avoids "database is locked" under concurrent sessions
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s store: %w", dialect.Name, err)
	}
	if _, err := db.ExecContext(ctx, dialect.createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}

	return &SQL{db: db, dialect: dialect}, nil
}

// Dialect returns the dialect the store was opened with
func (s *SQL) Dialect() Dialect {
	return s.dialect
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s get %q: %w", s.dialect.Name, key, err)
	}
	return value, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, value); err != nil {
		return fmt.Errorf("%s set %q: %w", s.dialect.Name, key, err)
	}
	return nil
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.remove, key); err != nil {
		return fmt.Errorf("%s remove %q: %w", s.dialect.Name, key, err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
