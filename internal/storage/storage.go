// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL engine behind a Store. The backend runs on
// postgres in production and on sqlite for local development and tests,
// selected by the shape of DATABASE_URL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Store wraps the database handle together with its dialect so the domain
// packages can stay engine-agnostic.
type Store struct {
	DB      *sqlx.DB
	dialect Dialect
}

// Open connects to the database named by databaseURL. URLs starting with
// postgres:// or postgresql:// select the postgres driver; anything else is
// treated as a sqlite file path (":memory:" included).
func Open(databaseURL string) (*Store, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		db, err := sqlx.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetConnMaxIdleTime(2 * time.Minute)
		return &Store{DB: db, dialect: DialectPostgres}, nil
	}

	joiner := "?"
	if strings.Contains(databaseURL, "?") {
		joiner = "&"
	}
	dsn := databaseURL + joiner + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer connection avoids "database is locked" errors and keeps
	// in-memory databases alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{DB: db, dialect: DialectSQLite}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Dialect() Dialect { return s.dialect }

// GoquDialect returns the dialect name registered with goqu.
func (s *Store) GoquDialect() string {
	if s.dialect == DialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// Rebind rewrites ? placeholders into the driver's bindvar form.
func (s *Store) Rebind(query string) string {
	if s.dialect == DialectPostgres {
		return sqlx.Rebind(sqlx.DOLLAR, query)
	}
	return query
}

// LockSuffix returns the row-lock clause for locked reads. SQLite has no
// FOR UPDATE; its transactions serialize against the single writer instead.
func (s *Store) LockSuffix() string {
	if s.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) txOptions() *sql.TxOptions {
	if s.dialect == DialectPostgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// WithTx runs fn inside a single transaction and commits iff fn returns nil.
// Counter mutations must re-read state inside fn, after their row lock, and
// never trust values read before the transaction began.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, s.txOptions())
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
