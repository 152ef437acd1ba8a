/*
Package sqlstore provides a database/sql implementation of the storage
interfaces.

PURPOSE:
  Implements shop.TxStore (products, stock, sales) and auth.UserStore
  (accounts) on SQLite or MySQL. The shop front-end historically ran on
  MySQL; SQLite is the default for single-machine installs and tests.

INTERFACES IMPLEMENTED:
  shop.Store / shop.TxStore
  auth.UserStore

KEY TABLES:
  products:           catalog and quantity on hand (CHECK quantity >= 0)
  sales_transactions: committed sales with totals
  sales_items:        line items, owned by a sale, referencing a product
  users:              accounts, bcrypt hashes, role and active flag

STOCK UPDATES:
  Every stock change is one UPDATE statement. The sale decrement is
  conditional:

    UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?

  and succeeds only when exactly one row is affected, so two concurrent
  sales of the last unit cannot both win.

CONCURRENCY:
  SQLite is opened with a single connection: transactions serialize on it.
  MySQL relies on InnoDB row locks taken by the conditional UPDATE.

TIMESTAMPS:
  Stored as fixed-width UTC text (timeLayout) so they sort and compare
  lexically in both dialects.

USAGE:
  store, err := sqlstore.Open(sqlstore.SQLite, "./shop.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - shop/store.go: Interface definitions
  - shop/store/memory.go: In-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/shop-engine/shop"
)

// Dialect names a supported database/sql driver.
type Dialect string

const (
	SQLite Dialect = "sqlite3"
	MySQL  Dialect = "mysql"
)

// ParseDialect maps a driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; it runs against the pool or a transaction.
type queries struct {
	q querier
}

// Store implements shop.TxStore and auth.UserStore.
type Store struct {
	queries
	db      *sql.DB
	dialect Dialect
}

var _ shop.TxStore = (*Store)(nil)

// Open connects to dsn with the given dialect and migrates the schema.
// For SQLite, use ":memory:" for an in-memory database.
func Open(dialect Dialect, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case SQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sql.Open(string(SQLite), dsn)
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case MySQL:
		db, err = sql.Open(string(MySQL), dsn)
		if err == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(10)
			db.SetConnMaxLifetime(time.Hour)
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{queries: queries{q: db}, db: db, dialect: dialect}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity for health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.dialect == MySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (shop.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(shop.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{q: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	queries
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// likePattern escapes s for a LIKE ... ESCAPE '!' clause.
func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
