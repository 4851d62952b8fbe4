/*
Package sqldb provides SQL-backed implementations of the journal
(generic.TxStore) and the contract repository (revenue.Repository).

DIALECTS:
  sqlite3  github.com/mattn/go-sqlite3     single connection, WAL
  pgx      github.com/jackc/pgx/v5/stdlib  $n placeholders, BIGSERIAL

  Queries are written once with ? placeholders and rebound for pgx.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the transactions table
  - No DELETE statements on the transactions table
  - Corrections via adjustment and reversal records only

  Append order is the seq column; Load and LoadEntity order by it.

KEY TABLES:
  transactions:     Immutable journal of recognitions, adjustments, reversals
  contracts:        Contract header, base value and resolved price
  candidates:       Suggested obligations per contract (replaced as a set)
  considerations:   Variable consideration per contract (append)
  obligations:      Allocated obligations per contract (replaced as a set)
  schedule_entries: Generated entries; recognized ones survive replacement

AMOUNTS:
  Stored as TEXT decimal strings so no precision is lost in either dialect.

USAGE:
  store, err := sqldb.Open("sqlite3", "./data/revenue.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: journal interface
  - revenue/repository.go: repository interface
  - store/memory: in-memory repository
*/
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Store implements generic.TxStore and revenue.Repository.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects with the given driver and migrates the schema. For sqlite3
// the DSN is a file path or ":memory:".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// :memory: databases are per connection
		db.SetMaxOpenConns(1)
	}

	store, err := New(context.Background(), db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open *sql.DB and migrates the schema.
func New(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	seq := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		seq = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			seq ` + seq + `,
			id TEXT NOT NULL UNIQUE,
			entity_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			effective_at TEXT NOT NULL,
			delta TEXT NOT NULL,
			tx_type TEXT NOT NULL,
			reference_id TEXT,
			reason TEXT,
			idempotency_key TEXT UNIQUE,
			metadata_json TEXT,
			created_by TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_entity_account
			ON transactions(entity_id, account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_reference
			ON transactions(reference_id)`,

		`CREATE TABLE IF NOT EXISTS contracts (
			id TEXT PRIMARY KEY,
			customer TEXT,
			value TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT,
			transaction_price TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS candidates (
			contract_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			description TEXT NOT NULL,
			standalone_selling_price TEXT NOT NULL,
			satisfaction_method TEXT,
			start_date TEXT,
			end_date TEXT,
			PRIMARY KEY (contract_id, position)
		)`,

		`CREATE TABLE IF NOT EXISTS considerations (
			seq ` + seq + `,
			contract_id TEXT NOT NULL,
			consideration_type TEXT NOT NULL,
			amount TEXT NOT NULL,
			constraint_factor TEXT,
			rationale TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_considerations_contract
			ON considerations(contract_id)`,

		`CREATE TABLE IF NOT EXISTS obligations (
			id TEXT PRIMARY KEY,
			contract_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			description TEXT NOT NULL,
			standalone_selling_price TEXT NOT NULL,
			satisfaction_method TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			status TEXT NOT NULL,
			allocated_amount TEXT NOT NULL,
			percent TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_obligations_contract
			ON obligations(contract_id, position)`,

		`CREATE TABLE IF NOT EXISTS schedule_entries (
			id TEXT PRIMARY KEY,
			contract_id TEXT NOT NULL,
			obligation_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			recognition_date TEXT NOT NULL,
			amount TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_contract_date
			ON schedule_entries(contract_id, recognition_date)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	return rebind(s.driver, query)
}

func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
