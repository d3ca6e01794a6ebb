// Package state persists pipeline records behind the core.Store interface.
//
// One hand-written SQL layer serves two dialects: SQLite (modernc.org/sqlite,
// the default) and Postgres (pgx through database/sql). Queries are written
// with ? placeholders and rebound to $N for Postgres. Timestamps are stored
// as fixed-width RFC 3339 UTC strings so TEXT comparison orders them the same
// way in both dialects. Schema lifecycle is goose migrations embedded per
// dialect.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// dialect selects the SQL flavor of an open store.
type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

// errNotOpened is returned by every operation invoked before Open.
var errNotOpened = errors.New("store is not open")

// SQLStore implements core.Store on database/sql.
type SQLStore struct {
	db      *sql.DB
	dsn     string
	dialect dialect
	logger  *slog.Logger
}

var _ core.Store = (*SQLStore)(nil)

// NewStore creates an unopened store. A nil logger discards store logs.
func NewStore(logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLStore{logger: logger}
}

// Open connects to the database named by dsn. DSNs starting with
// postgres:// or postgresql:// select the Postgres backend; anything else is
// treated as a SQLite path, with ":memory:" for an in-memory database.
func (s *SQLStore) Open(dsn string) error {
	driver := "sqlite"
	s.dialect = dialectSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
		s.dialect = dialectPostgres
	}

	db, err := sql.Open(driver, s.connString(dsn))
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", s.dialect, err)
	}

	if s.dialect == dialectSQLite {
		// SQLite allows a single writer; one pooled connection avoids
		// SQLITE_BUSY and keeps :memory: databases alive between calls.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s database: %w", s.dialect, err)
	}

	s.db = db
	s.dsn = dsn
	s.logger.Debug("store opened", slog.String("dialect", string(s.dialect)))
	return nil
}

// connString adapts the caller's DSN to the driver.
func (s *SQLStore) connString(dsn string) string {
	if s.dialect == dialectPostgres {
		return dsn
	}
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dsn == ":memory:" {
		return "file::memory:?" + pragmas
	}
	return "file:" + dsn + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders to $N for Postgres. Queries in this package
// never contain a literal question mark, so a plain byte scan is enough.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) exec(query string, args ...any) (sql.Result, error) {
	return s.db.Exec(s.rebind(query), args...)
}

func (s *SQLStore) query(query string, args ...any) (*sql.Rows, error) {
	return s.db.Query(s.rebind(query), args...)
}

func (s *SQLStore) queryRow(query string, args ...any) *sql.Row {
	return s.db.QueryRow(s.rebind(query), args...)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows so the per-entity
// scan helpers serve single- and multi-row queries alike.
type rowScanner interface {
	Scan(dest ...any) error
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// timeLayout is RFC 3339 with fixed nanosecond width. The fixed width keeps
// lexicographic and chronological order identical for TEXT comparisons.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := encodeTime(*t)
	return &v
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
