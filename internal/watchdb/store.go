package watchdb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store keeps inserted rows in a sqlite database so that window counts come
// from real SQL queries rather than ad-hoc bookkeeping.
type Store struct {
	db *sql.DB
}

// OpenStore opens the store at path. An empty path yields a private
// in-memory database. A file path can be shared by several client processes
// driving one scenario: WAL mode and a busy timeout let concurrent readers
// and writers back off instead of failing.
func OpenStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single connection keeps an in-memory database on one backing store
	// and serializes this process's writes to a shared file.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CreateTable creates a row table. Column definitions from the client
// statement are ignored: every fixture table stores one integer value and a
// millisecond timestamp.
func (s *Store) CreateTable(name string) error {
	_, err := s.db.Exec(fmt.Sprintf(`CREATE TABLE %s (a INTEGER, ts INTEGER)`, quoteIdent(name)))
	if err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
}

// HasTable reports whether a table exists.
func (s *Store) HasTable(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return n > 0, nil
}

// DropTable removes a table.
func (s *Store) DropTable(name string) error {
	_, err := s.db.Exec(fmt.Sprintf(`DROP TABLE %s`, quoteIdent(name)))
	if err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	return nil
}

// Insert appends one row with the given value and timestamp.
func (s *Store) Insert(name string, a int64, ts time.Time) error {
	_, err := s.db.Exec(fmt.Sprintf(`INSERT INTO %s (a, ts) VALUES (?, ?)`, quoteIdent(name)), a, ts.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	return nil
}

// CountRange counts rows with from <= ts < to.
func (s *Store) CountRange(name string, from, to time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(
		fmt.Sprintf(`SELECT count(a) FROM %s WHERE ts >= ? AND ts < ?`, quoteIdent(name)),
		from.UnixMilli(), to.UnixMilli(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

// quoteIdent double-quotes an identifier so dotted names like test.mt stay a
// single sqlite table name.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
