package memo

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/jlebar/llvm-repo-tools/internal/config"
)

// busyTimeoutMS bounds how long a process waits for another one's write lock.
const busyTimeoutMS = 5000

// SQLite is a Cache backed by a SQLite database file. Entries are
// partitioned by scope so one file can serve runs against different
// upstream tips.
type SQLite struct {
	db    *sql.DB
	path  string
	scope string
}

// Stats summarizes the contents of a SQLite cache.
type Stats struct {
	Path      string         `json:"path"`
	SizeBytes int64          `json:"size_bytes"`
	Scopes    int            `json:"scopes"`
	Entries   map[string]int `json:"entries"` // Function name to entry count
}

// Scope joins the identifiers a cached answer depends on.
func Scope(parts ...string) string {
	return strings.Join(parts, ":")
}

// OpenSQLite opens or creates the cache database at path.
func OpenSQLite(path, scope string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, path: path, scope: scope}, nil
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS memo (
			scope TEXT NOT NULL,
			fn TEXT NOT NULL,
			arg TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (scope, fn, arg)
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the stored value for fn(arg) in this cache's scope.
func (s *SQLite) Get(fn, arg string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM memo WHERE scope = ? AND fn = ? AND arg = ?`,
		s.scope, fn, arg,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

// Put stores value for fn(arg). The first write for a key wins.
func (s *SQLite) Put(fn, arg string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO memo (scope, fn, arg, value, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.scope, fn, arg, string(value), time.Now().Unix(),
	)
	return err
}

// Stats counts the entries per function across all scopes.
func (s *SQLite) Stats() (*Stats, error) {
	st := &Stats{Path: s.path, Entries: make(map[string]int)}

	if info, err := os.Stat(s.path); err == nil {
		st.SizeBytes = info.Size()
	}

	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT scope) FROM memo`).Scan(&st.Scopes); err != nil {
		return nil, fmt.Errorf("counting scopes: %w", err)
	}

	rows, err := s.db.Query(`SELECT fn, COUNT(*) FROM memo GROUP BY fn ORDER BY fn`)
	if err != nil {
		return nil, fmt.Errorf("counting entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fn string
		var n int
		if err := rows.Scan(&fn, &n); err != nil {
			return nil, fmt.Errorf("scanning entry count: %w", err)
		}
		st.Entries[fn] = n
	}
	return st, rows.Err()
}

// Clear deletes every entry in every scope and returns how many were removed.
func (s *SQLite) Clear() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM memo`)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return res.RowsAffected()
}

// Open returns the cache configured by cfg. A disabled or unusable cache
// degrades to Nop, which only costs speed. The returned func closes it.
func Open(cfg config.Config, scope string) (Cache, func() error) {
	if !cfg.CacheEnabled {
		return Nop{}, func() error { return nil }
	}

	store, err := OpenSQLite(cfg.CachePath(), scope)
	if err != nil {
		log.WithError(err).WithField("path", cfg.CachePath()).Warn("cache unavailable, recomputing every query")
		return Nop{}, func() error { return nil }
	}
	return store, store.Close
}
