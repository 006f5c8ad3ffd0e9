package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/roach88/linked/internal/logger"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added object index for unlink and rename
// 2 - Added seq index for ordered listing
const currentSchemaVersion = 2

// Store is a triple store with change notification.
//
// Thread-safety: the observer registry and notification queue are guarded
// by a mutex; callbacks run without it held. The binding layer drives the
// store from a single goroutine.
type Store struct {
	db       *sql.DB
	compiler *querysql.SQLCompiler
	resolver *namespace.Resolver
	clock    *Clock
	log      *zap.SugaredLogger
	metrics  *Metrics

	mu         sync.Mutex
	nextHandle Handle
	nodes      map[Handle]*nodeObserver
	queries    map[Handle]*queryObserver
	queue      *notificationQueue
	draining   bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The store names it "store".
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Store) {
		s.log = logger.Component(log, "store")
	}
}

// WithResolver sets the namespace resolver used by ExecuteString and
// SelectString. Defaults to namespace.NewResolver().
func WithResolver(r *namespace.Resolver) Option {
	return func(s *Store) {
		s.resolver = r
	}
}

// WithRegisterer registers the store's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.metrics = NewMetrics(reg)
	}
}

// Open creates or opens a SQLite database at the given path (":memory:"
// for a private in-memory store). Applies required pragmas and migrations
// automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// lives exactly as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply pragmas")
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	var maxSeq sql.NullInt64
	if err := db.QueryRow("SELECT MAX(seq) FROM triples").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to read clock position")
	}

	s := &Store{
		db:       db,
		compiler: querysql.NewSQLCompiler(),
		resolver: namespace.NewResolver(),
		clock:    NewClockAt(maxSeq.Int64),
		log:      logger.Component(nil, "store"),
		nodes:    make(map[Handle]*nodeObserver),
		queries:  make(map[Handle]*queryObserver),
		queue:    newNotificationQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.log.Debugw("store opened", "path", path, "seq", maxSeq.Int64)
	return s, nil
}

// Close closes the database connection and drops every observer.
func (s *Store) Close() error {
	s.mu.Lock()
	s.nodes = make(map[Handle]*nodeObserver)
	s.queries = make(map[Handle]*queryObserver)
	s.queue.Close()
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Resolver returns the namespace resolver used for query and update text.
func (s *Store) Resolver() *namespace.Resolver {
	return s.resolver
}

// Clock returns the store's logical clock.
func (s *Store) Clock() *Clock {
	return s.clock
}

// Metrics returns the store's metrics.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "failed to execute %q", pragma)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "failed to execute schema")
	}

	if err := runMigrations(db); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "get user_version")
	}

	migrations := []struct {
		version int
		stmt    string
	}{
		{1, "CREATE INDEX IF NOT EXISTS idx_triples_object ON triples (object, object_kind)"},
		{2, "CREATE INDEX IF NOT EXISTS idx_triples_seq ON triples (seq, id)"},
	}
	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return errors.Wrapf(err, "migrate to v%d", m.version)
		}
	}

	// Set version after all migrations
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return errors.Wrap(err, "set user_version")
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return errors.Wrapf(err, "failed to query %s", name)
	}
	if value != expected {
		return errors.Newf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
