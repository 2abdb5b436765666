// Package storage persists vehicles, their related records and the cached
// insight rows. SQLite is the default backend; PostgreSQL is available for
// shared deployments. Both are driven through database/sql and squirrel.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/kalambet/vinsight/internal/config"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Driver names accepted by storage.driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures what differs between the two backends.
type dialect struct {
	name  string
	goose goose.Dialect
	sb    sq.StatementBuilderType
	txOpt *sql.TxOptions
}

var (
	sqliteDialect = dialect{
		name:  DriverSQLite,
		goose: goose.DialectSQLite3,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
	postgresDialect = dialect{
		name:  DriverPostgres,
		goose: goose.DialectPostgres,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		txOpt: &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	}
)

// timestamp converts t to the representation the backend stores.
func (d dialect) timestamp(t time.Time) any {
	if d.name == DriverSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

// Store wraps a database handle with the vehicle and insight queries.
type Store struct {
	db       *sql.DB
	d        dialect
	migrator *goose.Provider
}

// New opens the backend selected by cfg.
func New(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return Open(cfg.DataDir)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "vinsight.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: an in-memory database lives and dies with it, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return open(context.Background(), db, sqliteDialect)
}

// OpenPostgres connects to dsn through the pgx database/sql driver and runs
// pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return open(ctx, db, postgresDialect)
}

func open(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations/"+d.name)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("locating %s migrations: %w", d.name, err)
	}
	provider, err := goose.NewProvider(d.goose, db, fsys)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db, d: d, migrator: provider}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports which backend the store talks to.
func (s *Store) Driver() string { return s.d.name }

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]int64, error) {
	statuses, err := s.migrator.Status(ctx)
	if err != nil {
		return nil, err
	}
	var versions []int64
	for _, st := range statuses {
		if st.State == goose.StateApplied {
			versions = append(versions, st.Source.Version)
		}
	}
	return versions, nil
}
