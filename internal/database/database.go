package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/dukerupert/clubhouse/internal/schema"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	goose.AddNamedMigrationContext("00001_create_tables.go", createTables, dropTables)
}

// Open opens the SQLite database at dbPath, runs the versioned migrations and
// then reconciles every managed table with its current definition. Use
// ":memory:" for a throwaway database.
func Open(dbPath string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One process, one writer. A single connection also keeps ":memory:"
	// databases from splitting across pool connections.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	mgr := schema.NewManager(db, logger.With("component", "schema"))
	if err := mgr.Reconcile(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("reconcile schema: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB, logger *slog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger.With("component", "goose")})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// createTables creates any managed table that does not exist yet. Tables
// left behind by older releases are brought up to date by the schema manager
// afterwards.
func createTables(ctx context.Context, tx *sql.Tx) error {
	for _, t := range schema.Tables {
		if _, err := tx.ExecContext(ctx, t.CreateSQL(true)); err != nil {
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
	}
	return nil
}

func dropTables(ctx context.Context, tx *sql.Tx) error {
	for i := len(schema.Tables) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, schema.Tables[i].Name)); err != nil {
			return fmt.Errorf("drop %s: %w", schema.Tables[i].Name, err)
		}
	}
	return nil
}

type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
