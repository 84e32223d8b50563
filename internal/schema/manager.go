package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Manager reconciles persisted tables with their definitions. A table whose
// column set differs is rebuilt: renamed to a backup, recreated, shared
// columns copied across by name, backup dropped, all in one transaction.
type Manager struct {
	db     *sql.DB
	tables []Table
	logger *slog.Logger
	now    func() time.Time
}

// NewManager manages the given tables, or Tables when none are passed.
func NewManager(db *sql.DB, logger *slog.Logger, tables ...Table) *Manager {
	if len(tables) == 0 {
		tables = Tables
	}
	return &Manager{
		db:     db,
		tables: tables,
		logger: logger,
		now:    time.Now,
	}
}

// Change describes what Reconcile would do to one table.
type Change struct {
	Table   string
	Create  bool
	Added   []string
	Dropped []string
}

// Plan compares every managed table with the database without changing it.
func (m *Manager) Plan(ctx context.Context) ([]Change, error) {
	var changes []Change
	for _, t := range m.tables {
		existing, err := m.Columns(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			changes = append(changes, Change{Table: t.Name, Create: true})
			continue
		}
		added, dropped := diffColumns(t.ColumnNames(), existing)
		if len(added) > 0 || len(dropped) > 0 {
			changes = append(changes, Change{Table: t.Name, Added: added, Dropped: dropped})
		}
	}
	return changes, nil
}

// Columns returns the persisted column names of a table, empty if the table
// does not exist.
func (m *Manager) Columns(ctx context.Context, table string) ([]string, error) {
	return tableColumns(ctx, m.db, table)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func tableColumns(ctx context.Context, q queryer, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// diffColumns compares two column sets case-insensitively.
func diffColumns(want, have []string) (added, dropped []string) {
	haveSet := make(map[string]bool, len(have))
	for _, c := range have {
		haveSet[strings.ToLower(c)] = true
	}
	wantSet := make(map[string]bool, len(want))
	for _, c := range want {
		wantSet[strings.ToLower(c)] = true
		if !haveSet[strings.ToLower(c)] {
			added = append(added, c)
		}
	}
	for _, c := range have {
		if !wantSet[strings.ToLower(c)] {
			dropped = append(dropped, c)
		}
	}
	return added, dropped
}

// Reconcile creates missing tables and rebuilds mismatched ones. It is safe to
// run on every start; matching tables are left alone.
func (m *Manager) Reconcile(ctx context.Context) error {
	for _, t := range m.tables {
		if err := m.reconcileTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) reconcileTable(ctx context.Context, t Table) error {
	existing, err := m.Columns(ctx, t.Name)
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		m.logger.Info("creating table", "table", t.Name)
		return m.create(ctx, t)
	}

	added, dropped := diffColumns(t.ColumnNames(), existing)
	if len(added) == 0 && len(dropped) == 0 {
		m.logger.Debug("table up to date", "table", t.Name)
		return m.ensureIndexes(ctx, t)
	}

	m.logger.Info("table schema differs, rebuilding",
		"table", t.Name, "added", added, "dropped", dropped)
	return m.Rebuild(ctx, t)
}

func (m *Manager) create(ctx context.Context, t Table) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, t.CreateSQL(true)); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}
	for _, stmt := range t.IndexSQL() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index on %s: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

func (m *Manager) ensureIndexes(ctx context.Context, t Table) error {
	for _, stmt := range t.IndexSQL() {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index on %s: %w", t.Name, err)
		}
	}
	return nil
}

// Rebuild recreates table t under its current definition, keeping every row
// and the values of every column that survives. On any error the transaction
// is rolled back and the original table is left as it was.
func (m *Manager) Rebuild(ctx context.Context, t Table) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	// foreign_keys cannot change inside a transaction, and with legacy renames
	// off SQLite would repoint child REFERENCES at the backup table.
	var fkEnabled bool
	if err := conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fkEnabled); err != nil {
		return fmt.Errorf("read foreign_keys: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `PRAGMA legacy_alter_table = ON`); err != nil {
		return fmt.Errorf("enable legacy alter table: %w", err)
	}
	defer func() {
		// Use a fresh context so the pragmas are restored even after cancellation.
		restore := context.Background()
		if _, err := conn.ExecContext(restore, `PRAGMA legacy_alter_table = OFF`); err != nil {
			m.logger.Error("restore legacy_alter_table", "error", err)
		}
		if fkEnabled {
			if _, err := conn.ExecContext(restore, `PRAGMA foreign_keys = ON`); err != nil {
				m.logger.Error("restore foreign_keys", "error", err)
			}
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := tableColumns(ctx, tx, t.Name)
	if err != nil {
		return err
	}

	backup := fmt.Sprintf("%s_backup_%s", t.Name, m.now().UTC().Format("20060102150405"))
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, quote(t.Name), quote(backup))); err != nil {
		return fmt.Errorf("rename %s to %s: %w", t.Name, backup, err)
	}

	// Old indexes moved with the renamed table; drop them so the new table can
	// reuse the names.
	for _, idx := range t.Indexes {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %s`, quote(idx.Name))); err != nil {
			return fmt.Errorf("drop index %s: %w", idx.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, t.CreateSQL(false)); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}

	shared := sharedColumns(t, existing)
	if len(shared) > 0 {
		targets := make([]string, len(shared))
		sources := make([]string, len(shared))
		for i, c := range shared {
			targets[i] = quote(c.Name)
			sources[i] = copyExpr(c)
		}
		copySQL := fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM %s`,
			quote(t.Name), strings.Join(targets, ", "), strings.Join(sources, ", "), quote(backup))
		if _, err := tx.ExecContext(ctx, copySQL); err != nil {
			return fmt.Errorf("copy rows into %s: %w", t.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %s`, quote(backup))); err != nil {
		return fmt.Errorf("drop backup %s: %w", backup, err)
	}

	for _, stmt := range t.IndexSQL() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index on %s: %w", t.Name, err)
		}
	}

	if err := checkForeignKeys(ctx, tx, t.Name); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild of %s: %w", t.Name, err)
	}

	names := make([]string, len(shared))
	for i, c := range shared {
		names[i] = c.Name
	}
	m.logger.Info("table rebuilt", "table", t.Name, "backup", backup, "copied_columns", names)
	return nil
}

// sharedColumns returns the definitions of columns present both in t and in
// the persisted table, in t's declaration order.
func sharedColumns(t Table, existing []string) []Column {
	var shared []Column
	for _, c := range t.Columns {
		if slices.ContainsFunc(existing, func(name string) bool { return strings.EqualFold(name, c.Name) }) {
			shared = append(shared, c)
		}
	}
	return shared
}

// copyExpr reads a surviving column, substituting the declared default where
// an old row holds NULL in what is now a NOT NULL column.
func copyExpr(c Column) string {
	if c.NotNull && c.Default != "" {
		return fmt.Sprintf("COALESCE(%s, %s)", quote(c.Name), c.Default)
	}
	return quote(c.Name)
}

func checkForeignKeys(ctx context.Context, tx *sql.Tx, table string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_check(%s)`, quote(table)))
	if err != nil {
		return fmt.Errorf("foreign key check %s: %w", table, err)
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		violations++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("foreign key check %s: %w", table, err)
	}
	if violations > 0 {
		return fmt.Errorf("rebuild of %s left %d rows referencing missing parents", table, violations)
	}
	return nil
}
