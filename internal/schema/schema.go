// Package schema owns the table definitions of the club database and keeps the
// persisted tables in line with them.
package schema

import (
	"fmt"
	"strings"
)

// Column describes one column of a managed table.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	// Default is a SQL literal or expression, empty for none.
	Default string
	// References names the parent table; rows cascade when the parent is deleted.
	References string
}

type Index struct {
	Name    string
	Columns []string
}

type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// CreateSQL returns the CREATE TABLE statement for the table.
func (t Table) CreateSQL(ifNotExists bool) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(quote(t.Name))
	b.WriteString(" (\n")

	var fks []string
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("\t")
		b.WriteString(quote(c.Name))
		b.WriteString(" ")
		b.WriteString(c.Type)
		if c.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
			if strings.EqualFold(c.Type, "INTEGER") {
				b.WriteString(" AUTOINCREMENT")
			}
		}
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if c.Default != "" {
			fmt.Fprintf(&b, " DEFAULT %s", defaultClause(c.Default))
		}
		if c.References != "" {
			fks = append(fks, fmt.Sprintf("\tFOREIGN KEY (%s) REFERENCES %s(id) ON DELETE CASCADE", quote(c.Name), quote(c.References)))
		}
	}
	for _, fk := range fks {
		b.WriteString(",\n")
		b.WriteString(fk)
	}
	b.WriteString("\n)")
	return b.String()
}

// IndexSQL returns one CREATE INDEX IF NOT EXISTS statement per index.
func (t Table) IndexSQL() []string {
	stmts := make([]string, 0, len(t.Indexes))
	for _, idx := range t.Indexes {
		cols := make([]string, len(idx.Columns))
		for i, c := range idx.Columns {
			cols[i] = quote(c)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quote(idx.Name), quote(t.Name), strings.Join(cols, ", ")))
	}
	return stmts
}

// Expression defaults such as CURRENT_TIMESTAMP need parentheses unless they
// are one of SQLite's bare keywords or a plain literal.
func defaultClause(def string) string {
	switch strings.ToUpper(def) {
	case "CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME", "NULL":
		return def
	}
	if strings.HasPrefix(def, "'") || isNumeric(def) {
		return def
	}
	return "(" + def + ")"
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if (c < '0' || c > '9') && c != '.' && !(i == 0 && c == '-') {
			return false
		}
	}
	return true
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func text(name string) Column {
	return Column{Name: name, Type: "TEXT"}
}

func textNotNull(name string) Column {
	return Column{Name: name, Type: "TEXT", NotNull: true, Default: "''"}
}

func id() Column {
	return Column{Name: "id", Type: "INTEGER", PrimaryKey: true}
}

func createdAt() Column {
	return Column{Name: "created_at", Type: "DATETIME", NotNull: true, Default: "CURRENT_TIMESTAMP"}
}

func memberRef() Column {
	return Column{Name: "member_id", Type: "INTEGER", NotNull: true, References: "members"}
}

// Tables is the current model version, parents before children.
var Tables = []Table{
	{
		Name: "members",
		Columns: []Column{
			id(),
			textNotNull("badge_number"),
			{Name: "membership_type", Type: "TEXT", NotNull: true, Default: "'Prospective'"},
			textNotNull("first_name"),
			textNotNull("last_name"),
			text("dob"),
			textNotNull("email"),
			textNotNull("email2"),
			textNotNull("phone"),
			textNotNull("address"),
			textNotNull("city"),
			textNotNull("state"),
			textNotNull("zip"),
			text("join_date"),
			textNotNull("sponsor"),
			textNotNull("card_internal"),
			textNotNull("card_external"),
			{Name: "deleted", Type: "INTEGER", NotNull: true, Default: "0"},
			createdAt(),
			{Name: "updated_at", Type: "DATETIME", NotNull: true, Default: "CURRENT_TIMESTAMP"},
		},
		Indexes: []Index{
			{Name: "idx_members_deleted_name", Columns: []string{"deleted", "last_name", "first_name"}},
			{Name: "idx_members_badge", Columns: []string{"badge_number"}},
		},
	},
	{
		Name: "dues",
		Columns: []Column{
			id(),
			memberRef(),
			{Name: "amount", Type: "REAL", NotNull: true, Default: "0"},
			{Name: "payment_date", Type: "TEXT", NotNull: true},
			textNotNull("method"),
			textNotNull("notes"),
			createdAt(),
		},
		Indexes: []Index{{Name: "idx_dues_member", Columns: []string{"member_id", "payment_date"}}},
	},
	{
		Name: "attendance",
		Columns: []Column{
			id(),
			memberRef(),
			{Name: "meeting_date", Type: "TEXT", NotNull: true},
			{Name: "status", Type: "TEXT", NotNull: true, Default: "'Attended'"},
			textNotNull("notes"),
			createdAt(),
		},
		Indexes: []Index{{Name: "idx_attendance_member", Columns: []string{"member_id", "meeting_date"}}},
	},
	{
		Name: "work_hours",
		Columns: []Column{
			id(),
			memberRef(),
			{Name: "work_date", Type: "TEXT", NotNull: true},
			{Name: "hours", Type: "REAL", NotNull: true, Default: "0"},
			textNotNull("activity"),
			textNotNull("notes"),
			createdAt(),
		},
		Indexes: []Index{{Name: "idx_work_hours_member", Columns: []string{"member_id", "work_date"}}},
	},
	{
		Name: "settings",
		Columns: []Column{
			{Name: "key", Type: "TEXT", PrimaryKey: true},
			textNotNull("value"),
			{Name: "updated_at", Type: "DATETIME", NotNull: true, Default: "CURRENT_TIMESTAMP"},
		},
	},
	{
		Name: "backups",
		Columns: []Column{
			id(),
			textNotNull("filename"),
			textNotNull("location"),
			{Name: "size_bytes", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "status", Type: "TEXT", NotNull: true, Default: "'pending'"},
			text("error_message"),
			{Name: "started_at", Type: "DATETIME"},
			{Name: "completed_at", Type: "DATETIME"},
			createdAt(),
		},
		Indexes: []Index{{Name: "idx_backups_created", Columns: []string{"created_at"}}},
	},
}

// Lookup returns the managed table with the given name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
