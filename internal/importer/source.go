// Package importer bulk-loads members from tabular sources such as a CSV
// export or a Google Sheets roster.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dukerupert/clubhouse/internal/model"
)

// Row maps a canonical column name (see columnAliases) to the cell value.
type Row struct {
	// Line is the 1-based line or sheet row the values came from.
	Line   int
	Values map[string]string
}

func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// Source yields the rows of one import.
type Source interface {
	Name() string
	Rows(ctx context.Context) ([]Row, error)
}

// columnAliases maps normalized header text to the member field it fills.
var columnAliases = map[string]string{
	"badge":           "badge_number",
	"badge_number":    "badge_number",
	"badge_no":        "badge_number",
	"type":            "membership_type",
	"membership":      "membership_type",
	"membership_type": "membership_type",
	"first":           "first_name",
	"first_name":      "first_name",
	"last":            "last_name",
	"last_name":       "last_name",
	"dob":             "dob",
	"date_of_birth":   "dob",
	"birthday":        "dob",
	"email":           "email",
	"email_1":         "email",
	"email2":          "email2",
	"email_2":         "email2",
	"phone":           "phone",
	"address":         "address",
	"city":            "city",
	"state":           "state",
	"zip":             "zip",
	"zip_code":        "zip",
	"join_date":       "join_date",
	"joined":          "join_date",
	"sponsor":         "sponsor",
	"card":            "card_internal",
	"card_internal":   "card_internal",
	"internal_card":   "card_internal",
	"fob":             "card_external",
	"card_external":   "card_external",
	"external_card":   "card_external",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "", "#", "").Replace(h)
	return strings.Trim(h, "_")
}

// rowsFromTable treats the first row as the header. Unknown columns are
// ignored; a header with no known column is an error.
func rowsFromTable(table [][]string) ([]Row, error) {
	if len(table) == 0 {
		return nil, &model.ValidationError{Field: "header", Message: "source is empty"}
	}

	columns := make([]string, len(table[0]))
	known := 0
	for i, h := range table[0] {
		if c, ok := columnAliases[normalizeHeader(h)]; ok {
			columns[i] = c
			known++
		}
	}
	if known == 0 {
		return nil, &model.ValidationError{Field: "header", Message: fmt.Sprintf("no recognized columns in %q", table[0])}
	}

	rows := make([]Row, 0, len(table)-1)
	for i, cells := range table[1:] {
		row := Row{Line: i + 2, Values: make(map[string]string, known)}
		empty := true
		for j, cell := range cells {
			if j >= len(columns) || columns[j] == "" {
				continue
			}
			row.Values[columns[j]] = cell
			if strings.TrimSpace(cell) != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// CSVSource reads a CSV file with a header row.
type CSVSource struct {
	name string
	r    io.Reader
}

func NewCSVSource(name string, r io.Reader) *CSVSource {
	return &CSVSource{name: name, r: r}
}

func (s *CSVSource) Name() string { return s.name }

func (s *CSVSource) Rows(ctx context.Context) ([]Row, error) {
	cr := csv.NewReader(s.r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var table [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &model.ValidationError{Field: "csv", Message: err.Error()}
		}
		table = append(table, rec)
	}
	return rowsFromTable(table)
}
