package importer

import (
	"context"
	"errors"
	"fmt"
	"os"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type SheetsConfig struct {
	SpreadsheetID string
	// Range is in A1 notation, e.g. "Members!A:Q".
	Range           string
	CredentialsJSON string
	CredentialsFile string
}

// SheetsSource reads member rows from a Google Sheets range using a service
// account.
type SheetsSource struct {
	svc           *gsheet.Service
	spreadsheetID string
	rng           string
}

// NewSheetsSource builds the Sheets client from the configured service account.
// Extra options are appended after the credentials.
func NewSheetsSource(ctx context.Context, cfg SheetsConfig, opts ...goption.ClientOption) (*SheetsSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.Range == "" {
		cfg.Range = "Members!A:Q"
	}

	var clientOpts []goption.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(data))
	}
	clientOpts = append(clientOpts, goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsSource{svc: svc, spreadsheetID: cfg.SpreadsheetID, rng: cfg.Range}, nil
}

func (s *SheetsSource) Name() string {
	return "sheets:" + s.spreadsheetID + "/" + s.rng
}

func (s *SheetsSource) Rows(ctx context.Context) ([]Row, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", s.rng, err)
	}

	table := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		table[i] = cells
	}
	return rowsFromTable(table)
}
