package importer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goption "google.golang.org/api/option"

	"github.com/dukerupert/clubhouse/internal/database"
	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/store"
)

func setupMemberStore(t *testing.T) *store.MemberStore {
	t.Helper()
	db, err := database.Open(":memory:", slog.Default())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewMemberStore(db)
}

const rosterCSV = `Badge #,First Name,Last Name,Membership Type,Email,Join Date,Card,Notes
1001,Ada,Lovelace,Active,ada@example.com,2019-04-01,C-1,ignored
1002,Charles,Babbage,life,,03/15/2001,,
,Grace,Hopper,Associate,,,C-3,
,,,,,,,
1004,Alan,Turing,Honorary,,,,
,No,Key,Active,,,,
`

func TestImportCSV(t *testing.T) {
	ms := setupMemberStore(t)
	im := New(ms, slog.Default())

	res, err := im.Import(context.Background(), NewCSVSource("roster.csv", strings.NewReader(rosterCSV)))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Added != 3 || res.Updated != 0 || res.Skipped != 2 {
		t.Errorf("result = added %d updated %d skipped %d, want 3/0/2", res.Added, res.Updated, res.Skipped)
	}
	if len(res.Errors) != 2 || res.Errors[0].Line != 6 || res.Errors[1].Line != 7 {
		t.Errorf("errors = %+v, want lines 6 and 7", res.Errors)
	}

	ada, err := ms.FindByBadge("1001")
	if err != nil || ada == nil {
		t.Fatalf("find ada: %+v, %v", ada, err)
	}
	if ada.Email != "ada@example.com" || ada.CardInternal != "C-1" || ada.JoinDate != model.NewDate(2019, 4, 1) {
		t.Errorf("ada = %+v", ada.MemberFields)
	}

	charles, _ := ms.FindByBadge("1002")
	if charles == nil || charles.MembershipType != model.MembershipLife || charles.JoinDate != model.NewDate(2001, 3, 15) {
		t.Errorf("charles = %+v", charles)
	}

	grace, _ := ms.FindByCard("C-3")
	if grace == nil || grace.LastName != "Hopper" {
		t.Errorf("grace by card = %+v", grace)
	}
}

func TestImportUpdatesExistingMembers(t *testing.T) {
	ms := setupMemberStore(t)
	existing, err := ms.Create(model.MemberFields{
		BadgeNumber: "1001", FirstName: "Ada", LastName: "Lovelace",
		MembershipType: model.MembershipProbationary, Phone: "555-0100",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	src := NewCSVSource("update.csv", strings.NewReader("badge,type,email,phone\n1001,Active,ada@example.com,\n"))
	res, err := New(ms, nil).Import(context.Background(), src)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Added != 0 || res.Updated != 1 {
		t.Errorf("result = %+v, want one update", res)
	}

	got, _ := ms.GetByID(existing.ID)
	if got.MembershipType != model.MembershipActive {
		t.Errorf("type = %q, want Active", got.MembershipType)
	}
	if got.Email != "ada@example.com" {
		t.Errorf("email = %q", got.Email)
	}
	if got.Phone != "555-0100" {
		t.Errorf("phone = %q, want empty cell to keep %q", got.Phone, "555-0100")
	}
}

func TestImportRejectsUnknownHeader(t *testing.T) {
	ms := setupMemberStore(t)
	_, err := New(ms, nil).Import(context.Background(), NewCSVSource("bad.csv", strings.NewReader("foo,bar\n1,2\n")))
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want a validation error for a header with no known columns", err)
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Badge #":         "badge",
		" First Name ":    "first_name",
		"E-mail 2":        "e_mail_2",
		"Membership-Type": "membership_type",
		"Zip Code":        "zip_code",
	}
	for in, want := range tests {
		if got := normalizeHeader(in); got != want {
			t.Errorf("normalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSheetsSource(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"range":          "Members!A1:D3",
			"majorDimension": "ROWS",
			"values": [][]any{
				{"Badge", "First", "Last", "Type"},
				{"2001", "Katherine", "Johnson", "Active"},
				{"2002", "Dorothy", "Vaughan"},
			},
		})
	}))
	defer srv.Close()

	ctx := context.Background()
	src, err := NewSheetsSource(ctx, SheetsConfig{SpreadsheetID: "sheet-123", Range: "Members!A:D"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new sheets source: %v", err)
	}

	rows, err := src.Rows(ctx)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-123/values/") {
		t.Errorf("request path = %q", gotPath)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Get("badge_number") != "2001" || rows[0].Get("membership_type") != "Active" {
		t.Errorf("row 0 = %+v", rows[0].Values)
	}
	if rows[1].Get("membership_type") != "" || rows[1].Line != 3 {
		t.Errorf("row 1 = %+v line %d", rows[1].Values, rows[1].Line)
	}

	ms := setupMemberStore(t)
	res, err := New(ms, nil).Import(ctx, src)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Added != 2 {
		t.Errorf("added = %d, want 2", res.Added)
	}
	dorothy, _ := ms.FindByBadge("2002")
	if dorothy == nil || dorothy.MembershipType != model.MembershipProspective {
		t.Errorf("dorothy = %+v, want Prospective default", dorothy)
	}
}
