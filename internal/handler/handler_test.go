package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/dukerupert/clubhouse/internal/backup"
	"github.com/dukerupert/clubhouse/internal/database"
	"github.com/dukerupert/clubhouse/internal/importer"
	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/report"
	"github.com/dukerupert/clubhouse/internal/store"
	"github.com/dukerupert/clubhouse/internal/websocket"
)

type fixture struct {
	db         *sql.DB
	members    *MemberHandler
	dues       *LedgerHandler[model.DuesFields, model.DuesPayment]
	attendance *LedgerHandler[model.AttendanceFields, model.AttendanceRecord]
	reports    *ReportHandler
	settings   *SettingsHandler
	imports    *ImportHandler
	backups    *BackupHandler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "club.db"), slog.Default())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	hub := websocket.NewHub(logger)
	ms := store.NewMemberStore(db)
	ds := store.NewDuesStore(db)
	as := store.NewAttendanceStore(db)
	hs := store.NewWorkHoursStore(db)
	ss := store.NewSettingsStore(db)
	bs := store.NewBackupStore(db)

	mgr := backup.NewManager(backup.Config{Dir: t.TempDir()}, db, bs, logger, nil)
	return &fixture{
		db:         db,
		members:    NewMemberHandler(ms, hub, logger),
		dues:       NewDuesHandler(ds, ms, hub, logger),
		attendance: NewAttendanceHandler(as, ms, hub, logger),
		reports:    NewReportHandler(report.New(ms, ds, as, hs, ss, logger), ss, logger),
		settings:   NewSettingsHandler(ss, hub, logger),
		imports:    NewImportHandler(importer.New(ms, logger), hub, logger),
		backups:    NewBackupHandler(mgr, bs, hub, logger),
	}
}

func do(h http.HandlerFunc, method, target, id, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if id != "" {
		req.SetPathValue("id", id)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (f *fixture) createMember(t *testing.T, body string) model.Member {
	t.Helper()
	rec := do(f.members.Create, http.MethodPost, "/api/members", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create member: status = %d, body = %s", rec.Code, rec.Body)
	}
	return decode[model.Member](t, rec)
}

func TestMemberCreateAndGet(t *testing.T) {
	f := setup(t)
	m := f.createMember(t, `{"first_name":"Ada","last_name":"Lovelace","membership_type":"active","badge_number":"101"}`)
	if m.MembershipType != model.MembershipActive {
		t.Errorf("type = %q, want Active", m.MembershipType)
	}

	rec := do(f.members.Get, http.MethodGet, "/api/members/1", "1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	if got := decode[model.Member](t, rec); got.LastName != "Lovelace" {
		t.Errorf("last name = %q, want Lovelace", got.LastName)
	}

	if rec := do(f.members.Get, http.MethodGet, "/api/members/99", "99", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get missing: status = %d, want 404", rec.Code)
	}
	if rec := do(f.members.Get, http.MethodGet, "/api/members/x", "x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("get bad id: status = %d, want 400", rec.Code)
	}
}

func TestMemberCreateValidation(t *testing.T) {
	f := setup(t)
	tests := []struct {
		name string
		body string
	}{
		{"unknown type", `{"first_name":"Ada","last_name":"Lovelace","membership_type":"Gold"}`},
		{"bad date", `{"first_name":"Ada","last_name":"Lovelace","dob":"yesterday"}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(f.members.Create, http.MethodPost, "/api/members", "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestMemberListFilters(t *testing.T) {
	f := setup(t)
	f.createMember(t, `{"first_name":"Ada","last_name":"Lovelace","membership_type":"Active"}`)
	f.createMember(t, `{"first_name":"Bob","last_name":"Adams","membership_type":"Life"}`)
	gone := f.createMember(t, `{"first_name":"Cy","last_name":"Young","membership_type":"Active"}`)
	do(f.members.Delete, http.MethodDelete, "/", itoa(gone.ID), "")

	list := decode[[]model.Member](t, do(f.members.List, http.MethodGet, "/api/members", "", ""))
	if len(list) != 2 || list[0].LastName != "Adams" {
		t.Errorf("active = %+v, want Adams then Lovelace", list)
	}

	list = decode[[]model.Member](t, do(f.members.List, http.MethodGet, "/api/members?type=life", "", ""))
	if len(list) != 1 || list[0].FirstName != "Bob" {
		t.Errorf("life = %+v, want Bob", list)
	}

	list = decode[[]model.Member](t, do(f.members.List, http.MethodGet, "/api/members?deleted=true", "", ""))
	if len(list) != 1 || list[0].ID != gone.ID {
		t.Errorf("deleted = %+v, want Young", list)
	}

	if rec := do(f.members.List, http.MethodGet, "/api/members?type=gold", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad type filter: status = %d, want 400", rec.Code)
	}
}

func TestMemberDeleteRestorePurge(t *testing.T) {
	f := setup(t)
	m := f.createMember(t, `{"first_name":"Ada","last_name":"Lovelace"}`)
	id := itoa(m.ID)

	if rec := do(f.members.Purge, http.MethodDelete, "/", id, ""); rec.Code != http.StatusConflict {
		t.Errorf("purge active: status = %d, want 409", rec.Code)
	}
	if rec := do(f.members.Delete, http.MethodDelete, "/", id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	if rec := do(f.members.Restore, http.MethodPost, "/", id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("restore: status = %d, want 204", rec.Code)
	}
	do(f.members.Delete, http.MethodDelete, "/", id, "")
	if rec := do(f.members.Purge, http.MethodDelete, "/", id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("purge: status = %d, want 204", rec.Code)
	}
	if rec := do(f.members.Restore, http.MethodPost, "/", id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("restore purged: status = %d, want 404", rec.Code)
	}
}

func TestDuesLifecycle(t *testing.T) {
	f := setup(t)
	m := f.createMember(t, `{"first_name":"Ada","last_name":"Lovelace","membership_type":"Active"}`)
	mid := itoa(m.ID)

	if rec := do(f.dues.Create, http.MethodPost, "/", "99", `{"amount":"50","payment_date":"2024-01-05"}`); rec.Code != http.StatusNotFound {
		t.Errorf("create for missing member: status = %d, want 404", rec.Code)
	}
	if rec := do(f.dues.Create, http.MethodPost, "/", mid, `{"amount":"-5","payment_date":"2024-01-05"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("create negative: status = %d, want 400", rec.Code)
	}

	rec := do(f.dues.Create, http.MethodPost, "/", mid, `{"amount":"$150.00","payment_date":"2024-01-05","method":"check"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body)
	}
	p := decode[model.DuesPayment](t, rec)
	if p.Amount != model.Dollars(150, 0) || p.MemberID != m.ID {
		t.Errorf("payment = %+v", p)
	}

	rec = do(f.dues.Update, http.MethodPut, "/", itoa(p.ID), `{"amount":160,"payment_date":"2024-01-06","method":"cash"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[model.DuesPayment](t, rec); got.Amount != model.Dollars(160, 0) || got.Method != "cash" {
		t.Errorf("updated = %+v", got)
	}

	list := decode[[]model.DuesPayment](t, do(f.dues.List, http.MethodGet, "/", mid, ""))
	if len(list) != 1 {
		t.Fatalf("list = %+v, want one payment", list)
	}

	if rec := do(f.dues.Delete, http.MethodDelete, "/", itoa(p.ID), ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	if rec := do(f.dues.Delete, http.MethodDelete, "/", itoa(p.ID), ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete again: status = %d, want 404", rec.Code)
	}
	if body := do(f.dues.List, http.MethodGet, "/", mid, "").Body.String(); strings.TrimSpace(body) != "[]" {
		t.Errorf("list after delete = %s, want []", body)
	}
	if rec := do(f.dues.List, http.MethodGet, "/", "99", ""); rec.Code != http.StatusNotFound {
		t.Errorf("list for missing member: status = %d, want 404", rec.Code)
	}
}

func TestLedgerListReportsMalformedRows(t *testing.T) {
	f := setup(t)
	m := f.createMember(t, `{"first_name":"Ada","last_name":"Lovelace"}`)
	if _, err := f.db.Exec(`INSERT INTO dues (member_id, amount, payment_date) VALUES (?, 'twelve', '2024-04-01')`, m.ID); err != nil {
		t.Fatalf("insert malformed: %v", err)
	}

	rec := do(f.dues.List, http.MethodGet, "/", itoa(m.ID), "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	got := decode[struct {
		IDs []int64 `json:"ids"`
	}](t, rec)
	if len(got.IDs) != 1 {
		t.Errorf("ids = %v, want one malformed row", got.IDs)
	}
}

func TestAttendanceDefaultsToAttended(t *testing.T) {
	f := setup(t)
	m := f.createMember(t, `{"first_name":"Ada","last_name":"Lovelace"}`)
	rec := do(f.attendance.Create, http.MethodPost, "/", itoa(m.ID), `{"meeting_date":"2024-03-12"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[model.AttendanceRecord](t, rec); got.Status != model.AttendanceAttended {
		t.Errorf("status = %q, want Attended", got.Status)
	}
}

func TestDuesReport(t *testing.T) {
	f := setup(t)
	m := f.createMember(t, `{"first_name":"Ada","last_name":"Lovelace","membership_type":"Active","badge_number":"7"}`)
	do(f.settings.Update, http.MethodPut, "/", "", `{"dues_active":"160","default_year":"2024"}`)
	do(f.dues.Create, http.MethodPost, "/", itoa(m.ID), `{"amount":"150","payment_date":"2024-11-15","method":"check"}`)

	rec := do(f.reports.Dues, http.MethodGet, "/api/reports/dues?mode=all", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	rows := decode[[]report.DuesRow](t, rec)
	if len(rows) != 1 {
		t.Fatalf("rows = %+v, want one", rows)
	}
	if rows[0].Outstanding != model.Dollars(10, 0) || rows[0].LastPaymentMethod != "check" {
		t.Errorf("row = %+v", rows[0])
	}

	rec = do(f.reports.Dues, http.MethodGet, "/api/reports/dues?year=2024&format=csv", "", "")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "dues-2024-outstanding.csv") {
		t.Errorf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], itoa(m.ID)+",7,Lovelace,Ada,Active,160.00,150.00,10.00") {
		t.Errorf("csv = %q", rec.Body.String())
	}

	for _, q := range []string{"?mode=owed", "?year=abc", "?months=13", "?types=gold", "?member_id=x"} {
		if rec := do(f.reports.Dues, http.MethodGet, "/api/reports/dues"+q, "", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestAttendanceAndWorkHoursReports(t *testing.T) {
	f := setup(t)
	f.createMember(t, `{"first_name":"Ada","last_name":"Lovelace"}`)

	rec := do(f.reports.Attendance, http.MethodGet, "/api/reports/attendance?year=2024&month=march", "", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("attendance: status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = do(f.reports.WorkHours, http.MethodGet, "/api/reports/work-hours?year=2024&month=2&format=csv", "", "")
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "work-hours-2024-02.csv") {
		t.Errorf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	if rec := do(f.reports.Attendance, http.MethodGet, "/api/reports/attendance?month=Smarch", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad month: status = %d, want 400", rec.Code)
	}
}

func TestReportRejectsInvalidSavedYear(t *testing.T) {
	f := setup(t)
	if _, err := f.db.Exec(`INSERT INTO settings (key, value) VALUES ('default_year', 'twenty')`); err != nil {
		t.Fatalf("seed setting: %v", err)
	}

	if rec := do(f.reports.Dues, http.MethodGet, "/api/reports/dues", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("saved year: status = %d, want 400", rec.Code)
	}
	if rec := do(f.reports.Dues, http.MethodGet, "/api/reports/dues?year=2024", "", ""); rec.Code != http.StatusOK {
		t.Errorf("explicit year: status = %d, want 200", rec.Code)
	}
}

func TestSettingsUpdate(t *testing.T) {
	f := setup(t)

	if rec := do(f.settings.Update, http.MethodPut, "/", "", `{"dues_active":"lots","dues_life":"10"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid: status = %d, want 400", rec.Code)
	}

	rec := do(f.settings.Update, http.MethodPut, "/", "", `{"dues_active":"$200"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", rec.Code, rec.Body)
	}
	all := decode[map[string]string](t, rec)
	if all["dues_active"] != "200.00" || all["dues_life"] != "0.00" {
		t.Errorf("settings = %v", all)
	}

	rec = do(f.settings.Update, http.MethodPut, "/", "", `{" dues_life ":"45"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("padded key: status = %d, body = %s", rec.Code, rec.Body)
	}
	all = decode[map[string]string](t, rec)
	if _, ok := all[" dues_life "]; ok || all["dues_life"] != "45.00" {
		t.Errorf("padded key settings = %v", all)
	}

	list := decode[[]model.Setting](t, do(f.settings.List, http.MethodGet, "/", "", ""))
	if len(list) == 0 {
		t.Error("expected settings")
	}
}

func TestImportCSV(t *testing.T) {
	f := setup(t)
	body := "Badge,First Name,Last Name,Membership Type\n101,Ada,Lovelace,Active\n,No,Badge,Active\n"
	rec := do(f.imports.CSV, http.MethodPost, "/api/import?name=roster.csv", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	res := decode[importer.Result](t, rec)
	if res.Source != "roster.csv" || res.Added != 1 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}

	if rec := do(f.imports.CSV, http.MethodPost, "/api/import", "", "foo,bar\n1,2\n"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown header: status = %d, want 400", rec.Code)
	}
}

func TestBackupRunListDownload(t *testing.T) {
	f := setup(t)

	if rec := do(f.backups.Run, http.MethodPost, "/api/backups", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("run without passphrase: status = %d, want 400", rec.Code)
	}

	rec := do(f.backups.Run, http.MethodPost, "/api/backups", "", `{"passphrase":"hunter2"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("run: status = %d, body = %s", rec.Code, rec.Body)
	}
	b := decode[model.Backup](t, rec)

	list := decode[backupListResponse](t, do(f.backups.List, http.MethodGet, "/api/backups", "", ""))
	if list.Status.State != backup.StateIdle {
		t.Errorf("state = %q, want idle", list.Status.State)
	}
	completed := 0
	for _, x := range list.Backups {
		if x.Status == model.BackupStatusCompleted {
			completed++
		}
	}
	if completed != 1 || list.TotalBytes != b.SizeBytes {
		t.Errorf("list = %+v", list)
	}

	rec = do(f.backups.Download, http.MethodGet, "/", itoa(b.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("download: status = %d", rec.Code)
	}
	data, _ := io.ReadAll(rec.Body)
	if !bytes.HasPrefix(data, []byte("CLUBBK1\n")) {
		t.Errorf("download does not start with the snapshot header")
	}
	if _, err := backup.Decrypt(data, "hunter2"); err != nil {
		t.Errorf("decrypt download: %v", err)
	}

	if rec := do(f.backups.Download, http.MethodGet, "/", "999", ""); rec.Code != http.StatusNotFound {
		t.Errorf("download missing: status = %d, want 404", rec.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
