package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{"150", 15000},
		{"150.5", 15050},
		{"150.50", 15050},
		{"$1,250.00", 125000},
		{"150,50", 15050},
		{"12.345", 1235},
		{"12.344", 1234},
		{"0", 0},
		{"-10.00", -1000},
		{".75", 75},
	}
	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if err != nil {
			t.Errorf("ParseMoney(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMoney(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseMoneyInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "12a", "$", "-", ".", "-.", "$-"} {
		_, err := ParseMoney(in)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("ParseMoney(%q) error = %v, want ValidationError", in, err)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if got := Money(16000).String(); got != "160.00" {
		t.Errorf("String() = %q, want %q", got, "160.00")
	}
	if got := Money(-1005).String(); got != "-10.05" {
		t.Errorf("String() = %q, want %q", got, "-10.05")
	}
}

func TestMoneyScanLegacyValues(t *testing.T) {
	var m Money
	if err := m.Scan(float64(100.1)); err != nil {
		t.Fatalf("scan float: %v", err)
	}
	if m != 10010 {
		t.Errorf("float scan = %d, want 10010", m)
	}
	if err := m.Scan(int64(60)); err != nil {
		t.Fatalf("scan int: %v", err)
	}
	if m != 6000 {
		t.Errorf("int scan = %d, want 6000", m)
	}
	if err := m.Scan("75.25"); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if m != 7525 {
		t.Errorf("string scan = %d, want 7525", m)
	}
	if err := m.Scan("n/a"); err == nil {
		t.Error("expected error scanning malformed amount")
	}
}

func TestMoneyJSON(t *testing.T) {
	var f DuesFields
	if err := json.Unmarshal([]byte(`{"amount":"100.50","payment_date":"2024-03-01"}`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Amount != 10050 {
		t.Errorf("amount = %d, want 10050", f.Amount)
	}
	if err := json.Unmarshal([]byte(`{"amount":60}`), &f); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if f.Amount != 6000 {
		t.Errorf("amount = %d, want 6000", f.Amount)
	}

	data, err := json.Marshal(DuesFields{Amount: 16000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if back["amount"] != float64(160) {
		t.Errorf("amount = %v, want 160", back["amount"])
	}
	if back["payment_date"] != nil {
		t.Errorf("zero payment_date = %v, want null", back["payment_date"])
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want Date
	}{
		{"2024-02-29", Date{2024, time.February, 29}},
		{"2024-11-15 00:00:00", Date{2024, time.November, 15}},
		{"03/01/2024", Date{2024, time.March, 1}},
		{"", Date{}},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseDate("2023-02-29"); err == nil {
		t.Error("expected error for Feb 29 in a non-leap year")
	}
}

func TestDateCompare(t *testing.T) {
	a := NewDate(2024, time.March, 1)
	b := NewDate(2024, time.November, 15)
	if !a.Before(b) || b.Before(a) {
		t.Errorf("expected %v before %v", a, b)
	}
	if !b.After(a) {
		t.Errorf("expected %v after %v", b, a)
	}
	if a.Compare(a) != 0 {
		t.Error("date should compare equal to itself")
	}
	if got := NewDate(2024, time.March, 0); got != (Date{2024, time.February, 29}) {
		t.Errorf("day 0 of March 2024 = %v, want 2024-02-29", got)
	}
}

func TestDateScanAndValue(t *testing.T) {
	var d Date
	if err := d.Scan(nil); err != nil || !d.IsZero() {
		t.Errorf("scan nil = %v, %v; want zero date", d, err)
	}
	v, err := d.Value()
	if err != nil || v != nil {
		t.Errorf("zero Value() = %v, %v; want nil", v, err)
	}
	if err := d.Scan([]byte("2024-11-15")); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	v, _ = d.Value()
	if v != "2024-11-15" {
		t.Errorf("Value() = %v, want 2024-11-15", v)
	}
}

func TestParseMembershipType(t *testing.T) {
	tests := map[string]MembershipType{
		"active":    MembershipActive,
		" Life ":    MembershipLife,
		"wait list": MembershipWaitList,
		"waitlist":  MembershipWaitList,
		"Wait_List": MembershipWaitList,
	}
	for in, want := range tests {
		got, err := ParseMembershipType(in)
		if err != nil {
			t.Errorf("ParseMembershipType(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMembershipType(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseMembershipType("Honorary"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestMembershipSettingKey(t *testing.T) {
	if got := MembershipWaitList.SettingKey(); got != "dues_wait_list" {
		t.Errorf("SettingKey() = %q, want %q", got, "dues_wait_list")
	}
	if got := MembershipActive.SettingKey(); got != SettingDuesActive {
		t.Errorf("SettingKey() = %q, want %q", got, SettingDuesActive)
	}
}

func TestMemberFieldsNormalize(t *testing.T) {
	f := MemberFields{FirstName: "  Ada ", LastName: "Lovelace", MembershipType: "active", BadgeNumber: " 1001 "}
	if err := f.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if f.FirstName != "Ada" || f.BadgeNumber != "1001" || f.MembershipType != MembershipActive {
		t.Errorf("normalized = %+v", f)
	}

	empty := MemberFields{MembershipType: MembershipActive}
	if err := empty.Normalize(); err == nil {
		t.Error("expected error for member without a name")
	}
}

func TestBackupRestorableAndLocation(t *testing.T) {
	started := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	done := started.Add(4 * time.Second)

	tests := []struct {
		name       string
		b          Backup
		restorable bool
		inS3       bool
	}{
		{"pending", Backup{Status: BackupStatusPending}, false, false},
		{"failed", Backup{Status: BackupStatusFailed, Location: "backups/a.db.enc"}, false, false},
		{"completed on disk", Backup{Status: BackupStatusCompleted, Location: "backups/a.db.enc"}, true, false},
		{"completed in s3", Backup{Status: BackupStatusCompleted, Location: "s3://club/clubhouse/a.db.enc"}, true, true},
		{"completed without location", Backup{Status: BackupStatusCompleted}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.Restorable(); got != tt.restorable {
				t.Errorf("Restorable() = %v, want %v", got, tt.restorable)
			}
			if got := tt.b.InS3(); got != tt.inS3 {
				t.Errorf("InS3() = %v, want %v", got, tt.inS3)
			}
		})
	}

	b := Backup{StartedAt: &started}
	if got := b.Duration(); got != 0 {
		t.Errorf("unfinished Duration() = %v, want 0", got)
	}
	b.CompletedAt = &done
	if got := b.Duration(); got != 4*time.Second {
		t.Errorf("Duration() = %v, want 4s", got)
	}
}
