package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/clubhouse/internal/model"
)

func setupSettingsTestDB(t *testing.T) *SettingsStore {
	t.Helper()
	return NewSettingsStore(setupTestDB(t))
}

func TestSettingsSeedData(t *testing.T) {
	ss := setupSettingsTestDB(t)

	settings, err := ss.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	for _, key := range []string{
		model.SettingDuesProbationary,
		model.SettingDuesAssociate,
		model.SettingDuesActive,
		model.SettingDuesLife,
	} {
		got, ok := settings[key]
		if !ok {
			t.Errorf("missing seeded setting %q", key)
			continue
		}
		if got != "0.00" {
			t.Errorf("setting %q = %q, want %q", key, got, "0.00")
		}
	}
}

func TestSettingsGetMissing(t *testing.T) {
	ss := setupSettingsTestDB(t)

	_, err := ss.Get("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSettingsSetNormalizesDues(t *testing.T) {
	ss := setupSettingsTestDB(t)

	if err := ss.Set(model.SettingDuesActive, "$150"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := ss.Get(model.SettingDuesActive)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "150.00" {
		t.Errorf("dues_active = %q, want %q", val, "150.00")
	}

	amount, err := ss.DuesAmount(model.SettingDuesActive)
	if err != nil {
		t.Fatalf("dues amount: %v", err)
	}
	if amount != model.Dollars(150, 0) {
		t.Errorf("amount = %v, want 150.00", amount)
	}
}

func TestSettingsSetRejectsInvalid(t *testing.T) {
	ss := setupSettingsTestDB(t)

	tests := []struct {
		key, value string
	}{
		{model.SettingDuesActive, "lots"},
		{model.SettingDuesLife, "-5"},
		{model.SettingDuesActive, "-"},
		{model.SettingDuesActive, "."},
		{model.SettingDefaultYear, "24"},
		{"", "x"},
	}
	for _, tt := range tests {
		err := ss.Set(tt.key, tt.value)
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Set(%q, %q) err = %v, want ValidationError", tt.key, tt.value, err)
		}
	}
}

func TestSettingsDuesAmount(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSettingsStore(db)

	amount, err := ss.DuesAmount("dues_wait_list")
	if err != nil {
		t.Fatalf("missing key: %v", err)
	}
	if amount != 0 {
		t.Errorf("missing key amount = %v, want 0", amount)
	}

	// Written behind the store's back, as an older release could have.
	if _, err := db.Exec(`UPDATE settings SET value = 'abc' WHERE key = ?`, model.SettingDuesAssociate); err != nil {
		t.Fatalf("corrupt setting: %v", err)
	}
	_, err = ss.DuesAmount(model.SettingDuesAssociate)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("malformed setting err = %v, want ValidationError", err)
	}
}

func TestSettingsSetManyIsAtomic(t *testing.T) {
	ss := setupSettingsTestDB(t)

	err := ss.SetMany(map[string]string{
		model.SettingDuesActive: "100",
		model.SettingDuesLife:   "not money",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	val, _ := ss.Get(model.SettingDuesActive)
	if val != "0.00" {
		t.Errorf("dues_active = %q after failed SetMany, want unchanged", val)
	}

	if err := ss.SetMany(map[string]string{model.SettingDuesActive: "100", model.SettingDuesLife: "25.5"}); err != nil {
		t.Fatalf("set many: %v", err)
	}
	all, err := ss.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all[model.SettingDuesActive] != "100.00" || all[model.SettingDuesLife] != "25.50" {
		t.Errorf("settings = %v", all)
	}
}

func TestSettingsDefaultYear(t *testing.T) {
	ss := setupSettingsTestDB(t)
	ss.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	year, err := ss.DefaultYear()
	if err != nil {
		t.Fatalf("default year: %v", err)
	}
	if year != 2025 {
		t.Errorf("year = %d, want 2025", year)
	}

	if err := ss.Set(model.SettingDefaultYear, "2023"); err != nil {
		t.Fatalf("set: %v", err)
	}
	year, err = ss.DefaultYear()
	if err != nil {
		t.Fatalf("default year: %v", err)
	}
	if year != 2023 {
		t.Errorf("year = %d, want 2023", year)
	}

	// Written behind the store's back, as an older release could have.
	if _, err := ss.db.Exec(`UPDATE settings SET value = 'twenty' WHERE key = ?`, model.SettingDefaultYear); err != nil {
		t.Fatalf("corrupt setting: %v", err)
	}
	year, err = ss.DefaultYear()
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("DefaultYear() = %d, %v, want ValidationError", year, err)
	}
}

func TestSettingsSetTrimsKey(t *testing.T) {
	ss := setupSettingsTestDB(t)

	if err := ss.Set(" dues_active ", "150"); err != nil {
		t.Fatalf("set: %v", err)
	}
	amount, err := ss.DuesAmount(model.SettingDuesActive)
	if err != nil {
		t.Fatalf("dues amount: %v", err)
	}
	if amount != model.Dollars(150, 0) {
		t.Errorf("dues_active = %v, want 150.00", amount)
	}

	if err := ss.SetMany(map[string]string{"\tdues_life": "30"}); err != nil {
		t.Fatalf("set many: %v", err)
	}
	all, err := ss.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all[model.SettingDuesLife] != "30.00" {
		t.Errorf("dues_life = %q, want 30.00", all[model.SettingDuesLife])
	}
	for key := range all {
		if key != strings.TrimSpace(key) {
			t.Errorf("stored untrimmed key %q", key)
		}
	}

	err = ss.SetMany(map[string]string{model.SettingDuesLife: "10", " dues_life": "20"})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("duplicate trimmed keys err = %v, want ValidationError", err)
	}
}
