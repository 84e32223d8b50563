package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/clubhouse/internal/model"
)

type SettingsStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db, now: time.Now}
}

func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) GetAll() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// List returns every setting with its last update time.
func (s *SettingsStore) List() ([]model.Setting, error) {
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var st model.Setting
		var updatedAt sql.NullTime
		if err := rows.Scan(&st.Key, &st.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		st.UpdatedAt = updatedAt.Time
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(key, value string) error {
	key, value, err := normalizeSetting(key, value)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// SetMany saves all values or none of them.
func (s *SettingsStore) SetMany(values map[string]string) error {
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		k, v, err := normalizeSetting(key, value)
		if err != nil {
			return err
		}
		if _, dup := normalized[k]; dup {
			return &model.ValidationError{Field: k, Message: "is given more than once"}
		}
		normalized[k] = v
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for key, value := range normalized {
		_, err := tx.Exec(
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		)
		if err != nil {
			return fmt.Errorf("set setting %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// DuesAmount returns the annual dues stored under key. A missing setting is
// zero; a value that is not a number is a validation error.
func (s *SettingsStore) DuesAmount(key string) (model.Money, error) {
	value, err := s.Get(key)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	amount, err := model.ParseMoney(value)
	if err != nil {
		return 0, &model.ValidationError{Field: key, Message: fmt.Sprintf("stored value %q is not an amount", value)}
	}
	return amount, nil
}

// DefaultYear is the report year the UI opens with, the current year unless
// one was saved. A saved value that is not a year is a validation error.
func (s *SettingsStore) DefaultYear() (int, error) {
	value, err := s.Get(model.SettingDefaultYear)
	if err != nil {
		if isNotFound(err) {
			return s.now().Year(), nil
		}
		return 0, err
	}
	if strings.TrimSpace(value) == "" {
		return s.now().Year(), nil
	}
	return parseYear(value)
}

// normalizeSetting returns the trimmed key and the value as it is stored.
func normalizeSetting(key, value string) (string, string, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	switch {
	case key == "":
		return "", "", &model.ValidationError{Field: "key", Message: "is required"}
	case strings.HasPrefix(key, "dues_"):
		amount, err := model.ParseMoney(value)
		if err != nil {
			return "", "", &model.ValidationError{Field: key, Message: fmt.Sprintf("%q is not an amount", value)}
		}
		if amount < 0 {
			return "", "", &model.ValidationError{Field: key, Message: "must not be negative"}
		}
		return key, amount.String(), nil
	case key == model.SettingDefaultYear:
		if _, err := parseYear(value); err != nil {
			return "", "", err
		}
	}
	return key, value, nil
}

func parseYear(value string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || year < 1900 || year > 9999 {
		return 0, &model.ValidationError{Field: model.SettingDefaultYear, Message: fmt.Sprintf("%q is not a year", value)}
	}
	return year, nil
}
