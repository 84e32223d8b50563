package model

import "time"

const (
	SettingDuesProbationary = "dues_probationary"
	SettingDuesAssociate    = "dues_associate"
	SettingDuesActive       = "dues_active"
	SettingDuesLife         = "dues_life"
	SettingDefaultYear      = "default_year"
)

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
