package model

import (
	"strings"
	"time"
)

type MembershipType string

const (
	MembershipProbationary MembershipType = "Probationary"
	MembershipAssociate    MembershipType = "Associate"
	MembershipActive       MembershipType = "Active"
	MembershipLife         MembershipType = "Life"
	MembershipProspective  MembershipType = "Prospective"
	MembershipWaitList     MembershipType = "Wait List"
	MembershipFormer       MembershipType = "Former"
)

// MembershipTypes lists every type in the order the club presents them.
var MembershipTypes = []MembershipType{
	MembershipProbationary,
	MembershipAssociate,
	MembershipActive,
	MembershipLife,
	MembershipProspective,
	MembershipWaitList,
	MembershipFormer,
}

// ParseMembershipType matches case-insensitively and tolerates "waitlist"
// and "wait_list" spellings.
func ParseMembershipType(s string) (MembershipType, error) {
	key := normalizeTypeKey(s)
	for _, t := range MembershipTypes {
		if normalizeTypeKey(string(t)) == key {
			return t, nil
		}
	}
	return "", invalid("membership_type", "unknown membership type %q", s)
}

func normalizeTypeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

func (t MembershipType) Valid() bool {
	for _, known := range MembershipTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SettingKey is the settings key holding this type's annual dues, e.g.
// "dues_wait_list".
func (t MembershipType) SettingKey() string {
	return "dues_" + strings.ReplaceAll(strings.ToLower(string(t)), " ", "_")
}

// MemberFields holds everything a caller may set on a member.
type MemberFields struct {
	BadgeNumber    string         `json:"badge_number"`
	MembershipType MembershipType `json:"membership_type"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	DOB            Date           `json:"dob"`
	Email          string         `json:"email"`
	Email2         string         `json:"email2"`
	Phone          string         `json:"phone"`
	Address        string         `json:"address"`
	City           string         `json:"city"`
	State          string         `json:"state"`
	Zip            string         `json:"zip"`
	JoinDate       Date           `json:"join_date"`
	Sponsor        string         `json:"sponsor"`
	CardInternal   string         `json:"card_internal"`
	CardExternal   string         `json:"card_external"`
}

// Normalize trims whitespace and canonicalizes the membership type.
func (f *MemberFields) Normalize() error {
	for _, p := range []*string{
		&f.BadgeNumber, &f.FirstName, &f.LastName, &f.Email, &f.Email2, &f.Phone,
		&f.Address, &f.City, &f.State, &f.Zip, &f.Sponsor, &f.CardInternal, &f.CardExternal,
	} {
		*p = strings.TrimSpace(*p)
	}

	if f.FirstName == "" && f.LastName == "" {
		return invalid("name", "first or last name is required")
	}

	t, err := ParseMembershipType(string(f.MembershipType))
	if err != nil {
		return err
	}
	f.MembershipType = t
	return nil
}

type Member struct {
	ID int64 `json:"id"`
	MemberFields
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Unreadable holds the stored text of fields that no longer decode, keyed
	// by column. Those fields are left at their zero value.
	Unreadable map[string]string `json:"unreadable,omitempty"`
}

// FullName returns "Last, First" the way rosters are printed.
func (m Member) FullName() string {
	switch {
	case m.LastName == "":
		return m.FirstName
	case m.FirstName == "":
		return m.LastName
	}
	return m.LastName + ", " + m.FirstName
}
