package model

import (
	"strings"
	"time"
)

type DuesFields struct {
	Amount      Money  `json:"amount"`
	PaymentDate Date   `json:"payment_date"`
	Method      string `json:"method"`
	Notes       string `json:"notes"`
}

func (f *DuesFields) Validate() error {
	f.Method = strings.TrimSpace(f.Method)
	if f.Amount <= 0 {
		return invalid("amount", "must be greater than zero")
	}
	if f.PaymentDate.IsZero() {
		return invalid("payment_date", "is required")
	}
	return nil
}

type DuesPayment struct {
	ID       int64 `json:"id"`
	MemberID int64 `json:"member_id"`
	DuesFields
	CreatedAt time.Time `json:"created_at"`
}

type AttendanceStatus string

const (
	AttendanceAttended AttendanceStatus = "Attended"
	AttendanceExempt   AttendanceStatus = "Exempt"
	AttendanceAbsent   AttendanceStatus = "Absent"
)

// Counted reports whether the status counts toward a member's yearly
// attendance total.
func (s AttendanceStatus) Counted() bool {
	return s == AttendanceAttended || s == AttendanceExempt
}

func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	for _, known := range []AttendanceStatus{AttendanceAttended, AttendanceExempt, AttendanceAbsent} {
		if strings.EqualFold(strings.TrimSpace(s), string(known)) {
			return known, nil
		}
	}
	return "", invalid("status", "unknown attendance status %q", s)
}

type AttendanceFields struct {
	MeetingDate Date             `json:"meeting_date"`
	Status      AttendanceStatus `json:"status"`
	Notes       string           `json:"notes"`
}

func (f *AttendanceFields) Validate() error {
	if f.MeetingDate.IsZero() {
		return invalid("meeting_date", "is required")
	}
	if f.Status == "" {
		f.Status = AttendanceAttended
	}
	status, err := ParseAttendanceStatus(string(f.Status))
	if err != nil {
		return err
	}
	f.Status = status
	return nil
}

type AttendanceRecord struct {
	ID       int64 `json:"id"`
	MemberID int64 `json:"member_id"`
	AttendanceFields
	CreatedAt time.Time `json:"created_at"`
}

type WorkHoursFields struct {
	WorkDate Date    `json:"work_date"`
	Hours    float64 `json:"hours"`
	Activity string  `json:"activity"`
	Notes    string  `json:"notes"`
}

func (f *WorkHoursFields) Validate() error {
	f.Activity = strings.TrimSpace(f.Activity)
	if f.WorkDate.IsZero() {
		return invalid("work_date", "is required")
	}
	if f.Hours < 0 || f.Hours > 24 {
		return invalid("hours", "must be between 0 and 24")
	}
	return nil
}

type WorkHoursRecord struct {
	ID       int64 `json:"id"`
	MemberID int64 `json:"member_id"`
	WorkHoursFields
	CreatedAt time.Time `json:"created_at"`
}
