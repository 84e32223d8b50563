// Package report computes the dues, attendance and work-hours reports from
// the member and ledger stores. Nothing is cached: every call reads the
// current rows and settings.
package report

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/store"
)

type MemberLister interface {
	List(filter store.MemberFilter) ([]model.Member, error)
}

type DuesLister interface {
	ListByMember(memberID int64) ([]model.DuesPayment, error)
}

type AttendanceLister interface {
	ListByMember(memberID int64) ([]model.AttendanceRecord, error)
}

type WorkHoursLister interface {
	ListByMember(memberID int64) ([]model.WorkHoursRecord, error)
}

// DuesSettings resolves the annual dues stored under a settings key.
type DuesSettings interface {
	DuesAmount(key string) (model.Money, error)
}

type Aggregator struct {
	members    MemberLister
	dues       DuesLister
	attendance AttendanceLister
	hours      WorkHoursLister
	settings   DuesSettings
	logger     *slog.Logger
}

func New(members MemberLister, dues DuesLister, attendance AttendanceLister, hours WorkHoursLister, settings DuesSettings, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		members:    members,
		dues:       dues,
		attendance: attendance,
		hours:      hours,
		settings:   settings,
		logger:     logger,
	}
}

type Mode string

const (
	ModePaid        Mode = "paid"
	ModeOutstanding Mode = "outstanding"
	ModeAll         Mode = "all"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeOutstanding, nil
	case ModePaid, ModeOutstanding, ModeAll:
		return m, nil
	}
	return "", &model.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown report mode %q", s)}
}

// MemberInfo is the member identity carried on every report row.
type MemberInfo struct {
	MemberID       int64                `json:"member_id"`
	BadgeNumber    string               `json:"badge_number"`
	FirstName      string               `json:"first_name"`
	LastName       string               `json:"last_name"`
	MembershipType model.MembershipType `json:"membership_type"`
}

func infoOf(m model.Member) MemberInfo {
	return MemberInfo{
		MemberID:       m.ID,
		BadgeNumber:    m.BadgeNumber,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		MembershipType: m.MembershipType,
	}
}

type DuesRequest struct {
	Year int
	// Months restricts payments to these months (1-12). Empty means the whole year.
	Months []int
	// Types restricts members to these membership types. Empty means all types.
	Types []model.MembershipType
	// MemberID, when set, reports on that member only.
	MemberID *int64
	Mode     Mode
}

type DuesRow struct {
	MemberInfo
	ExpectedDues model.Money `json:"expected_dues"`
	PaidTotal    model.Money `json:"paid_total"`
	// Outstanding is floored at zero except in ModeAll, where an overpayment
	// shows as a negative amount.
	Outstanding       model.Money `json:"outstanding"`
	Balance           model.Money `json:"balance"`
	LastPaymentDate   model.Date  `json:"last_payment_date"`
	LastPaymentMethod string      `json:"last_payment_method"`
}

type AttendanceRow struct {
	MemberInfo
	// Count is set for whole-year reports: meetings attended or exempted.
	Count int `json:"count"`
	// Status is set for single-month reports: the latest record in the month.
	Status model.AttendanceStatus `json:"status,omitempty"`
}

type WorkHoursRow struct {
	MemberInfo
	Hours float64 `json:"hours"`
}

func (a *Aggregator) DuesReport(req DuesRequest) ([]DuesRow, error) {
	if err := validYear(req.Year); err != nil {
		return nil, err
	}
	for _, m := range req.Months {
		if m < 1 || m > 12 {
			return nil, &model.ValidationError{Field: "months", Message: fmt.Sprintf("month %d out of range", m)}
		}
	}
	if req.Mode == "" {
		req.Mode = ModeOutstanding
	}
	if _, err := ParseMode(string(req.Mode)); err != nil {
		return nil, err
	}

	members, err := a.activeMembers(req.Types, req.MemberID)
	if err != nil {
		return nil, err
	}

	expected := make(map[model.MembershipType]model.Money)
	rows := make([]DuesRow, 0, len(members))
	for _, m := range members {
		exp, ok := expected[m.MembershipType]
		if !ok {
			exp, err = a.expectedDues(m.MembershipType)
			if err != nil {
				return nil, err
			}
			expected[m.MembershipType] = exp
		}

		payments, err := a.dues.ListByMember(m.ID)
		if err := a.tolerate(err, m.ID); err != nil {
			return nil, fmt.Errorf("list dues for member %d: %w", m.ID, err)
		}

		row := DuesRow{MemberInfo: infoOf(m), ExpectedDues: exp}
		sortPayments(payments)
		var last *model.DuesPayment
		for i := range payments {
			p := &payments[i]
			if p.PaymentDate.Year != req.Year {
				continue
			}
			if len(req.Months) > 0 && !slices.Contains(req.Months, int(p.PaymentDate.Month)) {
				continue
			}
			row.PaidTotal += p.Amount
			if last == nil || p.PaymentDate.After(last.PaymentDate) {
				last = p
			}
		}
		if last != nil {
			row.LastPaymentDate = last.PaymentDate
			row.LastPaymentMethod = last.Method
		}

		row.Balance = row.ExpectedDues - row.PaidTotal
		row.Outstanding = row.Balance
		if req.Mode != ModeAll && row.Outstanding < 0 {
			row.Outstanding = 0
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// sortPayments orders payments by date then id, so the strict comparison in
// DuesReport keeps the first of several same-day payments on every run.
func sortPayments(payments []model.DuesPayment) {
	slices.SortFunc(payments, func(a, b model.DuesPayment) int {
		if c := a.PaymentDate.Compare(b.PaymentDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// AttendanceReport counts a year's attended and exempt meetings per member,
// or for a single month reports each member's status in that month.
func (a *Aggregator) AttendanceReport(year, month int) ([]AttendanceRow, error) {
	if err := validYear(year); err != nil {
		return nil, err
	}
	if month < AllMonths || month > 12 {
		return nil, &model.ValidationError{Field: "month", Message: fmt.Sprintf("month %d out of range", month)}
	}
	period := PeriodFor(year, month)

	members, err := a.activeMembers(nil, nil)
	if err != nil {
		return nil, err
	}

	var rows []AttendanceRow
	for _, m := range members {
		records, err := a.attendance.ListByMember(m.ID)
		if err := a.tolerate(err, m.ID); err != nil {
			return nil, fmt.Errorf("list attendance for member %d: %w", m.ID, err)
		}

		row := AttendanceRow{MemberInfo: infoOf(m)}
		var latest *model.AttendanceRecord
		for i := range records {
			r := &records[i]
			if !period.Contains(r.MeetingDate) {
				continue
			}
			if r.Status.Counted() {
				row.Count++
			}
			if latest == nil || r.MeetingDate.After(latest.MeetingDate) ||
				(r.MeetingDate == latest.MeetingDate && r.ID > latest.ID) {
				latest = r
			}
		}

		if month != AllMonths {
			if latest == nil {
				continue
			}
			row.Count = 0
			row.Status = latest.Status
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WorkHoursReport sums hours over the year or month, for every active member
// or only memberID when it is set.
func (a *Aggregator) WorkHoursReport(year, month int, memberID *int64) ([]WorkHoursRow, error) {
	if err := validYear(year); err != nil {
		return nil, err
	}
	if month < AllMonths || month > 12 {
		return nil, &model.ValidationError{Field: "month", Message: fmt.Sprintf("month %d out of range", month)}
	}
	period := PeriodFor(year, month)

	members, err := a.activeMembers(nil, memberID)
	if err != nil {
		return nil, err
	}

	rows := make([]WorkHoursRow, 0, len(members))
	for _, m := range members {
		records, err := a.hours.ListByMember(m.ID)
		if err := a.tolerate(err, m.ID); err != nil {
			return nil, fmt.Errorf("list work hours for member %d: %w", m.ID, err)
		}

		row := WorkHoursRow{MemberInfo: infoOf(m)}
		for _, r := range records {
			if period.Contains(r.WorkDate) {
				row.Hours += r.Hours
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// activeMembers returns the non-deleted members of the given types in report
// order, narrowed to one member when memberID is set.
func (a *Aggregator) activeMembers(types []model.MembershipType, memberID *int64) ([]model.Member, error) {
	members, err := a.members.List(store.MemberFilter{ActiveOnly: true, Types: types})
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if memberID != nil {
		members = slices.DeleteFunc(members, func(m model.Member) bool { return m.ID != *memberID })
	}
	slices.SortStableFunc(members, compareMembers)
	return members, nil
}

func compareMembers(a, b model.Member) int {
	if c := strings.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)); c != 0 {
		return c
	}
	if c := strings.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// expectedDues looks up the annual dues for a membership type. Life members
// have their own setting; a type with no setting owes nothing.
func (a *Aggregator) expectedDues(t model.MembershipType) (model.Money, error) {
	key := t.SettingKey()
	if t == model.MembershipLife {
		key = model.SettingDuesLife
	}
	amount, err := a.settings.DuesAmount(key)
	if err != nil {
		return 0, fmt.Errorf("expected dues for %s: %w", t, err)
	}
	return amount, nil
}

// tolerate logs and drops a malformed-rows error so the report is built from
// the rows that decoded. Any other error is returned.
func (a *Aggregator) tolerate(err error, memberID int64) error {
	var malformed *store.MalformedRowsError
	if errors.As(err, &malformed) {
		a.logger.Warn("skipping malformed ledger rows",
			"member_id", memberID,
			"table", malformed.Table,
			"ids", malformed.IDs,
			"error", err,
		)
		return nil
	}
	return err
}
