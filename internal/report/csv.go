package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var memberHeader = []string{"member_id", "badge_number", "last_name", "first_name", "membership_type"}

func (m MemberInfo) record() []string {
	return []string{strconv.FormatInt(m.MemberID, 10), m.BadgeNumber, m.LastName, m.FirstName, string(m.MembershipType)}
}

func WriteDuesCSV(w io.Writer, rows []DuesRow) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, memberHeader...),
		"expected_dues", "paid_total", "outstanding", "balance", "last_payment_date", "last_payment_method")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := append(r.record(),
			r.ExpectedDues.String(),
			r.PaidTotal.String(),
			r.Outstanding.String(),
			r.Balance.String(),
			r.LastPaymentDate.String(),
			r.LastPaymentMethod,
		)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAttendanceCSV writes the count column for whole-year reports and the
// status column for single-month ones.
func WriteAttendanceCSV(w io.Writer, rows []AttendanceRow, month int) error {
	cw := csv.NewWriter(w)
	last := "count"
	if month != AllMonths {
		last = "status"
	}
	if err := cw.Write(append(append([]string{}, memberHeader...), last)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		value := strconv.Itoa(r.Count)
		if month != AllMonths {
			value = string(r.Status)
		}
		if err := cw.Write(append(r.record(), value)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteWorkHoursCSV(w io.Writer, rows []WorkHoursRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, memberHeader...), "hours")); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(append(r.record(), strconv.FormatFloat(r.Hours, 'f', -1, 64))); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
