package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/clubhouse/internal/model"
)

// AllMonths selects the whole year in attendance and work-hours reports.
const AllMonths = 0

// Period is an inclusive range of calendar dates.
type Period struct {
	From model.Date
	To   model.Date
}

func YearPeriod(year int) Period {
	return Period{
		From: model.NewDate(year, time.January, 1),
		To:   model.NewDate(year, time.December, 31),
	}
}

// MonthPeriod runs from the first to the last day of the month, so February
// ends on the 29th in leap years.
func MonthPeriod(year int, month time.Month) Period {
	first := model.NewDate(year, month, 1)
	// Day 0 of the next month is the last day of this one.
	last := model.NewDate(year, month+1, 0)
	return Period{From: first, To: last}
}

// PeriodFor returns the year period for AllMonths, otherwise the month period.
func PeriodFor(year, month int) Period {
	if month == AllMonths {
		return YearPeriod(year)
	}
	return MonthPeriod(year, time.Month(month))
}

func (p Period) Contains(d model.Date) bool {
	if d.IsZero() {
		return false
	}
	return !d.Before(p.From) && !d.After(p.To)
}

// ParseMonth accepts "All" (or empty) for AllMonths, a number 1-12, or an
// English month name or three-letter abbreviation.
func ParseMonth(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllMonths, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, &model.ValidationError{Field: "month", Message: fmt.Sprintf("month %d out of range", n)}
		}
		return n, nil
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return int(m), nil
		}
	}
	return 0, &model.ValidationError{Field: "month", Message: fmt.Sprintf("unknown month %q", s)}
}

// ParseMonths parses a comma-separated month list. "All" or an empty string
// yields nil, meaning no month filter.
func ParseMonths(s string) ([]int, error) {
	var months []int
	for _, part := range strings.Split(s, ",") {
		m, err := ParseMonth(part)
		if err != nil {
			return nil, err
		}
		if m == AllMonths {
			return nil, nil
		}
		months = append(months, m)
	}
	return months, nil
}

func validYear(year int) error {
	if year < 1900 || year > 9999 {
		return &model.ValidationError{Field: "year", Message: fmt.Sprintf("year %d out of range", year)}
	}
	return nil
}
