package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/report"
)

// yearSource supplies the report year when a request does not name one.
type yearSource interface {
	DefaultYear() (int, error)
}

type ReportHandler struct {
	reports  *report.Aggregator
	settings yearSource
	logger   *slog.Logger
}

func NewReportHandler(agg *report.Aggregator, settings yearSource, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: agg, settings: settings, logger: logger}
}

// Dues serves GET /api/reports/dues?year=&months=&types=&member_id=&mode=.
// ?format=csv returns a CSV download instead of JSON.
func (h *ReportHandler) Dues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := h.year(r)
	if err != nil {
		writeError(w, h.logger, err, "build dues report")
		return
	}
	months, err := report.ParseMonths(q.Get("months"))
	if err != nil {
		writeError(w, h.logger, err, "build dues report")
		return
	}
	types, err := parseTypes(q.Get("types"))
	if err != nil {
		writeError(w, h.logger, err, "build dues report")
		return
	}
	memberID, err := parseOptionalID(r, "member_id")
	if err != nil {
		writeError(w, h.logger, err, "build dues report")
		return
	}
	mode, err := report.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, h.logger, err, "build dues report")
		return
	}

	rows, err := h.reports.DuesReport(report.DuesRequest{
		Year:     year,
		Months:   months,
		Types:    types,
		MemberID: memberID,
		Mode:     mode,
	})
	if err != nil {
		writeError(w, h.logger, err, "build dues report")
		return
	}
	if wantsCSV(r) {
		writeCSV(w, h.logger, fmt.Sprintf("dues-%d-%s.csv", year, mode), func(buf *bytes.Buffer) error {
			return report.WriteDuesCSV(buf, rows)
		})
		return
	}
	if rows == nil {
		rows = []report.DuesRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// Attendance serves GET /api/reports/attendance?year=&month=.
func (h *ReportHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.period(r)
	if err != nil {
		writeError(w, h.logger, err, "build attendance report")
		return
	}
	rows, err := h.reports.AttendanceReport(year, month)
	if err != nil {
		writeError(w, h.logger, err, "build attendance report")
		return
	}
	if wantsCSV(r) {
		writeCSV(w, h.logger, fmt.Sprintf("attendance-%d%s.csv", year, monthSuffix(month)), func(buf *bytes.Buffer) error {
			return report.WriteAttendanceCSV(buf, rows, month)
		})
		return
	}
	if rows == nil {
		rows = []report.AttendanceRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// WorkHours serves GET /api/reports/work-hours?year=&month=&member_id=.
func (h *ReportHandler) WorkHours(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.period(r)
	if err != nil {
		writeError(w, h.logger, err, "build work hours report")
		return
	}
	memberID, err := parseOptionalID(r, "member_id")
	if err != nil {
		writeError(w, h.logger, err, "build work hours report")
		return
	}
	rows, err := h.reports.WorkHoursReport(year, month, memberID)
	if err != nil {
		writeError(w, h.logger, err, "build work hours report")
		return
	}
	if wantsCSV(r) {
		writeCSV(w, h.logger, fmt.Sprintf("work-hours-%d%s.csv", year, monthSuffix(month)), func(buf *bytes.Buffer) error {
			return report.WriteWorkHoursCSV(buf, rows)
		})
		return
	}
	if rows == nil {
		rows = []report.WorkHoursRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ReportHandler) year(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return h.settings.DefaultYear()
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, &model.ValidationError{Field: "year", Message: fmt.Sprintf("%q is not a year", v)}
	}
	return year, nil
}

func (h *ReportHandler) period(r *http.Request) (int, int, error) {
	year, err := h.year(r)
	if err != nil {
		return 0, 0, err
	}
	month, err := report.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func monthSuffix(month int) string {
	if month == report.AllMonths {
		return ""
	}
	return fmt.Sprintf("-%02d", month)
}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "csv")
}

// writeCSV renders into a buffer first so a failure can still produce a
// JSON error instead of a truncated download.
func writeCSV(w http.ResponseWriter, logger *slog.Logger, filename string, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		writeError(w, logger, err, "write csv")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
