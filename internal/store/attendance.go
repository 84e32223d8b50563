package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/clubhouse/internal/model"
)

type AttendanceStore struct {
	db *sql.DB
}

func NewAttendanceStore(db *sql.DB) *AttendanceStore {
	return &AttendanceStore{db: db}
}

const attendanceCols = `id, member_id, meeting_date, status, notes, created_at`

func scanAttendance(scanner interface{ Scan(...any) error }) (*model.AttendanceRecord, error) {
	var (
		r         model.AttendanceRecord
		date      any
		status    string
		createdAt sql.NullTime
	)
	if err := scanner.Scan(&r.ID, &r.MemberID, &date, &status, &r.Notes, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = createdAt.Time
	if err := r.MeetingDate.Scan(date); err != nil {
		return nil, &decodeError{id: r.ID, err: fmt.Errorf("meeting_date: %w", err)}
	}
	parsed, err := model.ParseAttendanceStatus(status)
	if err != nil {
		return nil, &decodeError{id: r.ID, err: err}
	}
	r.Status = parsed
	return &r, nil
}

func (s *AttendanceStore) Create(memberID int64, f model.AttendanceFields) (*model.AttendanceRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := requireMember(s.db, memberID); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO attendance (member_id, meeting_date, status, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		memberID, f.MeetingDate, f.Status, f.Notes, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *AttendanceStore) Update(id int64, f model.AttendanceFields) (*model.AttendanceRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`UPDATE attendance SET meeting_date = ?, status = ?, notes = ? WHERE id = ?`,
		f.MeetingDate, f.Status, f.Notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update attendance: %w", err)
	}
	if err := requireAffected(result, "attendance record", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *AttendanceStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM attendance WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return requireAffected(result, "attendance record", id)
}

func (s *AttendanceStore) GetByID(id int64) (*model.AttendanceRecord, error) {
	row := s.db.QueryRow(`SELECT `+attendanceCols+` FROM attendance WHERE id = ?`, id)
	r, err := scanAttendance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return r, nil
}

// ListByMember returns the member's records, newest meeting first.
func (s *AttendanceStore) ListByMember(memberID int64) ([]model.AttendanceRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+attendanceCols+` FROM attendance WHERE member_id = ? ORDER BY meeting_date DESC, id DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	malformed := &MalformedRowsError{Table: "attendance"}
	var records []model.AttendanceRecord
	for rows.Next() {
		r, err := scanAttendance(rows)
		if err != nil {
			if err := collect(malformed, err); err != nil {
				return nil, fmt.Errorf("scan attendance: %w", err)
			}
			continue
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, malformed.orNil()
}
