package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/clubhouse/internal/model"
)

type WorkHoursStore struct {
	db *sql.DB
}

func NewWorkHoursStore(db *sql.DB) *WorkHoursStore {
	return &WorkHoursStore{db: db}
}

const workHoursCols = `id, member_id, work_date, hours, activity, notes, created_at`

func scanWorkHours(scanner interface{ Scan(...any) error }) (*model.WorkHoursRecord, error) {
	var (
		r           model.WorkHoursRecord
		date, hours any
		createdAt   sql.NullTime
	)
	if err := scanner.Scan(&r.ID, &r.MemberID, &date, &hours, &r.Activity, &r.Notes, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = createdAt.Time
	if err := r.WorkDate.Scan(date); err != nil {
		return nil, &decodeError{id: r.ID, err: fmt.Errorf("work_date: %w", err)}
	}
	h, err := toFloat(hours)
	if err != nil {
		return nil, &decodeError{id: r.ID, err: fmt.Errorf("hours: %w", err)}
	}
	r.Hours = h
	return &r, nil
}

func (s *WorkHoursStore) Create(memberID int64, f model.WorkHoursFields) (*model.WorkHoursRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := requireMember(s.db, memberID); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO work_hours (member_id, work_date, hours, activity, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		memberID, f.WorkDate, f.Hours, f.Activity, f.Notes, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert work hours: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *WorkHoursStore) Update(id int64, f model.WorkHoursFields) (*model.WorkHoursRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`UPDATE work_hours SET work_date = ?, hours = ?, activity = ?, notes = ? WHERE id = ?`,
		f.WorkDate, f.Hours, f.Activity, f.Notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update work hours: %w", err)
	}
	if err := requireAffected(result, "work hours record", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *WorkHoursStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM work_hours WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete work hours: %w", err)
	}
	return requireAffected(result, "work hours record", id)
}

func (s *WorkHoursStore) GetByID(id int64) (*model.WorkHoursRecord, error) {
	row := s.db.QueryRow(`SELECT `+workHoursCols+` FROM work_hours WHERE id = ?`, id)
	r, err := scanWorkHours(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work hours: %w", err)
	}
	return r, nil
}

func (s *WorkHoursStore) ListByMember(memberID int64) ([]model.WorkHoursRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+workHoursCols+` FROM work_hours WHERE member_id = ? ORDER BY work_date DESC, id DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("query work hours: %w", err)
	}
	defer rows.Close()

	malformed := &MalformedRowsError{Table: "work_hours"}
	var records []model.WorkHoursRecord
	for rows.Next() {
		r, err := scanWorkHours(rows)
		if err != nil {
			if err := collect(malformed, err); err != nil {
				return nil, fmt.Errorf("scan work hours: %w", err)
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
