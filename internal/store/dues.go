package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/clubhouse/internal/model"
)

type DuesStore struct {
	db *sql.DB
}

func NewDuesStore(db *sql.DB) *DuesStore {
	return &DuesStore{db: db}
}

const duesCols = `id, member_id, amount, payment_date, method, notes, created_at`

func scanDues(scanner interface{ Scan(...any) error }) (*model.DuesPayment, error) {
	var (
		p            model.DuesPayment
		amount, date any
		createdAt    sql.NullTime
	)
	if err := scanner.Scan(&p.ID, &p.MemberID, &amount, &date, &p.Method, &p.Notes, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = createdAt.Time
	if err := p.Amount.Scan(amount); err != nil {
		return nil, &decodeError{id: p.ID, err: fmt.Errorf("amount: %w", err)}
	}
	if err := p.PaymentDate.Scan(date); err != nil {
		return nil, &decodeError{id: p.ID, err: fmt.Errorf("payment_date: %w", err)}
	}
	return &p, nil
}

func (s *DuesStore) Create(memberID int64, f model.DuesFields) (*model.DuesPayment, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := requireMember(s.db, memberID); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO dues (member_id, amount, payment_date, method, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		memberID, f.Amount, f.PaymentDate, f.Method, f.Notes, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert dues: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *DuesStore) Update(id int64, f model.DuesFields) (*model.DuesPayment, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`UPDATE dues SET amount = ?, payment_date = ?, method = ?, notes = ? WHERE id = ?`,
		f.Amount, f.PaymentDate, f.Method, f.Notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update dues: %w", err)
	}
	if err := requireAffected(result, "dues payment", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *DuesStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM dues WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete dues: %w", err)
	}
	return requireAffected(result, "dues payment", id)
}

func (s *DuesStore) GetByID(id int64) (*model.DuesPayment, error) {
	row := s.db.QueryRow(`SELECT `+duesCols+` FROM dues WHERE id = ?`, id)
	p, err := scanDues(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dues: %w", err)
	}
	return p, nil
}

// ListByMember returns the member's payments, newest first. Rows whose stored
// values no longer decode are left out and reported as a *MalformedRowsError
// next to the rows that did.
func (s *DuesStore) ListByMember(memberID int64) ([]model.DuesPayment, error) {
	rows, err := s.db.Query(
		`SELECT `+duesCols+` FROM dues WHERE member_id = ? ORDER BY payment_date DESC, id DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("query dues: %w", err)
	}
	defer rows.Close()

	malformed := &MalformedRowsError{Table: "dues"}
	var payments []model.DuesPayment
	for rows.Next() {
		p, err := scanDues(rows)
		if err != nil {
			if err := collect(malformed, err); err != nil {
				return nil, fmt.Errorf("scan dues: %w", err)
			}
			continue
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, malformed.orNil()
}
