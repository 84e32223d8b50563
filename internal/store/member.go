package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/clubhouse/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

// MemberFilter narrows List. The zero value lists every member, deleted or not.
type MemberFilter struct {
	ActiveOnly  bool
	DeletedOnly bool
	Types       []model.MembershipType
	// Search matches name, badge, card or email fragments.
	Search string
}

const memberCols = `id, badge_number, membership_type, first_name, last_name, dob, email, email2, phone,
	address, city, state, zip, join_date, sponsor, card_internal, card_external, deleted, created_at, updated_at`

const memberOrder = ` ORDER BY last_name COLLATE NOCASE ASC, first_name COLLATE NOCASE ASC, id ASC`

// scanMember reads one member row. A dob or join_date that no longer parses
// leaves the date zero and keeps the stored text in Unreadable, so one legacy
// row cannot fail a whole listing.
func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var (
		m             model.Member
		dob, joinDate any
	)
	err := scanner.Scan(
		&m.ID, &m.BadgeNumber, &m.MembershipType, &m.FirstName, &m.LastName, &dob,
		&m.Email, &m.Email2, &m.Phone, &m.Address, &m.City, &m.State, &m.Zip,
		&joinDate, &m.Sponsor, &m.CardInternal, &m.CardExternal, &m.Deleted,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	scanMemberDate(&m, "dob", &m.DOB, dob)
	scanMemberDate(&m, "join_date", &m.JoinDate, joinDate)
	return &m, nil
}

func scanMemberDate(m *model.Member, column string, dst *model.Date, src any) {
	if err := dst.Scan(src); err == nil {
		return
	}
	*dst = model.Date{}
	if m.Unreadable == nil {
		m.Unreadable = make(map[string]string)
	}
	switch v := src.(type) {
	case []byte:
		m.Unreadable[column] = string(v)
	case string:
		m.Unreadable[column] = v
	default:
		m.Unreadable[column] = fmt.Sprint(v)
	}
}

func (s *MemberStore) Create(f model.MemberFields) (*model.Member, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO members (badge_number, membership_type, first_name, last_name, dob, email, email2, phone,
			address, city, state, zip, join_date, sponsor, card_internal, card_external, deleted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		f.BadgeNumber, f.MembershipType, f.FirstName, f.LastName, f.DOB, f.Email, f.Email2, f.Phone,
		f.Address, f.City, f.State, f.Zip, f.JoinDate, f.Sponsor, f.CardInternal, f.CardExternal, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *MemberStore) Update(id int64, f model.MemberFields) (*model.Member, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`UPDATE members SET badge_number = ?, membership_type = ?, first_name = ?, last_name = ?, dob = ?,
			email = ?, email2 = ?, phone = ?, address = ?, city = ?, state = ?, zip = ?, join_date = ?,
			sponsor = ?, card_internal = ?, card_external = ?, updated_at = ?
		 WHERE id = ?`,
		f.BadgeNumber, f.MembershipType, f.FirstName, f.LastName, f.DOB, f.Email, f.Email2, f.Phone,
		f.Address, f.City, f.State, f.Zip, f.JoinDate, f.Sponsor, f.CardInternal, f.CardExternal,
		time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	if err := requireAffected(result, "member", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// GetByID returns the member whatever its deleted state, or nil if absent.
func (s *MemberStore) GetByID(id int64) (*model.Member, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) ListActive() ([]model.Member, error) {
	return s.List(MemberFilter{ActiveOnly: true})
}

// ListDeleted returns the recycle bin.
func (s *MemberStore) ListDeleted() ([]model.Member, error) {
	return s.List(MemberFilter{DeletedOnly: true})
}

// List returns members ordered by last name, then first name.
func (s *MemberStore) List(filter MemberFilter) ([]model.Member, error) {
	var (
		where []string
		args  []any
	)
	switch {
	case filter.ActiveOnly:
		where = append(where, "deleted = 0")
	case filter.DeletedOnly:
		where = append(where, "deleted = 1")
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		where = append(where, "membership_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		like := "%" + escapeLike(q) + "%"
		where = append(where, `(first_name LIKE ? ESCAPE '\' OR last_name LIKE ? ESCAPE '\' OR badge_number LIKE ? ESCAPE '\'
			OR card_internal LIKE ? ESCAPE '\' OR card_external LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`)
		for range 6 {
			args = append(args, like)
		}
	}

	query := `SELECT ` + memberCols + ` FROM members`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += memberOrder

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// FindByBadge returns the first active member with the badge, or nil. Badges
// are not unique; callers that key on them must enforce that themselves.
func (s *MemberStore) FindByBadge(badge string) (*model.Member, error) {
	return s.findActiveBy("badge_number", badge)
}

// FindByCard matches either card identifier.
func (s *MemberStore) FindByCard(card string) (*model.Member, error) {
	card = strings.TrimSpace(card)
	if card == "" {
		return nil, nil
	}
	row := s.db.QueryRow(
		`SELECT `+memberCols+` FROM members WHERE deleted = 0 AND (card_internal = ? OR card_external = ?) ORDER BY id LIMIT 1`,
		card, card,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find member by card: %w", err)
	}
	return m, nil
}

func (s *MemberStore) findActiveBy(column, value string) (*model.Member, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	row := s.db.QueryRow(
		`SELECT `+memberCols+` FROM members WHERE deleted = 0 AND `+column+` = ? ORDER BY id LIMIT 1`,
		value,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find member by %s: %w", column, err)
	}
	return m, nil
}

// SoftDelete moves the member to the recycle bin. Ledger rows are kept.
func (s *MemberStore) SoftDelete(id int64) error {
	result, err := s.db.Exec(`UPDATE members SET deleted = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete member: %w", err)
	}
	return requireAffected(result, "member", id)
}

// Restore takes the member out of the recycle bin. Restoring an active member
// succeeds without changing anything.
func (s *MemberStore) Restore(id int64) error {
	var deleted bool
	err := s.db.QueryRow(`SELECT deleted FROM members WHERE id = ?`, id).Scan(&deleted)
	if err == sql.ErrNoRows {
		return fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query member: %w", err)
	}
	if !deleted {
		return nil
	}

	if _, err := s.db.Exec(`UPDATE members SET deleted = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("restore member: %w", err)
	}
	return nil
}

// HardDelete permanently removes a member from the recycle bin together with
// every dues, attendance and work-hours row that references it.
func (s *MemberStore) HardDelete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var deleted bool
	err = tx.QueryRow(`SELECT deleted FROM members WHERE id = ?`, id).Scan(&deleted)
	if err == sql.ErrNoRows {
		return fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query member: %w", err)
	}
	if !deleted {
		return fmt.Errorf("member %d: %w", id, ErrMemberActive)
	}

	for _, table := range []string{"dues", "attendance", "work_hours"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE member_id = ?`, id); err != nil {
			return fmt.Errorf("delete %s for member: %w", table, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM members WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}

	return tx.Commit()
}

// Exists reports whether a member row with the id exists, deleted or not.
func (s *MemberStore) Exists(id int64) (bool, error) {
	return memberExists(s.db, id)
}

func memberExists(db *sql.DB, id int64) (bool, error) {
	var exists bool
	if err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM members WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check member exists: %w", err)
	}
	return exists, nil
}

func requireAffected(result sql.Result, what string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
