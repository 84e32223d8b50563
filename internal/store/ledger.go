package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// requireMember returns a wrapped ErrNotFound when no member row has the id.
// Soft-deleted members still own their ledger.
func requireMember(db *sql.DB, memberID int64) error {
	ok, err := memberExists(db, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}
	return nil
}

func toFloat(src any) (float64, error) {
	switch v := src.(type) {
	case nil:
		return 0, nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case []byte:
		return toFloat(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse number %q: %w", v, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported number type %T", src)
	}
}

// decodeError marks a row that was read but holds a value that no longer
// decodes, such as a text amount in an old database.
type decodeError struct {
	id  int64
	err error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("row %d: %v", e.id, e.err)
}

func (e *decodeError) Unwrap() error { return e.err }

// collect sorts a scan error into the malformed set, returning it only when
// the whole listing must fail.
func collect(malformed *MalformedRowsError, err error) error {
	var de *decodeError
	if errors.As(err, &de) {
		malformed.add(de.id, de.err)
		return nil
	}
	return err
}
