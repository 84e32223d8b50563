package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by write paths when the target row does not exist.
	ErrNotFound = errors.New("no such record")
	// ErrMemberActive is returned when hard-deleting a member that is not in
	// the recycle bin.
	ErrMemberActive = errors.New("member is not deleted")
)

// MalformedRowsError is returned together with the rows that could be decoded
// when some stored rows hold values that no longer parse (for example a text
// amount in a legacy database).
type MalformedRowsError struct {
	Table string
	IDs   []int64
	Errs  []error
}

func (e *MalformedRowsError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s: %d malformed rows (ids %s): %v", e.Table, len(e.IDs), strings.Join(ids, ", "), errors.Join(e.Errs...))
}

func (e *MalformedRowsError) add(id int64, err error) {
	e.IDs = append(e.IDs, id)
	e.Errs = append(e.Errs, err)
}

// orNil returns e as an error only when it recorded something.
func (e *MalformedRowsError) orNil() error {
	if len(e.IDs) == 0 {
		return nil
	}
	return e
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
