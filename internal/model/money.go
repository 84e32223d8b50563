package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in integer cents. Arithmetic on report totals is done in
// cents so sums never drift.
type Money int64

// Dollars builds a Money value from whole dollars and cents.
func Dollars(dollars, cents int64) Money {
	return Money(dollars*100 + cents)
}

// ParseMoney parses "150", "150.5", "150.50", "$1,250.00" or "150,50". More
// than two fractional digits are rounded half-up.
func ParseMoney(s string) (Money, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, &ValidationError{Field: "amount", Message: "amount is required"}
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	// "1,250.00" uses the comma as a thousands separator; "150,50" as the decimal mark.
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, &ValidationError{Field: "amount", Message: fmt.Sprintf("invalid amount %q", raw)}
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return 0, &ValidationError{Field: "amount", Message: fmt.Sprintf("invalid amount %q", raw)}
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || whole > math.MaxInt64/100-1 {
		return 0, &ValidationError{Field: "amount", Message: fmt.Sprintf("amount %q out of range", raw)}
	}

	var cents int64
	if len(fracPart) > 0 {
		cents = int64(fracPart[0]-'0') * 10
	}
	if len(fracPart) > 1 {
		cents += int64(fracPart[1] - '0')
	}
	if len(fracPart) > 2 && fracPart[2] >= '5' {
		cents++
	}

	total := whole*100 + cents
	if neg {
		total = -total
	}
	return Money(total), nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Cents returns the raw cent count.
func (m Money) Cents() int64 { return int64(m) }

// Float returns the amount in dollars, for storage in REAL columns and display.
func (m Money) Float() float64 { return float64(m) / 100 }

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Scan implements sql.Scanner. Legacy rows hold amounts as REAL, INTEGER or TEXT.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
		return nil
	case int64:
		*m = Money(v * 100)
		return nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "amount", Message: "amount is not a finite number"}
		}
		*m = Money(math.Round(v * 100))
		return nil
	case string:
		parsed, err := ParseMoney(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case []byte:
		return m.Scan(string(v))
	}
	return fmt.Errorf("cannot scan %T into Money", src)
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.Float(), nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
