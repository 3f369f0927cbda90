package storage

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Flag is a boolean column value. It scans native booleans, integers and their
// textual forms, and always writes a real boolean.
type Flag bool

// Scan implements sql.Scanner.
func (f *Flag) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(v)
	case int64:
		*f = v != 0
	case []byte:
		return f.parse(string(v))
	case string:
		return f.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into Flag", src)
	}
	return nil
}

func (f *Flag) parse(s string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("cannot scan %q into Flag", s)
	}
	*f = Flag(b)
	return nil
}

// Value implements driver.Valuer.
func (f Flag) Value() (driver.Value, error) {
	return bool(f), nil
}

// Bool returns the flag as a plain bool.
func (f Flag) Bool() bool {
	return bool(f)
}
