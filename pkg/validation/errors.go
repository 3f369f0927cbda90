package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalid matches every aggregate validation failure.
	ErrInvalid = errors.New("validation failed")

	// ErrMalformed marks structurally broken requests (missing identifiers, unknown
	// action keywords). It is distinct from a business-rule denial.
	ErrMalformed = errors.New("malformed request")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Errors is an aggregate of human-readable validation messages
type Errors []string

// Error joins all messages
func (e Errors) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(e, ", "))
}

// Is makes errors.Is(err, ErrInvalid) hold for any Errors value
func (e Errors) Is(target error) bool {
	return target == ErrInvalid
}

// Malformed returns an error wrapping ErrMalformed
func Malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Collector accumulates validation messages instead of failing on the first one
type Collector struct {
	errs Errors
}

// Add records a message
func (c *Collector) Add(message string) {
	c.errs = append(c.errs, message)
}

// Addf records a formatted message
func (c *Collector) Addf(format string, args ...interface{}) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

// Check records message when ok is false
func (c *Collector) Check(ok bool, message string) {
	if !ok {
		c.Add(message)
	}
}

// Required records "<field> is required" for blank values
func (c *Collector) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		c.Addf("%s is required", field)
		return false
	}
	return true
}

// MaxLength records a message when value is longer than max characters
func (c *Collector) MaxLength(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		c.Addf("%s must be %d characters or less", field, max)
	}
}

// Email records a message when value is not an email address
func (c *Collector) Email(field, value string) {
	if !emailRegex.MatchString(value) {
		c.Addf("%s must be a valid email address", field)
	}
}

// RequiredID records "<field> is required" for non-positive identifiers
func (c *Collector) RequiredID(field string, id int64) {
	if id <= 0 {
		c.Addf("%s is required", field)
	}
}

// Err returns the aggregate error or nil when nothing was collected
func (c *Collector) Err() error {
	if len(c.errs) == 0 {
		return nil
	}
	out := make(Errors, len(c.errs))
	copy(out, c.errs)
	return out
}
