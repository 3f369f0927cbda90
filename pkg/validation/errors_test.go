package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Run("no messages", func(t *testing.T) {
		var c Collector
		c.Required("Name", "Sales")
		c.MaxLength("Name", "Sales", 100)
		c.RequiredID("Role", 3)
		c.Check(true, "never recorded")
		assert.NoError(t, c.Err())
	})

	t.Run("collects every failure", func(t *testing.T) {
		var c Collector
		c.Required("Name", "   ")
		c.MaxLength("Email", "ééééé", 4)
		c.RequiredID("Role", 0)
		c.Check(false, "Password must be at least 6 characters")

		err := c.Err()
		require.Error(t, err)

		var verrs Errors
		require.True(t, errors.As(err, &verrs))
		assert.Equal(t, Errors{
			"Name is required",
			"Email must be 4 characters or less",
			"Role is required",
			"Password must be at least 6 characters",
		}, verrs)
		assert.True(t, errors.Is(err, ErrInvalid))
		assert.False(t, errors.Is(err, ErrMalformed))
	})

	t.Run("wrapped errors still match", func(t *testing.T) {
		var c Collector
		c.Add("Name is required")
		err := fmt.Errorf("failed to create role: %w", c.Err())
		assert.True(t, errors.Is(err, ErrInvalid))
		assert.Contains(t, err.Error(), "validation failed: Name is required")
	})
}

func TestMalformed(t *testing.T) {
	err := Malformed("unknown action %q", "archive")
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.False(t, errors.Is(err, ErrInvalid))
	assert.Equal(t, `malformed request: unknown action "archive"`, err.Error())
}

func TestCollector_Email(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"jo@acme.test", true},
		{"first.last+crm@sub.example.com", true},
		{"jo@acme", false},
		{"not-an-email", false},
		{"@acme.test", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			var c Collector
			c.Email("Email", tt.email)
			if tt.valid {
				assert.NoError(t, c.Err())
			} else {
				assert.EqualError(t, c.Err(), "validation failed: Email must be a valid email address")
			}
		})
	}
}
