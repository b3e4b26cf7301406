package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "fixit2024", false},
		{"Exactly Min Length", "abcdefg1", false},
		{"Exactly Max Length", strings.Repeat("a", 127) + "1", false},
		{"Too Short", "abc123", true},
		{"Too Long", strings.Repeat("a", 128) + "1", true},
		{"No Digit", "onlyletters", true},
		{"No Letter", "1234567890", true},
		{"Unicode Letters", "Ångström99", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{"Valid", "test_user123", nil},
		{"Dashes Allowed Anywhere", "-fixer-", nil},
		{"Exactly Three", "abc", nil},
		{"Exactly Thirty", strings.Repeat("a", 30), nil},
		{"Too Short", "tu", ErrUsernameTooShort},
		{"Too Long", strings.Repeat("a", 31), ErrUsernameTooLong},
		{"Illegal Chars", "user@123", ErrUsernameCharset},
		{"Space", "fix it", ErrUsernameCharset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestUsernameMessages(t *testing.T) {
	assert.EqualError(t, ErrUsernameTooShort, "Username must be at least 3 characters")
	assert.EqualError(t, ErrUsernameTooLong, "Username must not exceed 30 characters")
	assert.EqualError(t, ErrUsernameCharset, "Username can only contain letters, numbers, underscores and hyphens")
}

func TestNormalizeUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"jane.doe", "jane_doe"},
		{"bob", "bob"},
		{"x", "x__"},
		{"+tag+", "tag"},
		{"müller", "m_ller"},
		{strings.Repeat("z", 40), strings.Repeat("z", 30)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeUsername(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, ValidateUsername(got))
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	valid := []string{"user@example.com", "first.last+tag@sub.example.io"}
	invalid := []string{"", "plainaddress", "user@localhost", "Name <user@example.com>", strings.Repeat("a", 250) + "@x.com"}

	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}
	for _, email := range invalid {
		assert.Error(t, ValidateEmail(email), email)
	}
}
