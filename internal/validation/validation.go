// Package validation provides input validation utilities
package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 30

	PasswordMinLength = 8
	PasswordMaxLength = 128

	emailMaxLength = 254
)

var (
	ErrUsernameTooShort = errors.New("Username must be at least 3 characters")
	ErrUsernameTooLong  = errors.New("Username must not exceed 30 characters")
	ErrUsernameCharset  = errors.New("Username can only contain letters, numbers, underscores and hyphens")
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateUsername checks a username that has already been trimmed.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < UsernameMinLength {
		return ErrUsernameTooShort
	}
	if n > UsernameMaxLength {
		return ErrUsernameTooLong
	}
	if !usernameRegex.MatchString(username) {
		return ErrUsernameCharset
	}
	return nil
}

// NormalizeUsername turns arbitrary text (typically an email local part)
// into a candidate username: disallowed characters become underscores,
// the result is truncated to the maximum length and padded when short.
func NormalizeUsername(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	name := strings.Trim(b.String(), "_")
	if len(name) > UsernameMaxLength {
		name = name[:UsernameMaxLength]
	}
	for len(name) < UsernameMinLength {
		name += "_"
	}
	return name
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("Email is required")
	}
	if len(email) > emailMaxLength {
		return errors.New("Email must not exceed 254 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@'):], ".") {
		return errors.New("Please enter a valid email address")
	}
	return nil
}

// ValidatePassword checks if a password meets the account requirements
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return errors.New("Password must be at least 8 characters")
	}
	if len(password) > PasswordMaxLength {
		return errors.New("Password must not exceed 128 characters")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return errors.New("Password must contain at least one letter and one number")
	}
	return nil
}
