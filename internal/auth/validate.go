package auth

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// ValidateUsername checks length and allowed characters.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return errors.New("username must be 3-32 characters of letters, digits, '_', '.' or '-'")
	}
	return nil
}

// ValidateEmail accepts a bare address only.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return errors.New("invalid email address")
	}
	return nil
}

// ValidatePassword enforces the minimum length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
