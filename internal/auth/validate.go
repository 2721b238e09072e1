package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// FieldError is a local validation failure tied to one input field. It is
// surfaced inline next to the field and never reaches the network.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateLogin checks the login form before any network call.
func ValidateLogin(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return &FieldError{Field: "email", Reason: "email is required"}
	}
	if !emailPattern.MatchString(normalizeEmail(email)) {
		return &FieldError{Field: "email", Reason: "invalid email format"}
	}
	if password == "" {
		return &FieldError{Field: "password", Reason: "password is required"}
	}
	return nil
}

// ValidateSignup checks the signup form. Password rules mirror what the
// server enforces so the user gets feedback before the round-trip.
func ValidateSignup(email, password, firstName, lastName string) error {
	if strings.TrimSpace(firstName) == "" {
		return &FieldError{Field: "first_name", Reason: "first name is required"}
	}
	if strings.TrimSpace(lastName) == "" {
		return &FieldError{Field: "last_name", Reason: "last name is required"}
	}
	if strings.TrimSpace(email) == "" {
		return &FieldError{Field: "email", Reason: "email is required"}
	}
	if !emailPattern.MatchString(normalizeEmail(email)) {
		return &FieldError{Field: "email", Reason: "invalid email format"}
	}
	return validatePassword(password)
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return &FieldError{Field: "password", Reason: "password must be at least 8 characters long"}
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	switch {
	case !hasUpper:
		return &FieldError{Field: "password", Reason: "password must contain at least one uppercase letter"}
	case !hasLower:
		return &FieldError{Field: "password", Reason: "password must contain at least one lowercase letter"}
	case !hasDigit:
		return &FieldError{Field: "password", Reason: "password must contain at least one digit"}
	}
	return nil
}
