package util

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

var (
	// ErrInvalidEmail is returned when an email address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidURL indicates that a URL failed validation.
	ErrInvalidURL = errors.New("invalid url")
	// ErrEmptyValue is returned when a required value is blank.
	ErrEmptyValue = errors.New("value is empty")
)

// ValidateEmail checks that value is a bare address (no display name) and
// returns it trimmed. Case is preserved since providers treat the local part
// as opaque.
func ValidateEmail(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidEmail, ErrEmptyValue)
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	// Display names belong in the separate name field.
	if addr.Name != "" || addr.Address != trimmed {
		return "", fmt.Errorf("%w: must not include display name", ErrInvalidEmail)
	}

	return addr.Address, nil
}

// RequireNonBlank returns an error naming field when value is only whitespace.
func RequireNonBlank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: %w", field, ErrEmptyValue)
	}
	return nil
}

// ValidateHTTPURL ensures the provided string is a valid HTTP or HTTPS URL.
func ValidateHTTPURL(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, ErrEmptyValue)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: host is required", ErrInvalidURL)
	}

	return trimmed, nil
}
