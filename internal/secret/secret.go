// Package secret normalizes and validates Base32 TOTP shared secrets.
//
// Secrets are stored in one canonical form: no whitespace anywhere and
// upper-case letters, so visually different pastes of the same key collapse
// to one stored value.
package secret

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidSecret is returned when a secret is empty or not valid Base32.
var ErrInvalidSecret = errors.New("invalid secret")

// Normalize removes every whitespace character from raw. Case is unchanged.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

// Validate reports whether normalized is a non-empty Base32 string that the
// OTP generator will accept. Padding is optional; when absent the string is
// padded to a multiple of eight before decoding.
func Validate(normalized string) error {
	if normalized == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSecret)
	}

	b, err := Decode(normalized)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return fmt.Errorf("%w: no key bytes", ErrInvalidSecret)
	}

	return nil
}

// Canonical normalizes raw, validates it and returns the stored form.
func Canonical(raw string) (string, error) {
	s := Normalize(raw)
	if err := Validate(s); err != nil {
		return "", err
	}
	return strings.ToUpper(s), nil
}

// Decode returns the key bytes of a normalized secret.
func Decode(normalized string) ([]byte, error) {
	s := strings.ToUpper(normalized)
	if n := len(s) % 8; n != 0 {
		s += strings.Repeat("=", 8-n)
	}

	b, err := base32.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}
	return b, nil
}
