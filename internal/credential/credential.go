// Package credential holds TOTP credential records and the ordered
// in-memory store the rest of zotp operates on.
package credential

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
)

// Defaults applied when a record or batch carries no usable value.
const (
	DefaultDigits    = 6
	DefaultPeriod    = 30
	DefaultAlgorithm = "SHA1"

	MinDigits = 6
	MaxDigits = 10
)

// Sentinel tokens shown in place of a code.
const (
	TokenInvalidSecret = "invalid secret"
	TokenGenerationErr = "error"
)

// ErrNotCopyable is returned when a token is empty or a sentinel.
var ErrNotCopyable = errors.New("token cannot be copied")

// Credential is one TOTP identity.
type Credential struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Secret    string `json:"secret"`
	Digits    int    `json:"digits"`
	Period    int    `json:"period"`
	Algorithm string `json:"algorithm"`

	// derived on every tick, never persisted
	Token      string `json:"-"`
	UpdatingIn int    `json:"-"`
}

// NewID returns a fresh record id.
func NewID() string {
	return uuid.NewString()
}

// EffectiveDigits returns Digits, or DefaultDigits when out of range.
func (c Credential) EffectiveDigits() int {
	if c.Digits < MinDigits || c.Digits > MaxDigits {
		return DefaultDigits
	}
	return c.Digits
}

// EffectivePeriod returns Period, or DefaultPeriod when not positive.
func (c Credential) EffectivePeriod() int {
	if c.Period <= 0 {
		return DefaultPeriod
	}
	return c.Period
}

// EffectiveAlgorithm returns Algorithm, or DefaultAlgorithm when unset.
func (c Credential) EffectiveAlgorithm() string {
	if c.Algorithm == "" {
		return DefaultAlgorithm
	}
	return c.Algorithm
}

// DisplayName returns the record's name, or "Key N" for the record at
// zero-based index i when the name is empty.
func DisplayName(c Credential, i int) string {
	if c.Name != "" {
		return c.Name
	}
	return FallbackName(i + 1)
}

// FallbackName returns the generated label for the 1-based position n.
func FallbackName(n int) string {
	return "Key " + strconv.Itoa(n)
}

// IsSentinel reports whether token is one of the placeholder values.
func IsSentinel(token string) bool {
	return token == TokenInvalidSecret || token == TokenGenerationErr
}

// CopyableToken returns ErrNotCopyable for empty or sentinel tokens.
func CopyableToken(token string) error {
	if token == "" || IsSentinel(token) {
		return ErrNotCopyable
	}
	return nil
}
