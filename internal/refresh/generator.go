package refresh

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrGeneration is returned when a code cannot be generated for a record.
var ErrGeneration = errors.New("generate code")

// Generator produces the TOTP code for a secret at a point in time.
type Generator interface {
	Generate(secret, algorithm string, digits, period int, at time.Time) (string, error)
}

// TOTP generates RFC 6238 codes with github.com/pquerna/otp.
type TOTP struct{}

// Generate returns the code for the window containing at.
func (TOTP) Generate(secret, algorithm string, digits, period int, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    uint(period),
		Skew:      0,
		Digits:    otp.Digits(digits),
		Algorithm: Algorithm(algorithm),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return code, nil
}

// Algorithm maps a stored algorithm name to the otp constant. Unknown names
// map to SHA1.
func Algorithm(name string) otp.Algorithm {
	switch strings.ToUpper(strings.ReplaceAll(name, "-", "")) {
	case "SHA256":
		return otp.AlgorithmSHA256
	case "SHA512":
		return otp.AlgorithmSHA512
	case "MD5":
		return otp.AlgorithmMD5
	default:
		return otp.AlgorithmSHA1
	}
}

// Fit returns code as exactly digits characters: longer codes keep their
// trailing digits, shorter ones are left-padded with zeros.
func Fit(code string, digits int) string {
	if len(code) > digits {
		return code[len(code)-digits:]
	}
	if len(code) < digits {
		return strings.Repeat("0", digits-len(code)) + code
	}
	return code
}
