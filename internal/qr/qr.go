// Package qr exports credentials as otpauth:// URIs and QR codes that
// authenticator apps can scan.
package qr

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/pquerna/otp"
	"github.com/skip2/go-qrcode"
	"github.com/zarlcorp/zotp/internal/credential"
	"github.com/zarlcorp/zotp/internal/refresh"
	"github.com/zarlcorp/zotp/internal/secret"
)

// DefaultIssuer is used when a credential has no name.
const DefaultIssuer = "zotp"

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// URI returns the otpauth URI for c. The secret must be valid Base32.
func URI(c credential.Credential) (string, error) {
	sec, err := secret.Canonical(c.Secret)
	if err != nil {
		return "", fmt.Errorf("qr uri: %w", err)
	}

	issuer := c.Name
	if issuer == "" {
		issuer = DefaultIssuer
	}

	v := url.Values{}
	v.Set("secret", sec)
	v.Set("issuer", issuer)
	v.Set("algorithm", refresh.Algorithm(c.EffectiveAlgorithm()).String())
	v.Set("digits", strconv.Itoa(c.EffectiveDigits()))
	v.Set("period", strconv.Itoa(c.EffectivePeriod()))

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + Label(c),
		RawQuery: v.Encode(),
	}

	// round trip through the otp parser so we never emit a URI an
	// authenticator would reject
	key, err := otp.NewKeyFromURL(u.String())
	if err != nil {
		return "", fmt.Errorf("qr uri: %w", err)
	}
	return key.URL(), nil
}

// Label returns the account label: the name, or a secret prefix when the
// name is empty.
func Label(c credential.Credential) string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.Secret) <= 16 {
		return c.Secret
	}
	return c.Secret[:16] + "..."
}

// Terminal renders uri as a block-character QR code for the terminal.
func Terminal(uri string) (string, error) {
	q, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("qr encode: %w", err)
	}
	return q.ToSmallString(false), nil
}

// PNG renders uri as a PNG image of size pixels.
func PNG(uri string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	b, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return b, nil
}
