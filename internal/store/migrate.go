package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/zarlcorp/zotp/internal/credential"
	"github.com/zarlcorp/zotp/internal/secret"
)

// Storage keys, oldest first. Each key has exactly one successor.
const (
	KeyV4        = "totpKeys_v4"
	KeyV5_2      = "totpKeys_v5_2_final"
	CanonicalKey = "totpKeys_v5_3_qr"
)

// BackupKey holds the last canonical value that could not be decoded, so
// the next save does not destroy it.
const BackupKey = CanonicalKey + "_corrupt"

// Migration upgrades data stored under From to the shape stored under To.
type Migration struct {
	From    string
	To      string
	Migrate func(data []byte) ([]byte, error)
}

// DefaultMigrations is the historical chain ending at CanonicalKey.
func DefaultMigrations() []Migration {
	return []Migration{
		{From: KeyV4, To: KeyV5_2, Migrate: migrateV4},
		{From: KeyV5_2, To: CanonicalKey, Migrate: migrateV5_2},
	}
}

// validateChain checks that steps link one to the next and end at
// CanonicalKey.
func validateChain(steps []Migration) error {
	for i, s := range steps {
		if s.Migrate == nil {
			return fmt.Errorf("migration %s: no migrate func", s.From)
		}
		if i+1 < len(steps) && s.To != steps[i+1].From {
			return fmt.Errorf("migration %s -> %s is followed by %s", s.From, s.To, steps[i+1].From)
		}
	}
	if len(steps) > 0 && steps[len(steps)-1].To != CanonicalKey {
		return fmt.Errorf("migration chain ends at %s, want %s", steps[len(steps)-1].To, CanonicalKey)
	}
	return nil
}

// v4 stored form values as typed, without ids.
type recordV4 struct {
	Name      string  `json:"name"`
	Secret    string  `json:"secret"`
	Digits    flexInt `json:"digits"`
	Period    flexInt `json:"period"`
	Algorithm string  `json:"algorithm"`
}

// v5.2 added ids and leaked the derived fields into storage.
type recordV5_2 struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name"`
	Secret     string  `json:"secret"`
	Digits     flexInt `json:"digits"`
	Period     flexInt `json:"period"`
	Algorithm  string  `json:"algorithm"`
	Token      string  `json:"token"`
	UpdatingIn flexInt `json:"updatingIn"`
}

// stored is the canonical shape read leniently.
type stored struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Secret    string  `json:"secret"`
	Digits    flexInt `json:"digits"`
	Period    flexInt `json:"period"`
	Algorithm string  `json:"algorithm"`
}

func migrateV4(data []byte) ([]byte, error) {
	var in []recordV4
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyV4, err)
	}

	out := make([]recordV5_2, 0, len(in))
	for _, r := range in {
		out = append(out, recordV5_2{
			Name:      strings.TrimSpace(r.Name),
			Secret:    strings.ToUpper(secret.Normalize(r.Secret)),
			Digits:    r.Digits.or(credential.DefaultDigits),
			Period:    r.Period.or(credential.DefaultPeriod),
			Algorithm: orString(r.Algorithm, credential.DefaultAlgorithm),
		})
	}
	return json.Marshal(out)
}

func migrateV5_2(data []byte) ([]byte, error) {
	var in []recordV5_2
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyV5_2, err)
	}

	out := make([]stored, 0, len(in))
	for _, r := range in {
		out = append(out, stored{
			ID:        r.ID,
			Name:      r.Name,
			Secret:    r.Secret,
			Digits:    r.Digits,
			Period:    r.Period,
			Algorithm: r.Algorithm,
		})
	}
	return json.Marshal(out)
}

// hydrate builds records from canonical data, defaulting every missing
// field and assigning ids where absent or repeated.
func hydrate(data []byte, newID func() string) ([]credential.Credential, error) {
	var in []stored
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode %s: %w", CanonicalKey, err)
	}

	seen := make(map[string]bool, len(in))
	out := make([]credential.Credential, 0, len(in))
	for _, r := range in {
		id := r.ID
		if id == "" || seen[id] {
			id = newID()
		}
		seen[id] = true

		c := credential.Credential{
			ID:        id,
			Name:      r.Name,
			Secret:    strings.ToUpper(secret.Normalize(r.Secret)),
			Digits:    int(r.Digits.or(credential.DefaultDigits)),
			Period:    int(r.Period.or(credential.DefaultPeriod)),
			Algorithm: orString(r.Algorithm, credential.DefaultAlgorithm),
		}
		c.Digits = c.EffectiveDigits()
		c.Period = c.EffectivePeriod()
		out = append(out, c)
	}
	return out, nil
}

// flexInt decodes a JSON number, a numeric string or null. Strings are
// read up to the first non-digit; anything unparseable decodes as zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexInt(leadingInt(s))
		return nil
	}

	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		*f = 0
		return nil
	}
	*f = flexInt(int(n))
	return nil
}

// or returns f, or def when f is not positive.
func (f flexInt) or(def int) flexInt {
	if f <= 0 {
		return flexInt(def)
	}
	return f
}

func leadingInt(s string) int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func orString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
