package credential

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/zarlcorp/core/pkg/zfilesystem"
	"github.com/zarlcorp/core/pkg/zstore"
)

func openTestStore(t *testing.T) *zstore.Store {
	t.Helper()
	fs := zfilesystem.NewMemFS()
	s, err := zstore.Open(fs, []byte("testpass"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCredential(id, name string) Credential {
	return Credential{
		ID:        id,
		Name:      name,
		Secret:    "JBSWY3DPEHPK3PXP",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	s := openTestStore(t)
	col, err := zstore.NewCollection[Credential](s, "credentials")
	if err != nil {
		t.Fatalf("new collection: %v", err)
	}

	want := testCredential("cred-001", "work")
	want.Token = "123456"
	want.UpdatingIn = 17

	if err := col.Put(want.ID, want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := col.Get("cred-001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	want.Token, want.UpdatingIn = "", 0
	assertCredentialEqual(t, want, got)
}

func TestCredentialJSONOmitsDerivedFields(t *testing.T) {
	c := testCredential("cred-001", "work")
	c.Token = "123456"
	c.UpdatingIn = 12

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	s := string(data)
	for _, field := range []string{"token", "Token", "updatingIn", "UpdatingIn", "123456"} {
		if strings.Contains(s, field) {
			t.Errorf("json %s should not contain %q", s, field)
		}
	}
	for _, field := range []string{`"id"`, `"name"`, `"secret"`, `"digits"`, `"period"`, `"algorithm"`} {
		if !strings.Contains(s, field) {
			t.Errorf("json %s missing %s", s, field)
		}
	}
}

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewID()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("NewID() = %q, not a uuid: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("duplicate ID: %s", id)
		}
		seen[id] = true
	}
}

func TestEffectiveValues(t *testing.T) {
	tests := []struct {
		name      string
		c         Credential
		digits    int
		period    int
		algorithm string
	}{
		{"set", Credential{Digits: 8, Period: 60, Algorithm: "SHA256"}, 8, 60, "SHA256"},
		{"zero", Credential{}, 6, 30, "SHA1"},
		{"digits too small", Credential{Digits: 4}, 6, 30, "SHA1"},
		{"digits too large", Credential{Digits: 11}, 6, 30, "SHA1"},
		{"ten digits", Credential{Digits: 10}, 10, 30, "SHA1"},
		{"negative period", Credential{Period: -5}, 6, 30, "SHA1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.EffectiveDigits(); got != tt.digits {
				t.Errorf("EffectiveDigits = %d, want %d", got, tt.digits)
			}
			if got := tt.c.EffectivePeriod(); got != tt.period {
				t.Errorf("EffectivePeriod = %d, want %d", got, tt.period)
			}
			if got := tt.c.EffectiveAlgorithm(); got != tt.algorithm {
				t.Errorf("EffectiveAlgorithm = %q, want %q", got, tt.algorithm)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName(Credential{Name: "work"}, 4); got != "work" {
		t.Errorf("named: got %q", got)
	}
	if got := DisplayName(Credential{}, 0); got != "Key 1" {
		t.Errorf("unnamed first: got %q, want Key 1", got)
	}
	if got := DisplayName(Credential{}, 2); got != "Key 3" {
		t.Errorf("unnamed third: got %q, want Key 3", got)
	}
}

func TestCopyableToken(t *testing.T) {
	tests := []struct {
		token string
		ok    bool
	}{
		{"123456", true},
		{"0012345678", true},
		{"", false},
		{TokenInvalidSecret, false},
		{TokenGenerationErr, false},
	}

	for _, tt := range tests {
		err := CopyableToken(tt.token)
		if tt.ok && err != nil {
			t.Errorf("CopyableToken(%q) = %v, want nil", tt.token, err)
		}
		if !tt.ok && !errors.Is(err, ErrNotCopyable) {
			t.Errorf("CopyableToken(%q) = %v, want ErrNotCopyable", tt.token, err)
		}
	}
}

func assertCredentialEqual(t *testing.T, want, got Credential) {
	t.Helper()

	checks := []struct {
		field     string
		got, want any
	}{
		{"ID", got.ID, want.ID},
		{"Name", got.Name, want.Name},
		{"Secret", got.Secret, want.Secret},
		{"Digits", got.Digits, want.Digits},
		{"Period", got.Period, want.Period},
		{"Algorithm", got.Algorithm, want.Algorithm},
		{"Token", got.Token, want.Token},
		{"UpdatingIn", got.UpdatingIn, want.UpdatingIn},
	}

	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.field, c.got, c.want)
		}
	}
}
