// Package batch turns free-form pasted text into validated credential
// records, one candidate per line.
//
// Each trimmed, non-blank line is split into a name and a secret: on the
// first tab if there is one, otherwise on the first colon, otherwise the
// whole line is the secret. Lines whose secret fails validation are counted
// and logged; they never abort the batch.
package batch

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zarlcorp/zotp/internal/credential"
	"github.com/zarlcorp/zotp/internal/secret"
)

// Defaults are the digits and period given to every record in a batch.
type Defaults struct {
	Digits int
	Period int
}

// ParseDefaults converts raw form values, falling back to 6 digits and a
// 30 second period independently when a value is missing or unusable.
func ParseDefaults(digits, period string) Defaults {
	return Defaults{
		Digits: atoiOr(digits, credential.DefaultDigits),
		Period: atoiOr(period, credential.DefaultPeriod),
	}.normalized()
}

func (d Defaults) normalized() Defaults {
	c := credential.Credential{Digits: d.Digits, Period: d.Period}
	return Defaults{Digits: c.EffectiveDigits(), Period: c.EffectivePeriod()}
}

// Options configure a Parse call.
type Options struct {
	Defaults Defaults

	// Existing is the number of records already in the store; generated
	// names continue numbering after it.
	Existing int

	// NewID returns a fresh record id. Defaults to credential.NewID.
	NewID func() string

	Logger *slog.Logger
}

// LineError describes one rejected line.
type LineError struct {
	Line int // 1-based
	Raw  string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Raw, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// Result is the outcome of parsing one batch.
type Result struct {
	Records  []credential.Credential
	Added    int
	Failed   int
	Failures []LineError

	// Blank is true when the whole input was empty or whitespace.
	Blank bool
}

// Summary returns the user-facing message for the batch, or "" for a blank
// submission.
func (r Result) Summary() string {
	if r.Blank {
		return ""
	}

	var parts []string
	if r.Added > 0 {
		parts = append(parts, fmt.Sprintf("added %d", r.Added))
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	if len(parts) == 0 {
		return "no valid keys added"
	}
	return strings.Join(parts, ", ")
}

// IsError reports whether the summary should be shown as an error: lines
// failed and nothing was added.
func (r Result) IsError() bool {
	return r.Added == 0 && !r.Blank
}

// Parse splits text into credential records. It never mutates a store.
func Parse(text string, opts Options) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Blank: true}
	}

	newID := opts.NewID
	if newID == nil {
		newID = credential.NewID
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	defaults := opts.Defaults.normalized()

	var res Result
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		name, raw := Split(trimmed)
		sec, err := secret.Canonical(raw)
		if err != nil {
			le := LineError{Line: i + 1, Raw: line, Err: err}
			res.Failures = append(res.Failures, le)
			res.Failed++
			log.Warn("batch add: line rejected", "line", le.Line, "raw", le.Raw, "err", err)
			continue
		}

		if name == "" {
			name = credential.FallbackName(opts.Existing + len(res.Records) + 1)
		}

		res.Records = append(res.Records, credential.Credential{
			ID:        newID(),
			Name:      name,
			Secret:    sec,
			Digits:    defaults.Digits,
			Period:    defaults.Period,
			Algorithm: credential.DefaultAlgorithm,
		})
	}

	res.Added = len(res.Records)
	return res
}

// Split separates a trimmed line into a name and a raw secret. A tab wins
// over a colon; only the first separator splits, so the secret part keeps
// any later ones.
func Split(line string) (name, raw string) {
	sep := ""
	switch {
	case strings.Contains(line, "\t"):
		sep = "\t"
	case strings.Contains(line, ":"):
		sep = ":"
	default:
		return "", line
	}

	name, raw, _ = strings.Cut(line, sep)
	return strings.TrimSpace(name), strings.TrimSpace(raw)
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
