// Package vault composes the credential store, the batch parser, the
// refresh scheduler and persistence into the operations the front ends
// call. Every mutation that changes a persisted field is followed by a save.
package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zarlcorp/zotp/internal/batch"
	"github.com/zarlcorp/zotp/internal/credential"
	"github.com/zarlcorp/zotp/internal/refresh"
	"github.com/zarlcorp/zotp/internal/store"
)

// ErrNotConfirmed is returned by Clear when the caller did not confirm.
var ErrNotConfirmed = errors.New("clear not confirmed")

// Persister loads and saves the credential list.
type Persister interface {
	Load() *credential.Store
	Save(s *credential.Store) error
}

// Clipboard receives codes to copy.
type Clipboard interface {
	WriteAll(text string) error
}

// Vault is the credential vault. It is not safe for concurrent use; call it
// from one goroutine.
type Vault struct {
	store    *credential.Store
	persist  Persister
	gen      refresh.Generator
	log      *slog.Logger
	clock    func() time.Time
	defaults batch.Defaults
	newID    func() string

	notices []store.Notice
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) { v.log = l }
}

// WithClock sets the time source for ticks that follow mutations.
func WithClock(c func() time.Time) Option {
	return func(v *Vault) { v.clock = c }
}

// WithDefaults sets the digits and period given to batch-added records.
func WithDefaults(d batch.Defaults) Option {
	return func(v *Vault) { v.defaults = d }
}

// WithIDFunc sets the id generator for new records.
func WithIDFunc(fn func() string) Option {
	return func(v *Vault) { v.newID = fn }
}

// New creates a vault over an already loaded store.
func New(s *credential.Store, p Persister, gen refresh.Generator, opts ...Option) *Vault {
	v := &Vault{
		store:    s,
		persist:  p,
		gen:      gen,
		log:      slog.Default(),
		clock:    time.Now,
		defaults: batch.Defaults{Digits: credential.DefaultDigits, Period: credential.DefaultPeriod},
		newID:    credential.NewID,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Open loads the credential list from slots, queueing any load or
// migration notices, and runs the first tick.
func Open(slots store.Slots, gen refresh.Generator, opts ...Option) (*Vault, error) {
	v := New(credential.NewStore(), nil, gen, opts...)

	m, err := store.NewManager(slots,
		store.WithLogger(v.log),
		store.WithNotify(v.Notify),
		store.WithIDFunc(v.newID),
	)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}

	v.persist = m
	v.store = m.Load()
	v.Tick(v.clock())
	return v, nil
}

// Records returns the records with their latest tokens, in display order.
func (v *Vault) Records() []credential.Credential {
	return v.store.Records()
}

// Len returns the number of records.
func (v *Vault) Len() int {
	return v.store.Len()
}

// Get returns the record with the given id.
func (v *Vault) Get(id string) (credential.Credential, bool) {
	return v.store.Get(id)
}

// Defaults returns the batch defaults.
func (v *Vault) Defaults() batch.Defaults {
	return v.defaults
}

// SetDefaults parses raw digits and period values for later batches.
func (v *Vault) SetDefaults(digits, period string) {
	v.defaults = batch.ParseDefaults(digits, period)
}

// Tick recomputes every token and countdown at now.
func (v *Vault) Tick(now time.Time) {
	refresh.Refresh(v.store, v.gen, now, v.log)
}

// AddBatch parses text, appends the valid records, saves and ticks. A
// blank submission changes nothing and produces no notice.
func (v *Vault) AddBatch(text string) batch.Result {
	res := batch.Parse(text, batch.Options{
		Defaults: v.defaults,
		Existing: v.store.Len(),
		NewID:    v.newID,
		Logger:   v.log,
	})
	if res.Blank {
		return res
	}

	if res.Added > 0 {
		v.store.Append(res.Records...)
		v.save()
		v.Tick(v.clock())
		v.log.Info("keys added", "added", res.Added, "failed", res.Failed)
	}

	v.Notify(store.Notice{Message: res.Summary(), Err: res.IsError()})
	return res
}

// Rename sets the trimmed name of a record and saves.
func (v *Vault) Rename(id, name string) error {
	if err := v.store.Rename(id, name); err != nil {
		return fmt.Errorf("rename %s: %w", id, err)
	}
	v.save()
	return nil
}

// BeginRename starts an inline rename, committing and saving any other
// rename in progress. It returns the initial edit buffer.
func (v *Vault) BeginRename(id string) (string, error) {
	buf, committed, err := v.store.BeginRename(id)
	if err != nil {
		return "", fmt.Errorf("rename %s: %w", id, err)
	}
	if committed {
		v.save()
	}
	return buf, nil
}

// SetRenameBuffer updates the in-progress rename value.
func (v *Vault) SetRenameBuffer(s string) {
	v.store.SetRenameBuffer(s)
}

// CommitRename applies the in-progress rename and saves if it changed.
func (v *Vault) CommitRename() {
	if v.store.CommitRename() {
		v.save()
	}
}

// CancelRename drops the in-progress rename.
func (v *Vault) CancelRename() {
	v.store.CancelRename()
}

// Renaming returns the id of the record being renamed, if any.
func (v *Vault) Renaming() (string, bool) {
	return v.store.Renaming()
}

// Remove deletes one record and saves.
func (v *Vault) Remove(id string) error {
	idx := v.index(id)
	c, err := v.store.Remove(id)
	if err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	v.save()

	v.Notify(store.Notice{Message: fmt.Sprintf("key %q deleted", credential.DisplayName(c, idx))})
	return nil
}

// Clear removes every record and saves. Nothing happens unless confirmed.
func (v *Vault) Clear(confirmed bool) (int, error) {
	if !confirmed {
		return 0, ErrNotConfirmed
	}

	n := v.store.Clear()
	v.save()
	v.Notify(store.Notice{Message: "all keys cleared"})
	return n, nil
}

// Copy hands the current code of a record to the clipboard.
func (v *Vault) Copy(id string, cb Clipboard) (string, error) {
	c, ok := v.store.Get(id)
	if !ok {
		return "", fmt.Errorf("copy %s: %w", id, credential.ErrNotFound)
	}
	if err := credential.CopyableToken(c.Token); err != nil {
		return "", fmt.Errorf("copy %s: %w", id, err)
	}
	if err := cb.WriteAll(c.Token); err != nil {
		return "", fmt.Errorf("copy %s: %w", id, err)
	}
	return c.Token, nil
}

// Notify queues a user-facing notice.
func (v *Vault) Notify(n store.Notice) {
	if n.Message == "" {
		return
	}
	v.notices = append(v.notices, n)
}

// Notices returns and clears the queued notices.
func (v *Vault) Notices() []store.Notice {
	out := v.notices
	v.notices = nil
	return out
}

func (v *Vault) save() {
	// failures are logged and queued as a notice by the persister
	_ = v.persist.Save(v.store)
}

func (v *Vault) index(id string) int {
	for i, c := range v.store.Records() {
		if c.ID == id {
			return i
		}
	}
	return -1
}
