// Package store persists the credential list to a durable key-value slot
// and reads it back on startup, upgrading data left under any older storage
// key one schema step at a time.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zarlcorp/zotp/internal/credential"
)

var (
	// ErrPersistRead is reported when stored data cannot be read or decoded.
	ErrPersistRead = errors.New("read keys")

	// ErrPersistWrite is returned when the slot store rejects a write.
	ErrPersistWrite = errors.New("save keys")
)

// Notice is a one-off message meant for the user.
type Notice struct {
	Message string
	Err     bool
}

// Manager loads and saves the credential list.
type Manager struct {
	slots  Slots
	steps  []Migration
	log    *slog.Logger
	notify func(Notice)
	newID  func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithNotify sets the sink for user-facing notices.
func WithNotify(fn func(Notice)) Option {
	return func(m *Manager) { m.notify = fn }
}

// WithIDFunc sets the id generator used during hydration.
func WithIDFunc(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// WithMigrations replaces the default migration chain.
func WithMigrations(steps []Migration) Option {
	return func(m *Manager) { m.steps = steps }
}

// NewManager creates a manager over slots. It returns an error only when
// the migration chain is malformed.
func NewManager(slots Slots, opts ...Option) (*Manager, error) {
	m := &Manager{
		slots:  slots,
		steps:  DefaultMigrations(),
		log:    slog.Default(),
		notify: func(Notice) {},
		newID:  credential.NewID,
	}
	for _, o := range opts {
		o(m)
	}

	if err := validateChain(m.steps); err != nil {
		return nil, fmt.Errorf("new manager: %w", err)
	}
	return m, nil
}

// Load returns the stored credentials. It never fails: unreadable data
// yields an empty store and an error notice (an undecodable canonical value
// is first copied to BackupKey), and data found only under an
// older key is migrated, saved under CanonicalKey and removed from the old
// key.
func (m *Manager) Load() *credential.Store {
	raw, ok, err := m.slots.GetItem(CanonicalKey)
	if err != nil {
		return m.readFailed(CanonicalKey, err)
	}
	if ok {
		recs, err := hydrate([]byte(raw), m.newID)
		if err != nil {
			m.backup(raw)
			return m.readFailed(CanonicalKey, err)
		}
		m.log.Debug("keys loaded", "key", CanonicalKey, "count", len(recs))
		return credential.NewStore(recs...)
	}

	// newest older key wins
	for i := len(m.steps) - 1; i >= 0; i-- {
		from := m.steps[i].From
		raw, ok, err := m.slots.GetItem(from)
		if err != nil {
			return m.readFailed(from, err)
		}
		if !ok {
			continue
		}
		return m.migrate(i, []byte(raw))
	}

	return credential.NewStore()
}

// migrate applies steps[i:] to data, then saves under CanonicalKey and
// removes the source key.
func (m *Manager) migrate(i int, data []byte) *credential.Store {
	from := m.steps[i].From

	var err error
	for _, step := range m.steps[i:] {
		data, err = step.Migrate(data)
		if err != nil {
			return m.readFailed(from, fmt.Errorf("migrate %s -> %s: %w", step.From, step.To, err))
		}
		m.log.Debug("migration step applied", "from", step.From, "to", step.To)
	}

	recs, err := hydrate(data, m.newID)
	if err != nil {
		return m.readFailed(from, err)
	}
	s := credential.NewStore(recs...)

	if err := m.Save(s); err != nil {
		// keep the old key so the next start can retry
		return s
	}

	if err := m.slots.RemoveItem(from); err != nil {
		m.log.Error("remove migrated key", "key", from, "err", err)
	}

	m.log.Info("keys migrated", "from", from, "to", CanonicalKey, "count", len(recs))
	m.notify(Notice{Message: fmt.Sprintf("keys migrated from %s", from)})
	return s
}

// backup copies an undecodable canonical value to BackupKey.
func (m *Manager) backup(raw string) {
	if err := m.slots.SetItem(BackupKey, raw); err != nil {
		m.log.Error("back up corrupt keys", "key", BackupKey, "err", err)
		return
	}
	m.log.Warn("corrupt keys backed up", "key", BackupKey, "bytes", len(raw))
}

func (m *Manager) readFailed(key string, err error) *credential.Store {
	err = fmt.Errorf("%w: %s: %w", ErrPersistRead, key, err)
	m.log.Error("load keys", "key", key, "err", err)
	m.notify(Notice{Message: "could not load keys from storage", Err: true})
	return credential.NewStore()
}

// Save writes the persisted fields of every record under CanonicalKey.
// Failures are logged and reported as a notice; the in-memory store is
// untouched either way.
func (m *Manager) Save(s *credential.Store) error {
	data, err := json.Marshal(s.Records())
	if err == nil {
		err = m.slots.SetItem(CanonicalKey, string(data))
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistWrite, err)
		m.log.Error("save keys", "key", CanonicalKey, "err", err)
		m.notify(Notice{Message: "could not save keys; changes may not survive a restart", Err: true})
		return err
	}

	m.log.Debug("keys saved", "key", CanonicalKey, "count", s.Len())
	return nil
}
