package credential

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("credential not found")

// Store is the ordered list of credentials. Insertion order is display
// order. At most one record is being renamed at a time.
//
// Store has no locking; zotp runs every mutation and every tick on one
// goroutine.
type Store struct {
	records []Credential

	renamingID string
	renameBuf  string
}

// NewStore creates a store holding records in the given order. Records
// with a duplicate id are dropped.
func NewStore(records ...Credential) *Store {
	s := &Store{}
	s.Append(records...)
	return s
}

// Records returns a copy of the records in display order.
func (s *Store) Records() []Credential {
	out := make([]Credential, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Credential, bool) {
	i := s.index(id)
	if i < 0 {
		return Credential{}, false
	}
	return s.records[i], true
}

// Append adds records to the end, preserving their relative order.
// Records whose id is empty or already present are skipped. It returns the
// number of records added.
func (s *Store) Append(records ...Credential) int {
	n := 0
	for _, c := range records {
		if c.ID == "" || s.index(c.ID) >= 0 {
			continue
		}
		s.records = append(s.records, c)
		n++
	}
	return n
}

// BeginRename marks id as being renamed and returns its current name as the
// initial edit buffer. Any other rename in progress is committed first; the
// returned bool reports whether that implicit commit changed a name.
func (s *Store) BeginRename(id string) (buffer string, committed bool, err error) {
	i := s.index(id)
	if i < 0 {
		return "", false, ErrNotFound
	}

	if s.renamingID != "" && s.renamingID != id {
		committed = s.CommitRename()
	}

	s.renamingID = id
	s.renameBuf = s.records[i].Name
	return s.renameBuf, committed, nil
}

// SetRenameBuffer replaces the in-progress edit value.
func (s *Store) SetRenameBuffer(v string) {
	if s.renamingID == "" {
		return
	}
	s.renameBuf = v
}

// Renaming returns the id of the record being renamed, if any.
func (s *Store) Renaming() (string, bool) {
	return s.renamingID, s.renamingID != ""
}

// CommitRename applies the trimmed edit buffer to the record being renamed
// and leaves rename state. It reports whether the name changed.
func (s *Store) CommitRename() bool {
	if s.renamingID == "" {
		return false
	}

	id, name := s.renamingID, strings.TrimSpace(s.renameBuf)
	s.renamingID, s.renameBuf = "", ""

	i := s.index(id)
	if i < 0 || s.records[i].Name == name {
		return false
	}
	s.records[i].Name = name
	return true
}

// CancelRename leaves rename state without applying the buffer.
func (s *Store) CancelRename() {
	s.renamingID, s.renameBuf = "", ""
}

// Rename sets the trimmed name on the record with the given id.
func (s *Store) Rename(id, name string) error {
	if _, _, err := s.BeginRename(id); err != nil {
		return err
	}
	s.SetRenameBuffer(name)
	s.CommitRename()
	return nil
}

// Remove deletes the record with the given id and returns it.
func (s *Store) Remove(id string) (Credential, error) {
	i := s.index(id)
	if i < 0 {
		return Credential{}, ErrNotFound
	}

	c := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	if s.renamingID == id {
		s.CancelRename()
	}
	return c, nil
}

// Clear removes every record and returns how many there were.
func (s *Store) Clear() int {
	n := len(s.records)
	s.records = nil
	s.CancelRename()
	return n
}

// SetDerived stores the computed token and countdown for the record at
// index i. Out of range indexes are ignored.
func (s *Store) SetDerived(i int, token string, updatingIn int) {
	if i < 0 || i >= len(s.records) {
		return
	}
	s.records[i].Token = token
	s.records[i].UpdatingIn = updatingIn
}

func (s *Store) index(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}
