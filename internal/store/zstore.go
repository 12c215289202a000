package store

import (
	"errors"
	"fmt"

	"github.com/zarlcorp/core/pkg/zstore"
)

const slotsCollection = "slots"

// slot is one encrypted value, stored under its key's id.
type slot struct {
	Value string `json:"value"`
}

// ZstoreSlots keeps slots in an encrypted zstore collection.
type ZstoreSlots struct {
	col *zstore.Collection[slot]
}

// NewZstoreSlots opens the slots collection inside an open zstore.
func NewZstoreSlots(s *zstore.Store) (*ZstoreSlots, error) {
	col, err := zstore.NewCollection[slot](s, slotsCollection)
	if err != nil {
		return nil, fmt.Errorf("open slots collection: %w", err)
	}
	return &ZstoreSlots{col: col}, nil
}

// GetItem decrypts and returns the value stored under key.
func (z *ZstoreSlots) GetItem(key string) (string, bool, error) {
	s, err := z.col.Get(key)
	if errors.Is(err, zstore.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return s.Value, true, nil
}

// SetItem encrypts and writes value under key.
func (z *ZstoreSlots) SetItem(key, value string) error {
	if err := z.col.Put(key, slot{Value: value}); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (z *ZstoreSlots) RemoveItem(key string) error {
	err := z.col.Delete(key)
	if err != nil && !errors.Is(err, zstore.ErrNotFound) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
