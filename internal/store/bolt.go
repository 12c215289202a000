package store

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucketSlots = []byte("slots")

// BoltSlots keeps slots unencrypted in a bbolt database file.
type BoltSlots struct {
	db *bbolt.DB
}

// OpenBoltSlots opens or creates the database at path.
func OpenBoltSlots(path string) (*BoltSlots, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSlots)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create slots bucket: %w", err)
	}

	return &BoltSlots{db: db}, nil
}

// GetItem returns the value stored under key.
func (b *BoltSlots) GetItem(key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSlots).Get([]byte(key))
		if v != nil {
			value, ok = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, ok, nil
}

// SetItem stores value under key.
func (b *BoltSlots) SetItem(key, value string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSlots).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (b *BoltSlots) RemoveItem(key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSlots).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Close closes the database file.
func (b *BoltSlots) Close() error {
	return b.db.Close()
}
