package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"
)

// Cache stores the results of billable external calls keyed by a content
// hash of their input, so a client retry of the same payload does not incur
// a second charge.
type Cache struct {
	db *badger.DB
}

func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Key derives the idempotency key for a payload. The scope keeps
// transcription and summarization results apart for identical inputs.
func Key(scope string, payload []byte) string {
	h := sha256.Sum256(payload)
	return scope + ":" + hex.EncodeToString(h[:])
}

// Get returns the cached result for key, or ok=false on a miss.
func (c *Cache) Get(key string) (string, bool, error) {
	var value string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return value, true, nil
}

// Put records the result for key.
func (c *Cache) Put(key, value string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (c *Cache) Close() error {
	return c.db.Close()
}
