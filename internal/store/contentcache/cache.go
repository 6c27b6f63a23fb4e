// Package contentcache caches immutable file content keyed by
// (repository, commit, path) so repeated snippet queries do not re-read
// git objects.
package contentcache

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotCached is returned when a key has no cached content.
var ErrNotCached = errors.New("content not cached")

// Cache is the content cache contract.
type Cache interface {
	Get(repoID int64, sha, path string) ([]byte, error)
	Put(repoID int64, sha, path string, content []byte) error
	Close() error
}

// BadgerCache is a badger-backed Cache.
type BadgerCache struct {
	db *badger.DB
}

// Open opens (or creates) a cache at dir.
func Open(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening content cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// OpenInMemory opens an in-memory cache, used by tests.
func OpenInMemory() (*BadgerCache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening content cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

func key(repoID int64, sha, path string) []byte {
	return []byte(fmt.Sprintf("content:%d:%s:%s", repoID, sha, path))
}

// Get returns the cached content for the key, or ErrNotCached.
func (c *BadgerCache) Get(repoID int64, sha, path string) ([]byte, error) {
	var content []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(repoID, sha, path))
		if err != nil {
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("reading content cache: %w", err)
	}
	return content, nil
}

// Put stores content under the key. Content at a commit is immutable, so
// overwrites are idempotent.
func (c *BadgerCache) Put(repoID int64, sha, path string, content []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(repoID, sha, path), content)
	})
	if err != nil {
		return fmt.Errorf("writing content cache: %w", err)
	}
	return nil
}

// Close closes the cache database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
