package archive

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Cache persists resolver lookups (earliest-issue dates, today; room for
// other archive-derived facts tomorrow) across process restarts, so the
// client does not re-scrape the archive on every CLI invocation.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens or creates a bbolt-backed cache file at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("archive: open cache: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create cache bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying file handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores value as JSON under bucket/key.
func (c *Cache) Put(bucket, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("archive: marshal cache value: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Get reads the JSON value stored under bucket/key into value.
func (c *Cache) Get(bucket, key string, value interface{}) error {
	return c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("archive: cache bucket not found: %s", bucket)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("archive: cache key not found: %s", key)
		}
		return json.Unmarshal(data, value)
	})
}
