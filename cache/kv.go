package cache

import (
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("minichat")

// KV is the local key-value persistence.
type KV interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Close() error
}

// BoltKV stores values in one bucket of a bbolt file.
type BoltKV struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the bbolt file at `path`.
func OpenBolt(path string) (*BoltKV, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt `%s`: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltKV{db: db}, nil
}

func (kv *BoltKV) Get(key string) (string, bool, error) {
	var out string
	var found bool
	err := kv.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("bucket `%s` not found", bucketName)
		}
		// the value is only valid inside the tx, string() copies it.
		if v := b.Get([]byte(key)); v != nil {
			out = string(v)
			found = true
		}
		return nil
	})
	return out, found, err
}

func (kv *BoltKV) Set(key, value string) error {
	return kv.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("bucket `%s` not found", bucketName)
		}
		return b.Put([]byte(key), []byte(value))
	})
}

func (kv *BoltKV) Close() error {
	return kv.db.Close()
}

// MemKV is an in-memory KV.
type MemKV struct {
	sync.RWMutex
	kv map[string]string
}

func NewMemKV() *MemKV {
	return &MemKV{kv: make(map[string]string)}
}

func (m *MemKV) Get(key string) (string, bool, error) {
	m.RLock()
	v, ok := m.kv[key]
	m.RUnlock()
	return v, ok, nil
}

func (m *MemKV) Set(key, value string) error {
	m.Lock()
	m.kv[key] = value
	m.Unlock()
	return nil
}

func (m *MemKV) Close() error {
	return nil
}
