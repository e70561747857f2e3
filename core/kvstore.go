package core

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var accountsBucket = []byte("accounts")

// ChainHeadKey is the reserved KV key under which the producer persists the
// current chain head so restart resumes at the correct height and threads
// the correct previous_hash forward.
const ChainHeadKey = "__meridian_chain_head__"

// KVStore is a durable, ordered byte-key/byte-value store with point
// get/put/delete and read-snapshot capability, backed by bbolt. Every
// operation opens its own transaction: atomicity is per-operation, not
// cross-key, matching the core's contract.
type KVStore struct {
	db     *bolt.DB
	logger *log.Logger
}

// OpenKVStore opens (creating if absent) the bbolt file at path.
func OpenKVStore(path string, logger *log.Logger) (*KVStore, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("core: %w: open bbolt %s: %v", ErrStorageFailure, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("core: %w: create bucket: %v", ErrStorageFailure, err)
	}
	logger.Infof("kvstore: opened %s", path)
	return &KVStore{db: db, logger: logger}, nil
}

// Put stores value under key in its own transaction.
func (s *KVStore) Put(key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("core: %w: put %s: %v", ErrStorageFailure, key, err)
	}
	return nil
}

// Get returns the value for key, or (nil, false) if absent.
func (s *KVStore) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(accountsBucket).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("core: %w: get %s: %v", ErrStorageFailure, key, err)
	}
	return out, out != nil, nil
}

// Delete removes key in its own transaction.
func (s *KVStore) Delete(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("core: %w: delete %s: %v", ErrStorageFailure, key, err)
	}
	return nil
}

// Snapshot opens a read-only bbolt transaction giving a consistent view of
// the store at this instant, isolated from subsequent writers (bbolt MVCC).
// The caller must call Close when done.
func (s *KVStore) Snapshot() (*Snapshot, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("core: %w: snapshot: %v", ErrStorageFailure, err)
	}
	return &Snapshot{tx: tx}, nil
}

// Each iterates every (key, value) pair currently stored, including the
// ChainHeadKey record, used to reconstruct the MPT from the KV at startup.
func (s *KVStore) Each(fn func(key string, value []byte) error) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
	if err != nil {
		return fmt.Errorf("core: %w: iterate: %v", ErrStorageFailure, err)
	}
	return nil
}

// Close releases the underlying database file.
func (s *KVStore) Close() error {
	return s.db.Close()
}

// Snapshot is a read-only, point-in-time view obtained from KVStore.Snapshot.
type Snapshot struct {
	tx *bolt.Tx
}

// Get reads key as visible at snapshot creation time.
func (s *Snapshot) Get(key string) ([]byte, bool, error) {
	v := s.tx.Bucket(accountsBucket).Get([]byte(key))
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Close releases the underlying read transaction.
func (s *Snapshot) Close() error {
	return s.tx.Rollback()
}
