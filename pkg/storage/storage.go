// Package storage persists governance histories to an embedded BadgerDB
// instance. Values are JSON documents under fixed string keys; a missing or
// corrupted value is treated as "no history yet", never as a fatal error,
// so the layer survives first runs and damaged data directories.
package storage

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
)

// Well-known keys. Each history is capped independently by its owner.
const (
	KeySnapshots    = "governd/snapshots"
	KeyAlerts       = "governd/alerts"
	KeyUsageLog     = "governd/usage"
	KeyReportPrefix = "governd/reports/" // + report kind
)

// Store is a thin JSON codec over Badger.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at dir. An empty dir opens an
// in-memory store, which is what the tests use.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// PutJSON marshals v under key. Errors are logged and returned; callers in
// this subsystem treat them as soft failures and continue in memory.
func (s *Store) PutJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("storage: marshal %s: %v", key, err)
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		log.Errorf("storage: write %s: %v", key, err)
	}
	return err
}

// GetJSON unmarshals key into v. Returns false when the key is absent or
// the stored value is corrupted; in the corrupted case the entry is
// deleted so the next write starts clean.
func (s *Store) GetJSON(key string, v any) bool {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false
	}
	if err != nil {
		log.Errorf("storage: read %s: %v", key, err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warnf("storage: corrupted value at %s, resetting: %v", key, err)
		s.Delete(key)
		return false
	}
	return true
}

func (s *Store) Delete(key string) {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		log.Errorf("storage: delete %s: %v", key, err)
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}
