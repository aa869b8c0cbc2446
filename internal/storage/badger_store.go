// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// ErrNotFound and ErrExists let domain stores translate storage
// outcomes into their own typed errors without string matching.
var (
	ErrNotFound = fmt.Errorf("entity not found")
	ErrExists   = fmt.Errorf("entity already exists")
)

// BadgerStore provides generic prefix-keyed storage operations.
// Entities are stored as JSON under "<prefix>:<id>". The *Txn
// variants operate inside a caller-owned transaction so several
// stores can commit as one atomic unit.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	return &BadgerStore{
		db:     db,
		prefix: prefix,
	}
}

func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), fmt.Sprintf("%s:", s.prefix))
}

func (s *BadgerStore) CreateTxn(txn *badger.Txn, entity Entity) error {
	if entity.GetID() == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	_, err = txn.Get(key)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrExists, entity.GetID())
	} else if err != badger.ErrKeyNotFound {
		return err
	}

	return txn.Set(key, data)
}

func (s *BadgerStore) Create(entity Entity) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.CreateTxn(txn, entity)
	})
}

func (s *BadgerStore) GetTxn(txn *badger.Txn, id string, entity Entity) error {
	item, err := txn.Get(s.makeKey(id))
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, entity)
	})
}

func (s *BadgerStore) Get(id string, entity Entity) error {
	return s.db.View(func(txn *badger.Txn) error {
		return s.GetTxn(txn, id, entity)
	})
}

func (s *BadgerStore) UpdateTxn(txn *badger.Txn, entity Entity) error {
	if entity.GetID() == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	_, err = txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, entity.GetID())
	} else if err != nil {
		return err
	}

	return txn.Set(key, data)
}

func (s *BadgerStore) Update(entity Entity) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.UpdateTxn(txn, entity)
	})
}

func (s *BadgerStore) Delete(id string) error {
	key := s.makeKey(id)

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		} else if err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

// List decodes every entity under the store's prefix into results,
// which must be a pointer to a slice.
func (s *BadgerStore) List(results interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.prefix + ":")
		var values []json.RawMessage

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				values = append(values, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}

		data, err := json.Marshal(values)
		if err != nil {
			return err
		}

		return json.Unmarshal(data, results)
	})

	if err != nil {
		return fmt.Errorf("listing entities: %w", err)
	}
	return nil
}

// Keys returns the IDs of every entity under a sub-prefix of the
// store, in key order. Used for cascade deletion.
func (s *BadgerStore) Keys(subPrefix string) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.prefix + ":" + subPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, s.stripPrefix(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return ids, nil
}

// DeleteTxn removes an entity inside a caller-owned transaction
// without an existence check.
func (s *BadgerStore) DeleteTxn(txn *badger.Txn, id string) error {
	return txn.Delete(s.makeKey(id))
}
