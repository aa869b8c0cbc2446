// internal/branch/storage/store.go
package storage

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"keep/internal/branch"
	"keep/internal/errors"
	"keep/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

// Store handles all branch storage operations. Branches are keyed
// "<repo>/<name>" under the "branch" prefix, so names are unique
// within their repository by construction.
type Store struct {
	store *storage.BadgerStore
}

func NewStore(db *badger.DB) *Store {
	return &Store{
		store: storage.NewBadgerStore(db, "branch"),
	}
}

// branchEntity wraps branch.Branch to implement storage.Entity
type branchEntity struct {
	*branch.Branch
}

func (b *branchEntity) GetID() string {
	return b.RepoID + "/" + b.Name
}

func validName(name string) bool {
	if name == "" || strings.ContainsAny(name, "/\\ ") {
		return false
	}
	return true
}

// Create forks a new branch from sourceBranch's current head. An
// empty sourceBranch defaults to "main".
func (s *Store) Create(repoID, name, sourceBranch string) (*branch.Branch, error) {
	if !validName(name) {
		return nil, errors.InvalidInput(fmt.Sprintf("malformed branch name: %q", name), name)
	}
	if sourceBranch == "" {
		sourceBranch = branch.DefaultName
	}

	var created *branch.Branch
	err := s.store.DB().Update(func(txn *badger.Txn) error {
		head, err := s.ResolveTxn(txn, repoID, sourceBranch)
		if err != nil {
			return err
		}

		created, err = s.CreateAtTxn(txn, repoID, name, head)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateAtTxn creates a branch pointing directly at a known head,
// inside a caller-owned transaction. Used for the default branch at
// repository provisioning and for forks.
func (s *Store) CreateAtTxn(txn *badger.Txn, repoID, name, head string) (*branch.Branch, error) {
	if !validName(name) {
		return nil, errors.InvalidInput(fmt.Sprintf("malformed branch name: %q", name), name)
	}

	now := time.Now()
	b := &branch.Branch{
		RepoID:    repoID,
		Name:      name,
		Head:      head,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateTxn(txn, &branchEntity{Branch: b}); err != nil {
		if stderrors.Is(err, storage.ErrExists) {
			return nil, errors.DuplicateBranch(name)
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) getTxn(txn *badger.Txn, repoID, name string) (*branch.Branch, error) {
	var entity branchEntity
	entity.Branch = &branch.Branch{}

	if err := s.store.GetTxn(txn, repoID+"/"+name, &entity); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.UnknownBranch(name)
		}
		return nil, err
	}
	return entity.Branch, nil
}

// ResolveTxn reads the head inside a caller-owned transaction so the
// read participates in badger's conflict detection.
func (s *Store) ResolveTxn(txn *badger.Txn, repoID, name string) (string, error) {
	b, err := s.getTxn(txn, repoID, name)
	if err != nil {
		return "", err
	}
	return b.Head, nil
}

// Get retrieves a branch by name
func (s *Store) Get(repoID, name string) (*branch.Branch, error) {
	var result *branch.Branch
	err := s.store.DB().View(func(txn *badger.Txn) error {
		var err error
		result, err = s.getTxn(txn, repoID, name)
		return err
	})
	return result, err
}

// Resolve returns the branch's current head commit id
func (s *Store) Resolve(repoID, name string) (string, error) {
	b, err := s.Get(repoID, name)
	if err != nil {
		return "", err
	}
	return b.Head, nil
}

// AdvanceTxn rewrites the head pointer inside a caller-owned
// transaction, compare-and-swap style: the write only happens when
// the stored head still equals expectedHead.
func (s *Store) AdvanceTxn(txn *badger.Txn, repoID, name, expectedHead, newHead string) (*branch.Branch, error) {
	b, err := s.getTxn(txn, repoID, name)
	if err != nil {
		return nil, err
	}

	if b.Head != expectedHead {
		return nil, errors.ConcurrentModification(name, expectedHead)
	}

	b.Head = newHead
	b.UpdatedAt = time.Now()

	if err := s.store.UpdateTxn(txn, &branchEntity{Branch: b}); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns a repository's branches sorted by name, optionally
// filtered by substring.
func (s *Store) List(repoID, filter string) ([]*branch.Branch, error) {
	names, err := s.store.Keys(repoID + "/")
	if err != nil {
		return nil, err
	}

	var result []*branch.Branch
	err = s.store.DB().View(func(txn *badger.Txn) error {
		for _, key := range names {
			name := strings.TrimPrefix(key, repoID+"/")
			if filter != "" && !strings.Contains(name, filter) {
				continue
			}
			b, err := s.getTxn(txn, repoID, name)
			if err != nil {
				return err
			}
			result = append(result, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// DeleteRepo removes every branch of a repository
func (s *Store) DeleteRepo(repoID string) error {
	ids, err := s.store.Keys(repoID + "/")
	if err != nil {
		return err
	}

	return s.store.DB().Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := s.store.DeleteTxn(txn, id); err != nil {
				return err
			}
		}
		return nil
	})
}
