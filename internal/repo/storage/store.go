// internal/repo/storage/store.go
package storage

import (
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"keep/internal/branch"
	"keep/internal/commit"
	"keep/internal/errors"
	"keep/internal/repo"
	"keep/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

// Store handles repository storage operations. Repositories are
// keyed by id under the "repo" prefix; a raw "reponame:<group>/<name>"
// index key enforces the unique (name, group) pair.
type Store struct {
	store     *storage.BadgerStore
	commitBox commit.Box
	branchBox branch.Box
	newID     func() string
}

func NewStore(db *badger.DB, commitBox commit.Box, branchBox branch.Box, newID func() string) *Store {
	return &Store{
		store:     storage.NewBadgerStore(db, "repo"),
		commitBox: commitBox,
		branchBox: branchBox,
		newID:     newID,
	}
}

// repoEntity wraps repo.Repository to implement storage.Entity
type repoEntity struct {
	*repo.Repository
}

func (r *repoEntity) GetID() string {
	return r.ID
}

func nameKey(groupID, name string) []byte {
	return []byte(fmt.Sprintf("reponame:%s/%s", groupID, name))
}

// Create provisions a repository together with its default branch,
// pointing at an empty root commit. All of it commits as one badger
// transaction.
func (s *Store) Create(name, groupID, author string) (*repo.Repository, error) {
	if name == "" {
		return nil, errors.InvalidInput("repository name is required", nil)
	}
	if groupID == "" {
		return nil, errors.InvalidInput("group id is required", nil)
	}

	r := &repo.Repository{
		ID:            s.newID(),
		Name:          name,
		GroupID:       groupID,
		DefaultBranch: branch.DefaultName,
		CreatedAt:     time.Now(),
	}

	err := s.store.DB().Update(func(txn *badger.Txn) error {
		key := nameKey(groupID, name)
		if _, err := txn.Get(key); err == nil {
			return errors.DuplicateRepository(name)
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := s.store.CreateTxn(txn, &repoEntity{Repository: r}); err != nil {
			return err
		}
		if err := txn.Set(key, []byte(r.ID)); err != nil {
			return err
		}

		root, err := s.commitBox.CreateRootTxn(txn, r.ID, author)
		if err != nil {
			return err
		}
		_, err = s.branchBox.CreateAtTxn(txn, r.ID, r.DefaultBranch, root.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) Get(id string) (*repo.Repository, error) {
	var entity repoEntity
	entity.Repository = &repo.Repository{}

	if err := s.store.Get(id, &entity); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound("repository", id)
		}
		return nil, err
	}
	return entity.Repository, nil
}

func (s *Store) FindByName(groupID, name string) (*repo.Repository, error) {
	var id string
	err := s.store.DB().View(func(txn *badger.Txn) error {
		item, err := txn.Get(nameKey(groupID, name))
		if err == badger.ErrKeyNotFound {
			return errors.NotFound("repository", name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

func (s *Store) ListGroup(groupID string) ([]*repo.Repository, error) {
	var entities []repoEntity
	if err := s.store.List(&entities); err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	var result []*repo.Repository
	for i := range entities {
		if entities[i].GroupID == groupID {
			result = append(result, entities[i].Repository)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Delete removes a repository and everything below it. Returns the
// distinct content ids the repository's commits referenced; blob
// refcounts are the caller's concern since blobs are shared.
func (s *Store) Delete(id string) ([]string, error) {
	r, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	commits, err := s.commitBox.ListRepo(id)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var contentIDs []string
	for _, c := range commits {
		for _, fc := range c.Changes {
			if fc.ContentID != "" && !seen[fc.ContentID] {
				seen[fc.ContentID] = true
				contentIDs = append(contentIDs, fc.ContentID)
			}
		}
	}

	if err := s.branchBox.DeleteRepo(id); err != nil {
		return nil, err
	}
	if err := s.commitBox.DeleteRepo(id); err != nil {
		return nil, err
	}

	err = s.store.DB().Update(func(txn *badger.Txn) error {
		if err := txn.Delete(nameKey(r.GroupID, r.Name)); err != nil {
			return err
		}
		return s.store.DeleteTxn(txn, id)
	})
	if err != nil {
		return nil, err
	}
	return contentIDs, nil
}
