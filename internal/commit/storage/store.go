// internal/commit/storage/store.go
package storage

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"keep/internal/commit"
	"keep/internal/errors"
	"keep/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

// Store handles all commit storage operations. Commits are keyed
// "<repo>/<id>" under the "commit" prefix; the FileChange set is
// embedded in the commit record since changes are exclusively owned
// by their commit.
type Store struct {
	store *storage.BadgerStore
}

func NewStore(db *badger.DB) *Store {
	return &Store{
		store: storage.NewBadgerStore(db, "commit"),
	}
}

// commitEntity wraps commit.Commit to implement storage.Entity
type commitEntity struct {
	*commit.Commit
}

func (c *commitEntity) GetID() string {
	return c.RepoID + "/" + c.ID
}

func validPath(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// validate checks a commit before persistence. Root commits are the
// only commits allowed an empty change set and are created through
// CreateRootTxn, not here.
func validate(c *commit.Commit) error {
	if c.RepoID == "" {
		return errors.InvalidInput("repository id is required", nil)
	}
	if strings.TrimSpace(c.Message) == "" {
		return errors.InvalidInput("commit message is required", nil)
	}
	if len(c.Changes) == 0 {
		return errors.InvalidInput("commit must contain at least one change", nil)
	}

	seen := make(map[string]bool, len(c.Changes))
	for _, fc := range c.Changes {
		if !validPath(fc.Path) {
			return errors.InvalidInput(fmt.Sprintf("malformed path: %q", fc.Path), fc.Path)
		}
		if seen[fc.Path] {
			return errors.InvalidInput(fmt.Sprintf("duplicate change for path: %s", fc.Path), fc.Path)
		}
		seen[fc.Path] = true

		switch fc.Kind {
		case commit.Added, commit.Modified:
			if fc.ContentID == "" {
				return errors.InvalidInput(fmt.Sprintf("missing content id for path: %s", fc.Path), fc.Path)
			}
		case commit.Deleted:
			if fc.ContentID != "" {
				return errors.InvalidInput(fmt.Sprintf("deleted path carries content: %s", fc.Path), fc.Path)
			}
		default:
			return errors.InvalidInput(fmt.Sprintf("unknown change kind: %s", fc.Kind), string(fc.Kind))
		}
	}
	return nil
}

// CreateTxn validates and persists a commit inside a caller-owned
// transaction. Assigns CreatedAt and the content-derived ID. Every
// parent must already exist in the same repository.
func (s *Store) CreateTxn(txn *badger.Txn, c *commit.Commit) error {
	if err := validate(c); err != nil {
		return err
	}

	for _, parent := range c.Parents {
		if _, err := s.GetTxn(txn, c.RepoID, parent); err != nil {
			if errors.Is(err, errors.KindNotFound) {
				return errors.UnknownParent(parent)
			}
			return err
		}
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.ID = commit.ComputeID(c.RepoID, c.Message, c.Author, c.CreatedAt, c.Parents, c.Changes)

	if err := s.store.CreateTxn(txn, &commitEntity{Commit: c}); err != nil {
		if stderrors.Is(err, storage.ErrExists) {
			// Same content, same instant: already persisted, nothing to do
			return nil
		}
		return err
	}
	return nil
}

func (s *Store) Create(c *commit.Commit) error {
	return s.store.DB().Update(func(txn *badger.Txn) error {
		return s.CreateTxn(txn, c)
	})
}

// CreateRootTxn persists the empty root commit a repository's default
// branch starts at. Zero parents, zero changes.
func (s *Store) CreateRootTxn(txn *badger.Txn, repoID, author string) (*commit.Commit, error) {
	c := &commit.Commit{
		RepoID:    repoID,
		Message:   "initial commit",
		Author:    author,
		CreatedAt: time.Now(),
		Parents:   []string{},
		Changes:   []commit.FileChange{},
	}
	c.ID = commit.ComputeID(c.RepoID, c.Message, c.Author, c.CreatedAt, c.Parents, c.Changes)

	if err := s.store.CreateTxn(txn, &commitEntity{Commit: c}); err != nil {
		if stderrors.Is(err, storage.ErrExists) {
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) GetTxn(txn *badger.Txn, repoID, id string) (*commit.Commit, error) {
	var entity commitEntity
	entity.Commit = &commit.Commit{}

	if err := s.store.GetTxn(txn, repoID+"/"+id, &entity); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound("commit", id)
		}
		return nil, err
	}
	return entity.Commit, nil
}

func (s *Store) Get(repoID, id string) (*commit.Commit, error) {
	var result *commit.Commit
	err := s.store.DB().View(func(txn *badger.Txn) error {
		var err error
		result, err = s.GetTxn(txn, repoID, id)
		return err
	})
	return result, err
}

// Walk traverses the ancestry of a commit, newest first, invoking fn
// for each commit until fn returns false, the limit is reached, or
// the graph is exhausted. Traversal is breadth-first over parent
// links; commits reachable along several paths are visited once.
func (s *Store) Walk(repoID, id string, limit int, fn func(*commit.Commit) (bool, error)) error {
	if limit <= 0 {
		return nil
	}

	queue := []string{id}
	visited := map[string]bool{id: true}
	emitted := 0

	for len(queue) > 0 && emitted < limit {
		next := queue[0]
		queue = queue[1:]

		c, err := s.Get(repoID, next)
		if err != nil {
			return err
		}

		cont, err := fn(c)
		if err != nil {
			return err
		}
		emitted++
		if !cont {
			return nil
		}

		for _, parent := range c.Parents {
			if !visited[parent] {
				visited[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return nil
}

// Ancestors returns up to limit commits reachable from id, id first.
func (s *Store) Ancestors(repoID, id string, limit int) ([]*commit.Commit, error) {
	var result []*commit.Commit
	err := s.Walk(repoID, id, limit, func(c *commit.Commit) (bool, error) {
		result = append(result, c)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListRepo returns every commit of a repository, newest first.
func (s *Store) ListRepo(repoID string) ([]*commit.Commit, error) {
	var entities []commitEntity
	if err := s.store.List(&entities); err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}

	var result []*commit.Commit
	for i := range entities {
		if entities[i].RepoID == repoID {
			result = append(result, entities[i].Commit)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteRepo removes every commit of a repository. Content blobs are
// released separately by the caller.
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
