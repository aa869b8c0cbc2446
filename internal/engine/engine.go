// internal/engine/engine.go
package engine

import (
	"sort"
	"strings"

	"keep/internal/branch"
	"keep/internal/commit"
	"keep/internal/content"
	"keep/internal/errors"
	"keep/internal/repo"
	"keep/internal/tree"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Engine ties the stores together into the version-control surface
// the portal consumes. It owns nothing itself; every operation runs
// as an independent unit of work against the stores.
type Engine struct {
	DB       *badger.DB
	Content  content.Store
	Commits  commit.Box
	Branches branch.Box
	Repos    repo.Box
	Resolver *tree.Resolver
	Logger   *zap.Logger
}

func New(db *badger.DB, contentStore content.Store, commits commit.Box, branches branch.Box, repos repo.Box, logger *zap.Logger) *Engine {
	return &Engine{
		DB:       db,
		Content:  contentStore,
		Commits:  commits,
		Branches: branches,
		Repos:    repos,
		Resolver: tree.NewResolver(contentStore),
		Logger:   logger,
	}
}

// ChangeInput is one file change as submitted by a caller: raw bytes
// for added/modified paths, no bytes for deletions.
type ChangeInput struct {
	Path    string      `json:"path"`
	Kind    commit.Kind `json:"kind"`
	Content []byte      `json:"content,omitempty"`
}

// Repository operations

func (e *Engine) CreateRepository(name, groupID, author string) (*repo.Repository, error) {
	r, err := e.Repos.Create(name, groupID, author)
	if err != nil {
		return nil, err
	}
	e.Logger.Info("repository created",
		zap.String("repo", r.ID),
		zap.String("name", r.Name),
		zap.String("group", r.GroupID),
	)
	return r, nil
}

func (e *Engine) GetRepository(id string) (*repo.Repository, error) {
	return e.Repos.Get(id)
}

// DeleteRepository cascades to branches and commits and releases the
// blob references the repository held. Blobs shared with other
// repositories survive through their remaining refcounts.
func (e *Engine) DeleteRepository(id string) error {
	contentIDs, err := e.Repos.Delete(id)
	if err != nil {
		return err
	}

	for _, cid := range contentIDs {
		if err := e.Content.Release(id, cid); err != nil {
			e.Logger.Warn("releasing blob after repository delete",
				zap.String("content_id", cid),
				zap.Error(err),
			)
		}
	}

	e.Logger.Info("repository deleted", zap.String("repo", id))
	return nil
}

// Branch operations

func (e *Engine) CreateBranch(repoID, name, sourceBranch string) (*branch.Branch, error) {
	b, err := e.Branches.Create(repoID, name, sourceBranch)
	if err != nil {
		return nil, err
	}
	e.Logger.Info("branch created",
		zap.String("repo", repoID),
		zap.String("branch", b.Name),
		zap.String("head", b.Head),
	)
	return b, nil
}

func (e *Engine) ListBranches(repoID, filter string) ([]*branch.Branch, error) {
	return e.Branches.List(repoID, filter)
}

// Commit operations

func (e *Engine) GetCommit(repoID, id string) (*commit.Commit, error) {
	return e.Commits.Get(repoID, id)
}

// Log lists the history of a branch, newest first.
func (e *Engine) Log(repoID, branchName string, limit int) ([]*commit.Commit, error) {
	head, err := e.Branches.Resolve(repoID, branchName)
	if err != nil {
		return nil, err
	}
	return e.Commits.Ancestors(repoID, head, limit)
}

// CreateCommit validates the submitted changes, stores their content,
// then persists the new commit and advances the branch head as one
// atomic badger transaction. When the caller pins parent commit ids,
// the first parent acts as the optimistic concurrency token: a moved
// head surfaces as ConcurrentModification. Unpinned callers get one
// automatic retry against the freshly read head.
func (e *Engine) CreateCommit(repoID, branchName, message, author string, inputs []ChangeInput, parents []string) (*commit.Commit, error) {
	if err := validateInputs(message, inputs); err != nil {
		return nil, err
	}
	if err := e.validateDeletions(repoID, branchName, inputs); err != nil {
		return nil, err
	}

	// Content first: puts are idempotent and owner-scoped, so they can
	// safely precede the commit transaction. References acquired here
	// are dropped again on any failure, so a rejected commit leaves no
	// stored state behind.
	contentIDs := make(map[string]string, len(inputs))
	var acquired []string
	for _, in := range inputs {
		if in.Kind == commit.Deleted {
			continue
		}
		cid, fresh, err := e.Content.Put(repoID, in.Path, in.Content)
		if err != nil {
			e.releaseAbandoned(repoID, acquired)
			return nil, err
		}
		contentIDs[in.Path] = cid
		if fresh {
			acquired = append(acquired, cid)
		}
	}

	pinned := len(parents) > 0

	attempt := func() (*commit.Commit, error) {
		var created *commit.Commit
		err := e.DB.Update(func(txn *badger.Txn) error {
			head, err := e.Branches.ResolveTxn(txn, repoID, branchName)
			if err != nil {
				return err
			}

			commitParents := parents
			if pinned {
				if parents[0] != head {
					return errors.ConcurrentModification(branchName, parents[0])
				}
			} else {
				commitParents = []string{head}
			}

			headCommit, err := e.Commits.GetTxn(txn, repoID, head)
			if err != nil {
				return err
			}

			changes, err := foldChanges(headCommit, inputs, contentIDs)
			if err != nil {
				return err
			}

			c := &commit.Commit{
				RepoID:  repoID,
				Message: message,
				Author:  author,
				Parents: commitParents,
				Changes: changes,
			}
			if err := e.Commits.CreateTxn(txn, c); err != nil {
				return err
			}
			if _, err := e.Branches.AdvanceTxn(txn, repoID, branchName, head, c.ID); err != nil {
				return err
			}
			created = c
			return nil
		})
		if err != nil {
			return nil, err
		}
		return created, nil
	}

	created, err := attempt()
	if err == badger.ErrConflict {
		if pinned {
			err = errors.ConcurrentModification(branchName, parents[0])
		} else {
			// Head moved under us; one retry against the new head is safe
			created, err = attempt()
			if err == badger.ErrConflict {
				err = errors.ConcurrentModification(branchName, "")
			}
		}
	}
	if err != nil {
		e.releaseAbandoned(repoID, acquired)
		return nil, err
	}

	e.Logger.Info("commit created",
		zap.String("repo", repoID),
		zap.String("branch", branchName),
		zap.String("commit", created.ID),
		zap.Int("changes", len(inputs)),
	)
	return created, nil
}

// Read operations

func (e *Engine) headCommit(repoID, branchName string) (*commit.Commit, error) {
	head, err := e.Branches.Resolve(repoID, branchName)
	if err != nil {
		return nil, err
	}
	return e.Commits.Get(repoID, head)
}

func (e *Engine) GetTree(repoID, branchName, prefix string) ([]tree.Node, error) {
	head, err := e.headCommit(repoID, branchName)
	if err != nil {
		return nil, err
	}
	return tree.List(head, prefix), nil
}

func (e *Engine) GetFile(repoID, branchName, path string, raw bool) (*tree.FileMetadata, error) {
	head, err := e.headCommit(repoID, branchName)
	if err != nil {
		return nil, err
	}
	return e.Resolver.ResolveFile(head, path, raw)
}

func (e *Engine) GetReadme(repoID, branchName, folder string) ([]byte, error) {
	head, err := e.headCommit(repoID, branchName)
	if err != nil {
		return nil, err
	}
	return e.Resolver.ResolveReadme(head, folder)
}

// validateDeletions rejects deletions of paths the branch head does
// not hold, before any content is stored. The fold inside the commit
// transaction re-checks against the head it actually commits on.
func (e *Engine) validateDeletions(repoID, branchName string, inputs []ChangeInput) error {
	var deletions []string
	for _, in := range inputs {
		if in.Kind == commit.Deleted {
			deletions = append(deletions, in.Path)
		}
	}
	if len(deletions) == 0 {
		return nil
	}

	head, err := e.headCommit(repoID, branchName)
	if err != nil {
		return err
	}
	live := tree.WorkingSet(head)
	for _, path := range deletions {
		if _, ok := live[path]; !ok {
			return errors.InvalidInput("cannot delete unknown path: "+path, path)
		}
	}
	return nil
}

// releaseAbandoned drops content references acquired for a commit
// that never persisted. A reference is kept when a stored commit of
// the repository references the content: a failed commit only ever
// fails against an already-committed winner, so the winner's records
// are visible by the time this runs.
func (e *Engine) releaseAbandoned(repoID string, acquired []string) {
	if len(acquired) == 0 {
		return
	}

	commits, err := e.Commits.ListRepo(repoID)
	if err != nil {
		// Cannot prove the content unreferenced; keeping the reference
		// over-retains, dropping it could lose live content
		e.Logger.Warn("listing commits after failed commit",
			zap.String("repo", repoID),
			zap.Error(err),
		)
		return
	}
	referenced := make(map[string]bool)
	for _, c := range commits {
		for _, fc := range c.Changes {
			if fc.ContentID != "" {
				referenced[fc.ContentID] = true
			}
		}
	}

	for _, cid := range acquired {
		if referenced[cid] {
			continue
		}
		if err := e.Content.Release(repoID, cid); err != nil {
			e.Logger.Warn("releasing blob after failed commit",
				zap.String("content_id", cid),
				zap.Error(err),
			)
		}
	}
}

// validateInputs rejects bad requests before any content is stored
func validateInputs(message string, inputs []ChangeInput) error {
	if strings.TrimSpace(message) == "" {
		return errors.InvalidInput("commit message is required", nil)
	}
	if len(inputs) == 0 {
		return errors.InvalidInput("commit must contain at least one change", nil)
	}

	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if seen[in.Path] {
			return errors.InvalidInput("duplicate change for path: "+in.Path, in.Path)
		}
		seen[in.Path] = true

		switch in.Kind {
		case commit.Added, commit.Modified, commit.Deleted:
		default:
			return errors.InvalidInput("unknown change kind: "+string(in.Kind), string(in.Kind))
		}
	}
	return nil
}

// foldChanges folds the submitted delta over the parent head's
// snapshot: carried-forward live records keep their kind, tombstones
// from earlier commits drop out, and deletions of paths the baseline
// does not know are rejected. The result is the new commit's full
// snapshot, sorted by path so commit ids are deterministic.
func foldChanges(head *commit.Commit, inputs []ChangeInput, contentIDs map[string]string) ([]commit.FileChange, error) {
	merged := tree.WorkingSet(head)

	for _, in := range inputs {
		prev, existed := merged[in.Path]

		switch in.Kind {
		case commit.Added, commit.Modified:
			fc := commit.FileChange{
				Path:      in.Path,
				Kind:      in.Kind,
				ContentID: contentIDs[in.Path],
			}
			if existed {
				fc.PrevContentID = prev.ContentID
			}
			merged[in.Path] = fc
		case commit.Deleted:
			if !existed {
				return nil, errors.InvalidInput("cannot delete unknown path: "+in.Path, in.Path)
			}
			merged[in.Path] = commit.FileChange{
				Path:          in.Path,
				Kind:          commit.Deleted,
				PrevContentID: prev.ContentID,
			}
		default:
			return nil, errors.InvalidInput("unknown change kind: "+string(in.Kind), string(in.Kind))
		}
	}

	changes := make([]commit.FileChange, 0, len(merged))
	for _, fc := range merged {
		changes = append(changes, fc)
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes, nil
}
