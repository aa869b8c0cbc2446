// internal/commit/types.go
package commit

import (
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Kind classifies a file change within a commit
type Kind string

const (
	Added    Kind = "ADDED"
	Modified Kind = "MODIFIED"
	Deleted  Kind = "DELETED"
)

// FileChange records one path's state within a commit. ContentID is
// empty when Kind is Deleted. PrevContentID is informational only.
type FileChange struct {
	Path          string `json:"path"`
	Kind          Kind   `json:"kind"`
	ContentID     string `json:"content_id,omitempty"`
	PrevContentID string `json:"prev_content_id,omitempty"`
}

// Commit is an immutable node in a repository's history graph. Its
// change set is a snapshot: the cumulative live state at this commit,
// with Deleted records appearing only in the commit that performs the
// deletion. The ID is a digest over the commit's own content, so ids
// are stable for identical inputs and can only reference strictly
// earlier commits.
type Commit struct {
	ID        string       `json:"id"`
	RepoID    string       `json:"repo_id"`
	Message   string       `json:"message"`
	Author    string       `json:"author"`
	CreatedAt time.Time    `json:"created_at"`
	Parents   []string     `json:"parents"`
	Changes   []FileChange `json:"changes"`
}

// Change returns the commit's change record for a path, if any.
func (c *Commit) Change(path string) (FileChange, bool) {
	for _, fc := range c.Changes {
		if fc.Path == path {
			return fc, true
		}
	}
	return FileChange{}, false
}

// Box defines the interface for commit storage operations. The *Txn
// variants run inside a caller-owned badger transaction so commit
// persistence and branch advancement can commit atomically.
type Box interface {
	Create(c *Commit) error
	CreateTxn(txn *badger.Txn, c *Commit) error
	CreateRootTxn(txn *badger.Txn, repoID, author string) (*Commit, error)
	Get(repoID, id string) (*Commit, error)
	GetTxn(txn *badger.Txn, repoID, id string) (*Commit, error)

	// History traversal
	Walk(repoID, id string, limit int, fn func(*Commit) (bool, error)) error
	Ancestors(repoID, id string, limit int) ([]*Commit, error)

	// Cascade support
	ListRepo(repoID string) ([]*Commit, error)
	DeleteRepo(repoID string) error
}
