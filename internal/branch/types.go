// internal/branch/types.go
package branch

import (
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultName is the branch every repository starts with and the
// implicit fork source when none is given.
const DefaultName = "main"

// Branch is a named, mutable pointer to a commit. The head is the
// only mutable value in the whole model; it advances through a
// compare-and-swap against the expected prior head.
type Branch struct {
	RepoID    string    `json:"repo_id"`
	Name      string    `json:"name"`
	Head      string    `json:"head"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Box defines the interface for branch storage operations
type Box interface {
	Create(repoID, name, sourceBranch string) (*Branch, error)
	CreateAtTxn(txn *badger.Txn, repoID, name, head string) (*Branch, error)
	Resolve(repoID, name string) (string, error)
	ResolveTxn(txn *badger.Txn, repoID, name string) (string, error)
	Get(repoID, name string) (*Branch, error)
	AdvanceTxn(txn *badger.Txn, repoID, name, expectedHead, newHead string) (*Branch, error)
	List(repoID, filter string) ([]*Branch, error)
	DeleteRepo(repoID string) error
}
