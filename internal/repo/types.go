// internal/repo/types.go
package repo

import (
	"time"
)

// Repository is the ownership boundary for branches and commits. It
// belongs to exactly one owning group; (Name, GroupID) is unique.
// Authorization itself lives in the portal layer; the engine receives
// pre-authorized callers.
type Repository struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	GroupID       string    `json:"group_id"`
	DefaultBranch string    `json:"default_branch"`
	CreatedAt     time.Time `json:"created_at"`
}

// Box defines the interface for repository storage operations
type Box interface {
	Create(name, groupID, author string) (*Repository, error)
	Get(id string) (*Repository, error)
	FindByName(groupID, name string) (*Repository, error)
	ListGroup(groupID string) ([]*Repository, error)

	// Delete cascades to the repository's branches and commits and
	// returns the distinct content ids those commits referenced so
	// the caller can release blob references.
	Delete(id string) ([]string, error)
}
