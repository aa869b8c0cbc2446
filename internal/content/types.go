package content

import (
	"time"
)

// Store maps a content identifier (sha256 of the raw bytes) to the
// stored bytes. Identical content never duplicates storage. References
// are scoped by owner: an owner holds at most one reference per blob,
// so a blob's refcount is the number of distinct owners. Put reports
// whether the call acquired a new reference, which lets callers undo
// exactly what they added when a larger operation fails.
type Store interface {
	Put(owner, path string, content []byte) (string, bool, error)
	Get(id string) ([]byte, error)
	Exists(id string) (bool, error)
	Release(owner, id string) error
}

// BlobMeta stores metadata about a stored blob
type BlobMeta struct {
	ID         string    `json:"id"`
	Size       int64     `json:"size"`
	RefCount   uint32    `json:"ref_count"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
}
