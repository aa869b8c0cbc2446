// internal/content/store.go
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrNotFound  = errors.New("content not found")
	ErrInvalidID = errors.New("invalid content id")
)

// BlobStore provides deduplicated, content-addressed blob storage on
// top of badger. Blobs live under "blob:<id>", metadata under
// "blobmeta:<id>", owner references under "blobref:<owner>/<id>".
// Reads go through an LRU cache of decompressed bytes.
type BlobStore struct {
	db    *badger.DB
	cache *lru.Cache[string, []byte]
	cm    *compressionManager
}

// Options configures BlobStore behavior
type Options struct {
	CacheSize   int // Number of blobs to cache
	Compression CompressionOptions
}

func DefaultOptions() Options {
	return Options{
		CacheSize:   512,
		Compression: DefaultCompressionOptions(),
	}
}

func NewBlobStore(db *badger.DB, opts Options) (*BlobStore, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = 512
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	cm, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compression manager: %w", err)
	}

	return &BlobStore{
		db:    db,
		cache: cache,
		cm:    cm,
	}, nil
}

// HashContent returns the content identifier for a byte slice.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// Put stores content on behalf of an owner and returns its
// identifier. Storing identical bytes twice yields the same id and
// one stored copy; the refcount counts distinct owners, so an owner
// re-storing content it already references bumps nothing. The second
// return reports whether a new reference was acquired. The path is a
// hint for the compression heuristics only.
func (s *BlobStore) Put(owner, path string, content []byte) (string, bool, error) {
	if content == nil {
		content = []byte{} // Convert nil to empty slice
	}

	id := HashContent(content)

	stored, compressed := s.cm.compress(path, content)
	now := time.Now()
	acquired := false

	err := s.db.Update(func(txn *badger.Txn) error {
		ref := refKey(owner, id)
		_, err := txn.Get(ref)
		if err == nil {
			// Owner already references this blob
			meta, err := getMeta(txn, id)
			if err != nil {
				return err
			}
			meta.AccessedAt = now
			return setMeta(txn, meta)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		meta, err := getMeta(txn, id)
		if err == nil {
			meta.RefCount++
			meta.AccessedAt = now
		} else if err == ErrNotFound {
			meta = BlobMeta{
				ID:         id,
				Size:       int64(len(content)),
				RefCount:   1,
				Compressed: compressed,
				CreatedAt:  now,
				AccessedAt: now,
			}
			if err := txn.Set(blobKey(id), stored); err != nil {
				return err
			}
		} else {
			return err
		}

		if err := txn.Set(ref, []byte{}); err != nil {
			return err
		}
		acquired = true
		return setMeta(txn, meta)
	})
	if err != nil {
		return "", false, fmt.Errorf("storing blob: %w", err)
	}

	s.cache.Add(id, content)
	return id, acquired, nil
}

// Get retrieves content by identifier
func (s *BlobStore) Get(id string) ([]byte, error) {
	if !isValidID(id) {
		return nil, ErrInvalidID
	}

	if content, ok := s.cache.Get(id); ok {
		return content, nil
	}

	var stored []byte
	var meta BlobMeta
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		meta, err = getMeta(txn, id)
		if err != nil {
			return err
		}

		item, err := txn.Get(blobKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	content := stored
	if meta.Compressed {
		content, err = s.cm.decompress(stored)
		if err != nil {
			return nil, fmt.Errorf("decompressing blob: %w", err)
		}
	}

	// Verify integrity before handing bytes out
	if HashContent(content) != id {
		return nil, fmt.Errorf("blob hash mismatch: %s", id)
	}

	s.cache.Add(id, content)
	return content, nil
}

// Exists checks if content exists
func (s *BlobStore) Exists(id string) (bool, error) {
	if !isValidID(id) {
		return false, ErrInvalidID
	}

	if s.cache.Contains(id) {
		return true, nil
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := getMeta(txn, id)
		return err
	})
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Release drops an owner's reference to a blob, removing blob and
// metadata when the last reference goes. Releasing a blob the owner
// does not reference is a no-op.
func (s *BlobStore) Release(owner, id string) error {
	if !isValidID(id) {
		return ErrInvalidID
	}

	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		ref := refKey(owner, id)
		_, err := txn.Get(ref)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(ref); err != nil {
			return err
		}

		meta, err := getMeta(txn, id)
		if err != nil {
			return err
		}

		meta.RefCount--
		if meta.RefCount > 0 {
			return setMeta(txn, meta)
		}

		if err := txn.Delete(blobKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(metaKey(id)); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("releasing blob: %w", err)
	}

	if removed {
		s.cache.Remove(id)
	}
	return nil
}

// Internal helpers

func blobKey(id string) []byte {
	return []byte(fmt.Sprintf("blob:%s", id))
}

func metaKey(id string) []byte {
	return []byte(fmt.Sprintf("blobmeta:%s", id))
}

func refKey(owner, id string) []byte {
	return []byte(fmt.Sprintf("blobref:%s/%s", owner, id))
}

func isValidID(id string) bool {
	if len(id) != 64 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

func getMeta(txn *badger.Txn, id string) (BlobMeta, error) {
	var meta BlobMeta

	item, err := txn.Get(metaKey(id))
	if err == badger.ErrKeyNotFound {
		return meta, ErrNotFound
	}
	if err != nil {
		return meta, err
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	return meta, err
}

func setMeta(txn *badger.Txn, meta BlobMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return txn.Set(metaKey(meta.ID), data)
}
