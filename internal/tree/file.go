// internal/tree/file.go
package tree

import (
	"path"
	"strings"

	"keep/internal/commit"
	"keep/internal/content"
	"keep/internal/errors"
)

// Resolver answers file and README lookups against a branch head,
// fetching bytes from the content store.
type Resolver struct {
	content content.Store
}

func NewResolver(store content.Store) *Resolver {
	return &Resolver{content: store}
}

// IsBinary infers binary-ness from the file extension
func IsBinary(filePath string) bool {
	ext := strings.ToLower(path.Ext(filePath))
	for _, binExt := range binaryExtensions {
		if ext == binExt {
			return true
		}
	}
	return false
}

// ResolveFile returns the metadata of the most recent live change for
// a path at the given head. Bytes are fetched for textual files, and
// for binary files only when raw is set.
func (r *Resolver) ResolveFile(head *commit.Commit, filePath string, raw bool) (*FileMetadata, error) {
	filePath = strings.Trim(filePath, "/")

	fc, ok := head.Change(filePath)
	if !ok || fc.Kind == commit.Deleted {
		return nil, errors.NotFound("file", filePath)
	}

	meta := &FileMetadata{
		Path:      fc.Path,
		Kind:      fc.Kind,
		ContentID: fc.ContentID,
		Binary:    IsBinary(fc.Path),
	}

	if meta.Binary && !raw {
		return meta, nil
	}

	data, err := r.content.Get(fc.ContentID)
	if err != nil {
		if err == content.ErrNotFound {
			return nil, errors.NotFound("content", fc.ContentID)
		}
		return nil, err
	}
	meta.Size = int64(len(data))
	meta.Content = data
	return meta, nil
}

// ResolveReadme probes the candidate README filenames under a folder
// in priority order and returns the first match's content. No match
// is empty content, not an error.
func (r *Resolver) ResolveReadme(head *commit.Commit, folder string) ([]byte, error) {
	folder = normalizePrefix(folder)

	for _, candidate := range readmeCandidates {
		fc, ok := head.Change(folder + candidate)
		if !ok || fc.Kind == commit.Deleted {
			continue
		}
		data, err := r.content.Get(fc.ContentID)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return []byte{}, nil
}
