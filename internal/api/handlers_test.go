// internal/api/handlers_test.go
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"keep/internal/branch"
	branchStorage "keep/internal/branch/storage"
	"keep/internal/commit"
	commitStorage "keep/internal/commit/storage"
	"keep/internal/content"
	"keep/internal/engine"
	"keep/internal/errors"
	"keep/internal/repo"
	repoStorage "keep/internal/repo/storage"
	"keep/internal/tree"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMux(t *testing.T) (*http.ServeMux, func()) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)

	blobStore, err := content.NewBlobStore(db, content.DefaultOptions())
	require.NoError(t, err)

	commits := commitStorage.NewStore(db)
	branches := branchStorage.NewStore(db)

	seq := 0
	repos := repoStorage.NewStore(db, commits, branches, func() string {
		seq++
		return fmt.Sprintf("repo-%d", seq)
	})

	eng := engine.New(db, blobStore, commits, branches, repos, zap.NewNop())

	mux := http.NewServeMux()
	NewHandler(eng).Register(mux)

	return mux, func() { db.Close() }
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Author", "alice")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createTestRepo(t *testing.T, mux *http.ServeMux) *repo.Repository {
	t.Helper()

	rec := doJSON(t, mux, "POST", "/api/repos", map[string]string{
		"name":     "project",
		"group_id": "group-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var r repo.Repository
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return &r
}

func commitBody(message string, changes ...map[string]any) map[string]any {
	return map[string]any{"message": message, "changes": changes}
}

func addedChange(path, data string) map[string]any {
	return map[string]any{"path": path, "kind": "ADDED", "content": []byte(data)}
}

func TestRepositoryEndpoints(t *testing.T) {
	mux, cleanup := setupMux(t)
	defer cleanup()

	t.Run("Create", func(t *testing.T) {
		r := createTestRepo(t, mux)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, "main", r.DefaultBranch)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", "/api/repos", map[string]string{
			"name":     "project",
			"group_id": "group-1",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)

		var apiErr errors.Error
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, errors.KindDuplicateRepository, apiErr.Kind)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", "/api/repos", map[string]string{
			"name":     "short-lived",
			"group_id": "group-1",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var r repo.Repository
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))

		rec = doJSON(t, mux, "DELETE", "/api/repos/"+r.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, mux, "GET", "/api/repos/"+r.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBranchEndpoints(t *testing.T) {
	mux, cleanup := setupMux(t)
	defer cleanup()

	r := createTestRepo(t, mux)

	t.Run("CreateFork", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", "/api/repos/"+r.ID+"/branches", map[string]string{
			"name": "feature",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var b branch.Branch
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
		assert.Equal(t, "feature", b.Name)
		assert.NotEmpty(t, b.Head)
	})

	t.Run("UnknownSource", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", "/api/repos/"+r.ID+"/branches", map[string]string{
			"name":          "another",
			"source_branch": "ghost",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var apiErr errors.Error
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, errors.KindUnknownBranch, apiErr.Kind)
	})

	t.Run("ListWithFilter", func(t *testing.T) {
		rec := doJSON(t, mux, "GET", "/api/repos/"+r.ID+"/branches?filter=feat", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var branches []branch.Branch
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&branches))
		require.Len(t, branches, 1)
		assert.Equal(t, "feature", branches[0].Name)
	})
}

func TestCommitEndpoints(t *testing.T) {
	mux, cleanup := setupMux(t)
	defer cleanup()

	r := createTestRepo(t, mux)

	t.Run("CreateAndFetch", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", "/api/repos/"+r.ID+"/branches/main/commits",
			commitBody("add readme", addedChange("README.md", "# R")))
		require.Equal(t, http.StatusCreated, rec.Code)

		var c commit.Commit
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
		assert.Equal(t, "alice", c.Author)
		require.Len(t, c.Changes, 1)

		rec = doJSON(t, mux, "GET", "/api/repos/"+r.ID+"/commits/"+c.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("EmptyMessageRejected", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", "/api/repos/"+r.ID+"/branches/main/commits",
			commitBody("", addedChange("a.txt", "a")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownBranch", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", "/api/repos/"+r.ID+"/branches/ghost/commits",
			commitBody("msg", addedChange("a.txt", "a")))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Log", func(t *testing.T) {
		rec := doJSON(t, mux, "GET", "/api/repos/"+r.ID+"/branches/main/log?limit=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var commits []commit.Commit
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&commits))
		require.Len(t, commits, 1)
		assert.Equal(t, "add readme", commits[0].Message)
	})
}

func TestReadEndpoints(t *testing.T) {
	mux, cleanup := setupMux(t)
	defer cleanup()

	r := createTestRepo(t, mux)

	rec := doJSON(t, mux, "POST", "/api/repos/"+r.ID+"/branches/main/commits",
		commitBody("seed",
			addedChange("README.md", "# hello"),
			addedChange("src/main.go", "package main"),
		))
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("Tree", func(t *testing.T) {
		rec := doJSON(t, mux, "GET", "/api/repos/"+r.ID+"/branches/main/tree", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var nodes []tree.Node
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&nodes))
		assert.Equal(t, []tree.Node{
			{Path: "src", Type: tree.NodeDir},
			{Path: "README.md", Type: tree.NodeFile},
		}, nodes)
	})

	t.Run("File", func(t *testing.T) {
		rec := doJSON(t, mux, "GET", "/api/repos/"+r.ID+"/branches/main/file?path=src/main.go", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var meta tree.FileMetadata
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&meta))
		assert.Equal(t, []byte("package main"), meta.Content)
		assert.False(t, meta.Binary)
	})

	t.Run("FileMissingPathParam", func(t *testing.T) {
		rec := doJSON(t, mux, "GET", "/api/repos/"+r.ID+"/branches/main/file", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("FileNotFound", func(t *testing.T) {
		rec := doJSON(t, mux, "GET", "/api/repos/"+r.ID+"/branches/main/file?path=nope.txt", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Readme", func(t *testing.T) {
		rec := doJSON(t, mux, "GET", "/api/repos/"+r.ID+"/branches/main/readme", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "# hello", rec.Body.String())
	})

	t.Run("ReadmeMissingIsEmpty", func(t *testing.T) {
		rec := doJSON(t, mux, "GET", "/api/repos/"+r.ID+"/branches/main/readme?folder=src", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}
