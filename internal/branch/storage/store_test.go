package storage

import (
	"testing"

	"keep/internal/branch"
	"keep/internal/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*badger.DB, func()) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)

	return db, func() { db.Close() }
}

func seedMain(t *testing.T, store *Store, repoID, head string) {
	t.Helper()
	err := store.store.DB().Update(func(txn *badger.Txn) error {
		_, err := store.CreateAtTxn(txn, repoID, branch.DefaultName, head)
		return err
	})
	require.NoError(t, err)
}

func TestBranchStore_Create(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStore(db)
	seedMain(t, store, "repo-1", "head-0")

	t.Run("ForkFromNamedSource", func(t *testing.T) {
		b, err := store.Create("repo-1", "feature", "main")
		require.NoError(t, err)
		assert.Equal(t, "feature", b.Name)
		assert.Equal(t, "head-0", b.Head)
	})

	t.Run("SourceDefaultsToMain", func(t *testing.T) {
		b, err := store.Create("repo-1", "hotfix", "")
		require.NoError(t, err)
		assert.Equal(t, "head-0", b.Head)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		_, err := store.Create("repo-1", "feature", "")
		assert.True(t, errors.Is(err, errors.KindDuplicateBranch))
	})

	t.Run("UnknownSource", func(t *testing.T) {
		_, err := store.Create("repo-1", "another", "nope")
		assert.True(t, errors.Is(err, errors.KindUnknownBranch))
	})

	t.Run("MalformedName", func(t *testing.T) {
		_, err := store.Create("repo-1", "bad/name", "")
		assert.True(t, errors.Is(err, errors.KindInvalidInput))
	})

	t.Run("SameNameInOtherRepo", func(t *testing.T) {
		seedMain(t, store, "repo-2", "other-head")
		b, err := store.Create("repo-2", "feature", "")
		require.NoError(t, err)
		assert.Equal(t, "other-head", b.Head)
	})
}

func TestBranchStore_Advance(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStore(db)
	seedMain(t, store, "repo-1", "head-0")

	t.Run("AdvanceMovesHead", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			b, err := store.AdvanceTxn(txn, "repo-1", "main", "head-0", "head-1")
			if err != nil {
				return err
			}
			assert.Equal(t, "head-1", b.Head)
			return nil
		})
		require.NoError(t, err)

		head, err := store.Resolve("repo-1", "main")
		require.NoError(t, err)
		assert.Equal(t, "head-1", head)
	})

	t.Run("StaleExpectedHead", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			_, err := store.AdvanceTxn(txn, "repo-1", "main", "head-0", "head-2")
			return err
		})
		assert.True(t, errors.Is(err, errors.KindConcurrentModification))

		// Head untouched by the failed advance
		head, err := store.Resolve("repo-1", "main")
		require.NoError(t, err)
		assert.Equal(t, "head-1", head)
	})

	t.Run("UnknownBranch", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			_, err := store.AdvanceTxn(txn, "repo-1", "ghost", "x", "y")
			return err
		})
		assert.True(t, errors.Is(err, errors.KindUnknownBranch))
	})
}

func TestBranchStore_List(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStore(db)
	seedMain(t, store, "repo-1", "head-0")

	for _, name := range []string{"feature-b", "feature-a", "release"} {
		_, err := store.Create("repo-1", name, "")
		require.NoError(t, err)
	}

	t.Run("SortedByName", func(t *testing.T) {
		branches, err := store.List("repo-1", "")
		require.NoError(t, err)
		require.Len(t, branches, 4)
		assert.Equal(t, "feature-a", branches[0].Name)
		assert.Equal(t, "feature-b", branches[1].Name)
		assert.Equal(t, "main", branches[2].Name)
		assert.Equal(t, "release", branches[3].Name)
	})

	t.Run("SubstringFilter", func(t *testing.T) {
		branches, err := store.List("repo-1", "feature")
		require.NoError(t, err)
		require.Len(t, branches, 2)
		assert.Equal(t, "feature-a", branches[0].Name)
		assert.Equal(t, "feature-b", branches[1].Name)
	})

	t.Run("EmptyRepo", func(t *testing.T) {
		branches, err := store.List("repo-none", "")
		require.NoError(t, err)
		assert.Empty(t, branches)
	})
}

func TestBranchStore_DeleteRepo(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStore(db)
	seedMain(t, store, "repo-1", "head-0")
	_, err := store.Create("repo-1", "feature", "")
	require.NoError(t, err)

	require.NoError(t, store.DeleteRepo("repo-1"))

	_, err = store.Resolve("repo-1", "main")
	assert.True(t, errors.Is(err, errors.KindUnknownBranch))

	branches, err := store.List("repo-1", "")
	require.NoError(t, err)
	assert.Empty(t, branches)
}
