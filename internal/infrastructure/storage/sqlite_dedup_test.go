package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
)

func newTestDedupStore(t *testing.T) *SQLiteDedupStore {
	t.Helper()
	store, err := NewSQLiteDedupStore(filepath.Join(t.TempDir(), "dedup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func papersWithIDs(ids ...string) []domain.Paper {
	papers := make([]domain.Paper, len(ids))
	for i, id := range ids {
		papers[i] = domain.Paper{ID: id, Categories: []string{"cs.CV"}}
	}
	return papers
}

func TestFilterNewEmptyStore(t *testing.T) {
	t.Parallel()

	store := newTestDedupStore(t)
	ctx := context.Background()

	fresh, err := store.FilterNew(ctx, papersWithIDs("a", "b"))
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestCommitThenFilterNew(t *testing.T) {
	t.Parallel()

	store := newTestDedupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, []string{"a", "c"}))

	fresh, err := store.FilterNew(ctx, papersWithIDs("a", "b", "c"))
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "b", fresh[0].ID)
}

func TestFilterNewIsReadOnly(t *testing.T) {
	t.Parallel()

	store := newTestDedupStore(t)
	ctx := context.Background()

	papers := papersWithIDs("x")
	for i := 0; i < 3; i++ {
		fresh, err := store.FilterNew(ctx, papers)
		require.NoError(t, err)
		assert.Len(t, fresh, 1, "repeated filter calls must not record ids")
	}
}

func TestCommitIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestDedupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, []string{"a"}))
	require.NoError(t, store.Commit(ctx, []string{"a", "b"}))

	fresh, err := store.FilterNew(ctx, papersWithIDs("a", "b"))
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestCommitSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dedup.db")
	ctx := context.Background()

	store, err := NewSQLiteDedupStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, []string{"persisted"}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteDedupStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	fresh, err := reopened.FilterNew(ctx, papersWithIDs("persisted", "new"))
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "new", fresh[0].ID)
}
