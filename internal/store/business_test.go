package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/EmailFinder/internal/database"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BusinessStore {
	t.Helper()
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	s := NewBusinessStore(db)
	for _, b := range []struct{ name, site string }{
		{"Acme HQ", "https://acme.com"},
		{"Acme Shop", "www.acme.com/shop"},
		{"Globex", "globex.io"},
	} {
		require.NoError(t, s.Insert(context.Background(), b.name, b.site))
	}
	return s
}

func TestSaveEmailNoDowngrade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	written, err := s.SaveEmail(ctx, 1, "info@acme.com", models.SourcePageScan)
	require.NoError(t, err)
	assert.True(t, written)

	email, err := s.CurrentEmail(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "info@acme.com", email)

	t.Run("空邮箱不覆盖", func(t *testing.T) {
		written, err := s.SaveEmail(ctx, 1, "", models.SourceNone)
		require.NoError(t, err)
		assert.False(t, written)

		email, _ := s.CurrentEmail(ctx, 1)
		assert.Equal(t, "info@acme.com", email)
	})

	t.Run("相同邮箱不重复写", func(t *testing.T) {
		written, err := s.SaveEmail(ctx, 1, "INFO@acme.com", models.SourceCrawl)
		require.NoError(t, err)
		assert.False(t, written)
	})

	t.Run("不同邮箱更新", func(t *testing.T) {
		written, err := s.SaveEmail(ctx, 1, "sales@acme.com", models.SourceCrawl)
		require.NoError(t, err)
		assert.True(t, written)

		email, _ := s.CurrentEmail(ctx, 1)
		assert.Equal(t, "sales@acme.com", email)
	})

	t.Run("记录不存在", func(t *testing.T) {
		email, err := s.CurrentEmail(ctx, 404)
		require.NoError(t, err)
		assert.Empty(t, email)

		written, err := s.SaveEmail(ctx, 404, "x@acme.com", models.SourceCrawl)
		require.NoError(t, err)
		assert.False(t, written)
	})
}

func TestPropagateEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveEmail(ctx, 1, "info@acme.com", models.SourcePageScan)
	require.NoError(t, err)

	n, err := s.PropagateEmail(ctx, "acme.com", "info@acme.com", models.SourcePageScan, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	email, _ := s.CurrentEmail(ctx, 2)
	assert.Equal(t, "info@acme.com", email)

	email, _ = s.CurrentEmail(ctx, 3)
	assert.Empty(t, email, "其他域名不受影响")

	// 已有邮箱的记录不会被传播覆盖
	_, _ = s.SaveEmail(ctx, 2, "shop@acme.com", models.SourceCrawl)
	n, err = s.PropagateEmail(ctx, "acme.com", "info@acme.com", models.SourcePageScan, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPendingTargets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	targets, err := s.PendingTargets(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, targets, 3)
	require.NotNil(t, targets[0].BusinessID)
	assert.Equal(t, int64(1), *targets[0].BusinessID)
	assert.Equal(t, "acme.com", targets[1].Domain)

	_, _ = s.SaveEmail(ctx, 1, "info@acme.com", models.SourcePageScan)

	targets, err = s.PendingTargets(ctx, 0, "acme")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, int64(2), *targets[0].BusinessID)

	targets, err = s.PendingTargets(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, targets, 1)
}

func TestExportRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, _ = s.SaveEmail(ctx, 3, "hello@globex.io", models.SourceSearchEngine)

	rows, err := s.ExportRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Globex", rows[2].Name)
	assert.Equal(t, "hello@globex.io", rows[2].Email)
	assert.Equal(t, "search_engine", rows[2].EmailSource)
	assert.NotEmpty(t, rows[2].EmailUpdatedAt)
	assert.Empty(t, rows[0].Email)
}
