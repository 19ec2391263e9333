package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodvault/internal/chunker"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	return c
}

func testIDs() chunker.SourceIDs {
	return chunker.SourceIDs{
		UserID:         7,
		CreatedAt:      time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		PostID:         42,
		CollectionCode: "0000",
	}
}

func TestUpsertCreatesPostAndVideo(t *testing.T) {
	ctx := context.Background()
	c := testCatalog(t)

	require.NoError(t, c.Upsert(ctx, testIDs(), "media-code-1", true))

	code, err := c.MediaCode(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "media-code-1", code)
}

func TestUpsertSupersedesMediaCode(t *testing.T) {
	ctx := context.Background()
	c := testCatalog(t)

	require.NoError(t, c.Upsert(ctx, testIDs(), "old-code", false))
	require.NoError(t, c.Upsert(ctx, testIDs(), "new-code", false))

	code, err := c.MediaCode(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "new-code", code)

	var posts []Post
	require.NoError(t, c.db.Find(&posts).Error)
	assert.Len(t, posts, 1)
}

func TestUpsertLinksCollection(t *testing.T) {
	ctx := context.Background()
	c := testCatalog(t)

	ids := testIDs()
	ids.CollectionCode = "0012"
	require.NoError(t, c.Upsert(ctx, ids, "code", false))
	require.NoError(t, c.Upsert(ctx, ids, "code", false))

	var items []MediaCollectionItem
	require.NoError(t, c.db.Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, int64(12), items[0].CollectionID)
	assert.Equal(t, int64(42), items[0].PostID)
}

func TestUpsertSkipsSystemCollection(t *testing.T) {
	ctx := context.Background()
	c := testCatalog(t)

	require.NoError(t, c.Upsert(ctx, testIDs(), "code", false))

	var items []MediaCollectionItem
	require.NoError(t, c.db.Find(&items).Error)
	assert.Empty(t, items)
}
