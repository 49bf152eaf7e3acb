package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

type cachedDoc struct {
	Names []string `json:"names"`
}

func TestMemoryCacheSetGetExpire(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	now := time.Unix(1000, 0)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "snapshot:student_data.json", cachedDoc{Names: []string{"Amy"}}, time.Minute))

	var got cachedDoc
	require.NoError(t, cache.Get(ctx, "snapshot:student_data.json", &got))
	assert.Equal(t, []string{"Amy"}, got.Names)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, cache.Get(ctx, "snapshot:student_data.json", &got), appErrors.ErrCacheMiss)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	require.NoError(t, cache.Set(ctx, "snapshot:a.json", cachedDoc{}, 0))
	require.NoError(t, cache.Set(ctx, "snapshot:b.json", cachedDoc{}, 0))
	require.NoError(t, cache.Set(ctx, "other", cachedDoc{}, 0))

	require.NoError(t, cache.DeleteByPattern(ctx, "snapshot:*"))

	var got cachedDoc
	assert.ErrorIs(t, cache.Get(ctx, "snapshot:a.json", &got), appErrors.ErrCacheMiss)
	assert.NoError(t, cache.Get(ctx, "other", &got))
}

func TestCacheRepositoryWithoutClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var got cachedDoc
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &got), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", got, time.Minute))
	assert.NoError(t, repo.Close())
}
