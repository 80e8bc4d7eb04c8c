package property

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeService_LikeAndUnlike(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	likes := NewLikeService(db, nil)
	p := seedProperty(t, repo, "Loft", 90)
	ctx := context.Background()

	require.NoError(t, likes.Like(ctx, 7, p.ID))
	assert.ErrorIs(t, likes.Like(ctx, 7, p.ID), ErrAlreadyLiked)
	require.NoError(t, likes.Like(ctx, 8, p.ID))

	count, err := likes.LikeCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	liked, err := likes.IsLiked(ctx, 7, p.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	require.NoError(t, likes.Unlike(ctx, 7, p.ID))
	assert.ErrorIs(t, likes.Unlike(ctx, 7, p.ID), ErrNotLiked)

	count, err = likes.LikeCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLikeService_UnknownProperty(t *testing.T) {
	db := newTestDB(t)
	likes := NewLikeService(db, nil)

	assert.ErrorIs(t, likes.Like(context.Background(), 7, 404), ErrNotFound)

	_, err := likes.LikeCount(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch_MarksViewerLikes(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	likes := NewLikeService(db, nil)
	a := seedProperty(t, repo, "A", 100)
	b := seedProperty(t, repo, "B", 200)
	ctx := context.Background()

	require.NoError(t, likes.Like(ctx, 7, b.ID))

	res, err := repo.Search(ctx, SearchParams{Sort: SortPriceAsc, ViewerID: 7})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, a.ID, res.Data[0].ID)
	assert.False(t, res.Data[0].IsLiked)
	assert.True(t, res.Data[1].IsLiked)
	assert.Equal(t, int64(1), res.Data[1].LikeCount)

	res, err = repo.Search(ctx, SearchParams{Sort: SortPriceAsc})
	require.NoError(t, err)
	assert.False(t, res.Data[1].IsLiked)
}

func TestViewService_WithoutRedisCountsEveryView(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	views := NewViewService(db, nil)
	p := seedProperty(t, repo, "Loft", 90)
	ctx := context.Background()

	counted, err := views.RecordView(ctx, 7, p.ID)
	require.NoError(t, err)
	assert.True(t, counted)
	_, err = views.RecordView(ctx, 7, p.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)

	_, err = views.RecordView(ctx, 7, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	synced, err := views.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, synced)
}
