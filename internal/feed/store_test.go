package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/property"
	"staybook/internal/pkg/toast"
)

type pagedSearcher struct {
	mu    sync.Mutex
	pages map[int][]property.Listing
	total int64
	err   error
	calls []property.SearchParams
}

func (p *pagedSearcher) Search(_ context.Context, params property.SearchParams) (*property.SearchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, params)
	if p.err != nil {
		return nil, p.err
	}
	return &property.SearchResult{
		Data:       p.pages[params.Page],
		Pagination: property.NewPagination(params.Page, params.PageSize, p.total),
		Sort:       params.Sort,
	}, nil
}

func (p *pagedSearcher) last() property.SearchParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

type MockLiker struct {
	mock.Mock
}

func (m *MockLiker) Like(ctx context.Context, userID, propertyID int64) error {
	return m.Called(ctx, userID, propertyID).Error(0)
}

func (m *MockLiker) Unlike(ctx context.Context, userID, propertyID int64) error {
	return m.Called(ctx, userID, propertyID).Error(0)
}

type MockViewCounter struct {
	mock.Mock
}

func (m *MockViewCounter) RecordView(ctx context.Context, userID, propertyID int64) (bool, error) {
	args := m.Called(ctx, userID, propertyID)
	return args.Bool(0), args.Error(1)
}

func listings(from, to int64) []property.Listing {
	out := make([]property.Listing, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, property.Listing{ID: id, Title: "Flat", PricePerNight: 100})
	}
	return out
}

type fixture struct {
	store    *Store
	searcher *pagedSearcher
	likes    *MockLiker
	views    *MockViewCounter
	toasts   *toast.Recorder
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		searcher: &pagedSearcher{pages: map[int][]property.Listing{}},
		likes:    new(MockLiker),
		views:    new(MockViewCounter),
		toasts:   &toast.Recorder{},
	}
	f.store = NewStore(f.searcher, f.likes, f.views, f.toasts, opts...)
	return f
}

func TestPerformSearch_AppendAndReplace(t *testing.T) {
	f := newFixture()
	f.searcher.pages[1] = listings(1, 20)
	f.searcher.pages[2] = listings(21, 40)
	f.searcher.total = 60
	ctx := context.Background()

	require.NoError(t, f.store.PerformSearch(ctx, 1, false, nil))
	st := f.store.Snapshot()
	assert.Len(t, st.Properties, 20)
	assert.Equal(t, 1, st.CurrentPage)
	assert.True(t, st.HasNext)
	assert.Equal(t, int64(60), st.TotalCount)
	assert.Equal(t, 3, st.TotalPages)
	assert.Equal(t, PageSize, f.searcher.last().PageSize)

	require.NoError(t, f.store.PerformSearch(ctx, 2, true, nil))
	st = f.store.Snapshot()
	assert.Len(t, st.Properties, 40)
	assert.Equal(t, 2, st.CurrentPage)

	require.NoError(t, f.store.PerformSearch(ctx, 1, false, nil))
	assert.Len(t, f.store.Snapshot().Properties, 20)
}

func TestPerformSearch_AppendDropsDuplicates(t *testing.T) {
	f := newFixture()
	f.searcher.pages[1] = listings(1, 20)
	f.searcher.pages[2] = listings(16, 35)
	f.searcher.total = 60
	ctx := context.Background()

	require.NoError(t, f.store.PerformSearch(ctx, 1, false, nil))
	require.NoError(t, f.store.LoadMore(ctx))

	st := f.store.Snapshot()
	require.Len(t, st.Properties, 35)
	assert.Equal(t, int64(35), st.Properties[34].ID)
}

func TestPerformSearch_ErrorsToastOnlyFreshLoads(t *testing.T) {
	f := newFixture()
	f.searcher.pages[1] = listings(1, 20)
	f.searcher.total = 40
	ctx := context.Background()
	require.NoError(t, f.store.PerformSearch(ctx, 1, false, nil))

	f.searcher.err = errors.New("upstream down")
	require.Error(t, f.store.LoadMore(ctx))
	assert.Equal(t, 0, f.toasts.Count(toast.LevelError))
	st := f.store.Snapshot()
	assert.Equal(t, "upstream down", st.Error)
	assert.False(t, st.Loading)
	assert.Len(t, st.Properties, 20)

	require.Error(t, f.store.PerformSearch(ctx, 1, false, nil))
	assert.Equal(t, 1, f.toasts.Count(toast.LevelError))
}

func TestPerformSearch_ExplicitFiltersDoNotChangeStore(t *testing.T) {
	f := newFixture()
	city := "Almaty"

	require.NoError(t, f.store.PerformSearch(context.Background(), 1, false, &property.SearchFilters{City: &city}))
	require.NotNil(t, f.searcher.last().Filters.City)
	assert.Nil(t, f.store.Filters().City)
}

func TestLoadMore_NoNextPageIsNoop(t *testing.T) {
	f := newFixture()
	f.searcher.pages[1] = listings(1, 5)
	f.searcher.total = 5
	ctx := context.Background()

	require.NoError(t, f.store.PerformSearch(ctx, 1, false, nil))
	require.NoError(t, f.store.LoadMore(ctx))
	assert.Len(t, f.searcher.calls, 1)
}

func TestApplyAndClearFilters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	min, max := 100.0, 300.0

	require.NoError(t, f.store.ApplyFilters(ctx, property.SearchFilters{PriceMin: &min, PriceMax: &max}))
	require.NoError(t, f.store.ApplyFilters(ctx, property.SearchFilters{PropertyTypes: []string{"villa"}}))

	want := property.DefaultFilters().Merge(property.SearchFilters{PriceMin: &min, PriceMax: &max, PropertyTypes: []string{"villa"}})
	assert.Equal(t, want, f.store.Filters())
	assert.Equal(t, 2, f.store.ActiveFiltersCount())
	assert.False(t, f.store.IsDefault())
	assert.Equal(t, 1, f.searcher.last().Page)
	assert.Equal(t, []string{"villa"}, f.searcher.last().Filters.PropertyTypes)

	require.NoError(t, f.store.SetSort(ctx, property.SortPriceAsc))
	assert.Equal(t, 3, f.store.ActiveFiltersCount())
	assert.Equal(t, property.SortPriceAsc, f.searcher.last().Sort)

	require.NoError(t, f.store.ClearFilters(ctx))
	assert.Equal(t, property.DefaultFilters(), f.store.Filters())
	assert.Equal(t, 1, f.store.ActiveFiltersCount())

	require.NoError(t, f.store.SetSort(ctx, property.SortRecommended))
	assert.Equal(t, 0, f.store.ActiveFiltersCount())
	assert.True(t, f.store.IsDefault())
}

func TestApplyFilters_RejectsInvalidWithoutChangingState(t *testing.T) {
	f := newFixture()
	min, max := 300.0, 100.0

	err := f.store.ApplyFilters(context.Background(), property.SearchFilters{PriceMin: &min, PriceMax: &max})
	assert.ErrorIs(t, err, property.ErrInvalidFilters)
	assert.Equal(t, property.DefaultFilters(), f.store.Filters())
	assert.Empty(t, f.searcher.calls)

	assert.ErrorIs(t, f.store.SetSort(context.Background(), "cheapest"), property.ErrInvalidSort)
}

type gatedSearcher struct {
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (g *gatedSearcher) Search(_ context.Context, params property.SearchParams) (*property.SearchResult, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.started)
		<-g.release
		return &property.SearchResult{Data: listings(100, 101), Pagination: property.NewPagination(1, PageSize, 2)}, nil
	}
	return &property.SearchResult{Data: listings(1, 3), Pagination: property.NewPagination(1, PageSize, 3)}, nil
}

func TestPerformSearch_DiscardsStaleResponses(t *testing.T) {
	g := &gatedSearcher{started: make(chan struct{}), release: make(chan struct{})}
	store := NewStore(g, new(MockLiker), new(MockViewCounter), &toast.Recorder{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- store.PerformSearch(ctx, 1, false, nil) }()
	<-g.started

	city := "Astana"
	require.NoError(t, store.ApplyFilters(ctx, property.SearchFilters{City: &city}))
	close(g.release)
	require.NoError(t, <-done)

	st := store.Snapshot()
	require.Len(t, st.Properties, 3)
	assert.Equal(t, int64(1), st.Properties[0].ID)
	assert.False(t, st.Loading)
}

func TestHandleLikeProperty(t *testing.T) {
	f := newFixture()
	f.searcher.pages[1] = listings(1, 3)
	f.searcher.total = 3
	ctx := context.Background()
	require.NoError(t, f.store.PerformSearch(ctx, 1, false, nil))

	assert.ErrorIs(t, f.store.HandleLikeProperty(ctx, 2), ErrNotAuthenticated)
	assert.Equal(t, 1, f.toasts.Count(toast.LevelInfo))
	f.likes.AssertNotCalled(t, "Like", mock.Anything, mock.Anything, mock.Anything)

	f.store.SetViewer(7)
	f.likes.On("Like", mock.Anything, int64(7), int64(2)).Return(nil).Once()
	require.NoError(t, f.store.HandleLikeProperty(ctx, 2))
	st := f.store.Snapshot()
	assert.True(t, st.Properties[1].IsLiked)
	assert.Equal(t, int64(1), st.Properties[1].LikeCount)

	f.likes.On("Unlike", mock.Anything, int64(7), int64(2)).Return(property.ErrNotLiked).Once()
	require.NoError(t, f.store.HandleLikeProperty(ctx, 2))
	assert.False(t, f.store.Snapshot().Properties[1].IsLiked)

	assert.ErrorIs(t, f.store.HandleLikeProperty(ctx, 99), ErrUnknownProperty)
	f.likes.AssertExpectations(t)
}

func TestHandleLikeProperty_RevertsOnFailure(t *testing.T) {
	var states []State
	f := newFixture(WithListener(func(s State) { states = append(states, s) }))
	f.searcher.pages[1] = listings(1, 3)
	f.searcher.total = 3
	ctx := context.Background()
	require.NoError(t, f.store.PerformSearch(ctx, 1, false, nil))
	f.store.SetViewer(7)

	f.likes.On("Like", mock.Anything, int64(7), int64(3)).Return(errors.New("db down")).Once()
	states = nil

	err := f.store.HandleLikeProperty(ctx, 3)
	require.Error(t, err)

	require.GreaterOrEqual(t, len(states), 2)
	assert.True(t, states[0].Properties[2].IsLiked, "optimistic flip is published first")
	last := f.store.Snapshot().Properties[2]
	assert.False(t, last.IsLiked)
	assert.Zero(t, last.LikeCount)
	assert.Equal(t, 1, f.toasts.Count(toast.LevelError))
}

func TestHandleViewProperty(t *testing.T) {
	f := newFixture()
	f.searcher.pages[1] = listings(1, 2)
	f.searcher.total = 2
	ctx := context.Background()
	require.NoError(t, f.store.PerformSearch(ctx, 1, false, nil))
	f.store.SetViewer(7)

	f.views.On("RecordView", mock.Anything, int64(7), int64(1)).Return(true, nil).Once()
	f.store.HandleViewProperty(ctx, 1)
	assert.Equal(t, int64(1), f.store.Snapshot().Properties[0].ViewCount)

	f.views.On("RecordView", mock.Anything, int64(7), int64(1)).Return(false, nil).Once()
	f.store.HandleViewProperty(ctx, 1)
	assert.Equal(t, int64(1), f.store.Snapshot().Properties[0].ViewCount)

	f.views.On("RecordView", mock.Anything, int64(7), int64(2)).Return(false, errors.New("redis down")).Once()
	f.store.HandleViewProperty(ctx, 2)
	assert.Equal(t, int64(1), f.store.Snapshot().Properties[1].ViewCount)
	assert.Zero(t, f.toasts.Count(toast.LevelError))

	f.views.AssertExpectations(t)
}
