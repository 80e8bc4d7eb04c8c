// Package feed holds one session's property search state: filters, sort,
// pagination and the accumulated result list.
package feed

import (
	"context"
	"errors"
	"log"
	"sync"

	"staybook/internal/domain/property"
	"staybook/internal/pkg/toast"
)

// PageSize is fixed for every feed request.
const PageSize = 20

// State is a point-in-time copy of a Store.
type State struct {
	Filters            property.SearchFilters `json:"filters"`
	Sort               property.SortKey       `json:"sort"`
	Properties         []property.Listing     `json:"properties"`
	CurrentPage        int                    `json:"current_page"`
	HasNext            bool                   `json:"has_next"`
	TotalCount         int64                  `json:"total_count"`
	TotalPages         int                    `json:"total_pages"`
	ActiveFiltersCount int                    `json:"active_filters_count"`
	Loading            bool                   `json:"loading"`
	Error              string                 `json:"error,omitempty"`
}

type Option func(*Store)

// WithListener is called with a fresh snapshot after every state change.
func WithListener(fn func(State)) Option {
	return func(s *Store) { s.onChange = fn }
}

// Store mediates between a session and a Searcher. Every search gets a
// sequence number; only the response to the newest request is applied.
type Store struct {
	searcher property.Searcher
	likes    property.Liker
	views    property.ViewCounter
	toaster  toast.Toaster
	onChange func(State)

	mu          sync.Mutex
	seq         uint64
	viewerID    int64
	filters     property.SearchFilters
	sort        property.SortKey
	properties  []property.Listing
	currentPage int
	hasNext     bool
	totalCount  int64
	totalPages  int
	active      int
	loading     bool
	err         string
}

func NewStore(searcher property.Searcher, likes property.Liker, views property.ViewCounter, toaster toast.Toaster, opts ...Option) *Store {
	s := &Store{
		searcher: searcher,
		likes:    likes,
		views:    views,
		toaster:  toaster,
		filters:  property.DefaultFilters(),
		sort:     property.SortRecommended,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetViewer switches the identity used for likes and is_liked. Zero means
// anonymous.
func (s *Store) SetViewer(userID int64) {
	s.mu.Lock()
	s.viewerID = userID
	s.mu.Unlock()
}

// ApplyFilters merges partial into the current filters and reloads page 1.
func (s *Store) ApplyFilters(ctx context.Context, partial property.SearchFilters) error {
	s.mu.Lock()
	merged := s.filters.Merge(partial)
	if err := merged.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.filters = merged
	s.currentPage = 1
	s.active = property.ActiveFiltersCount(s.filters, s.sort)
	s.mu.Unlock()

	return s.PerformSearch(ctx, 1, false, nil)
}

// ClearFilters restores the default filters and reloads page 1. The sort
// key is kept.
func (s *Store) ClearFilters(ctx context.Context) error {
	s.mu.Lock()
	s.filters = property.DefaultFilters()
	s.currentPage = 1
	s.active = property.ActiveFiltersCount(s.filters, s.sort)
	s.mu.Unlock()

	return s.PerformSearch(ctx, 1, false, nil)
}

func (s *Store) SetSort(ctx context.Context, key property.SortKey) error {
	if !key.Valid() {
		return property.ErrInvalidSort
	}
	s.mu.Lock()
	s.sort = key
	s.currentPage = 1
	s.active = property.ActiveFiltersCount(s.filters, s.sort)
	s.mu.Unlock()

	return s.PerformSearch(ctx, 1, false, nil)
}

// LoadMore appends the next page. It is a no-op when there is no next page
// or a request is already running.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasNext || s.loading {
		s.mu.Unlock()
		return nil
	}
	next := s.currentPage + 1
	s.mu.Unlock()

	return s.PerformSearch(ctx, next, true, nil)
}

// PerformSearch fetches one page. With appendResults the page is added to
// the current list minus ids already present; otherwise it replaces the
// list. A nil filters uses the store's filters. Failures are toasted only
// for fresh loads.
func (s *Store) PerformSearch(ctx context.Context, page int, appendResults bool, filters *property.SearchFilters) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	f := s.filters.Clone()
	if filters != nil {
		f = filters.Clone()
	}
	params := property.SearchParams{
		Filters:  f,
		Sort:     s.sort,
		Page:     page,
		PageSize: PageSize,
		ViewerID: s.viewerID,
	}
	s.loading = true
	s.mu.Unlock()
	s.changed()

	res, err := s.searcher.Search(ctx, params)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		log.Printf("feed_stale_response seq=%d page=%d", seq, page)
		return nil
	}
	s.loading = false
	if err != nil {
		s.err = err.Error()
		s.mu.Unlock()
		log.Printf("feed_search_error page=%d append=%t error=%v", page, appendResults, err)
		if !appendResults {
			s.toaster.Error("Failed to load properties")
		}
		s.changed()
		return err
	}

	if appendResults {
		s.properties = appendUnique(s.properties, res.Data)
	} else {
		s.properties = append([]property.Listing(nil), res.Data...)
	}
	s.currentPage = res.Pagination.CurrentPage
	s.hasNext = res.Pagination.HasNext
	s.totalCount = res.Pagination.TotalCount
	s.totalPages = res.Pagination.TotalPages
	s.err = ""
	s.mu.Unlock()

	s.changed()
	return nil
}

// HandleLikeProperty flips is_liked on the listing right away and persists
// the change; a failed write restores the previous state.
func (s *Store) HandleLikeProperty(ctx context.Context, propertyID int64) error {
	s.mu.Lock()
	viewer := s.viewerID
	if viewer == 0 {
		s.mu.Unlock()
		s.toaster.Info("Please sign in to save properties")
		return ErrNotAuthenticated
	}
	i := s.indexOf(propertyID)
	if i < 0 {
		s.mu.Unlock()
		return ErrUnknownProperty
	}
	wasLiked := s.properties[i].IsLiked
	s.properties[i].IsLiked = !wasLiked
	if wasLiked {
		s.properties[i].LikeCount--
	} else {
		s.properties[i].LikeCount++
	}
	s.mu.Unlock()
	s.changed()

	var err error
	if wasLiked {
		err = s.likes.Unlike(ctx, viewer, propertyID)
		if errors.Is(err, property.ErrNotLiked) {
			err = nil
		}
	} else {
		err = s.likes.Like(ctx, viewer, propertyID)
		if errors.Is(err, property.ErrAlreadyLiked) {
			err = nil
		}
	}
	if err == nil {
		return nil
	}

	log.Printf("feed_like_error property_id=%d user_id=%d error=%v", propertyID, viewer, err)
	s.mu.Lock()
	if i := s.indexOf(propertyID); i >= 0 && s.properties[i].IsLiked != wasLiked {
		s.properties[i].IsLiked = wasLiked
		if wasLiked {
			s.properties[i].LikeCount++
		} else {
			s.properties[i].LikeCount--
		}
	}
	s.mu.Unlock()
	s.toaster.Error("Failed to update favorites")
	s.changed()
	return err
}

// HandleViewProperty bumps the listing's view count and records the view.
// Views are best effort: errors are logged, never surfaced.
func (s *Store) HandleViewProperty(ctx context.Context, propertyID int64) {
	s.mu.Lock()
	viewer := s.viewerID
	bumped := false
	if i := s.indexOf(propertyID); i >= 0 {
		s.properties[i].ViewCount++
		bumped = true
	}
	s.mu.Unlock()
	if bumped {
		s.changed()
	}

	counted, err := s.views.RecordView(ctx, viewer, propertyID)
	if err != nil {
		log.Printf("feed_view_error property_id=%d user_id=%d error=%v", propertyID, viewer, err)
		return
	}
	if !counted && bumped {
		s.mu.Lock()
		if i := s.indexOf(propertyID); i >= 0 {
			s.properties[i].ViewCount--
		}
		s.mu.Unlock()
		s.changed()
	}
}

func (s *Store) Filters() property.SearchFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Clone()
}

func (s *Store) ActiveFiltersCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Store) IsDefault() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return property.IsDefault(s.filters, s.sort)
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]property.Listing, len(s.properties))
	copy(list, s.properties)
	return State{
		Filters:            s.filters.Clone(),
		Sort:               s.sort,
		Properties:         list,
		CurrentPage:        s.currentPage,
		HasNext:            s.hasNext,
		TotalCount:         s.totalCount,
		TotalPages:         s.totalPages,
		ActiveFiltersCount: s.active,
		Loading:            s.loading,
		Error:              s.err,
	}
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}

func (s *Store) indexOf(id int64) int {
	for i := range s.properties {
		if s.properties[i].ID == id {
			return i
		}
	}
	return -1
}

func appendUnique(have, more []property.Listing) []property.Listing {
	seen := make(map[int64]bool, len(have)+len(more))
	for _, l := range have {
		seen[l.ID] = true
	}
	for _, l := range more {
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		have = append(have, l)
	}
	return have
}
