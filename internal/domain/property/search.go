package property

import (
	"context"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SearchParams is one paged search request.
type SearchParams struct {
	Filters  SearchFilters
	Sort     SortKey
	Page     int
	PageSize int
	// ViewerID resolves IsLiked on each listing; zero for anonymous searches.
	ViewerID int64
}

// Normalize applies page and sort defaults and validates the rest.
func (p SearchParams) Normalize() (SearchParams, error) {
	if p.Sort == "" {
		p.Sort = SortRecommended
	}
	if !p.Sort.Valid() {
		return p, ErrInvalidSort
	}
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Page < 0 {
		return p, ErrInvalidPage
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if err := p.Filters.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (p SearchParams) offset() int {
	return (p.Page - 1) * p.PageSize
}

// Listing is one search hit as the feed renders it.
type Listing struct {
	ID            int64     `json:"id"`
	HostID        int64     `json:"host_id"`
	Title         string    `json:"title"`
	City          string    `json:"city"`
	Country       string    `json:"country"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	PropertyType  string    `json:"property_type"`
	Bedrooms      int       `json:"bedrooms"`
	Bathrooms     int       `json:"bathrooms"`
	MaxGuests     int       `json:"max_guests"`
	PricePerNight float64   `json:"price_per_night"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"review_count"`
	Amenities     []string  `json:"amenities"`
	ViewCount     int64     `json:"view_count"`
	LikeCount     int64     `json:"like_count"`
	IsLiked       bool      `json:"is_liked"`
	CreatedAt     time.Time `json:"created_at"`
}

func listingFrom(p *Property) Listing {
	return Listing{
		ID:            p.ID,
		HostID:        p.HostID,
		Title:         p.Title,
		City:          p.City,
		Country:       p.Country,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		PropertyType:  p.PropertyType,
		Bedrooms:      p.Bedrooms,
		Bathrooms:     p.Bathrooms,
		MaxGuests:     p.MaxGuests,
		PricePerNight: p.PricePerNight,
		Rating:        p.Rating,
		ReviewCount:   p.ReviewCount,
		Amenities:     p.AmenityNames(),
		ViewCount:     p.ViewCount,
		LikeCount:     p.LikeCount,
		CreatedAt:     p.CreatedAt,
	}
}

// Pagination is the envelope every paged search returns.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalCount  int64 `json:"total_count"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// NewPagination derives the envelope from a page request and a total.
func NewPagination(page, pageSize int, total int64) Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Pagination{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalCount:  total,
		TotalPages:  pages,
		HasNext:     page < pages,
		HasPrev:     page > 1,
	}
}

type SearchResult struct {
	Data           []Listing     `json:"data"`
	Pagination     Pagination    `json:"pagination"`
	FiltersApplied SearchFilters `json:"filters_applied"`
	Sort           SortKey       `json:"sort"`
}

// Searcher runs paged property searches.
type Searcher interface {
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
}
