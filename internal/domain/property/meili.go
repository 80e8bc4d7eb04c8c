package property

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"gorm.io/gorm"
)

var meiliSorts = map[SortKey][]string{
	SortRecommended: {"rating:desc", "review_count:desc"},
	SortPriceAsc:    {"price_per_night:asc"},
	SortPriceDesc:   {"price_per_night:desc"},
	SortRating:      {"rating:desc", "review_count:desc"},
	SortNewest:      {"created_at:desc"},
	SortPopular:     {"view_count:desc", "like_count:desc"},
}

type meiliGeo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type meiliPropertyDoc struct {
	ID            int64    `json:"id"`
	HostID        int64    `json:"host_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	City          string   `json:"city"`
	Country       string   `json:"country"`
	Geo           meiliGeo `json:"_geo"`
	PropertyType  string   `json:"property_type"`
	Bedrooms      int      `json:"bedrooms"`
	Bathrooms     int      `json:"bathrooms"`
	MaxGuests     int      `json:"max_guests"`
	PricePerNight float64  `json:"price_per_night"`
	Rating        float64  `json:"rating"`
	ReviewCount   int      `json:"review_count"`
	Amenities     []string `json:"amenities"`
	ViewCount     int64    `json:"view_count"`
	LikeCount     int64    `json:"like_count"`
	CreatedAt     int64    `json:"created_at"`
}

// MeiliSearcher serves searches from a Meilisearch index. Like state is
// still read from the database.
type MeiliSearcher struct {
	client meilisearch.ServiceManager
	index  string
	db     *gorm.DB
}

func NewMeiliSearcher(client meilisearch.ServiceManager, index string, db *gorm.DB) *MeiliSearcher {
	s := &MeiliSearcher{client: client, index: index, db: db}
	s.initIndex()
	return s
}

func (s *MeiliSearcher) initIndex() {
	filterableAttrs := []string{"city", "country", "_geo", "property_type", "bedrooms", "bathrooms", "max_guests", "price_per_night", "rating", "amenities"}
	filterableInterface := make([]any, len(filterableAttrs))
	for i, v := range filterableAttrs {
		filterableInterface[i] = v
	}
	if _, err := s.client.Index(s.index).UpdateFilterableAttributes(&filterableInterface); err != nil {
		log.Printf("meili_index_error index=%s op=filterable error=%v", s.index, err)
	}

	sortableAttrs := []string{"price_per_night", "rating", "review_count", "created_at", "view_count", "like_count"}
	if _, err := s.client.Index(s.index).UpdateSortableAttributes(&sortableAttrs); err != nil {
		log.Printf("meili_index_error index=%s op=sortable error=%v", s.index, err)
	}
}

// Index adds or replaces the documents for props.
func (s *MeiliSearcher) Index(props ...Property) error {
	if len(props) == 0 {
		return nil
	}
	docs := make([]meiliPropertyDoc, 0, len(props))
	for i := range props {
		docs = append(docs, docFrom(&props[i]))
	}
	task, err := s.client.Index(s.index).AddDocuments(docs, strPtr("id"))
	if err != nil {
		return fmt.Errorf("index properties: %w", err)
	}
	log.Printf("meili_indexed index=%s count=%d task_id=%d", s.index, len(docs), task.TaskUID)
	return nil
}

// Reindex pushes every published property to the index in id order and
// returns the number of documents sent.
func (s *MeiliSearcher) Reindex(ctx context.Context, repo *Repository, batch int) (int, error) {
	if batch <= 0 {
		batch = 500
	}
	var afterID int64
	total := 0
	for {
		props, err := repo.ListForIndex(ctx, afterID, batch)
		if err != nil {
			return total, fmt.Errorf("list for index: %w", err)
		}
		if len(props) == 0 {
			return total, nil
		}
		if err := s.Index(props...); err != nil {
			return total, err
		}
		total += len(props)
		afterID = props[len(props)-1].ID
	}
}

func (s *MeiliSearcher) Delete(id int64) error {
	_, err := s.client.Index(s.index).DeleteDocument(strconv.FormatInt(id, 10))
	return err
}

func (s *MeiliSearcher) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	params, err := params.Normalize()
	if err != nil {
		return nil, err
	}

	req := &meilisearch.SearchRequest{
		Sort:        meiliSorts[params.Sort],
		Page:        int64(params.Page),
		HitsPerPage: int64(params.PageSize),
	}
	if filter := meiliFilter(params.Filters); len(filter) > 0 {
		req.Filter = filter
	}
	resp, err := s.client.Index(s.index).Search("", req)
	if err != nil {
		return nil, fmt.Errorf("meili search: %w", err)
	}

	raw, err := json.Marshal(resp.Hits)
	if err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}
	var docs []meiliPropertyDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}

	data := make([]Listing, 0, len(docs))
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		data = append(data, d.listing())
		ids = append(ids, d.ID)
	}
	if s.db != nil {
		repo := &Repository{db: s.db}
		if err := repo.markLiked(ctx, params.ViewerID, ids, data); err != nil {
			return nil, err
		}
	}

	return &SearchResult{
		Data:           data,
		Pagination:     NewPagination(params.Page, params.PageSize, resp.TotalHits),
		FiltersApplied: applied(params.Filters),
		Sort:           params.Sort,
	}, nil
}

// meiliFilter builds the AND-ed filter expressions for f. Date availability
// is not indexed and is ignored here.
func meiliFilter(f SearchFilters) []string {
	var out []string
	if hasText(f.City) {
		out = append(out, fmt.Sprintf("city = %s", quote(*f.City)))
	}
	if hasText(f.Country) {
		out = append(out, fmt.Sprintf("country = %s", quote(*f.Country)))
	}
	if f.Latitude != nil && f.Longitude != nil {
		meters := int64(f.Radius() * 1000)
		out = append(out, fmt.Sprintf("_geoRadius(%s, %s, %d)", formatFloat(*f.Latitude), formatFloat(*f.Longitude), meters))
	}
	if f.GuestCount != nil && *f.GuestCount > 0 {
		out = append(out, fmt.Sprintf("max_guests >= %d", *f.GuestCount))
	}
	if f.MinBedrooms != nil && *f.MinBedrooms > 0 {
		out = append(out, fmt.Sprintf("bedrooms >= %d", *f.MinBedrooms))
	}
	if f.MinBathrooms != nil && *f.MinBathrooms > 0 {
		out = append(out, fmt.Sprintf("bathrooms >= %d", *f.MinBathrooms))
	}
	if f.PriceMin != nil {
		out = append(out, "price_per_night >= "+formatFloat(*f.PriceMin))
	}
	if f.PriceMax != nil {
		out = append(out, "price_per_night <= "+formatFloat(*f.PriceMax))
	}
	if len(f.PropertyTypes) > 0 {
		quoted := make([]string, 0, len(f.PropertyTypes))
		for _, t := range f.PropertyTypes {
			quoted = append(quoted, quote(t))
		}
		out = append(out, fmt.Sprintf("property_type IN [%s]", strings.Join(quoted, ", ")))
	}
	for _, a := range f.Amenities {
		out = append(out, fmt.Sprintf("amenities = %s", quote(a)))
	}
	if f.MinRating != nil && *f.MinRating > 0 {
		out = append(out, "rating >= "+formatFloat(*f.MinRating))
	}
	return out
}

func docFrom(p *Property) meiliPropertyDoc {
	return meiliPropertyDoc{
		ID:            p.ID,
		HostID:        p.HostID,
		Title:         p.Title,
		Description:   p.Description,
		City:          p.City,
		Country:       p.Country,
		Geo:           meiliGeo{Lat: p.Latitude, Lng: p.Longitude},
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
		CreatedAt:     p.CreatedAt.Unix(),
	}
}

func (d meiliPropertyDoc) listing() Listing {
	return Listing{
		ID:            d.ID,
		HostID:        d.HostID,
		Title:         d.Title,
		City:          d.City,
		Country:       d.Country,
		Latitude:      d.Geo.Lat,
		Longitude:     d.Geo.Lng,
		PropertyType:  d.PropertyType,
		Bedrooms:      d.Bedrooms,
		Bathrooms:     d.Bathrooms,
		MaxGuests:     d.MaxGuests,
		PricePerNight: d.PricePerNight,
		Rating:        d.Rating,
		ReviewCount:   d.ReviewCount,
		Amenities:     d.Amenities,
		ViewCount:     d.ViewCount,
		LikeCount:     d.LikeCount,
		CreatedAt:     time.Unix(d.CreatedAt, 0).UTC(),
	}
}

func quote(s string) string {
	return strconv.Quote(s)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func strPtr(s string) *string {
	return &s
}

var _ Searcher = (*MeiliSearcher)(nil)
