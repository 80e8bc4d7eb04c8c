package property

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

const kmPerDegree = 111.045

var sortClauses = map[SortKey]string{
	SortRecommended: "rating DESC, review_count DESC, id ASC",
	SortPriceAsc:    "price_per_night ASC, id ASC",
	SortPriceDesc:   "price_per_night DESC, id ASC",
	SortRating:      "rating DESC, review_count DESC, id ASC",
	SortNewest:      "created_at DESC, id DESC",
	SortPopular:     "view_count DESC, like_count DESC, id ASC",
}

// Repository is the gorm store for properties. It also serves searches
// straight from SQL when no search engine is configured.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Create inserts p together with its amenity rows.
func (r *Repository) Create(ctx context.Context, p *Property, amenities ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		for _, name := range amenities {
			a := Amenity{PropertyID: p.ID, Name: name}
			if err := tx.Create(&a).Error; err != nil {
				return err
			}
			p.Amenities = append(p.Amenities, a)
		}
		return nil
	})
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Property, error) {
	var p Property
	err := r.db.WithContext(ctx).Preload("Amenities").First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// HostOf returns the host user id and title of a property.
func (r *Repository) HostOf(ctx context.Context, id int64) (int64, string, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, "", err
	}
	return p.HostID, p.Title, nil
}

// ListForIndex pages through published properties in id order.
func (r *Repository) ListForIndex(ctx context.Context, afterID int64, limit int) ([]Property, error) {
	var out []Property
	err := r.db.WithContext(ctx).
		Preload("Amenities").
		Where("status = ? AND id > ?", StatusPublished, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Search implements Searcher over SQL. The radius filter is a bounding box
// around the given point.
func (r *Repository) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	params, err := params.Normalize()
	if err != nil {
		return nil, err
	}
	f := params.Filters

	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&Property{}).Where("status = ?", StatusPublished)
		if hasText(f.City) {
			q = q.Where("LOWER(city) = LOWER(?)", *f.City)
		}
		if hasText(f.Country) {
			q = q.Where("LOWER(country) = LOWER(?)", *f.Country)
		}
		if f.Latitude != nil && f.Longitude != nil {
			minLat, maxLat, minLng, maxLng := boundingBox(*f.Latitude, *f.Longitude, f.Radius())
			q = q.Where("latitude BETWEEN ? AND ?", minLat, maxLat).
				Where("longitude BETWEEN ? AND ?", minLng, maxLng)
		}
		if f.GuestCount != nil && *f.GuestCount > 0 {
			q = q.Where("max_guests >= ?", *f.GuestCount)
		}
		if f.MinBedrooms != nil && *f.MinBedrooms > 0 {
			q = q.Where("bedrooms >= ?", *f.MinBedrooms)
		}
		if f.MinBathrooms != nil && *f.MinBathrooms > 0 {
			q = q.Where("bathrooms >= ?", *f.MinBathrooms)
		}
		if f.PriceMin != nil {
			q = q.Where("price_per_night >= ?", *f.PriceMin)
		}
		if f.PriceMax != nil {
			q = q.Where("price_per_night <= ?", *f.PriceMax)
		}
		if len(f.PropertyTypes) > 0 {
			q = q.Where("property_type IN ?", f.PropertyTypes)
		}
		if f.MinRating != nil && *f.MinRating > 0 {
			q = q.Where("rating >= ?", *f.MinRating)
		}
		if len(f.Amenities) > 0 {
			sub := r.db.Model(&Amenity{}).
				Select("property_id").
				Where("name IN ?", f.Amenities).
				Group("property_id").
				Having("COUNT(DISTINCT name) = ?", len(f.Amenities))
			q = q.Where("id IN (?)", sub)
		}
		if f.CheckIn != nil && f.CheckOut != nil {
			in, _ := time.Parse(dateLayout, *f.CheckIn)
			out, _ := time.Parse(dateLayout, *f.CheckOut)
			q = q.Where("id NOT IN (SELECT property_id FROM bookings WHERE status = ? AND check_in < ? AND check_out > ?)", "confirmed", out, in)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count properties: %w", err)
	}

	var rows []Property
	err = scoped().
		Preload("Amenities").
		Order(sortClauses[params.Sort]).
		Limit(params.PageSize).
		Offset(params.offset()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search properties: %w", err)
	}

	data := make([]Listing, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for i := range rows {
		data = append(data, listingFrom(&rows[i]))
		ids = append(ids, rows[i].ID)
	}
	if err := r.markLiked(ctx, params.ViewerID, ids, data); err != nil {
		return nil, err
	}

	return &SearchResult{
		Data:           data,
		Pagination:     NewPagination(params.Page, params.PageSize, total),
		FiltersApplied: applied(f),
		Sort:           params.Sort,
	}, nil
}

func (r *Repository) markLiked(ctx context.Context, viewerID int64, ids []int64, data []Listing) error {
	if viewerID <= 0 || len(ids) == 0 {
		return nil
	}
	var liked []int64
	err := r.db.WithContext(ctx).
		Model(&Like{}).
		Where("user_id = ? AND property_id IN ?", viewerID, ids).
		Pluck("property_id", &liked).Error
	if err != nil {
		return fmt.Errorf("load likes: %w", err)
	}
	set := make(map[int64]bool, len(liked))
	for _, id := range liked {
		set[id] = true
	}
	for i := range data {
		data[i].IsLiked = set[data[i].ID]
	}
	return nil
}

// applied echoes the filters with the radius the query actually used.
func applied(f SearchFilters) SearchFilters {
	out := f.Clone()
	if out.Latitude != nil && out.SearchRadiusKm == nil {
		out.SearchRadiusKm = ptr(DefaultSearchRadiusKm)
	}
	return out
}

func boundingBox(lat, lng, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusKm / kmPerDegree
	cos := math.Cos(lat * math.Pi / 180)
	dLng := 180.0
	if cos > 1e-6 {
		dLng = math.Min(radiusKm/(kmPerDegree*cos), 180)
	}
	return lat - dLat, lat + dLat, lng - dLng, lng + dLng
}

var _ Searcher = (*Repository)(nil)
