package property

import (
	"fmt"
	"time"
)

const (
	DefaultGuestCount     = 1
	DefaultMinBedrooms    = 0
	DefaultMinBathrooms   = 0
	DefaultSearchRadiusKm = 50.0

	dateLayout = "2006-01-02"
)

// SortKey orders search results.
type SortKey string

const (
	SortRecommended SortKey = "recommended"
	SortPriceAsc    SortKey = "price_asc"
	SortPriceDesc   SortKey = "price_desc"
	SortRating      SortKey = "rating"
	SortNewest      SortKey = "newest"
	SortPopular     SortKey = "popular"
)

func (s SortKey) Valid() bool {
	switch s {
	case SortRecommended, SortPriceAsc, SortPriceDesc, SortRating, SortNewest, SortPopular:
		return true
	}
	return false
}

// SearchFilters is the full filter set of a property search. A nil field
// means no constraint.
type SearchFilters struct {
	City           *string  `json:"city,omitempty"`
	Country        *string  `json:"country,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	SearchRadiusKm *float64 `json:"search_radius_km,omitempty"`
	CheckIn        *string  `json:"check_in,omitempty"`
	CheckOut       *string  `json:"check_out,omitempty"`
	GuestCount     *int     `json:"guest_count,omitempty"`
	MinBedrooms    *int     `json:"min_bedrooms,omitempty"`
	MinBathrooms   *int     `json:"min_bathrooms,omitempty"`
	PriceMin       *float64 `json:"price_min,omitempty"`
	PriceMax       *float64 `json:"price_max,omitempty"`
	PropertyTypes  []string `json:"property_types,omitempty"`
	Amenities      []string `json:"amenities,omitempty"`
	MinRating      *float64 `json:"min_rating,omitempty"`
}

// DefaultFilters is the state a cleared search starts from.
func DefaultFilters() SearchFilters {
	return SearchFilters{
		GuestCount:     ptr(DefaultGuestCount),
		MinBedrooms:    ptr(DefaultMinBedrooms),
		MinBathrooms:   ptr(DefaultMinBathrooms),
		SearchRadiusKm: ptr(DefaultSearchRadiusKm),
	}
}

// Merge returns f with every field set in partial overriding it.
func (f SearchFilters) Merge(partial SearchFilters) SearchFilters {
	out := f.Clone()
	if partial.City != nil {
		out.City = ptr(*partial.City)
	}
	if partial.Country != nil {
		out.Country = ptr(*partial.Country)
	}
	if partial.Latitude != nil {
		out.Latitude = ptr(*partial.Latitude)
	}
	if partial.Longitude != nil {
		out.Longitude = ptr(*partial.Longitude)
	}
	if partial.SearchRadiusKm != nil {
		out.SearchRadiusKm = ptr(*partial.SearchRadiusKm)
	}
	if partial.CheckIn != nil {
		out.CheckIn = ptr(*partial.CheckIn)
	}
	if partial.CheckOut != nil {
		out.CheckOut = ptr(*partial.CheckOut)
	}
	if partial.GuestCount != nil {
		out.GuestCount = ptr(*partial.GuestCount)
	}
	if partial.MinBedrooms != nil {
		out.MinBedrooms = ptr(*partial.MinBedrooms)
	}
	if partial.MinBathrooms != nil {
		out.MinBathrooms = ptr(*partial.MinBathrooms)
	}
	if partial.PriceMin != nil {
		out.PriceMin = ptr(*partial.PriceMin)
	}
	if partial.PriceMax != nil {
		out.PriceMax = ptr(*partial.PriceMax)
	}
	if partial.PropertyTypes != nil {
		out.PropertyTypes = append([]string(nil), partial.PropertyTypes...)
	}
	if partial.Amenities != nil {
		out.Amenities = append([]string(nil), partial.Amenities...)
	}
	if partial.MinRating != nil {
		out.MinRating = ptr(*partial.MinRating)
	}
	return out
}

// Clone is a deep copy; the result shares no pointers with f.
func (f SearchFilters) Clone() SearchFilters {
	return SearchFilters{
		City:           clonePtr(f.City),
		Country:        clonePtr(f.Country),
		Latitude:       clonePtr(f.Latitude),
		Longitude:      clonePtr(f.Longitude),
		SearchRadiusKm: clonePtr(f.SearchRadiusKm),
		CheckIn:        clonePtr(f.CheckIn),
		CheckOut:       clonePtr(f.CheckOut),
		GuestCount:     clonePtr(f.GuestCount),
		MinBedrooms:    clonePtr(f.MinBedrooms),
		MinBathrooms:   clonePtr(f.MinBathrooms),
		PriceMin:       clonePtr(f.PriceMin),
		PriceMax:       clonePtr(f.PriceMax),
		PropertyTypes:  cloneSlice(f.PropertyTypes),
		Amenities:      cloneSlice(f.Amenities),
		MinRating:      clonePtr(f.MinRating),
	}
}

// Validate rejects values no query can honor.
func (f SearchFilters) Validate() error {
	if (f.Latitude == nil) != (f.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude go together", ErrInvalidFilters)
	}
	if f.Latitude != nil && (*f.Latitude < -90 || *f.Latitude > 90) {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidFilters)
	}
	if f.Longitude != nil && (*f.Longitude < -180 || *f.Longitude > 180) {
		return fmt.Errorf("%w: longitude out of range", ErrInvalidFilters)
	}
	if f.SearchRadiusKm != nil && *f.SearchRadiusKm <= 0 {
		return fmt.Errorf("%w: search radius must be positive", ErrInvalidFilters)
	}
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return fmt.Errorf("%w: price_min above price_max", ErrInvalidFilters)
	}
	if f.GuestCount != nil && *f.GuestCount < 1 {
		return fmt.Errorf("%w: guest_count must be at least 1", ErrInvalidFilters)
	}
	if (f.CheckIn == nil) != (f.CheckOut == nil) {
		return fmt.Errorf("%w: check_in and check_out go together", ErrInvalidFilters)
	}
	if f.CheckIn != nil {
		in, err := time.Parse(dateLayout, *f.CheckIn)
		if err != nil {
			return fmt.Errorf("%w: check_in: %v", ErrInvalidFilters, err)
		}
		out, err := time.Parse(dateLayout, *f.CheckOut)
		if err != nil {
			return fmt.Errorf("%w: check_out: %v", ErrInvalidFilters, err)
		}
		if !out.After(in) {
			return fmt.Errorf("%w: check_out must be after check_in", ErrInvalidFilters)
		}
	}
	return nil
}

// Radius is the effective search radius, falling back to the default.
func (f SearchFilters) Radius() float64 {
	if f.SearchRadiusKm == nil {
		return DefaultSearchRadiusKm
	}
	return *f.SearchRadiusKm
}

// ActiveFiltersCount counts the filter dimensions that differ from the
// defaults. A non-default sort counts as one more.
func ActiveFiltersCount(f SearchFilters, sort SortKey) int {
	n := 0
	if hasText(f.City) || hasText(f.Country) || f.Latitude != nil {
		n++
	}
	if f.CheckIn != nil || f.CheckOut != nil {
		n++
	}
	if (f.PriceMin != nil && *f.PriceMin > 0) || f.PriceMax != nil {
		n++
	}
	if len(f.PropertyTypes) > 0 {
		n++
	}
	if len(f.Amenities) > 0 {
		n++
	}
	if f.GuestCount != nil && *f.GuestCount > DefaultGuestCount {
		n++
	}
	if f.MinBedrooms != nil && *f.MinBedrooms > DefaultMinBedrooms {
		n++
	}
	if f.MinBathrooms != nil && *f.MinBathrooms > DefaultMinBathrooms {
		n++
	}
	if f.MinRating != nil && *f.MinRating > 0 {
		n++
	}
	if sort != "" && sort != SortRecommended {
		n++
	}
	return n
}

// IsDefault reports whether nothing would be counted as an active filter.
func IsDefault(f SearchFilters, sort SortKey) bool {
	return ActiveFiltersCount(f, sort) == 0
}

func hasText(s *string) bool {
	return s != nil && *s != ""
}

func ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
