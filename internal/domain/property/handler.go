package property

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"staybook/internal/pkg/response"
)

type Handler struct {
	searcher Searcher
	likes    Liker
	views    ViewCounter
	pageSize int
}

func NewHandler(searcher Searcher, likes Liker, views ViewCounter, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Handler{searcher: searcher, likes: likes, views: views, pageSize: pageSize}
}

// Search runs a paged property search.
// Query: city, country, lat, lng, radius_km, check_in, check_out, guests,
// min_bedrooms, min_bathrooms, price_min, price_max, property_types,
// amenities, min_rating, sort, page, page_size.
func (h *Handler) Search(c *gin.Context) {
	params, err := parseSearchQuery(c)
	if err != nil {
		response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if params.PageSize == 0 {
		params.PageSize = h.pageSize
	}
	params.ViewerID = c.GetInt64("user_id")

	result, err := h.searcher.Search(c.Request.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidFilters), errors.Is(err, ErrInvalidSort), errors.Is(err, ErrInvalidPage):
			response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		default:
			response.CustomError(c, http.StatusInternalServerError, "SEARCH_FAILED", "Failed to search properties")
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

func (h *Handler) Like(c *gin.Context) {
	userID, propertyID, ok := h.likeTarget(c)
	if !ok {
		return
	}

	if err := h.likes.Like(c.Request.Context(), userID, propertyID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.CustomError(c, http.StatusNotFound, "NOT_FOUND", "Property not found")
		case errors.Is(err, ErrAlreadyLiked):
			response.CustomError(c, http.StatusConflict, "ALREADY_LIKED", "Property already liked")
		default:
			response.CustomError(c, http.StatusInternalServerError, "LIKE_FAILED", "Failed to like property")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"property_id": propertyID, "is_liked": true})
}

func (h *Handler) Unlike(c *gin.Context) {
	userID, propertyID, ok := h.likeTarget(c)
	if !ok {
		return
	}

	if err := h.likes.Unlike(c.Request.Context(), userID, propertyID); err != nil {
		if errors.Is(err, ErrNotLiked) {
			response.CustomError(c, http.StatusNotFound, "NOT_LIKED", "Property is not liked")
			return
		}
		response.CustomError(c, http.StatusInternalServerError, "UNLIKE_FAILED", "Failed to unlike property")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"property_id": propertyID, "is_liked": false})
}

// RecordView counts a property view for the caller.
func (h *Handler) RecordView(c *gin.Context) {
	userID, propertyID, ok := h.likeTarget(c)
	if !ok {
		return
	}

	counted, err := h.views.RecordView(c.Request.Context(), userID, propertyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.CustomError(c, http.StatusNotFound, "NOT_FOUND", "Property not found")
			return
		}
		response.CustomError(c, http.StatusInternalServerError, "VIEW_FAILED", "Failed to record view")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"property_id": propertyID, "counted": counted})
}

func (h *Handler) likeTarget(c *gin.Context) (int64, int64, bool) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return 0, 0, false
	}

	propertyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || propertyID <= 0 {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid property ID")
		return 0, 0, false
	}
	return userID, propertyID, true
}

func parseSearchQuery(c *gin.Context) (SearchParams, error) {
	var p SearchParams
	f := &p.Filters

	if v := strings.TrimSpace(c.Query("city")); v != "" {
		f.City = ptr(v)
	}
	if v := strings.TrimSpace(c.Query("country")); v != "" {
		f.Country = ptr(v)
	}
	if v := c.Query("check_in"); v != "" {
		f.CheckIn = ptr(v)
	}
	if v := c.Query("check_out"); v != "" {
		f.CheckOut = ptr(v)
	}

	floats := []struct {
		name string
		dst  **float64
	}{
		{"lat", &f.Latitude},
		{"lng", &f.Longitude},
		{"radius_km", &f.SearchRadiusKm},
		{"price_min", &f.PriceMin},
		{"price_max", &f.PriceMax},
		{"min_rating", &f.MinRating},
	}
	for _, q := range floats {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, fmt.Errorf("invalid %s", q.name)
		}
		*q.dst = ptr(v)
	}

	ints := []struct {
		name string
		dst  **int
	}{
		{"guests", &f.GuestCount},
		{"min_bedrooms", &f.MinBedrooms},
		{"min_bathrooms", &f.MinBathrooms},
	}
	for _, q := range ints {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("invalid %s", q.name)
		}
		*q.dst = ptr(v)
	}

	f.PropertyTypes = splitCSV(c.Query("property_types"))
	f.Amenities = splitCSV(c.Query("amenities"))

	p.Sort = SortKey(c.Query("sort"))

	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return p, fmt.Errorf("invalid page")
		}
		p.Page = v
	}
	if raw := c.Query("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return p, fmt.Errorf("invalid page_size")
		}
		p.PageSize = v
	}
	return p, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
