package property

import "errors"

var (
	ErrNotFound        = errors.New("property not found")
	ErrInvalidSort     = errors.New("invalid sort key")
	ErrInvalidFilters  = errors.New("invalid search filters")
	ErrInvalidPage     = errors.New("page must be positive")
	ErrAlreadyLiked    = errors.New("property already liked")
	ErrNotLiked        = errors.New("property not liked")
)
