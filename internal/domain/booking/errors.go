package booking

import "errors"

var (
	ErrValidation              = errors.New("validation error")
	ErrNotAvailable            = errors.New("booking not available")
	ErrOverbooking             = errors.New("overbooking constraint violation")
	ErrDuplicateRequest        = errors.New("duplicate booking request")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidStatusTransition = errors.New("invalid_status_transition")
	ErrNotFound                = errors.New("not_found")
	ErrPropertyNotFound        = errors.New("property not found")
)
