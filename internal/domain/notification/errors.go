package notification

import "errors"

var (
	ErrNotFound       = errors.New("notification not found")
	ErrInvalidFilter  = errors.New("invalid notification filter")
	ErrUnknownType    = errors.New("unknown notification type")
	ErrInvalidPayload = errors.New("invalid notification payload")
	ErrMissingUser    = errors.New("notification recipient is required")
)
