package notify

import "errors"

var (
	ErrInvalidUser         = errors.New("user id must be positive")
	ErrNilCallback         = errors.New("notification callback is required")
	ErrManagerClosed       = errors.New("subscription manager closed")
	ErrSubscribeFailed     = errors.New("realtime subscribe failed")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrUnknownNotification = errors.New("notification not in cache")
	ErrUnknownAction       = errors.New("unknown notification action")
	ErrActionNotApplicable = errors.New("action does not apply to this notification")
)
