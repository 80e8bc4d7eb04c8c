package feed

import "errors"

var (
	ErrNotAuthenticated = errors.New("feed: sign in required")
	ErrUnknownProperty  = errors.New("feed: property not in results")
)
