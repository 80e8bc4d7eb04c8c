package realtime

import "errors"

var (
	ErrInvalidFilter     = errors.New("invalid realtime filter")
	ErrUnsupportedFilter = errors.New("unsupported realtime filter")
	ErrChannelClosed     = errors.New("realtime channel closed")
	ErrUnknownChannel    = errors.New("channel not registered on this client")
)
