package pattern

import "errors"

var (
	ErrInvalidConfig  = errors.New("invalid pattern config")
	ErrUnknownPattern = errors.New("unknown pattern")
	ErrInvalidRange   = errors.New("invalid date range")
)
