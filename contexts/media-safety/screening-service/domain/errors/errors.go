package errors

import "errors"

var (
	ErrInvalidMedia          = errors.New("media type or size not allowed")
	ErrContentRejected       = errors.New("content rejected")
	ErrScreeningUnavailable  = errors.New("classifier unavailable")
	ErrEmptyScreeningRequest = errors.New("nothing to screen")
)
