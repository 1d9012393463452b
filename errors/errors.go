package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation   = fmt.Errorf("invalid request")
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrForbidden    = fmt.Errorf("forbidden")
	ErrNotFound     = fmt.Errorf("not found")
	ErrStore        = fmt.Errorf("store failure")

	// ErrDuplicateMessage rejects an exact repeat of the sender's
	// immediately preceding message. Wraps ErrValidation so the boundary
	// maps it to a bad request.
	ErrDuplicateMessage = fmt.Errorf("%w: duplicate message detected", ErrValidation)
)

// RateLimitError carries the retry hint callers need to back off.
type RateLimitError struct {
	RetryAfter time.Duration
	Count      int64
	Limit      int64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %d/%d, retry in %s", e.Count, e.Limit, e.RetryAfter)
}

// AsRateLimit unwraps err into a RateLimitError if one is in the chain.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
