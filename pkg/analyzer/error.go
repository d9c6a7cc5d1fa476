package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// UpstreamError wraps provider errors with status metadata.
type UpstreamError struct {
	Status      int
	RateLimited bool
	Err         error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("upstream error (status=%d)", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsRateLimited reports whether the upstream sent an explicit retry-later
// signal.
func IsRateLimited(err error) bool {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.RateLimited || upstreamErr.Status == http.StatusTooManyRequests
	}
	return false
}

// IsUnavailable reports whether the upstream could not be reached or answered
// with a server-side failure. Timeouts count as unavailable.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var upstreamErr *UpstreamError
	return errors.As(err, &upstreamErr)
}

// upstreamError classifies a raw provider error by HTTP status.
func upstreamError(status int, err error) *UpstreamError {
	return &UpstreamError{
		Status:      status,
		RateLimited: status == http.StatusTooManyRequests,
		Err:         err,
	}
}
