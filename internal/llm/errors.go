package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrUpstream matches every failure reported by the chat endpoint, whether
// an HTTP rejection or a timeout.
var ErrUpstream = errors.New("upstream chat service error")

// UpstreamError reports a non-success HTTP status (rate limit, auth failure,
// bad request) or a transport failure. StatusCode is zero for the latter.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("chat endpoint returned HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("chat endpoint unreachable: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// TimeoutError reports that a chat call exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("chat call timed out after %s: %v", e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrUpstream }
