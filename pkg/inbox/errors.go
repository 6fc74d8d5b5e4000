package inbox

import (
	"errors"
	"fmt"
	"time"

	"inboxd/pkg/models"
)

var (
	// ErrForbidden reports a failed membership check: the caller is not a
	// participant of the conversation. Distinct from ErrNotFound.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound reports a missing thread or conversation.
	ErrNotFound = errors.New("not found")
)

// ValidationError wraps a payload schema violation. Always a caller error;
// never retried automatically.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid payload: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// RateLimitedError reports admission rejection. RetryAfter is the time
// until the channel's window refills.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// AdapterError reports a failed channel side effect. The item stays
// persisted; the error is surfaced so the caller knows delivery did not
// complete.
type AdapterError struct {
	Channel models.Channel
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s failed: %v", e.Channel, e.Err)
}
func (e *AdapterError) Unwrap() error { return e.Err }
