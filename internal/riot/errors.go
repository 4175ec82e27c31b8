package riot

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport error classes the crawler reacts to. Anything else coming out of
// the client is an unexpected error and is logged at the item boundary.
var (
	// ErrNotFound: the remote resource does not exist (404). Counted and
	// skipped, never retried.
	ErrNotFound = errors.New("resource not found")

	// ErrThrottled: the remote signalled a rate violation (429). Wait and
	// retry the same request.
	ErrThrottled = errors.New("request throttled")

	// ErrTransient: the remote is temporarily unavailable (5xx or transport
	// failure). Same handling as ErrThrottled.
	ErrTransient = errors.New("transient remote failure")
)

// StatusError carries the HTTP status of a failed API call, wrapped around
// one of the class sentinels where one applies.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("riot api returned status %d for %s", e.Status, e.URL)
}

func classify(status int, url string) error {
	se := &StatusError{Status: status, URL: url}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, se)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrThrottled, se)
	case status >= 500:
		return fmt.Errorf("%w: %v", ErrTransient, se)
	default:
		return se
	}
}

// Retryable reports whether err is worth retrying after a short wait.
func Retryable(err error) bool {
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrTransient)
}
