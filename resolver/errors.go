package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed covers transport errors, non-2xx statuses and bodies over
	// the size limit.
	ErrFetchFailed = errors.New("resolver: fetch failed")
	// ErrIntegrity means fetched bytes do not match the pointer's hash.
	ErrIntegrity = errors.New("resolver: content hash mismatch")
	// ErrEmptyLocator is returned when asked to fetch "".
	ErrEmptyLocator = errors.New("resolver: empty locator")
)

// FetchError describes a failed GET. It unwraps to ErrFetchFailed and, when
// present, the transport error.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("resolver: GET %s: http %d", e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("resolver: GET %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("resolver: GET %s failed", e.URL)
	}
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}

// IsFetchFailed reports whether err came from a failed fetch.
func IsFetchFailed(err error) bool { return errors.Is(err, ErrFetchFailed) }
