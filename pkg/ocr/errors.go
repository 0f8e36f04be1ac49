package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrClientClosed is returned by every method once Close has been called.
	ErrClientClosed = errors.New("ocr: client is closed")

	// ErrNoChoices is returned when the server answers with an empty
	// choices collection. This is a protocol violation, not an empty result.
	ErrNoChoices = errors.New("ocr: no choices in response")

	// ErrNotReady is returned by WaitForReady when the server does not
	// become healthy before the timeout elapses.
	ErrNotReady = errors.New("ocr: server did not become ready before timeout")

	// ErrInvalidWorkers is returned when the effective batch worker count
	// is zero or negative.
	ErrInvalidWorkers = errors.New("ocr: worker count must be positive")
)

// StatusError reports a non-2xx HTTP status from the inference server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}
