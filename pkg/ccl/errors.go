package ccl

import (
	"errors"
	"fmt"
)

// ErrMissingReply is returned when a response body parses as JSON but has no
// REPLY envelope.
var ErrMissingReply = errors.New("ccl: response has no REPLY envelope")

// StatusError is a non-success terminal status from the facility
type StatusError struct {
	Facility   string
	Status     StatusCode
	StatusText string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("A %d error occurred in %s: %s", int(e.Status), e.Facility, e.StatusText)
}

// IsStatus reports whether err carries the given facility status
func IsStatus(err error, status StatusCode) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
