package oracle

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse marks a reply that could not be parsed into the
	// schema of its call site.
	ErrMalformedResponse = errors.New("malformed oracle response")
	// ErrUnavailable marks a failed or timed out call to the reasoning service.
	ErrUnavailable = errors.New("oracle unavailable")
)

// MalformedError carries the offending reply for logging.
type MalformedError struct {
	Site string
	Raw  string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrMalformedResponse, e.Site, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedResponse }

// Malformed wraps err as a MalformedError for a call site.
func Malformed(site, raw string, err error) error {
	return &MalformedError{Site: site, Raw: raw, Err: err}
}
