package visibility

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidParameter is returned before any work starts when a request
// parameter is out of range.
var ErrInvalidParameter = errors.New("invalid parameter")

// EphemerisError records an Engine failure for one (object, instant) pair.
// It never escapes the evaluator; it is counted and sampled into the Report.
type EphemerisError struct {
	Object  string
	Instant time.Time
	Err     error
}

func (e *EphemerisError) Error() string {
	return fmt.Sprintf("ephemeris %s at %s: %v", e.Object, e.Instant.UTC().Format(time.RFC3339), e.Err)
}

func (e *EphemerisError) Unwrap() error { return e.Err }
