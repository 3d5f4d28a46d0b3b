package resources

import (
	"errors"
	"fmt"
)

// ResourceExhaustedError reports that a stacked pool or tip tracker
// was asked for one more unit than its registered capacity allows.
// Fatal to the current step unless the caller pre-checks counts.
type ResourceExhaustedError struct {
	TrackerID string // which tracker ran dry
	Resource  string // what ran out: "plate", "lid", "tip column", "return slot"
	Count     int    // registered capacity
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("resource exhausted: %s has no %s left (capacity %d)", e.TrackerID, e.Resource, e.Count)
}

// IsExhausted reports whether err is (or wraps) a
// ResourceExhaustedError.
func IsExhausted(err error) bool {
	var re *ResourceExhaustedError
	return errors.As(err, &re)
}
