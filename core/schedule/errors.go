package schedule

import (
	"fmt"

	"github.com/pkg/errors"
)

// NoAvailabilityError is returned when the calendar has no usable study slot.
type NoAvailabilityError struct {
	Reason string
}

func (e *NoAvailabilityError) Error() string {
	return fmt.Sprintf("no study availability: %s; increase the daily study hours or move the exam date", e.Reason)
}

// ConcurrencyConflictError is returned when another generation of the same plan holds the
// plan lock for longer than the configured wait. The whole request can be retried.
type ConcurrencyConflictError struct {
	PlanID int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("a schedule is already being generated for plan %d; retry shortly", e.PlanID)
}

// PersistenceError wraps a failed, rolled back, schedule write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Cause() error  { return e.Err }
func (e *PersistenceError) Unwrap() error { return e.Err }

func IsNoAvailability(err error) bool {
	_, ok := errors.Cause(err).(*NoAvailabilityError)
	return ok
}

func IsConcurrencyConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConcurrencyConflictError)
	return ok
}

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
