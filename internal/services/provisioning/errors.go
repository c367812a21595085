package provisioning

import (
	"errors"
	"fmt"
)

// ErrLocationBusy is returned when another run holds the location's lock.
var ErrLocationBusy = errors.New("location is busy with another provisioning run")

// ErrNoNumbersAvailable is returned when an area code search comes back empty.
var ErrNoNumbersAvailable = errors.New("no phone numbers available")

// ValidationError reports a malformed request. No provider call has been made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// NotFoundError reports a location with no stored connection.
type NotFoundError struct {
	LocationID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("location %s not found", e.LocationID)
}

// HardStopError reports a step failure that aborted the run. The run's result still carries
// the partial step log.
type HardStopError struct {
	Step StepKind
	Err  error
}

func (e *HardStopError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *HardStopError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsHardStop reports whether err is a HardStopError.
func IsHardStop(err error) bool {
	var hs *HardStopError
	return errors.As(err, &hs)
}
