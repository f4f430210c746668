package booking

import (
	"errors"
	"fmt"
	"strings"

	"facility-booking-backend/internal/lifecycle"
	"facility-booking-backend/internal/rules"
)

var (
	// ErrNotFound is returned for an unknown booking or facility id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status change is not permitted
	// from the booking's current (derived) state.
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	// ErrInvalidInput is returned for missing reasons or malformed dates and times.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStaleState is returned when the booking changed after the caller read it.
	ErrStaleState = errors.New("stale state")
	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrValidationFailed matches every *ValidationError.
	ErrValidationFailed = errors.New("validation failed")
	// ErrQuotaExceeded matches every *QuotaError.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// ValidationError carries every rule a candidate booking violates.
type ValidationError struct {
	Violations []rules.Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

// Is lets errors.Is(err, ErrValidationFailed) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// QuotaError reports which ceiling was hit and what is left.
type QuotaError struct {
	Reason         string
	RemainingMonth int
	DailyMinutes   int
	DailyCount     float64
}

func (e *QuotaError) Error() string {
	return "quota exceeded: " + e.Reason
}

// Is lets errors.Is(err, ErrQuotaExceeded) match.
func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Kind returns a short machine-readable name for the error class of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrStaleState):
		return "stale_state"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return "internal"
}
