package domain

import "errors"

var (
	// ErrRateLimited covers every burst, duplicate and daily limit. Callers never learn which one fired.
	ErrRateLimited = errors.New("too many submissions, please try again later")
	// ErrVerificationFailed is returned when the human-verification challenge did not pass.
	ErrVerificationFailed = errors.New("security check failed")
	// ErrBudgetExhausted indicates the global daily classifier budget is spent.
	ErrBudgetExhausted = errors.New("daily analysis capacity reached")
	// ErrCapacityExhausted indicates the classifier concurrency ceiling is reached.
	ErrCapacityExhausted = errors.New("analysis capacity reached")
	// ErrClassifierTimeout indicates the classifier did not answer before the deadline.
	ErrClassifierTimeout = errors.New("analysis timed out")
	// ErrEmptyClassification is returned when the classifier produced nothing usable.
	ErrEmptyClassification = errors.New("classifier returned an empty response")
)

// ValidationError carries a client-safe reason for rejecting a payload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Invalid builds a ValidationError.
func Invalid(reason string) error {
	return &ValidationError{Reason: reason}
}
