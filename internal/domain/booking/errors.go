package booking

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound        = errors.New("booking_not_found")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrUnauthorizedActor      = errors.New("unauthorized_actor")
	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrInvalidState           = errors.New("invalid_state")
	ErrDuplicatePayment       = errors.New("duplicate_payment")
	ErrStaleQuote             = errors.New("stale_quote")

	ErrQuoteNotFound   = errors.New("quote_not_found")
	ErrQuoteExpired    = errors.New("quote_expired")
	ErrValidation      = errors.New("validation_error")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrPaymentRequired = errors.New("payment_required")
)

// OpError is returned by every engine command that was rejected. Current is
// the booking's status as stored, so callers can resynchronize.
type OpError struct {
	Op        string
	BookingID int64
	Current   Status
	Err       error
}

func (e *OpError) Error() string {
	if e.Current == "" {
		return fmt.Sprintf("%s booking %d: %v", e.Op, e.BookingID, e.Err)
	}
	return fmt.Sprintf("%s booking %d (status %s): %v", e.Op, e.BookingID, e.Current, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// CurrentStatus extracts the stored status carried by err, if any.
func CurrentStatus(err error) (Status, bool) {
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Current != "" {
		return opErr.Current, true
	}
	return "", false
}

// IsRetryable reports whether the caller may repeat the command unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// Kind returns the sentinel behind err, or nil for infrastructure failures.
func Kind(err error) error {
	for _, kind := range []error{
		ErrBookingNotFound, ErrInvalidTransition, ErrUnauthorizedActor, ErrConcurrentModification,
		ErrInvalidState, ErrDuplicatePayment, ErrStaleQuote, ErrQuoteNotFound, ErrQuoteExpired,
		ErrPaymentRequired, ErrInvalidStatus, ErrValidation,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
