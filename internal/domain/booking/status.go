package booking

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Status is the canonical lifecycle state of a booking.
type Status string

const (
	StatusRequest        Status = "request"
	StatusQuoteRequested Status = "quote_requested"
	StatusQuoteSent      Status = "quote_sent"
	StatusQuoteAccepted  Status = "quote_accepted"
	StatusQuoteRejected  Status = "quote_rejected"
	StatusApproved       Status = "approved"
	StatusDownpayment    Status = "downpayment"
	StatusFullyPaid      Status = "fully_paid"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusDeclined       Status = "declined"
	StatusRefunded       Status = "refunded"
	StatusDisputed       Status = "disputed"
)

// AllStatuses returns every canonical status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusRequest,
		StatusQuoteRequested,
		StatusQuoteSent,
		StatusQuoteAccepted,
		StatusQuoteRejected,
		StatusApproved,
		StatusDownpayment,
		StatusFullyPaid,
		StatusInProgress,
		StatusCompleted,
		StatusCancelled,
		StatusDeclined,
		StatusRefunded,
		StatusDisputed,
	}
}

// synonyms maps legacy and client spellings onto canonical values.
var synonyms = map[string]Status{
	"pending":          StatusRequest,
	"requested":        StatusRequest,
	"accepted":         StatusQuoteAccepted,
	"rejected":         StatusQuoteRejected,
	"confirmed":        StatusApproved,
	"deposit":          StatusDownpayment,
	"deposit_paid":     StatusDownpayment,
	"downpayment_paid": StatusDownpayment,
	"down_payment":     StatusDownpayment,
	"partially_paid":   StatusDownpayment,
	"paid":             StatusFullyPaid,
	"paid_in_full":     StatusFullyPaid,
	"fullypaid":        StatusFullyPaid,
	"full_payment":     StatusFullyPaid,
	"inprogress":       StatusInProgress,
	"ongoing":          StatusInProgress,
	"done":             StatusCompleted,
	"complete":         StatusCompleted,
	"canceled":         StatusCancelled,
	"refund":           StatusRefunded,
	"dispute":          StatusDisputed,
}

// ParseStatus normalizes s to its canonical status.
func ParseStatus(s string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty status", ErrInvalidStatus)
	}

	st := Status(key)
	if st.IsValid() {
		return st, nil
	}
	if canon, ok := synonyms[key]; ok {
		return canon, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusRequest, StatusQuoteRequested, StatusQuoteSent, StatusQuoteAccepted, StatusQuoteRejected,
		StatusApproved, StatusDownpayment, StatusFullyPaid, StatusInProgress, StatusCompleted,
		StatusCancelled, StatusDeclined, StatusRefunded, StatusDisputed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no ordinary transition leaves s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusDeclined, StatusRefunded, StatusDisputed:
		return true
	default:
		return false
	}
}

// IsPaymentBearing reports whether entering s records money received.
func (s Status) IsPaymentBearing() bool {
	return s == StatusDownpayment || s == StatusFullyPaid
}

// AcceptsPayment reports whether a payment may be applied while in s.
func (s Status) AcceptsPayment() bool {
	switch s {
	case StatusQuoteAccepted, StatusApproved, StatusDownpayment, StatusFullyPaid, StatusInProgress:
		return true
	default:
		return false
	}
}

func (s Status) beforeDownpayment() bool {
	return s == StatusQuoteAccepted || s == StatusApproved
}

// Scan canonicalizes legacy spellings stored in the database.
func (s *Status) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*s = ""
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("booking: cannot scan %T into Status", value)
	}
	if strings.TrimSpace(raw) == "" {
		*s = ""
		return nil
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s Status) Value() (driver.Value, error) {
	if s == "" {
		return "", nil
	}
	st, err := ParseStatus(string(s))
	if err != nil {
		return nil, err
	}
	return string(st), nil
}
