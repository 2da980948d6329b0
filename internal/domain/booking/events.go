package booking

import "time"

// Event describes a committed change to one booking. It is delivered after
// the transaction, so subscribers never see rolled-back state.
type Event struct {
	Op          string               `json:"op"`
	BookingID   int64                `json:"booking_id"`
	CoupleID    int64                `json:"couple_id"`
	VendorID    int64                `json:"vendor_id"`
	Status      Status               `json:"status"`
	Version     int64                `json:"version"`
	Transitions []StatusHistoryEntry `json:"transitions,omitempty"`
	Receipt     string               `json:"receipt_number,omitempty"`
	Summary     PaymentSummary       `json:"payment_summary"`
	At          time.Time            `json:"at"`
}

// Notifier receives committed booking changes. Implementations must not block.
type Notifier interface {
	BookingChanged(ev Event)
}

type nopNotifier struct{}

func (nopNotifier) BookingChanged(Event) {}

// SetNotifier installs n as the receiver of committed changes. Call it during
// wiring, before the engine serves commands.
func (e *Engine) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	e.notifier = n
}

func (e *Engine) publish(op string, res *Result) {
	if res == nil || !res.Changed || res.Booking == nil {
		return
	}
	b := res.Booking
	ev := Event{
		Op:          op,
		BookingID:   b.ID,
		CoupleID:    b.CoupleID,
		VendorID:    b.VendorID,
		Status:      b.Status,
		Version:     b.Version,
		Transitions: res.History,
		Summary:     summarize(b),
		At:          b.UpdatedAt,
	}
	if res.Receipt != nil {
		ev.Receipt = res.Receipt.ReceiptNumber
	}
	e.notifier.BookingChanged(ev)
}
