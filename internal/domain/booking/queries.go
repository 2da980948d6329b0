package booking

import (
	"context"
	"fmt"
)

// view loads a booking for a read by viewer. Only the couple, the vendor,
// admins and the system may see it.
func (e *Engine) view(ctx context.Context, op string, bookingID int64, viewer Actor) (*Booking, error) {
	if !viewer.valid() {
		return nil, &OpError{Op: op, BookingID: bookingID, Err: fmt.Errorf("%w: invalid actor %s", ErrUnauthorizedActor, viewer)}
	}
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, &OpError{Op: op, BookingID: bookingID, Err: err}
	}
	if !viewer.owns(b) {
		return nil, &OpError{Op: op, BookingID: bookingID, Err: fmt.Errorf("%w: %s is not a party to this booking", ErrUnauthorizedActor, viewer)}
	}
	return b, nil
}

func (e *Engine) GetBooking(ctx context.Context, bookingID int64, viewer Actor) (*Booking, error) {
	return e.view(ctx, "get_booking", bookingID, viewer)
}

func (e *Engine) PaymentSummary(ctx context.Context, bookingID int64, viewer Actor) (*PaymentSummary, error) {
	b, err := e.view(ctx, "payment_summary", bookingID, viewer)
	if err != nil {
		return nil, err
	}
	summary := summarize(b)
	return &summary, nil
}

// History returns the audit trail of a booking, oldest first.
func (e *Engine) History(ctx context.Context, bookingID int64, viewer Actor) ([]StatusHistoryEntry, error) {
	b, err := e.view(ctx, "history", bookingID, viewer)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.ListHistory(ctx, bookingID)
	if err != nil {
		return nil, &OpError{Op: "history", BookingID: bookingID, Current: b.Status, Err: err}
	}
	return entries, nil
}

func (e *Engine) Receipts(ctx context.Context, bookingID int64, viewer Actor) ([]Receipt, error) {
	b, err := e.view(ctx, "receipts", bookingID, viewer)
	if err != nil {
		return nil, err
	}
	receipts, err := e.store.ListReceipts(ctx, bookingID)
	if err != nil {
		return nil, &OpError{Op: "receipts", BookingID: bookingID, Current: b.Status, Err: err}
	}
	return receipts, nil
}
