package booking

import (
	"context"
	"fmt"
	"strings"
)

// Side names the party confirming that the service was delivered.
type Side string

const (
	SideVendor Side = "vendor"
	SideCouple Side = "couple"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideVendor:
		return SideVendor, nil
	case SideCouple:
		return SideCouple, nil
	default:
		return "", validationErr("side must be vendor or couple, got %q", s)
	}
}

const completionReason = "both parties confirmed completion"

// RecordCompletion stores one side's confirmation. The second confirmation
// completes the booking in the same write. Repeating a confirmation is a
// no-op that reports Changed=false.
func (e *Engine) RecordCompletion(ctx context.Context, bookingID int64, side Side, actor Actor) (*Result, error) {
	const op = "record_completion"

	side, err := ParseSide(string(side))
	if err != nil {
		return nil, e.fail(op, bookingID, "", err)
	}
	if !actor.valid() {
		return nil, e.fail(op, bookingID, "", fmt.Errorf("%w: invalid actor %s", ErrUnauthorizedActor, actor))
	}

	res, err := e.mutate(ctx, op, bookingID, nil, func(ctx context.Context, c *change) error {
		b := c.b
		if !mayConfirm(actor, side, b) {
			return fmt.Errorf("%w: %s may not confirm completion for the %s", ErrUnauthorizedActor, actor, side)
		}
		if b.Status.IsTerminal() {
			return invalidState("booking is %s", b.Status)
		}

		done, doneAt := &b.VendorCompleted, &b.VendorCompletedAt
		if side == SideCouple {
			done, doneAt = &b.CoupleCompleted, &b.CoupleCompletedAt
		}
		if *done {
			return nil
		}
		if b.Status != StatusFullyPaid && b.Status != StatusInProgress {
			return invalidState("completion can only be confirmed once fully paid or in progress, booking is %s", b.Status)
		}

		at := c.at
		*done = true
		*doneAt = &at
		c.touch()

		if b.VendorCompleted && b.CoupleCompleted {
			b.FullyCompleted = true
			b.FullyCompletedAt = &at
			c.move(StatusCompleted, System(), completionReason)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Changed {
		e.loggerf("level=info msg=completion confirmed booking_id=%d side=%s actor=%s fully_completed=%t", bookingID, side, actor, res.Booking.FullyCompleted)
		e.recorder.CompletionRecorded(side, res.Booking.FullyCompleted)
	}
	return res, nil
}

// ResolveDispute closes a dispute in the vendor's favour. Only admins may
// move a booking out of disputed.
func (e *Engine) ResolveDispute(ctx context.Context, bookingID int64, actor Actor, reason string) (*Result, error) {
	const op = "resolve_dispute"

	if actor.Type != ActorAdmin || !actor.valid() {
		return nil, e.fail(op, bookingID, "", fmt.Errorf("%w: only admins resolve disputes", ErrUnauthorizedActor))
	}
	if strings.TrimSpace(reason) == "" {
		reason = "dispute resolved"
	}

	return e.mutate(ctx, op, bookingID, nil, func(ctx context.Context, c *change) error {
		if c.b.Status != StatusDisputed {
			return invalidState("booking is %s, not disputed", c.b.Status)
		}
		c.move(StatusCompleted, actor, reason)
		return nil
	})
}

func mayConfirm(actor Actor, side Side, b *Booking) bool {
	switch actor.Type {
	case ActorAdmin:
		return true
	case ActorVendor:
		return side == SideVendor && actor.owns(b)
	case ActorCouple:
		return side == SideCouple && actor.owns(b)
	default:
		return false
	}
}
