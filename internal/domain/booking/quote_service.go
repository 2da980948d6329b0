package booking

import (
	"context"
	"errors"
	"fmt"

	"weddinghub/internal/pkg/validator"
)

// CreateQuote prices in and makes it the active quote of the booking. Older
// pending quotes are superseded. A first quote, or one answering a rejection,
// moves the booking to quote_sent; a quote issued while quote_sent is a
// revision and leaves status alone.
func (e *Engine) CreateQuote(ctx context.Context, bookingID int64, in QuoteInput, actor Actor) (*Result, error) {
	const op = "create_quote"

	if actor.Type != ActorVendor || !actor.valid() {
		return nil, e.fail(op, bookingID, "", fmt.Errorf("%w: only the booked vendor sends quotes", ErrUnauthorizedActor))
	}
	if errs := validator.Validate(in); errs != nil {
		return nil, e.fail(op, bookingID, "", validationErr("%s", validator.Summary(errs)))
	}

	return e.mutate(ctx, op, bookingID, nil, func(ctx context.Context, c *change) error {
		b := c.b
		if !actor.owns(b) {
			return fmt.Errorf("%w: %s is not the vendor of this booking", ErrUnauthorizedActor, actor)
		}

		revision := b.Status == StatusQuoteSent
		if !revision && !CanTransition(b.Status, StatusQuoteSent) {
			return invalidState("quotes cannot be sent while booking is %s", b.Status)
		}

		q, err := priceQuote(in, e.cfg.Quotes, c.at)
		if err != nil {
			return err
		}
		seq, err := c.tx.CountQuotes(ctx, b.ID)
		if err != nil {
			return err
		}
		q.BookingID = b.ID
		q.QuoteNumber = quoteNumber(b.ID, seq+1, c.at)
		q.CreatedBy = actor.ID
		q.CreatedAt = c.at
		q.UpdatedAt = c.at

		if err := c.tx.SupersedePending(ctx, b.ID, "superseded by "+q.QuoteNumber); err != nil {
			return err
		}
		if err := c.tx.CreateQuote(ctx, q); err != nil {
			return err
		}
		c.res.Quote = q

		if revision {
			c.touch()
			return nil
		}
		c.move(StatusQuoteSent, actor, "quote "+q.QuoteNumber+" sent")
		return nil
	})
}

// AcceptQuote agrees the booking amount and downpayment from the quote.
func (e *Engine) AcceptQuote(ctx context.Context, quoteID int64, actor Actor) (*Result, error) {
	return e.answerQuote(ctx, "accept_quote", quoteID, actor, StatusQuoteAccepted, "")
}

func (e *Engine) RejectQuote(ctx context.Context, quoteID int64, actor Actor, reason string) (*Result, error) {
	return e.answerQuote(ctx, "reject_quote", quoteID, actor, StatusQuoteRejected, reason)
}

func (e *Engine) answerQuote(ctx context.Context, op string, quoteID int64, actor Actor, target Status, reason string) (*Result, error) {
	if actor.Type != ActorCouple || !actor.valid() {
		return nil, e.fail(op, 0, "", fmt.Errorf("%w: only the couple answers quotes", ErrUnauthorizedActor))
	}
	q, err := e.store.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, e.fail(op, 0, "", err)
	}

	return e.mutate(ctx, op, q.BookingID, nil, func(ctx context.Context, c *change) error {
		b := c.b
		if !actor.owns(b) {
			return fmt.Errorf("%w: %s is not the couple of this booking", ErrUnauthorizedActor, actor)
		}

		q, err := c.tx.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		return settleQuote(ctx, c, q, actor, target, reason)
	})
}

// pendingQuote returns the booking's newest quote if it still awaits an
// answer.
func pendingQuote(ctx context.Context, c *change) (*Quote, error) {
	q, err := c.tx.LatestQuote(ctx, c.b.ID)
	if err != nil {
		if errors.Is(err, ErrQuoteNotFound) {
			return nil, invalidState("booking has no quote")
		}
		return nil, err
	}
	if q.Status != QuotePending {
		return nil, invalidState("quote %s is %s, not pending", q.QuoteNumber, q.Status)
	}
	return q, nil
}

// settleQuote answers q and moves the booking to target. Accepting agrees
// the booking amount and downpayment from the quote.
func settleQuote(ctx context.Context, c *change, q *Quote, actor Actor, target Status, reason string) error {
	b := c.b
	switch q.Status {
	case QuoteAccepted, QuoteRejected:
		return invalidState("quote %s is already %s", q.QuoteNumber, q.Status)
	case QuoteSuperseded:
		return fmt.Errorf("%w: quote %s was superseded", ErrStaleQuote, q.QuoteNumber)
	}
	latest, err := c.tx.LatestQuote(ctx, b.ID)
	if err != nil {
		return err
	}
	if latest.ID != q.ID {
		return fmt.Errorf("%w: quote %s was replaced by %s", ErrStaleQuote, q.QuoteNumber, latest.QuoteNumber)
	}
	if !CanTransition(b.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
	}
	if target == StatusQuoteAccepted && c.at.After(q.ValidUntil) {
		return fmt.Errorf("%w: quote %s was valid until %s", ErrQuoteExpired, q.QuoteNumber, q.ValidUntil.Format("2006-01-02"))
	}

	quoteStatus := QuoteRejected
	if target == StatusQuoteAccepted {
		quoteStatus = QuoteAccepted
	}
	if err := c.tx.SetQuoteStatus(ctx, q, quoteStatus, reason); err != nil {
		return err
	}
	if target == StatusQuoteAccepted {
		b.Amount.Decimal, b.Amount.Valid = q.Total, true
		b.DepositAmount = q.DownpaymentAmount
		b.reconcile()
	}
	if reason == "" {
		reason = "quote " + q.QuoteNumber + " " + string(quoteStatus)
	}
	c.res.Quote = q
	c.move(target, actor, reason)
	return nil
}

// ListQuotes returns the quotes of a booking, newest first.
func (e *Engine) ListQuotes(ctx context.Context, bookingID int64, viewer Actor) ([]Quote, error) {
	if _, err := e.view(ctx, "list_quotes", bookingID, viewer); err != nil {
		return nil, err
	}
	quotes, err := e.store.ListQuotes(ctx, bookingID)
	if err != nil {
		return nil, e.fail("list_quotes", bookingID, "", err)
	}
	return quotes, nil
}

// CurrentQuote returns the newest quote of a booking, or ErrQuoteNotFound.
func (e *Engine) CurrentQuote(ctx context.Context, bookingID int64, viewer Actor) (*Quote, error) {
	b, err := e.view(ctx, "current_quote", bookingID, viewer)
	if err != nil {
		return nil, err
	}
	q, err := e.store.LatestQuote(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ErrQuoteNotFound) {
			return nil, &OpError{Op: "current_quote", BookingID: bookingID, Current: b.Status, Err: err}
		}
		return nil, e.fail("current_quote", bookingID, b.Status, err)
	}
	return q, nil
}
