package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"weddinghub/internal/pkg/validator"
)

type EngineConfig struct {
	// MaxRetries bounds how often a command is replayed after losing an
	// optimistic write. Commands pinned with IfVersion are never replayed.
	MaxRetries int
	Quotes     QuoteDefaults
}

// Engine is the only writer of booking status, payment and completion fields.
type Engine struct {
	store    *Store
	locker   Locker
	recorder Recorder
	notifier Notifier
	cfg      EngineConfig
	loggerf  func(format string, args ...interface{})
	now      func() time.Time
}

func NewEngine(store *Store, locker Locker, recorder Recorder, cfg EngineConfig, loggerf func(format string, args ...interface{})) *Engine {
	if locker == nil {
		locker = nopLocker{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Engine{store: store, locker: locker, recorder: recorder, notifier: nopNotifier{}, cfg: cfg, loggerf: loggerf, now: time.Now}
}

// Result is the outcome of a command. Changed is false for accepted no-ops.
type Result struct {
	Booking *Booking             `json:"booking"`
	History []StatusHistoryEntry `json:"history"`
	Receipt *Receipt             `json:"receipt,omitempty"`
	Quote   *Quote               `json:"quote,omitempty"`
	Changed bool                 `json:"changed"`
}

type TransitionRequest struct {
	Target    Status
	Actor     Actor
	Reason    string
	IfVersion *int64
	Payment   *PaymentInput
}

type CreateInput struct {
	CoupleID    int64            `json:"couple_id"`
	VendorID    int64            `json:"vendor_id" validate:"required,gt=0"`
	ServiceName string           `json:"service_name" validate:"required,max=255"`
	EventDate   *time.Time       `json:"event_date"`
	Notes       string           `json:"notes"`
	Amount      *decimal.Decimal `json:"amount"`
}

// change is the working state of one attempt at a command on a locked row.
type change struct {
	tx  *Store
	b   *Booking
	at  time.Time
	res *Result
}

// move changes status and records the history entry for it.
func (c *change) move(to Status, actor Actor, reason string) {
	c.res.History = append(c.res.History, StatusHistoryEntry{
		BookingID:      c.b.ID,
		PreviousStatus: c.b.Status,
		NewStatus:      to,
		ActorType:      actor.Type,
		ActorID:        actor.ID,
		Reason:         reason,
		CreatedAt:      c.at,
	})
	c.b.Status = to
	c.b.StatusReason = reason
	c.res.Changed = true
}

func (c *change) touch() {
	c.res.Changed = true
}

func (e *Engine) CreateBooking(ctx context.Context, in CreateInput, actor Actor) (*Result, error) {
	const op = "create_booking"

	switch actor.Type {
	case ActorCouple:
		if in.CoupleID != 0 && in.CoupleID != actor.ID {
			return nil, e.fail(op, 0, "", fmt.Errorf("%w: couples book for themselves", ErrUnauthorizedActor))
		}
		in.CoupleID = actor.ID
	case ActorAdmin:
	default:
		return nil, e.fail(op, 0, "", fmt.Errorf("%w: %s cannot create bookings", ErrUnauthorizedActor, actor.Type))
	}
	if !actor.valid() {
		return nil, e.fail(op, 0, "", fmt.Errorf("%w: missing actor id", ErrUnauthorizedActor))
	}
	if errs := validator.Validate(in); errs != nil {
		return nil, e.fail(op, 0, "", validationErr("%s", validator.Summary(errs)))
	}
	if in.CoupleID <= 0 {
		return nil, e.fail(op, 0, "", validationErr("couple_id is required"))
	}

	at := e.tick(time.Time{})
	b := &Booking{
		CoupleID:    in.CoupleID,
		VendorID:    in.VendorID,
		ServiceName: in.ServiceName,
		EventDate:   in.EventDate,
		Notes:       in.Notes,
		Status:      StatusRequest,
		Version:     1,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if in.Amount != nil {
		if in.Amount.IsNegative() {
			return nil, e.fail(op, 0, "", validationErr("amount must not be negative"))
		}
		b.Amount = decimal.NullDecimal{Decimal: money(*in.Amount), Valid: true}
	}
	b.reconcile()

	res := &Result{Booking: b, Changed: true}
	err := e.store.Transaction(ctx, func(tx *Store) error {
		if err := tx.CreateBooking(ctx, b); err != nil {
			return err
		}
		res.History = []StatusHistoryEntry{{
			BookingID: b.ID,
			NewStatus: StatusRequest,
			ActorType: actor.Type,
			ActorID:   actor.ID,
			Reason:    "booking requested",
			CreatedAt: at,
		}}
		return tx.AppendHistory(ctx, res.History)
	})
	if err != nil {
		return nil, e.fail(op, 0, "", err)
	}

	e.loggerf("level=info msg=booking created booking_id=%d couple_id=%d vendor_id=%d actor=%s", b.ID, b.CoupleID, b.VendorID, actor)
	e.recorder.TransitionApplied("", StatusRequest, actor.Type)
	e.publish(op, res)
	return res, nil
}

// RequestTransition moves a booking along one edge of the lifecycle graph.
// Payment-bearing targets record req.Payment through the payment ledger.
func (e *Engine) RequestTransition(ctx context.Context, bookingID int64, req TransitionRequest) (*Result, error) {
	const op = "request_transition"

	target, err := ParseStatus(string(req.Target))
	if err != nil {
		return nil, e.fail(op, bookingID, "", err)
	}
	if !req.Actor.valid() {
		return nil, e.fail(op, bookingID, "", fmt.Errorf("%w: invalid actor %s", ErrUnauthorizedActor, req.Actor))
	}
	if target.IsPaymentBearing() {
		if req.Payment == nil {
			return nil, e.fail(op, bookingID, "", fmt.Errorf("%w: %s requires a payment", ErrPaymentRequired, target))
		}
		if err := validatePayment(*req.Payment); err != nil {
			return nil, e.fail(op, bookingID, "", err)
		}
	}

	return e.mutate(ctx, op, bookingID, req.IfVersion, func(ctx context.Context, c *change) error {
		from := c.b.Status
		if !CanTransition(from, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
		}
		if !actorAllowed(from, target, req.Actor.Type) {
			return fmt.Errorf("%w: %s may not move %s -> %s", ErrUnauthorizedActor, req.Actor.Type, from, target)
		}
		if !req.Actor.owns(c.b) {
			return fmt.Errorf("%w: %s is not a party to this booking", ErrUnauthorizedActor, req.Actor)
		}

		switch {
		case target == StatusQuoteAccepted || target == StatusQuoteRejected:
			q, err := pendingQuote(ctx, c)
			if err != nil {
				return err
			}
			return settleQuote(ctx, c, q, req.Actor, target, req.Reason)
		case target == StatusQuoteSent:
			// Quotes are issued through CreateQuote; this edge only
			// re-announces one that is still pending.
			q, err := pendingQuote(ctx, c)
			if err != nil {
				return err
			}
			c.res.Quote = q
		case target.IsPaymentBearing():
			return e.recordPayment(ctx, c, *req.Payment, req.Actor, req.Reason, target)
		case target == StatusCompleted:
			if !c.b.VendorCompleted || !c.b.CoupleCompleted {
				return invalidState("both parties must confirm completion first")
			}
			c.b.FullyCompleted = true
			if c.b.FullyCompletedAt == nil {
				at := c.at
				c.b.FullyCompletedAt = &at
			}
		}
		c.move(target, req.Actor, req.Reason)
		return nil
	})
}

// mutate runs fn against the locked booking inside a transaction and
// persists the result with an optimistic version check. Lost writes are
// replayed from a fresh read unless the caller pinned ifVersion.
func (e *Engine) mutate(ctx context.Context, op string, bookingID int64, ifVersion *int64, fn func(ctx context.Context, c *change) error) (*Result, error) {
	unlock, err := e.locker.Lock(ctx, lockKey(bookingID))
	if err != nil {
		return nil, e.fail(op, bookingID, "", fmt.Errorf("acquire booking lock: %w", err))
	}
	defer unlock()

	attempts := 1
	if ifVersion == nil {
		attempts += e.cfg.MaxRetries
	}

	for attempt := 1; ; attempt++ {
		res, current, err := e.attempt(ctx, bookingID, ifVersion, fn)
		if err == nil {
			e.observe(op, res)
			return res, nil
		}
		if errors.Is(err, ErrConcurrentModification) && attempt < attempts {
			e.loggerf("level=warn msg=booking write conflict, retrying op=%s booking_id=%d attempt=%d", op, bookingID, attempt)
			continue
		}
		if errors.Is(err, ErrDuplicatePayment) && res != nil {
			return res, e.fail(op, bookingID, current, err)
		}
		return nil, e.fail(op, bookingID, current, err)
	}
}

func (e *Engine) attempt(ctx context.Context, bookingID int64, ifVersion *int64, fn func(ctx context.Context, c *change) error) (*Result, Status, error) {
	res := &Result{}
	var current Status

	err := e.store.Transaction(ctx, func(tx *Store) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		current = b.Status
		if ifVersion != nil && *ifVersion != b.Version {
			return fmt.Errorf("%w: expected version %d, found %d", ErrConcurrentModification, *ifVersion, b.Version)
		}

		expected := b.Version
		c := &change{tx: tx, b: b, at: e.tick(b.UpdatedAt), res: res}
		if err := fn(ctx, c); err != nil {
			if errors.Is(err, ErrDuplicatePayment) {
				snapshot, getErr := tx.GetBooking(ctx, bookingID)
				if getErr == nil {
					res.Booking = snapshot
				}
			}
			return err
		}
		res.Booking = b
		if !res.Changed {
			return nil
		}

		b.reconcile()
		b.Version = expected + 1
		b.UpdatedAt = c.at
		if err := tx.SaveBooking(ctx, b, expected); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, res.History)
	})
	if err != nil {
		return res, current, err
	}
	return res, current, nil
}

func (e *Engine) observe(op string, res *Result) {
	for _, h := range res.History {
		e.loggerf("level=info msg=booking transition op=%s booking_id=%d from=%s to=%s actor=%s:%d", op, h.BookingID, h.PreviousStatus, h.NewStatus, h.ActorType, h.ActorID)
		e.recorder.TransitionApplied(h.PreviousStatus, h.NewStatus, h.ActorType)
	}
	if res.Receipt != nil {
		e.recorder.PaymentApplied(false)
	}
	e.publish(op, res)
}

// fail wraps err for the caller and records it.
func (e *Engine) fail(op string, bookingID int64, current Status, err error) error {
	kind := "internal"
	if k := Kind(err); k != nil {
		kind = k.Error()
	}
	switch kind {
	case "internal":
		e.loggerf("level=error msg=booking command failed op=%s booking_id=%d err=%v", op, bookingID, err)
	case ErrDuplicatePayment.Error():
		e.loggerf("level=info msg=duplicate payment ignored op=%s booking_id=%d", op, bookingID)
		e.recorder.PaymentApplied(true)
	default:
		e.loggerf("level=warn msg=booking command rejected op=%s booking_id=%d status=%s err=%v", op, bookingID, current, err)
	}
	e.recorder.OperationFailed(op, kind)
	return &OpError{Op: op, BookingID: bookingID, Current: current, Err: err}
}

// tick returns the timestamp for a write that follows prev. Timestamps are
// kept at microsecond precision and strictly increase per booking.
func (e *Engine) tick(prev time.Time) time.Time {
	t := e.now().UTC().Truncate(time.Microsecond)
	if !t.After(prev) {
		t = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return t
}

func lockKey(bookingID int64) string {
	return fmt.Sprintf("booking:%d", bookingID)
}
