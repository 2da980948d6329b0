package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"weddinghub/internal/pkg/validator"
)

// PaymentInput is a verified payment event. Reference is the gateway's
// idempotency key.
type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" validate:"required,max=128"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

type PaymentRequest struct {
	BookingID int64
	PaymentInput
}

// PaymentSummary is the read model behind the payment progress view.
type PaymentSummary struct {
	BookingID        int64               `json:"booking_id"`
	Status           Status              `json:"status"`
	Amount           decimal.NullDecimal `json:"amount"`
	TotalPaid        decimal.Decimal     `json:"total_paid"`
	RemainingBalance decimal.NullDecimal `json:"remaining_balance"`
	DepositAmount    decimal.Decimal     `json:"deposit_amount"`
	ProgressPercent  decimal.Decimal     `json:"progress_percent"`
}

func summarize(b *Booking) PaymentSummary {
	return PaymentSummary{
		BookingID:        b.ID,
		Status:           b.Status,
		Amount:           b.Amount,
		TotalPaid:        b.TotalPaid,
		RemainingBalance: b.RemainingBalance,
		DepositAmount:    b.DepositAmount,
		ProgressPercent:  b.ProgressPercent(),
	}
}

// ApplyPayment records a verified payment exactly once per reference. A
// replayed reference returns the original receipt and the current booking
// together with ErrDuplicatePayment.
func (e *Engine) ApplyPayment(ctx context.Context, req PaymentRequest) (*Result, error) {
	const op = "apply_payment"

	if err := validatePayment(req.PaymentInput); err != nil {
		return nil, e.fail(op, req.BookingID, "", err)
	}

	res, err := e.mutate(ctx, op, req.BookingID, nil, func(ctx context.Context, c *change) error {
		return e.recordPayment(ctx, c, req.PaymentInput, System(), "", "")
	})
	if err != nil && errors.Is(err, ErrDuplicatePayment) && (res == nil || res.Receipt == nil || res.Booking == nil) {
		// Lost an insert race on the reference; read back what the winner wrote.
		res = &Result{}
		if receipt, getErr := e.store.ReceiptByReference(ctx, req.Reference); getErr == nil {
			res.Receipt = receipt
		}
		if b, getErr := e.store.GetBooking(ctx, req.BookingID); getErr == nil {
			res.Booking = b
		}
	}
	return res, err
}

// recordPayment adds in to the booking totals, advances status as far as the
// ledger allows and writes the receipt. When want is set it must be one of the
// statuses the payment reaches.
func (e *Engine) recordPayment(ctx context.Context, c *change, in PaymentInput, actor Actor, reason string, want Status) error {
	existing, err := c.tx.ReceiptByReference(ctx, in.Reference)
	if err != nil {
		return err
	}
	if existing != nil {
		c.res.Receipt = existing
		return ErrDuplicatePayment
	}

	plan, err := planPayment(c.b, in.Amount)
	if err != nil {
		return err
	}
	if want != "" && !containsStatus(plan.steps, want) {
		return invalidState("payment of %s does not move %s to %s", money(in.Amount), c.b.Status, want)
	}

	if reason == "" {
		reason = fmt.Sprintf("payment %s received", in.Reference)
	}
	c.b.TotalPaid = plan.totalPaid
	c.b.reconcile()
	for _, step := range plan.steps {
		c.move(step, actor, reason)
	}
	c.touch()

	seq, err := c.tx.CountReceipts(ctx, c.b.ID)
	if err != nil {
		return err
	}
	receipt := &Receipt{
		ReceiptNumber:    receiptNumber(c.b.ID, seq+1, c.at),
		BookingID:        c.b.ID,
		PaymentReference: in.Reference,
		Amount:           money(in.Amount),
		TotalPaidAfter:   c.b.TotalPaid,
		RemainingAfter:   c.b.RemainingBalance.Decimal,
		CreatedAt:        c.at,
	}
	if len(in.Metadata) > 0 {
		receipt.Metadata = datatypes.JSON(in.Metadata)
	}
	if err := c.tx.CreateReceipt(ctx, receipt); err != nil {
		return err
	}
	c.res.Receipt = receipt
	return nil
}

func validatePayment(in PaymentInput) error {
	if errs := validator.Validate(in); errs != nil {
		return validationErr("%s", validator.Summary(errs))
	}
	if !in.Amount.IsPositive() {
		return validationErr("payment amount must be positive")
	}
	if len(in.Metadata) > 0 && !json.Valid(in.Metadata) {
		return validationErr("metadata must be valid JSON")
	}
	return nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
