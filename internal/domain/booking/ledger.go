package booking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// remaining is max(0, amount - paid).
func remaining(amount, paid decimal.Decimal) decimal.Decimal {
	r := amount.Sub(paid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func percentOf(base, pct decimal.Decimal) decimal.Decimal {
	return money(base.Mul(pct).Div(hundred))
}

func receiptNumber(bookingID int64, seq int64, at time.Time) string {
	return fmt.Sprintf("RCPT-%s-%06d-%03d", at.Format("20060102"), bookingID, seq)
}

// paymentPlan describes how one payment moves a booking forward.
type paymentPlan struct {
	totalPaid decimal.Decimal
	steps     []Status
}

// planPayment applies amount to b's totals without mutating b. Bookings before
// the downpayment step move to downpayment; reaching the agreed amount while
// at or before downpayment moves on to fully_paid.
func planPayment(b *Booking, amount decimal.Decimal) (paymentPlan, error) {
	if !amount.IsPositive() {
		return paymentPlan{}, validationErr("payment amount must be positive")
	}
	if !b.Amount.Valid {
		return paymentPlan{}, invalidState("booking amount has not been agreed")
	}
	if !b.Status.AcceptsPayment() {
		return paymentPlan{}, invalidState("payments are not accepted in status %s", b.Status)
	}

	plan := paymentPlan{totalPaid: money(b.TotalPaid.Add(amount))}
	cur := b.Status
	if cur.beforeDownpayment() {
		plan.steps = append(plan.steps, StatusDownpayment)
		cur = StatusDownpayment
	}
	if cur == StatusDownpayment && plan.totalPaid.GreaterThanOrEqual(b.Amount.Decimal) {
		plan.steps = append(plan.steps, StatusFullyPaid)
	}
	return plan, nil
}
