package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"weddinghub/internal/domain/booking"
)

var _ booking.Recorder = (*Booking)(nil)

func TestBookingCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBooking(reg)

	m.TransitionApplied("", booking.StatusRequest, booking.ActorCouple)
	m.TransitionApplied(booking.StatusQuoteAccepted, booking.StatusDownpayment, booking.ActorSystem)
	m.TransitionApplied(booking.StatusQuoteAccepted, booking.StatusDownpayment, booking.ActorSystem)
	m.PaymentApplied(false)
	m.PaymentApplied(true)
	m.CompletionRecorded(booking.SideVendor, false)
	m.OperationFailed("apply_payment", "duplicate_payment")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("none", "request", "couple")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("quote_accepted", "downpayment", "system")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("vendor", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("apply_payment", "duplicate_payment")))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 6, n)
}
