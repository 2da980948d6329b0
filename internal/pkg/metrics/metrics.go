package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"weddinghub/internal/domain/booking"
)

// Booking exports lifecycle counters. It satisfies booking.Recorder.
type Booking struct {
	transitions *prometheus.CounterVec
	payments    *prometheus.CounterVec
	completions *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewBooking registers the booking counters on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func NewBooking(reg prometheus.Registerer) *Booking {
	factory := promauto.With(reg)
	return &Booking{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_transitions_total",
				Help: "Booking status transitions applied",
			},
			[]string{"from", "to", "actor"},
		),
		payments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_payments_total",
				Help: "Payment events received, split by whether they were replays",
			},
			[]string{"duplicate"},
		),
		completions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_completions_total",
				Help: "Completion confirmations recorded",
			},
			[]string{"side", "fully_completed"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_operation_failures_total",
				Help: "Rejected or failed booking commands",
			},
			[]string{"operation", "kind"},
		),
	}
}

func (m *Booking) TransitionApplied(from, to booking.Status, actor booking.ActorType) {
	fromLabel := string(from)
	if fromLabel == "" {
		fromLabel = "none"
	}
	m.transitions.WithLabelValues(fromLabel, string(to), string(actor)).Inc()
}

func (m *Booking) PaymentApplied(duplicate bool) {
	m.payments.WithLabelValues(strconv.FormatBool(duplicate)).Inc()
}

func (m *Booking) CompletionRecorded(side booking.Side, fully bool) {
	m.completions.WithLabelValues(string(side), strconv.FormatBool(fully)).Inc()
}

func (m *Booking) OperationFailed(op string, kind string) {
	m.failures.WithLabelValues(op, kind).Inc()
}
