package booking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"request", StatusRequest},
		{"  Quote-Sent ", StatusQuoteSent},
		{"quote accepted", StatusQuoteAccepted},
		{"pending", StatusRequest},
		{"downpayment_paid", StatusDownpayment},
		{"Deposit_Paid", StatusDownpayment},
		{"deposit", StatusDownpayment},
		{"partially-paid", StatusDownpayment},
		{"paid_in_full", StatusFullyPaid},
		{"PAID", StatusFullyPaid},
		{"fullypaid", StatusFullyPaid},
		{"canceled", StatusCancelled},
		{"rejected", StatusQuoteRejected},
		{"accepted", StatusQuoteAccepted},
		{"done", StatusCompleted},
		{"in-progress", StatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatus_Unknown(t *testing.T) {
	for _, in := range []string{"", "   ", "shipped", "quote"} {
		_, err := ParseStatus(in)
		assert.True(t, errors.Is(err, ErrInvalidStatus), "input %q", in)
	}
}

func TestAllStatusesAreCanonical(t *testing.T) {
	for _, s := range AllStatuses() {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	assert.Len(t, AllStatuses(), 14)
}

func TestStatus_ScanAndValue(t *testing.T) {
	var s Status
	require.NoError(t, s.Scan("Deposit_Paid"))
	assert.Equal(t, StatusDownpayment, s)

	require.NoError(t, s.Scan([]byte("paid")))
	assert.Equal(t, StatusFullyPaid, s)

	require.NoError(t, s.Scan(nil))
	assert.Equal(t, Status(""), s)

	assert.Error(t, s.Scan("shipped"))
	assert.Error(t, s.Scan(42))

	v, err := Status("canceled").Value()
	require.NoError(t, err)
	assert.Equal(t, "cancelled", v)

	_, err = Status("bogus").Value()
	assert.Error(t, err)
}

func TestActorFromRole(t *testing.T) {
	a, err := ActorFromRole("Coordinator", 5)
	require.NoError(t, err)
	assert.Equal(t, Admin(5), a)

	a, err = ActorFromRole("client", 9)
	require.NoError(t, err)
	assert.Equal(t, Couple(9), a)

	_, err = ActorFromRole("photographer", 9)
	assert.True(t, errors.Is(err, ErrUnauthorizedActor))
}
